package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hireloop/paycore/internal/clock"
	"github.com/hireloop/paycore/internal/config"
	gatewaydomain "github.com/hireloop/paycore/internal/gateway/domain"
	obsmetrics "github.com/hireloop/paycore/internal/observability/metrics"
	orderdomain "github.com/hireloop/paycore/internal/order/domain"
	plandomain "github.com/hireloop/paycore/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       orderdomain.Repository
	PlanSvc    plandomain.Service
	GatewaySvc gatewaydomain.Service
	Limits     *config.LimitsHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       orderdomain.Repository
	planSvc    plandomain.Service
	gatewaySvc gatewaydomain.Service
	limits     *config.LimitsHolder
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) orderdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("order.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		planSvc:    p.PlanSvc,
		gatewaySvc: p.GatewaySvc,
		limits:     p.Limits,
		obsMetrics: p.ObsMetrics,
	}
}

// Create records a PENDING order for the plan, stamps its gateway correlation
// key, and asks the gateway for a payment redirect. A gateway outage leaves
// the order PENDING so the caller can retry payment later.
func (s *Service) Create(ctx context.Context, in orderdomain.CreateInput) (*orderdomain.CreateResult, error) {
	plan, err := s.planSvc.Get(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}

	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = "momo"
	}

	now := s.clock.Now().UTC()
	order := &orderdomain.Order{
		ID:            s.genID.Generate(),
		UserID:        in.UserID,
		PlanID:        plan.ID,
		Amount:        plan.Price,
		PaymentMethod: method,
		Status:        orderdomain.StatusPending,
		Metadata:      in.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	externalOrderID := fmt.Sprintf("ORDER_%d_%d", order.ID, now.Unix())

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, order); err != nil {
			return err
		}
		return s.repo.StampExternalID(ctx, tx, order.ID, externalOrderID, now)
	})
	if err != nil {
		return nil, err
	}
	order.ExternalOrderID = externalOrderID

	built, err := s.gatewaySvc.BuildPaymentRequest(ctx, gatewaydomain.BuildInput{
		OrderID:   externalOrderID,
		Amount:    order.Amount,
		OrderInfo: fmt.Sprintf("Payment for %s", plan.Name),
	})
	if err != nil {
		s.log.Warn("payment request not opened, order stays pending",
			zap.Int64("order_id", int64(order.ID)),
			zap.String("external_order_id", externalOrderID),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("order created",
		zap.Int64("order_id", int64(order.ID)),
		zap.String("external_order_id", externalOrderID),
		zap.Int64("amount", order.Amount),
		zap.String("plan_code", plan.Code),
	)
	s.obsMetrics.RecordOrderCreated(string(plan.Role))

	return &orderdomain.CreateResult{
		Order:     order,
		PayURL:    built.PayURL,
		Deeplink:  built.Deeplink,
		QRCodeURL: built.QRCodeURL,
	}, nil
}

// MarkPaid flips a PENDING order to PAID. The second return value reports
// whether this call performed the flip; false means an earlier notification
// already settled the order.
func (s *Service) MarkPaid(ctx context.Context, externalOrderID string, transactionID string) (*orderdomain.Order, bool, error) {
	return s.transition(ctx, externalOrderID, orderdomain.StatusPaid, transactionID)
}

// MarkFailed flips a PENDING order to FAILED.
func (s *Service) MarkFailed(ctx context.Context, externalOrderID string, transactionID string) (*orderdomain.Order, bool, error) {
	return s.transition(ctx, externalOrderID, orderdomain.StatusFailed, transactionID)
}

func (s *Service) transition(ctx context.Context, externalOrderID string, to orderdomain.Status, transactionID string) (*orderdomain.Order, bool, error) {
	var transID *string
	if trimmed := strings.TrimSpace(transactionID); trimmed != "" {
		transID = &trimmed
	}

	now := s.clock.Now().UTC()
	transitioned, err := s.repo.Transition(ctx, s.db, externalOrderID, to, transID, now)
	if err != nil {
		return nil, false, err
	}

	order, err := s.repo.FindByExternalOrderID(ctx, s.db, externalOrderID)
	if err != nil {
		return nil, transitioned, err
	}
	if order == nil {
		return nil, false, orderdomain.ErrOrderNotFound
	}

	if transitioned {
		s.log.Info("order transitioned",
			zap.String("external_order_id", externalOrderID),
			zap.String("status", string(to)),
		)
	}
	return order, transitioned, nil
}

func (s *Service) GetByExternalID(ctx context.Context, externalOrderID string) (*orderdomain.Order, error) {
	order, err := s.repo.FindByExternalOrderID(ctx, s.db, externalOrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID) ([]orderdomain.Order, error) {
	return s.repo.ListByUser(ctx, s.db, userID)
}

// ExpirePending fails orders that sat in PENDING past the configured TTL.
// A zero TTL disables the sweep.
func (s *Service) ExpirePending(ctx context.Context) (int64, error) {
	ttlHours := s.limits.Get().PendingOrderTTLHours
	if ttlHours <= 0 {
		return 0, nil
	}

	now := s.clock.Now().UTC()
	cutoff := now.Add(-time.Duration(ttlHours) * time.Hour)
	expired, err := s.repo.ExpirePending(ctx, s.db, cutoff, now)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.log.Info("expired stale pending orders",
			zap.Int64("count", expired),
			zap.Time("cutoff", cutoff),
		)
	}
	return expired, nil
}
