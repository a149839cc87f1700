package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/hireloop/paycore/internal/clock"
	entitlementdomain "github.com/hireloop/paycore/internal/entitlement/domain"
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
	Repo       entitlementdomain.Repository
	PlanSvc    plandomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       entitlementdomain.Repository
	planSvc    plandomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) entitlementdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("entitlement.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		planSvc:    p.PlanSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// Grant applies the entitlements for a paid order. Calling it again for the
// same order is a no-op because the subscription insert is keyed by order id,
// and older subscriptions are only deactivated when the insert went through.
func (s *Service) Grant(ctx context.Context, order *orderdomain.Order) error {
	if order == nil {
		return errors.New("order is required")
	}

	plan, err := s.planSvc.Get(ctx, order.PlanID)
	if err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	sub := &entitlementdomain.Subscription{
		ID:        s.genID.Generate(),
		UserID:    order.UserID,
		PlanID:    plan.ID,
		OrderID:   order.ID,
		StartDate: now,
		EndDate:   now.AddDate(0, plan.DurationMonths, 0),
		IsActive:  true,
		CreatedAt: now,
	}

	granted := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertSubscription(ctx, tx, sub)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		granted = true

		if _, err := s.repo.DeactivateOthers(ctx, tx, order.UserID, sub.ID); err != nil {
			return err
		}

		if plan.Role == plandomain.RoleEmployer && plan.MaxJobPosts > 0 {
			if err := s.repo.AddQuota(ctx, tx, s.genID.Generate(), order.UserID, plan.MaxJobPosts, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if granted {
		s.log.Info("entitlement granted",
			zap.Int64("order_id", int64(order.ID)),
			zap.Int64("user_id", int64(order.UserID)),
			zap.String("plan_code", plan.Code),
			zap.Time("end_date", sub.EndDate),
		)
		s.obsMetrics.RecordGrant(string(plan.Role))
	} else {
		s.log.Info("entitlement already granted, skipping",
			zap.Int64("order_id", int64(order.ID)),
		)
	}
	return nil
}

func (s *Service) Snapshot(ctx context.Context, userID snowflake.ID) (*entitlementdomain.Snapshot, error) {
	now := s.clock.Now().UTC()

	snapshot := &entitlementdomain.Snapshot{}
	sub, err := s.repo.FindActiveByUser(ctx, s.db, userID, now)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		snapshot.Subscription = sub
		plan, err := s.planSvc.Get(ctx, sub.PlanID)
		if err != nil && !errors.Is(err, plandomain.ErrPlanNotFound) {
			return nil, err
		}
		snapshot.Plan = plan
	}

	quota, err := s.repo.FindQuotaByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	snapshot.Quota = quota

	return snapshot, nil
}

func (s *Service) HasActiveSubscription(ctx context.Context, userID snowflake.ID, role plandomain.Role) (bool, error) {
	now := s.clock.Now().UTC()
	return s.repo.HasActiveForRole(ctx, s.db, userID, role, now)
}
