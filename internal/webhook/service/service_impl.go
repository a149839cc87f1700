package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hireloop/paycore/internal/config"
	entitlementdomain "github.com/hireloop/paycore/internal/entitlement/domain"
	gatewaydomain "github.com/hireloop/paycore/internal/gateway/domain"
	obsmetrics "github.com/hireloop/paycore/internal/observability/metrics"
	orderdomain "github.com/hireloop/paycore/internal/order/domain"
	webhookdomain "github.com/hireloop/paycore/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	Cfg            config.Config
	OrderSvc       orderdomain.Service
	OrderRepo      orderdomain.Repository
	GatewaySvc     gatewaydomain.Service
	EntitlementSvc entitlementdomain.Service
	ObsMetrics     *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	partnerCode    string
	orderSvc       orderdomain.Service
	orderRepo      orderdomain.Repository
	gatewaySvc     gatewaydomain.Service
	entitlementSvc entitlementdomain.Service
	obsMetrics     *obsmetrics.Metrics
}

func NewService(p Params) webhookdomain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("webhook.service"),
		partnerCode:    p.Cfg.Gateway.PartnerCode,
		orderSvc:       p.OrderSvc,
		orderRepo:      p.OrderRepo,
		gatewaySvc:     p.GatewaySvc,
		entitlementSvc: p.EntitlementSvc,
		obsMetrics:     p.ObsMetrics,
	}
}

// HandleNotification reconciles one gateway notification against the order
// ledger. Verified notifications are always acked, whether they report
// success, failure, or a replay of something already settled. Only payloads
// that fail parsing or signature verification return an error.
func (s *Service) HandleNotification(ctx context.Context, payload []byte) (*webhookdomain.Ack, error) {
	var ipn gatewaydomain.IPNPayload
	if err := json.Unmarshal(payload, &ipn); err != nil {
		return nil, fmt.Errorf("%w: %v", webhookdomain.ErrMalformedPayload, err)
	}
	if ipn.OrderID == "" || ipn.ResultCode == nil {
		return nil, webhookdomain.ErrMalformedPayload
	}

	if err := s.gatewaySvc.VerifyIPN(ipn); err != nil {
		s.log.Warn("notification signature rejected",
			zap.String("external_order_id", ipn.OrderID),
		)
		s.obsMetrics.RecordWebhookEvent(webhookdomain.OutcomeRejected)
		return nil, err
	}

	order, err := s.orderSvc.GetByExternalID(ctx, ipn.OrderID)
	if err != nil {
		if errors.Is(err, orderdomain.ErrOrderNotFound) {
			s.log.Warn("notification for unknown order",
				zap.String("external_order_id", ipn.OrderID),
			)
			s.obsMetrics.RecordWebhookEvent(webhookdomain.OutcomeUnknownOrder)
			return s.ack(ipn.OrderID, "order not found"), nil
		}
		return nil, err
	}

	transID := fmt.Sprintf("%d", ipn.TransID)

	if ipn.Code() != 0 {
		_, _, err := s.orderSvc.MarkFailed(ctx, ipn.OrderID, transID)
		if err != nil {
			return nil, err
		}
		s.log.Info("payment failed at gateway",
			zap.String("external_order_id", ipn.OrderID),
			zap.Int("result_code", ipn.Code()),
			zap.String("message", ipn.Message),
		)
		s.obsMetrics.RecordWebhookEvent(webhookdomain.OutcomeFailed)
		return s.ack(ipn.OrderID, "success"), nil
	}

	if ipn.Amount != order.Amount {
		s.log.Error("notification amount does not match order",
			zap.String("external_order_id", ipn.OrderID),
			zap.Int64("order_amount", order.Amount),
			zap.Int64("notified_amount", ipn.Amount),
		)
		if _, _, err := s.orderSvc.MarkFailed(ctx, ipn.OrderID, transID); err != nil {
			return nil, err
		}
		s.obsMetrics.RecordWebhookEvent(webhookdomain.OutcomeAmountMismatch)
		return s.ack(ipn.OrderID, "amount mismatch"), nil
	}

	order, transitioned, err := s.orderSvc.MarkPaid(ctx, ipn.OrderID, transID)
	if err != nil {
		return nil, err
	}

	switch {
	case transitioned:
		if err := s.entitlementSvc.Grant(ctx, order); err != nil {
			// Order is PAID but the user has nothing yet. Ack anyway so the
			// gateway stops retrying; the grant sweep picks this up.
			s.log.Error("order paid but entitlement grant failed",
				zap.Int64("order_id", int64(order.ID)),
				zap.String("external_order_id", ipn.OrderID),
				zap.Error(err),
			)
			s.obsMetrics.RecordGrantFailure()
			return s.ack(ipn.OrderID, "success"), nil
		}
		s.obsMetrics.RecordWebhookEvent(webhookdomain.OutcomeGranted)

	case order.Status == orderdomain.StatusPaid:
		// Replay of a settled payment. Grant is keyed by order id, so this
		// is a no-op unless the original grant never landed.
		if err := s.entitlementSvc.Grant(ctx, order); err != nil {
			s.log.Error("grant retry on replay failed",
				zap.Int64("order_id", int64(order.ID)),
				zap.Error(err),
			)
			s.obsMetrics.RecordGrantFailure()
			return s.ack(ipn.OrderID, "success"), nil
		}
		s.log.Info("replayed notification for settled order",
			zap.String("external_order_id", ipn.OrderID),
		)
		s.obsMetrics.RecordWebhookEvent(webhookdomain.OutcomeReplay)

	default:
		// Success notification for an order the sweep or a prior failure
		// notification already closed. Nothing to grant.
		s.log.Warn("success notification for failed order ignored",
			zap.String("external_order_id", ipn.OrderID),
			zap.String("status", string(order.Status)),
		)
		s.obsMetrics.RecordWebhookEvent(webhookdomain.OutcomeReplay)
	}

	return s.ack(ipn.OrderID, "success"), nil
}

// RetryPendingGrants re-applies entitlements for PAID orders that have no
// subscription on record, closing the gap left when a grant failed after
// the payment settled.
func (s *Service) RetryPendingGrants(ctx context.Context) (int, error) {
	orders, err := s.orderRepo.ListPaidWithoutGrant(ctx, s.db, 100)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for i := range orders {
		order := orders[i]
		if err := s.entitlementSvc.Grant(ctx, &order); err != nil {
			s.log.Error("grant retry failed",
				zap.Int64("order_id", int64(order.ID)),
				zap.Error(err),
			)
			continue
		}
		recovered++
	}
	if recovered > 0 {
		s.log.Info("recovered missing grants", zap.Int("count", recovered))
	}
	return recovered, nil
}

func (s *Service) ack(orderID, message string) *webhookdomain.Ack {
	return &webhookdomain.Ack{
		PartnerCode: s.partnerCode,
		OrderID:     orderID,
		ResultCode:  0,
		Message:     message,
	}
}
