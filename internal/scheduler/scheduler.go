package scheduler

import (
	"context"
	"errors"
	"time"

	orderdomain "github.com/hireloop/paycore/internal/order/domain"
	webhookdomain "github.com/hireloop/paycore/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config controls sweep intervals.
type Config struct {
	RunInterval time.Duration
}

func DefaultConfig() Config {
	return Config{RunInterval: time.Minute}
}

func (c Config) withDefaults() Config {
	if c.RunInterval <= 0 {
		c.RunInterval = DefaultConfig().RunInterval
	}
	return c
}

func ProvideConfig() Config {
	return DefaultConfig()
}

type Params struct {
	fx.In

	Log        *zap.Logger
	OrderSvc   orderdomain.Service
	WebhookSvc webhookdomain.Service
	Config     Config `optional:"true"`
}

// Scheduler runs the two background sweeps: failing stale PENDING orders
// and re-applying grants for PAID orders that missed theirs.
type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	orderSvc   orderdomain.Service
	webhookSvc webhookdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.OrderSvc == nil || p.WebhookSvc == nil {
		return nil, errors.New("scheduler dependencies missing")
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		cfg:        p.Config.withDefaults(),
		orderSvc:   p.OrderSvc,
		webhookSvc: p.WebhookSvc,
	}, nil
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	var err error

	if _, sweepErr := s.orderSvc.ExpirePending(ctx); sweepErr != nil {
		err = errors.Join(err, sweepErr)
	}
	if _, retryErr := s.webhookSvc.RetryPendingGrants(ctx); retryErr != nil {
		err = errors.Join(err, retryErr)
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
