package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hireloop/paycore/internal/clock"
	"github.com/hireloop/paycore/internal/config"
	entitlementdomain "github.com/hireloop/paycore/internal/entitlement/domain"
	obsmetrics "github.com/hireloop/paycore/internal/observability/metrics"
	plandomain "github.com/hireloop/paycore/internal/plan/domain"
	usagedomain "github.com/hireloop/paycore/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           usagedomain.Repository
	EntitlementSvc entitlementdomain.Service
	Limits         *config.LimitsHolder
	ObsMetrics     *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	repo           usagedomain.Repository
	entitlementSvc entitlementdomain.Service
	limits         *config.LimitsHolder
	obsMetrics     *obsmetrics.Metrics
}

func NewService(p Params) usagedomain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("usage.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		entitlementSvc: p.EntitlementSvc,
		limits:         p.Limits,
		obsMetrics:     p.ObsMetrics,
	}
}

// CanPerform decides whether the candidate may take another gated action
// today. Only a live candidate-plan subscription lifts the cap; an employer
// subscription on the same account changes nothing here. Everyone else gets
// the configured free daily allowance.
func (s *Service) CanPerform(ctx context.Context, userID snowflake.ID) (*usagedomain.Decision, error) {
	subscribed, err := s.entitlementSvc.HasActiveSubscription(ctx, userID, plandomain.RoleCandidate)
	if err != nil {
		return nil, err
	}

	today := s.today()
	count, err := s.repo.CountFor(ctx, s.db, userID, today)
	if err != nil {
		return nil, err
	}

	decision := &usagedomain.Decision{CurrentCount: count}
	if subscribed {
		decision.Allowed = true
		decision.Limit = usagedomain.UnlimitedLimit
	} else {
		limit := s.limits.Get().FreeDailyApplications
		decision.Limit = limit
		decision.Allowed = count < limit
	}

	s.obsMetrics.RecordGatedAction(decision.Allowed)
	if !decision.Allowed {
		s.log.Info("gated action denied",
			zap.Int64("user_id", int64(userID)),
			zap.Int("count", count),
			zap.Int("limit", decision.Limit),
		)
	}
	return decision, nil
}

// Record bumps today's counter for the candidate.
func (s *Service) Record(ctx context.Context, userID snowflake.ID) error {
	return s.repo.Increment(ctx, s.db, s.genID.Generate(), userID, s.today())
}

func (s *Service) today() time.Time {
	now := s.clock.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
