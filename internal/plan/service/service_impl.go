package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/hireloop/paycore/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo plandomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo plandomain.Repository
}

func NewService(p Params) plandomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("plan.service"),
		repo: p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*plandomain.Plan, error) {
	plan, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) List(ctx context.Context, role plandomain.Role) ([]plandomain.Plan, error) {
	if role != "" && !role.Valid() {
		return nil, plandomain.ErrInvalidRole
	}
	return s.repo.List(ctx, s.db, role)
}
