package plan

import (
	"github.com/hireloop/paycore/internal/plan/repository"
	planservice "github.com/hireloop/paycore/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(planservice.NewService),
)
