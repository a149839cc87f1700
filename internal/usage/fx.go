package usage

import (
	"github.com/hireloop/paycore/internal/usage/repository"
	usageservice "github.com/hireloop/paycore/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(usageservice.NewService),
)
