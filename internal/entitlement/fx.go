package entitlement

import (
	"github.com/hireloop/paycore/internal/entitlement/repository"
	entitlementservice "github.com/hireloop/paycore/internal/entitlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement.service",
	fx.Provide(repository.Provide),
	fx.Provide(entitlementservice.NewService),
)
