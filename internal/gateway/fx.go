package gateway

import (
	gatewayservice "github.com/hireloop/paycore/internal/gateway/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.service",
	fx.Provide(gatewayservice.NewService),
)
