package order

import (
	"github.com/hireloop/paycore/internal/order/repository"
	orderservice "github.com/hireloop/paycore/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(orderservice.NewService),
)
