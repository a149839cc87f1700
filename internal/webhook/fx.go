package webhook

import (
	webhookservice "github.com/hireloop/paycore/internal/webhook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.service",
	fx.Provide(webhookservice.NewService),
)
