package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/hireloop/paycore/internal/config"
	"github.com/hireloop/paycore/internal/entitlement"
	entitlementdomain "github.com/hireloop/paycore/internal/entitlement/domain"
	"github.com/hireloop/paycore/internal/gateway"
	"github.com/hireloop/paycore/internal/observability"
	obsmiddleware "github.com/hireloop/paycore/internal/observability/logger"
	obsmetrics "github.com/hireloop/paycore/internal/observability/metrics"
	obstracing "github.com/hireloop/paycore/internal/observability/tracing"
	"github.com/hireloop/paycore/internal/order"
	orderdomain "github.com/hireloop/paycore/internal/order/domain"
	"github.com/hireloop/paycore/internal/plan"
	plandomain "github.com/hireloop/paycore/internal/plan/domain"
	"github.com/hireloop/paycore/internal/ratelimit"
	"github.com/hireloop/paycore/internal/scheduler"
	"github.com/hireloop/paycore/internal/seed"
	"github.com/hireloop/paycore/internal/usage"
	usagedomain "github.com/hireloop/paycore/internal/usage/domain"
	"github.com/hireloop/paycore/internal/webhook"
	webhookdomain "github.com/hireloop/paycore/internal/webhook/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	plan.Module,
	gateway.Module,
	order.Module,
	entitlement.Module,
	usage.Module,
	webhook.Module,
	ratelimit.Module,
	seed.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	return NewEngine(obsCfg, metrics)
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	genID           *snowflake.Node
	planSvc         plandomain.Service
	orderSvc        orderdomain.Service
	entitlementSvc  entitlementdomain.Service
	usageSvc        usagedomain.Service
	webhookSvc      webhookdomain.Service
	purchaseLimiter *ratelimit.PurchaseLimiter
	orderBurst      *rateLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	GenID           *snowflake.Node
	PlanSvc         plandomain.Service
	OrderSvc        orderdomain.Service
	EntitlementSvc  entitlementdomain.Service
	UsageSvc        usagedomain.Service
	WebhookSvc      webhookdomain.Service
	PurchaseLimiter *ratelimit.PurchaseLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		genID:           p.GenID,
		planSvc:         p.PlanSvc,
		orderSvc:        p.OrderSvc,
		entitlementSvc:  p.EntitlementSvc,
		usageSvc:        p.UsageSvc,
		webhookSvc:      p.WebhookSvc,
		purchaseLimiter: p.PurchaseLimiter,
		orderBurst:      newRateLimiter(30, time.Minute),
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/plans", s.ListPlans)

	api.POST("/orders", s.UserRequired(), s.CreateOrder)
	api.GET("/orders", s.UserRequired(), s.ListOrders)

	api.POST("/payments/webhooks/momo", s.HandlePaymentWebhook)

	api.GET("/me/entitlements", s.UserRequired(), s.GetEntitlements)

	api.POST("/applications", s.UserRequired(), s.SubmitApplication)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
