// Package metrics exposes prometheus counters for the payment core.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the domain counters services record against.
type Metrics struct {
	OrdersCreated  *prometheus.CounterVec
	WebhookEvents  *prometheus.CounterVec
	GrantsApplied  *prometheus.CounterVec
	GatedActions   *prometheus.CounterVec
	PartialFailure prometheus.Counter

	httpDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		OrdersCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paycore_orders_created_total",
			Help: "Orders created, by plan role.",
		}, []string{"role"}),
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paycore_webhook_events_total",
			Help: "Webhook notifications processed, by outcome.",
		}, []string{"outcome"}),
		GrantsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paycore_entitlement_grants_total",
			Help: "Entitlement grants applied, by plan role.",
		}, []string{"role"}),
		GatedActions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paycore_gated_actions_total",
			Help: "Gated candidate actions, by decision.",
		}, []string{"allowed"}),
		PartialFailure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "paycore_grant_partial_failures_total",
			Help: "Orders marked PAID whose entitlement grant failed.",
		}),
		httpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paycore_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) RecordOrderCreated(role string) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(role).Inc()
}

func (m *Metrics) RecordWebhookEvent(outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordGrant(role string) {
	if m == nil {
		return
	}
	m.GrantsApplied.WithLabelValues(role).Inc()
}

func (m *Metrics) RecordGatedAction(allowed bool) {
	if m == nil {
		return
	}
	m.GatedActions.WithLabelValues(strconv.FormatBool(allowed)).Inc()
}

func (m *Metrics) RecordGrantFailure() {
	if m == nil {
		return
	}
	m.PartialFailure.Inc()
}

// GinMiddleware records request latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.httpDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
