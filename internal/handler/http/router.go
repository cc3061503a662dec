// Package http exposes the payment gateway subsystem over HTTP: provider
// webhooks, gateway health and metrics, and the admin surface.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c50bossio/6fb-booking-sub001/internal/config"
	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/internal/manager"
	"github.com/c50bossio/6fb-booking-sub001/internal/selector"
	"github.com/c50bossio/6fb-booking-sub001/pkg/health"
	"github.com/c50bossio/6fb-booking-sub001/pkg/middleware"
)

// GatewayService is the subset of the gateway manager served over HTTP.
type GatewayService interface {
	HandleWebhook(ctx context.Context, gw domain.GatewayType, payload []byte, signature, secret string) (*manager.WebhookResult, error)
	GatewayStatuses() []manager.GatewayStatus
	HealthCheckAll(ctx context.Context) map[domain.GatewayType]gateway.HealthStatus
	SelectionHistory() []selector.Selection
	Config() *config.Store

	EnableGateway(ctx context.Context, gw domain.GatewayType) error
	DisableGateway(ctx context.Context, gw domain.GatewayType) error
	ForceOffline(ctx context.Context, gw domain.GatewayType) error
	RestoreGateway(ctx context.Context, gw domain.GatewayType) error
	SetPriority(ctx context.Context, gw domain.GatewayType, priority int) error
}

var _ GatewayService = (*manager.Manager)(nil)

const (
	defaultWebhookRPS   = 50
	defaultWebhookBurst = 100
)

// RouterConfig carries the transport settings of the router.
type RouterConfig struct {
	ServiceName string
	// ValidateToken authenticates admin requests. Admin routes are not
	// mounted when it is nil.
	ValidateToken    middleware.TokenValidator
	WebhookRateLimit float64
	WebhookRateBurst int
}

// NewRouter creates a chi router with every route registered.
func NewRouter(
	svc GatewayService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "paygate"
	}
	if cfg.WebhookRateLimit <= 0 || cfg.WebhookRateBurst < 1 {
		cfg.WebhookRateLimit, cfg.WebhookRateBurst = defaultWebhookRPS, defaultWebhookBurst
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	webhooks := NewWebhookHandler(svc, logger)
	r.With(middleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookRateBurst, logger,
		middleware.WithKey(middleware.ByURLParam("gateway")),
	)).Post("/webhooks/{gateway}", webhooks.Receive)

	gateways := NewGatewayHandler(svc, logger)
	r.Route("/api/v1/gateways", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/", gateways.List)
		r.Get("/health", gateways.Health)
		r.Get("/selections", gateways.Selections)
		r.Get("/config/validation", gateways.ValidateConfig)

		if cfg.ValidateToken == nil {
			logger.Warn("admin gateway routes disabled: no token validator configured")
			return
		}
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.ValidateToken))
			r.Use(middleware.RequireRole(middleware.RoleAdmin))

			r.Post("/{gateway}/enable", gateways.Enable)
			r.Post("/{gateway}/disable", gateways.Disable)
			r.Post("/{gateway}/offline", gateways.ForceOffline)
			r.Post("/{gateway}/restore", gateways.Restore)
			r.Put("/{gateway}/priority", gateways.SetPriority)
		})
	})

	return r
}
