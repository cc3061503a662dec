// Package app wires the payment gateway service together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/c50bossio/6fb-booking-sub001/internal/config"
	"github.com/c50bossio/6fb-booking-sub001/internal/event"
	handler "github.com/c50bossio/6fb-booking-sub001/internal/handler/http"
	"github.com/c50bossio/6fb-booking-sub001/internal/manager"
	"github.com/c50bossio/6fb-booking-sub001/internal/registry"
	"github.com/c50bossio/6fb-booking-sub001/internal/repository/memory"
	"github.com/c50bossio/6fb-booking-sub001/internal/repository/postgres"
	redisrepo "github.com/c50bossio/6fb-booking-sub001/internal/repository/redis"
	"github.com/c50bossio/6fb-booking-sub001/migrations"
	"github.com/c50bossio/6fb-booking-sub001/pkg/database"
	"github.com/c50bossio/6fb-booking-sub001/pkg/health"
	pkgkafka "github.com/c50bossio/6fb-booking-sub001/pkg/kafka"
	"github.com/c50bossio/6fb-booking-sub001/pkg/middleware"
	"github.com/c50bossio/6fb-booking-sub001/pkg/tracing"
)

// ServiceName tags logs, metrics and traces.
const ServiceName = "paygate"

const slowQueryThreshold = 200 * time.Millisecond

// App wires together all dependencies and runs the payment gateway service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	manager        *manager.Manager
	health         *health.Handler
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Postgres, Redis and Kafka are only dialed when enabled; without them payment
// references and webhook ids are kept in memory and events are dropped.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeResources(context.Background())
		}
	}()

	tcfg := tracing.DefaultConfig(ServiceName)
	tcfg.Enabled = cfg.OTELEnabled
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	tcfg.Environment = config.DetectEnvironment(cfg.Environment).String()
	if a.tracerShutdown, err = tracing.InitTracer(ctx, tcfg); err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	mc, err := cfg.ManagerConfig()
	if err != nil {
		return nil, fmt.Errorf("resolve gateway config: %w", err)
	}
	if err := checkManagerConfig(mc, logger); err != nil {
		return nil, err
	}

	opts := []manager.Option{manager.WithLogger(logger)}

	if cfg.PostgresEnabled {
		pgCfg := database.DefaultPostgresConfig(cfg.PostgresDSN())
		pgCfg.MaxConns, pgCfg.MinConns = cfg.DBMaxConns, cfg.DBMinConns
		if a.pool, err = database.NewPostgresPool(ctx, pgCfg, logger); err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)
		if err := database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, a.pool, ServiceName); err != nil {
			logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}
		database.SetSlowQueryLogging(slowQueryThreshold, logger)
		opts = append(opts, manager.WithPaymentRefs(postgres.NewPaymentRefStore(a.pool)))
	} else {
		opts = append(opts, manager.WithPaymentRefs(memory.NewPaymentRefStore()))
	}

	if cfg.RedisEnabled {
		a.redis, err = database.NewRedisClient(ctx, database.RedisConfig{
			URL:      cfg.RedisURL,
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis", slog.String("addr", a.redis.Options().Addr))
		opts = append(opts, manager.WithWebhookDedup(redisrepo.NewIdempotencyStore(a.redis, cfg.WebhookDedupTTL(), nil)))
	} else {
		opts = append(opts, manager.WithWebhookDedup(memory.NewIdempotencyStore(cfg.WebhookDedupTTL(), nil)))
	}

	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		opts = append(opts, manager.WithEvents(event.NewProducer(a.producer, nil, logger)))
	}

	factory := newFactory(cfg, logger)
	if a.manager, err = manager.NewFromFactory(config.NewStore(mc), factory, opts...); err != nil {
		return nil, fmt.Errorf("create gateway manager: %w", err)
	}

	a.health = a.newHealthHandler()

	routerCfg := handler.RouterConfig{
		ServiceName:      ServiceName,
		WebhookRateLimit: cfg.WebhookRateLimit,
		WebhookRateBurst: cfg.WebhookRateBurst,
	}
	if cfg.AdminJWTSecret != "" {
		routerCfg.ValidateToken = middleware.HMACValidator(cfg.AdminJWTSecret)
	}
	router := handler.NewRouter(a.manager, a.health, routerCfg, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}

// newFactory returns the fake factory when requested, the real one otherwise.
func newFactory(cfg *config.Config, logger *slog.Logger) *registry.Factory {
	if cfg.UseFakeGateways {
		logger.Warn("using in-memory fake gateways")
		return registry.NewFake(logger)
	}
	return registry.NewDefault(logger)
}

// checkManagerConfig logs the validation report. Errors abort startup in
// production and are logged elsewhere.
func checkManagerConfig(mc config.ManagerConfig, logger *slog.Logger) error {
	report := config.ValidateConfig(mc)
	for _, msg := range report.Info {
		logger.Info("gateway config", slog.String("detail", msg))
	}
	for _, msg := range report.Warnings {
		logger.Warn("gateway config warning", slog.String("detail", msg))
	}
	for _, msg := range report.Errors {
		logger.Error("gateway config error", slog.String("detail", msg))
	}
	if !report.Valid() && mc.Environment.IsProduction() {
		return fmt.Errorf("invalid gateway configuration: %s", strings.Join(report.Errors, "; "))
	}
	return nil
}

// newHealthHandler registers readiness checks. Only "gateways" is critical:
// the service can take traffic while a single gateway or a backing store is
// degraded.
func (a *App) newHealthHandler() *health.Handler {
	h := health.NewHandler()
	h.Register("gateways", func(context.Context) error {
		return anyGatewayUsable(a.manager.GatewayStatuses())
	})

	for _, gt := range a.manager.Gateways() {
		h.RegisterOptional("gateway_"+gt.String(), func(context.Context) error {
			for _, st := range a.manager.GatewayStatuses() {
				if st.Gateway == gt && !st.Healthy {
					return fmt.Errorf("%s is unhealthy", gt)
				}
			}
			return nil
		})
	}
	if a.pool != nil {
		h.RegisterOptional("postgres", func(ctx context.Context) error { return a.pool.Ping(ctx) })
	}
	if a.redis != nil {
		h.RegisterOptional("redis", func(ctx context.Context) error { return a.redis.Ping(ctx).Err() })
	}
	if a.producer != nil {
		h.RegisterOptional("kafka", a.producer.Ping)
	}
	return h
}

var errNoUsableGateway = errors.New("no enabled and healthy gateway")

func anyGatewayUsable(statuses []manager.GatewayStatus) error {
	for _, st := range statuses {
		if st.Enabled && st.Healthy {
			return nil
		}
	}
	return errNoUsableGateway
}

// Run starts the HTTP server and the gateway health loop, and blocks until
// the context is canceled.
func (a *App) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.manager.RunHealthChecks(loopCtx)
	}()
	defer func() {
		stopLoop()
		wg.Wait()
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.Any("gateways", a.manager.Gateways()),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		stopLoop()
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	a.closeResources(shutdownCtx)

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeResources(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}

// Manager exposes the wired gateway manager.
func (a *App) Manager() *manager.Manager { return a.manager }

// Handler returns the HTTP handler served by Run.
func (a *App) Handler() http.Handler { return a.httpServer.Handler }
