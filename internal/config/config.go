// Package config resolves service settings and payment gateway configuration
// per deployment environment.
package config

import (
	"fmt"
	"time"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	pkgconfig "github.com/c50bossio/6fb-booking-sub001/pkg/config"
)

// Config holds all configuration for the payment gateway service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort            int `env:"PAYGATE_HTTP_PORT" envDefault:"8010"`
	ShutdownTimeoutSecs int `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"15"`

	// PostgreSQL (payment references)
	PostgresEnabled bool   `env:"PAYGATE_POSTGRES_ENABLED" envDefault:"false"`
	PostgresHost    string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort    int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser    string `env:"POSTGRES_USER" envDefault:"paygate"`
	PostgresPass    string `env:"POSTGRES_PASSWORD" envDefault:"paygate_secret"`
	PostgresDB      string `env:"PAYGATE_DB_NAME" envDefault:"paygate_db"`
	PostgresSSL     string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns      int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns      int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	// Redis (webhook de-duplication)
	RedisEnabled         bool   `env:"PAYGATE_REDIS_ENABLED" envDefault:"false"`
	RedisURL             string `env:"REDIS_URL"`
	RedisHost            string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort            int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword        string `env:"REDIS_PASSWORD"`
	RedisDB              int    `env:"REDIS_DB" envDefault:"0"`
	WebhookDedupTTLHours int    `env:"WEBHOOK_DEDUP_TTL_HOURS" envDefault:"72"`

	// Kafka (domain events)
	KafkaEnabled bool     `env:"PAYGATE_KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Admin API and webhook intake
	AdminJWTSecret   string  `env:"ADMIN_JWT_SECRET"`
	WebhookRateLimit float64 `env:"WEBHOOK_RATE_LIMIT_RPS" envDefault:"50"`
	WebhookRateBurst int     `env:"WEBHOOK_RATE_LIMIT_BURST" envDefault:"100"`

	// Stripe
	StripeEnabled        bool   `env:"STRIPE_ENABLED" envDefault:"true"`
	StripeSecretKey      string `env:"STRIPE_SECRET_KEY"`
	StripePublishableKey string `env:"STRIPE_PUBLISHABLE_KEY"`
	StripeWebhookSecret  string `env:"STRIPE_WEBHOOK_SECRET"`

	// Square
	SquareEnabled       bool   `env:"SQUARE_ENABLED" envDefault:"true"`
	SquareAccessToken   string `env:"SQUARE_ACCESS_TOKEN"`
	SquareApplicationID string `env:"SQUARE_APPLICATION_ID"`
	SquareLocationID    string `env:"SQUARE_LOCATION_ID"`
	SquareWebhookKey    string `env:"SQUARE_WEBHOOK_SIGNATURE_KEY"`

	// Tilled
	TilledEnabled        bool   `env:"TILLED_ENABLED" envDefault:"true"`
	TilledSecretKey      string `env:"TILLED_SECRET_KEY"`
	TilledPublishableKey string `env:"TILLED_PUBLISHABLE_KEY"`
	TilledAccountID      string `env:"TILLED_ACCOUNT_ID"`
	TilledWebhookSecret  string `env:"TILLED_WEBHOOK_SECRET"`

	// Runtime overrides
	ForceGateway            string `env:"PAYMENT_FORCE_GATEWAY"`
	DefaultStrategy         string `env:"PAYMENT_DEFAULT_STRATEGY"`
	DisableFailover         bool   `env:"PAYMENT_DISABLE_FAILOVER" envDefault:"false"`
	HealthCheckIntervalSecs int    `env:"PAYMENT_HEALTH_CHECK_INTERVAL" envDefault:"0"`
	OverridesFile           string `env:"PAYMENT_GATEWAY_OVERRIDES_FILE"`
	UseFakeGateways         bool   `env:"PAYMENT_USE_FAKE_GATEWAYS" envDefault:"false"`
	LegacyIDInference       bool   `env:"PAYMENT_LEGACY_ID_INFERENCE" envDefault:"false"`
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load paygate config: %w", err)
	}
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load paygate config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresEnabled && c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required when PAYGATE_POSTGRES_ENABLED is set")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when PAYGATE_KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.HealthCheckIntervalSecs < 0 {
		return fmt.Errorf("PAYMENT_HEALTH_CHECK_INTERVAL must not be negative, got %d", c.HealthCheckIntervalSecs)
	}
	if c.WebhookRateLimit <= 0 || c.WebhookRateBurst < 1 {
		return fmt.Errorf("webhook rate limit must be positive, got %f/%d", c.WebhookRateLimit, c.WebhookRateBurst)
	}
	if DetectEnvironment(c.Environment).IsProduction() && c.UseFakeGateways {
		return fmt.Errorf("PAYMENT_USE_FAKE_GATEWAYS cannot be used in production")
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecs) * time.Second
}

// WebhookDedupTTL returns how long processed webhook ids are remembered.
func (c *Config) WebhookDedupTTL() time.Duration {
	return time.Duration(c.WebhookDedupTTLHours) * time.Hour
}

// Overrides returns the env-driven runtime overrides.
func (c *Config) Overrides() Overrides {
	o := Overrides{
		ForceGateway:    c.ForceGateway,
		DefaultStrategy: c.DefaultStrategy,
		DisableFailover: c.DisableFailover,
	}
	if c.HealthCheckIntervalSecs > 0 {
		o.HealthCheckInterval = time.Duration(c.HealthCheckIntervalSecs) * time.Second
	}
	return o
}

// ManagerConfig resolves the environment defaults, credentials, the optional
// overrides file and the env overrides, in that order.
func (c *Config) ManagerConfig() (ManagerConfig, error) {
	mc := DefaultManagerConfig(DetectEnvironment(c.Environment))
	mc.LegacyIDInference = c.LegacyIDInference

	c.applyCredentials(&mc)

	if c.OverridesFile != "" {
		fo, err := LoadOverridesFile(c.OverridesFile)
		if err != nil {
			return ManagerConfig{}, err
		}
		if err := fo.Apply(&mc); err != nil {
			return ManagerConfig{}, err
		}
	}

	if err := c.Overrides().Apply(&mc); err != nil {
		return ManagerConfig{}, err
	}
	return mc, nil
}

func (c *Config) applyCredentials(mc *ManagerConfig) {
	set := func(t domain.GatewayType, enabled bool, webhookSecret string, creds, extra map[string]string) {
		g := mc.Gateways[t]
		g.Enabled = enabled
		g.WebhookSecret = webhookSecret
		for k, v := range creds {
			if v != "" {
				g.Credentials[k] = v
			}
		}
		for k, v := range extra {
			if v != "" {
				g.Extra[k] = v
			}
		}
		mc.Gateways[t] = g
	}

	set(domain.GatewayStripe, c.StripeEnabled, c.StripeWebhookSecret,
		map[string]string{
			gateway.KeyAPIKey:         c.StripeSecretKey,
			gateway.KeyPublishableKey: c.StripePublishableKey,
		}, nil)
	set(domain.GatewaySquare, c.SquareEnabled, c.SquareWebhookKey,
		map[string]string{
			gateway.KeyAccessToken:   c.SquareAccessToken,
			gateway.KeyApplicationID: c.SquareApplicationID,
		},
		map[string]string{gateway.KeyLocationID: c.SquareLocationID})
	set(domain.GatewayTilled, c.TilledEnabled, c.TilledWebhookSecret,
		map[string]string{
			gateway.KeySecretKey:      c.TilledSecretKey,
			gateway.KeyPublishableKey: c.TilledPublishableKey,
		},
		map[string]string{gateway.KeyAccountID: c.TilledAccountID})
}
