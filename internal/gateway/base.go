package gateway

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zoobzio/clockz"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/pkg/httpclient"
)

// Options carries collaborators shared by every adapter constructor.
type Options struct {
	Logger *slog.Logger
	Clock  clockz.Clock
	// Doer is used by REST adapters. Defaults to a circuit-breaker client
	// named after the gateway.
	Doer httpclient.Doer
	// HTTPClient is used by SDK-backed adapters.
	HTTPClient *http.Client
	Bounds     *domain.AmountBounds
}

// Option customizes Options.
type Option func(*Options)

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithClock sets the clock used for timestamps and health timings.
func WithClock(c clockz.Clock) Option {
	return func(o *Options) { o.Clock = c }
}

// WithDoer replaces the HTTP transport of REST adapters.
func WithDoer(d httpclient.Doer) Option {
	return func(o *Options) { o.Doer = d }
}

// WithHTTPClient replaces the *http.Client of SDK-backed adapters.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) { o.HTTPClient = c }
}

// WithAmountBounds overrides the default amount bounds.
func WithAmountBounds(b domain.AmountBounds) Option {
	return func(o *Options) { o.Bounds = &b }
}

// ResolveOptions applies opts over defaults derived from cfg.
func ResolveOptions(cfg Config, opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	o.Logger = o.Logger.With(slog.String("gateway", cfg.Type.String()))
	if o.Clock == nil {
		o.Clock = clockz.RealClock
	}
	if o.Doer == nil || o.HTTPClient == nil {
		hc := httpclient.DefaultConfig()
		if cfg.Timeout > 0 {
			hc.Timeout = cfg.Timeout
		}
		cb := httpclient.NewCircuitBreakerClient(httpclient.New(hc),
			httpclient.DefaultCircuitBreakerConfig(cfg.Type.String()), o.Logger)
		if o.Doer == nil {
			o.Doer = cb
		}
		if o.HTTPClient == nil {
			o.HTTPClient = cb.StandardClient()
		}
	}
	return o
}

// Base holds the state every adapter needs. Adapters embed it.
type Base struct {
	cfg    Config
	logger *slog.Logger
	clock  clockz.Clock
	bounds domain.AmountBounds
}

// NewBase builds a Base from a config and resolved options.
func NewBase(cfg Config, o Options) Base {
	bounds := domain.DefaultAmountBounds()
	if o.Bounds != nil {
		bounds = *o.Bounds
	}
	return Base{cfg: cfg.Clone(), logger: o.Logger, clock: o.Clock, bounds: bounds}
}

// Type returns the gateway type.
func (b *Base) Type() domain.GatewayType { return b.cfg.Type }

// Config returns a copy of the adapter configuration.
func (b *Base) Config() Config { return b.cfg.Clone() }

// Logger returns the adapter logger.
func (b *Base) Logger() *slog.Logger { return b.logger }

// Clock returns the adapter clock.
func (b *Base) Clock() clockz.Clock { return b.clock }

// Now returns the current UTC time.
func (b *Base) Now() time.Time { return b.clock.Now().UTC() }

// ValidateAmount checks amount against the adapter's bounds.
func (b *Base) ValidateAmount(amount decimal.Decimal, currency string) error {
	return domain.ValidateAmount(amount, currency, b.bounds, b.cfg.Type)
}

// Err builds a GatewayError tagged with this gateway.
func (b *Base) Err(code, message string) *domain.GatewayError {
	return domain.NewGatewayError(code, message, b.cfg.Type)
}

// WrapErr wraps err in a GatewayError tagged with this gateway.
func (b *Base) WrapErr(err error, code, message string) *domain.GatewayError {
	return domain.WrapGatewayError(err, code, message, b.cfg.Type)
}

// UnixTime converts provider epoch seconds to time.Time, or now when zero.
func (b *Base) UnixTime(sec int64) time.Time {
	if sec == 0 {
		return b.Now()
	}
	return time.Unix(sec, 0).UTC()
}
