// Package manager orchestrates payment operations across gateway adapters:
// per-request gateway selection, failover, follow-up call routing, webhook
// dispatch and periodic health checks.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zoobzio/clockz"

	"github.com/c50bossio/6fb-booking-sub001/internal/config"
	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/event"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/internal/registry"
	"github.com/c50bossio/6fb-booking-sub001/internal/repository"
	"github.com/c50bossio/6fb-booking-sub001/internal/selector"
	"github.com/c50bossio/6fb-booking-sub001/pkg/tracing"
)

const tracerName = "github.com/c50bossio/6fb-booking-sub001/internal/manager"

// Events is the subset of the event producer the manager publishes through.
type Events interface {
	PublishIntentCreated(ctx context.Context, d event.IntentCreatedData) error
	PublishFailover(ctx context.Context, d event.FailoverData) error
	PublishWebhookReceived(ctx context.Context, d event.WebhookReceivedData) error
	PublishHealthChanged(ctx context.Context, d event.HealthChangedData) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock sets the clock used for timings and the health loop.
func WithClock(c clockz.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithSelector replaces the selector built from the config.
func WithSelector(s *selector.Selector) Option {
	return func(m *Manager) { m.selector = s }
}

// WithPaymentRefs persists gateway ownership of created intents.
func WithPaymentRefs(s repository.PaymentRefStore) Option {
	return func(m *Manager) { m.refs = s }
}

// WithWebhookDedup drops webhook events whose id was already processed.
func WithWebhookDedup(s repository.IdempotencyStore) Option {
	return func(m *Manager) { m.seen = s }
}

// WithEvents publishes domain events through e.
func WithEvents(e Events) Option {
	return func(m *Manager) { m.events = e }
}

// Manager routes payment operations to gateway adapters. It is safe for
// concurrent use.
type Manager struct {
	store    *config.Store
	selector *selector.Selector
	refs     repository.PaymentRefStore
	seen     repository.IdempotencyStore
	events   Events
	clock    clockz.Clock
	logger   *slog.Logger

	mu       sync.RWMutex
	adapters map[domain.GatewayType]gateway.Adapter
	// lastHealthy remembers the previous probe result to detect transitions.
	lastHealthy map[domain.GatewayType]bool
}

// New creates a manager over already-built adapters. Every adapter must have
// a gateway entry in store; its fees seed the selector metrics.
func New(store *config.Store, adapters []gateway.Adapter, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:       store,
		events:      event.Nop{},
		clock:       clockz.RealClock,
		logger:      slog.Default(),
		adapters:    make(map[domain.GatewayType]gateway.Adapter, len(adapters)),
		lastHealthy: make(map[domain.GatewayType]bool),
	}
	for _, opt := range opts {
		opt(m)
	}

	mc := store.Snapshot()
	if m.selector == nil {
		selOpts := []selector.Option{
			selector.WithClock(m.clock),
			selector.WithFailoverOrder(mc.FailoverOrder...),
			selector.WithABTestGroups(mc.ABTestGroups),
		}
		m.selector = selector.New(selector.NewMetrics(m.clock), selOpts...)
	}

	for _, a := range adapters {
		t := a.Type()
		cfg, ok := mc.Gateways[t]
		if !ok {
			return nil, domain.NewGatewayError(domain.CodeGatewayNotConfigured,
				fmt.Sprintf("gateway %q has no configuration", t), t)
		}
		m.adapters[t] = a
		m.selector.Metrics().Register(t, cfg.TransactionFee, cfg.PercentageFee)
	}

	if _, err := selector.ParseStrategy(mc.DefaultStrategy); mc.DefaultStrategy != "" && err != nil {
		return nil, err
	}

	m.logger.Info("gateway manager initialized",
		slog.Int("adapters", len(m.adapters)),
		slog.String("strategy", mc.DefaultStrategy),
		slog.Bool("failover_enabled", mc.FailoverEnabled),
	)
	return m, nil
}

// NewFromFactory builds one adapter per enabled gateway whose required
// credentials are present, then creates the manager. Enabled gateways missing
// credentials are skipped with a warning.
func NewFromFactory(store *config.Store, factory *registry.Factory, opts ...Option) (*Manager, error) {
	probe := &Manager{logger: slog.Default()}
	for _, opt := range opts {
		opt(probe)
	}

	var adapters []gateway.Adapter
	for _, cfg := range store.EnabledGateways() {
		if !factory.IsCredentialed(cfg.Type, cfg) {
			probe.logger.Warn("skipping gateway without credentials",
				slog.String("gateway", cfg.Type.String()),
			)
			continue
		}
		a, err := factory.Create(cfg.Type, cfg, cfg.Type.String())
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	if len(adapters) == 0 {
		return nil, domain.NewGatewayError(domain.CodeNoGatewaysAvailable,
			"no enabled gateway has credentials configured", "")
	}
	return New(store, adapters, opts...)
}

// Selector returns the selector driving gateway choice.
func (m *Manager) Selector() *selector.Selector {
	return m.selector
}

// Config returns the live configuration store.
func (m *Manager) Config() *config.Store {
	return m.store
}

// Adapter returns the adapter for t.
func (m *Manager) Adapter(t domain.GatewayType) (gateway.Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adapters[t]
	return a, ok
}

// Gateways returns every adapter's gateway ordered by configured priority.
func (m *Manager) Gateways() []domain.GatewayType {
	return m.ordered(false)
}

// available returns enabled adapters ordered by priority.
func (m *Manager) available() []domain.GatewayType {
	return m.ordered(true)
}

func (m *Manager) ordered(enabledOnly bool) []domain.GatewayType {
	mc := m.store.Snapshot()
	cfgs := make([]gateway.Config, 0, len(mc.Gateways))
	m.mu.RLock()
	for t := range m.adapters {
		cfg := mc.Gateways[t]
		if enabledOnly && !cfg.Enabled {
			continue
		}
		cfg.Type = t
		cfgs = append(cfgs, cfg)
	}
	m.mu.RUnlock()

	config.SortByPriority(cfgs)
	out := make([]domain.GatewayType, len(cfgs))
	for i, c := range cfgs {
		out[i] = c.Type
	}
	return out
}

func (m *Manager) adapterFor(t domain.GatewayType) (gateway.Adapter, error) {
	a, ok := m.Adapter(t)
	if !ok {
		return nil, domain.NewGatewayError(domain.CodeGatewayNotConfigured,
			fmt.Sprintf("gateway %q is not configured", t), t)
	}
	return a, nil
}

func (m *Manager) startSpan(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "manager."+op)
	return ctx, func(err error) { tracing.EndSpan(span, err) }
}
