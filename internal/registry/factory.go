// Package registry maps gateway types to adapter constructors and caches
// named adapter instances.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway/fake"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway/square"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway/stripe"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway/tilled"
)

// Constructor builds an adapter from its configuration.
type Constructor func(cfg gateway.Config, opts ...gateway.Option) (gateway.Adapter, error)

// Factory constructs adapters by gateway type. It is safe for concurrent use.
type Factory struct {
	mu           sync.RWMutex
	constructors map[domain.GatewayType]Constructor
	templates    map[domain.GatewayType]Template
	instances    map[string]gateway.Adapter
	opts         []gateway.Option
	logger       *slog.Logger
}

// New creates an empty factory. opts are passed to every constructor.
func New(logger *slog.Logger, opts ...gateway.Option) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		constructors: make(map[domain.GatewayType]Constructor),
		templates:    make(map[domain.GatewayType]Template),
		instances:    make(map[string]gateway.Adapter),
		opts:         append([]gateway.Option{gateway.WithLogger(logger)}, opts...),
		logger:       logger,
	}
}

// NewDefault creates a factory with the Stripe, Square and Tilled adapters
// and their configuration templates registered.
func NewDefault(logger *slog.Logger, opts ...gateway.Option) *Factory {
	f := New(logger, opts...)
	f.Register(domain.GatewayStripe, func(cfg gateway.Config, o ...gateway.Option) (gateway.Adapter, error) {
		return stripe.New(cfg, o...)
	})
	f.Register(domain.GatewaySquare, func(cfg gateway.Config, o ...gateway.Option) (gateway.Adapter, error) {
		return square.New(cfg, o...)
	})
	f.Register(domain.GatewayTilled, func(cfg gateway.Config, o ...gateway.Option) (gateway.Adapter, error) {
		return tilled.New(cfg, o...)
	})
	for t, tmpl := range DefaultTemplates() {
		f.RegisterTemplate(t, tmpl)
	}
	return f
}

// NewFake creates a factory whose constructors all build in-memory fake
// adapters. Nothing is required of the configuration.
func NewFake(logger *slog.Logger, opts ...gateway.Option) *Factory {
	f := New(logger, opts...)
	for _, t := range domain.SupportedGatewayTypes() {
		f.Register(t, func(cfg gateway.Config, o ...gateway.Option) (gateway.Adapter, error) {
			return fake.New(cfg, o...), nil
		})
		f.RegisterTemplate(t, Template{})
	}
	return f
}

// Register sets the constructor for a gateway type, replacing any previous one.
func (f *Factory) Register(t domain.GatewayType, c Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[t] = c
}

// RegisterTemplate sets the configuration template for a gateway type.
func (f *Factory) RegisterTemplate(t domain.GatewayType, tmpl Template) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates[t] = tmpl.clone()
}

// Template returns the configuration template for a gateway type.
func (f *Factory) Template(t domain.GatewayType) (Template, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	tmpl, ok := f.templates[t]
	return tmpl.clone(), ok
}

// Create builds an adapter. When instanceName is non-empty and an instance was
// already built under that name, the cached instance is returned.
func (f *Factory) Create(t domain.GatewayType, cfg gateway.Config, instanceName string) (gateway.Adapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if instanceName != "" {
		if a, ok := f.instances[instanceName]; ok {
			return a, nil
		}
	}

	ctor, ok := f.constructors[t]
	if !ok {
		return nil, domain.NewGatewayError(domain.CodeGatewayNotRegistered,
			fmt.Sprintf("gateway type %q is not registered", t), t)
	}

	cfg.Type = t
	a, err := construct(ctor, cfg, f.opts)
	if err != nil {
		return nil, domain.WrapGatewayError(err, domain.CodeGatewayCreationFailed,
			fmt.Sprintf("failed to create %s gateway", t), t)
	}

	if instanceName != "" {
		f.instances[instanceName] = a
	}
	f.logger.Debug("gateway adapter created",
		slog.String("gateway", t.String()),
		slog.String("instance", instanceName),
	)
	return a, nil
}

// construct runs ctor and converts a panic into an error.
func construct(ctor Constructor, cfg gateway.Config, opts []gateway.Option) (a gateway.Adapter, err error) {
	defer func() {
		if r := recover(); r != nil {
			a, err = nil, fmt.Errorf("constructor panicked: %v", r)
		}
	}()
	a, err = ctor(cfg, opts...)
	if err == nil && a == nil {
		err = fmt.Errorf("constructor returned no adapter")
	}
	return a, err
}

// Forget drops a cached instance.
func (f *Factory) Forget(instanceName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.instances, instanceName)
}

// RegisteredTypes returns the registered gateway types in name order.
func (f *Factory) RegisteredTypes() []domain.GatewayType {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]domain.GatewayType, 0, len(f.constructors))
	for t := range f.constructors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Instances returns the cached instance names mapped to their gateway type.
func (f *Factory) Instances() map[string]domain.GatewayType {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]domain.GatewayType, len(f.instances))
	for name, a := range f.instances {
		out[name] = a.Type()
	}
	return out
}
