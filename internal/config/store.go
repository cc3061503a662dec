package config

import (
	"fmt"
	"sync"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
)

// Store holds the live ManagerConfig and applies admin changes to it. Changes
// are kept in memory only.
type Store struct {
	mu sync.RWMutex
	mc ManagerConfig
}

// NewStore creates a store from a resolved config.
func NewStore(mc ManagerConfig) *Store {
	return &Store{mc: mc.Clone()}
}

// Enable turns a gateway on.
func (s *Store) Enable(t domain.GatewayType) error {
	return s.mutate(t, func(g *gateway.Config) { g.Enabled = true })
}

// Disable turns a gateway off.
func (s *Store) Disable(t domain.GatewayType) error {
	return s.mutate(t, func(g *gateway.Config) { g.Enabled = false })
}

// SetPriority changes a gateway's failover priority. Lower is preferred.
func (s *Store) SetPriority(t domain.GatewayType, priority int) error {
	if priority < 1 {
		return domain.NewGatewayError(domain.CodeInvalidConfig,
			fmt.Sprintf("priority must be at least 1, got %d", priority), t)
	}
	return s.mutate(t, func(g *gateway.Config) { g.Priority = priority })
}

func (s *Store) mutate(t domain.GatewayType, fn func(*gateway.Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.mc.Gateways[t]
	if !ok {
		return domain.NewGatewayError(domain.CodeGatewayNotConfigured,
			fmt.Sprintf("gateway %q is not configured", t), t)
	}
	fn(&g)
	s.mc.Gateways[t] = g
	return nil
}

// Gateway returns one gateway's config.
func (s *Store) Gateway(t domain.GatewayType) (gateway.Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.mc.Gateways[t]
	if !ok {
		return gateway.Config{}, false
	}
	return g.Clone(), true
}

// EnabledGateways returns enabled gateways ordered by priority.
func (s *Store) EnabledGateways() []gateway.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mc.EnabledGateways()
}

// WebhookSecret returns the configured webhook secret for a gateway.
func (s *Store) WebhookSecret(t domain.GatewayType) string {
	g, ok := s.Gateway(t)
	if !ok {
		return ""
	}
	if g.WebhookSecret != "" {
		return g.WebhookSecret
	}
	return g.Credential(gateway.KeyWebhookSecret)
}

// Snapshot returns a deep copy of the current config.
func (s *Store) Snapshot() ManagerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mc.Clone()
}
