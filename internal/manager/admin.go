package manager

import (
	"context"
	"log/slog"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/selector"
)

// GatewayStatus describes one adapter for operators.
type GatewayStatus struct {
	Gateway  domain.GatewayType      `json:"gateway"`
	Enabled  bool                    `json:"enabled"`
	Priority int                     `json:"priority"`
	TestMode bool                    `json:"test_mode"`
	Healthy  bool                    `json:"healthy"`
	Metrics  selector.GatewayMetrics `json:"metrics"`
	Features map[string]bool         `json:"features"`
}

// EnableGateway makes a configured gateway eligible for selection again.
func (m *Manager) EnableGateway(ctx context.Context, t domain.GatewayType) error {
	if _, err := m.adapterFor(t); err != nil {
		return err
	}
	if err := m.store.Enable(t); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "gateway enabled", slog.String("gateway", t.String()))
	return nil
}

// DisableGateway removes a gateway from selection and failover. Follow-up
// calls on its existing payments still reach it.
func (m *Manager) DisableGateway(ctx context.Context, t domain.GatewayType) error {
	if _, err := m.adapterFor(t); err != nil {
		return err
	}
	if err := m.store.Disable(t); err != nil {
		return err
	}
	m.logger.WarnContext(ctx, "gateway disabled", slog.String("gateway", t.String()))
	return nil
}

// SetPriority changes a gateway's failover priority.
func (m *Manager) SetPriority(ctx context.Context, t domain.GatewayType, priority int) error {
	if err := m.store.SetPriority(t, priority); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "gateway priority changed",
		slog.String("gateway", t.String()),
		slog.Int("priority", priority),
	)
	return nil
}

// ForceOffline marks a gateway unhealthy until RestoreGateway is called.
// Health checks do not bring it back.
func (m *Manager) ForceOffline(ctx context.Context, t domain.GatewayType) error {
	if _, err := m.adapterFor(t); err != nil {
		return err
	}
	m.selector.Metrics().ForceOffline(t)
	m.logger.WarnContext(ctx, "gateway forced offline", slog.String("gateway", t.String()))
	return nil
}

// RestoreGateway clears a forced offline and marks the gateway up.
func (m *Manager) RestoreGateway(ctx context.Context, t domain.GatewayType) error {
	if _, err := m.adapterFor(t); err != nil {
		return err
	}
	m.selector.Metrics().Restore(t)
	m.logger.InfoContext(ctx, "gateway restored", slog.String("gateway", t.String()))
	return nil
}

// GatewayStatuses reports every adapter in priority order.
func (m *Manager) GatewayStatuses() []GatewayStatus {
	mc := m.store.Snapshot()
	gws := m.Gateways()
	out := make([]GatewayStatus, 0, len(gws))
	for _, t := range gws {
		a, ok := m.Adapter(t)
		if !ok {
			continue
		}
		cfg := mc.Gateways[t]
		metrics, metered := m.selector.Metrics().Snapshot(t)
		out = append(out, GatewayStatus{
			Gateway:  t,
			Enabled:  cfg.Enabled,
			Priority: cfg.Priority,
			TestMode: cfg.TestMode,
			Healthy:  !metered || metrics.IsHealthy(),
			Metrics:  metrics,
			Features: a.SupportedFeatures(),
		})
	}
	return out
}

// Metrics returns every gateway's rolling metrics.
func (m *Manager) Metrics() []selector.GatewayMetrics {
	return m.selector.Metrics().All()
}

// SelectionHistory returns recent selections, oldest first.
func (m *Manager) SelectionHistory() []selector.Selection {
	return m.selector.History()
}

// SupportedFeatures returns the capabilities of gateway t.
func (m *Manager) SupportedFeatures(t domain.GatewayType) (map[string]bool, error) {
	a, err := m.adapterFor(t)
	if err != nil {
		return nil, err
	}
	return a.SupportedFeatures(), nil
}
