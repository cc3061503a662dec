package manager

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/event"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
)

// HealthBackoff is how long the health loop waits after a failed round.
const HealthBackoff = 60 * time.Second

// HealthCheckAll probes every adapter and folds the results into the selector
// metrics. A failing or panicking adapter only affects its own entry.
func (m *Manager) HealthCheckAll(ctx context.Context) map[domain.GatewayType]gateway.HealthStatus {
	ctx, end := m.startSpan(ctx, "HealthCheckAll")
	defer end(nil)

	out := make(map[domain.GatewayType]gateway.HealthStatus)
	for _, t := range m.Gateways() {
		a, ok := m.Adapter(t)
		if !ok {
			continue
		}
		status := m.probe(ctx, a)
		out[t] = status

		m.selector.Metrics().RecordHealthCheck(t, status.Healthy, status.ResponseTime)
		healthChecksTotal.WithLabelValues(t.String(), strconv.FormatBool(status.Healthy)).Inc()
		m.trackTransition(ctx, t, status)
	}
	return out
}

// probe runs one health check, converting a panic into an unhealthy status.
func (m *Manager) probe(ctx context.Context, a gateway.Adapter) (status gateway.HealthStatus) {
	start := m.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			elapsed := m.clock.Now().Sub(start)
			status = gateway.HealthStatus{
				Healthy:      false,
				ResponseTime: elapsed,
				ResponseMs:   float64(elapsed.Microseconds()) / 1000,
				Error:        fmt.Sprintf("health check panicked: %v", r),
				CheckedAt:    m.clock.Now().UTC(),
			}
		}
	}()
	return a.HealthCheck(ctx)
}

func (m *Manager) trackTransition(ctx context.Context, t domain.GatewayType, status gateway.HealthStatus) {
	m.mu.Lock()
	prev, seen := m.lastHealthy[t]
	m.lastHealthy[t] = status.Healthy
	m.mu.Unlock()

	if seen && prev == status.Healthy {
		return
	}
	if !seen && status.Healthy {
		return
	}

	level := slog.LevelInfo
	if !status.Healthy {
		level = slog.LevelWarn
	}
	m.logger.Log(ctx, level, "gateway health changed",
		slog.String("gateway", t.String()),
		slog.Bool("healthy", status.Healthy),
		slog.Float64("response_time_ms", status.ResponseMs),
		slog.String("error", status.Error),
	)
	m.publish(ctx, "health_changed", m.events.PublishHealthChanged(ctx, event.HealthChangedData{
		Gateway:        t,
		Healthy:        status.Healthy,
		ResponseTimeMs: status.ResponseTime.Milliseconds(),
		Error:          status.Error,
	}))
}

// RunHealthChecks probes every adapter each interval until ctx is canceled. A
// round that panics is logged and followed by a HealthBackoff pause; the loop
// itself never exits on error.
func (m *Manager) RunHealthChecks(ctx context.Context) {
	interval := m.store.Snapshot().HealthCheckInterval
	if interval <= 0 {
		m.logger.Info("gateway health checks disabled")
		return
	}
	m.logger.Info("gateway health checks started", slog.Duration("interval", interval))

	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("gateway health checks stopped")
			return
		case <-ticker.C():
		}

		if err := m.safeRound(ctx); err != nil {
			m.logger.Error("health check round failed, backing off",
				slog.String("error", err.Error()),
				slog.Duration("backoff", HealthBackoff),
			)
			select {
			case <-ctx.Done():
				return
			case <-m.clock.After(HealthBackoff):
			}
		}
	}
}

func (m *Manager) safeRound(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("health check round panicked: %v", r)
		}
	}()
	m.HealthCheckAll(ctx)
	return nil
}
