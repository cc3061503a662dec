// Package selector picks a payment gateway per request from rolling
// performance metrics and a named strategy.
package selector

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zoobzio/clockz"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
)

const (
	// Alpha is the EMA smoothing factor for success rate and response time.
	Alpha = 0.1

	// NeutralSuccessRate is assumed for gateways without metrics when ranking
	// by success rate.
	NeutralSuccessRate = 0.95

	healthySuccessRate = 0.95
	healthyUptime      = 0.99
	maxHealthyLatency  = 2000.0
)

// GatewayMetrics is a point-in-time copy of one gateway's rolling metrics.
type GatewayMetrics struct {
	Gateway            domain.GatewayType `json:"gateway"`
	SuccessRate        float64            `json:"success_rate"`
	AverageResponseMs  float64            `json:"average_response_time_ms"`
	Uptime             float64            `json:"uptime"`
	TransactionFee     decimal.Decimal    `json:"transaction_fee"`
	PercentageFee      decimal.Decimal    `json:"percentage_fee"`
	LastHealthCheck    time.Time          `json:"last_health_check"`
	TotalTransactions  int64              `json:"total_transactions"`
	FailedTransactions int64              `json:"failed_transactions"`
	ForcedOffline      bool               `json:"forced_offline"`
}

// FailureRate is 1 - SuccessRate.
func (m GatewayMetrics) FailureRate() float64 {
	return 1 - m.SuccessRate
}

// IsHealthy requires success rate >= 0.95, uptime >= 0.99 and an average
// response time of at most 2000ms.
func (m GatewayMetrics) IsHealthy() bool {
	return m.SuccessRate >= healthySuccessRate &&
		m.Uptime >= healthyUptime &&
		m.AverageResponseMs <= maxHealthyLatency
}

// TransactionCost is fixed fee + amount * percentage / 100.
func (m GatewayMetrics) TransactionCost(amount decimal.Decimal) decimal.Decimal {
	return m.TransactionFee.Add(amount.Mul(m.PercentageFee).Div(decimal.NewFromInt(100)))
}

type entry struct {
	mu sync.Mutex
	m  GatewayMetrics
}

// Metrics holds per-gateway metrics. The map is guarded by an RWMutex and each
// entry by its own mutex, so request-path updates and health-check updates to
// different gateways never contend.
type Metrics struct {
	mu      sync.RWMutex
	entries map[domain.GatewayType]*entry
	clock   clockz.Clock
}

// NewMetrics creates an empty metrics store.
func NewMetrics(clock clockz.Clock) *Metrics {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Metrics{
		entries: make(map[domain.GatewayType]*entry),
		clock:   clock,
	}
}

// Register creates metrics for a gateway with full success and uptime. When the
// gateway is already registered only its fees are updated.
func (s *Metrics) Register(t domain.GatewayType, fixedFee, percentageFee decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[t]; ok {
		e.mu.Lock()
		e.m.TransactionFee = fixedFee
		e.m.PercentageFee = percentageFee
		e.mu.Unlock()
		return
	}
	s.entries[t] = &entry{m: GatewayMetrics{
		Gateway:        t,
		SuccessRate:    1,
		Uptime:         1,
		TransactionFee: fixedFee,
		PercentageFee:  percentageFee,
	}}
	publish(s.entries[t].m)
}

// Remove drops a gateway's metrics.
func (s *Metrics) Remove(t domain.GatewayType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, t)
}

// RecordSuccess folds a successful call into the EMAs.
func (s *Metrics) RecordSuccess(t domain.GatewayType, responseTime time.Duration) {
	s.update(t, func(m *GatewayMetrics) {
		m.TotalTransactions++
		m.SuccessRate = ema(m.SuccessRate, 1)
		m.AverageResponseMs = ema(m.AverageResponseMs, millis(responseTime))
	})
}

// RecordFailure folds a failed call into the EMAs.
func (s *Metrics) RecordFailure(t domain.GatewayType, responseTime time.Duration) {
	s.update(t, func(m *GatewayMetrics) {
		m.TotalTransactions++
		m.FailedTransactions++
		m.SuccessRate = ema(m.SuccessRate, 0)
		m.AverageResponseMs = ema(m.AverageResponseMs, millis(responseTime))
	})
}

// RecordHealthCheck sets uptime to 1 or 0 and folds the probe latency into the
// response time EMA. A forced-offline gateway stays at uptime 0.
func (s *Metrics) RecordHealthCheck(t domain.GatewayType, healthy bool, responseTime time.Duration) {
	now := s.clock.Now().UTC()
	s.update(t, func(m *GatewayMetrics) {
		m.LastHealthCheck = now
		m.AverageResponseMs = ema(m.AverageResponseMs, millis(responseTime))
		if m.ForcedOffline {
			return
		}
		if healthy {
			m.Uptime = 1
		} else {
			m.Uptime = 0
		}
	})
}

// ForceOffline sets uptime to 0 until Restore is called.
func (s *Metrics) ForceOffline(t domain.GatewayType) {
	s.update(t, func(m *GatewayMetrics) {
		m.Uptime = 0
		m.ForcedOffline = true
	})
}

// Restore sets uptime back to 1 and clears a forced offline.
func (s *Metrics) Restore(t domain.GatewayType) {
	s.update(t, func(m *GatewayMetrics) {
		m.Uptime = 1
		m.ForcedOffline = false
	})
}

// Snapshot returns a copy of one gateway's metrics.
func (s *Metrics) Snapshot(t domain.GatewayType) (GatewayMetrics, bool) {
	s.mu.RLock()
	e, ok := s.entries[t]
	s.mu.RUnlock()
	if !ok {
		return GatewayMetrics{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m, true
}

// All returns copies of every gateway's metrics ordered by gateway name.
func (s *Metrics) All() []GatewayMetrics {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]GatewayMetrics, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.m)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Gateway < out[j].Gateway })
	return out
}

// update applies fn to a gateway's entry, creating it with neutral values when
// the gateway was never registered.
func (s *Metrics) update(t domain.GatewayType, fn func(*GatewayMetrics)) {
	s.mu.RLock()
	e, ok := s.entries[t]
	s.mu.RUnlock()
	if !ok {
		s.mu.Lock()
		if e, ok = s.entries[t]; !ok {
			e = &entry{m: GatewayMetrics{Gateway: t, SuccessRate: 1, Uptime: 1}}
			s.entries[t] = e
		}
		s.mu.Unlock()
	}

	e.mu.Lock()
	fn(&e.m)
	snapshot := e.m
	e.mu.Unlock()
	publish(snapshot)
}

func ema(old, sample float64) float64 {
	return (1-Alpha)*old + Alpha*sample
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
