package selector

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
)

// DefaultHistorySize bounds the selection history ring.
const DefaultHistorySize = 1000

// Region names used by the Geographic strategy.
const (
	RegionNorthAmerica = "NA"
	RegionEurope       = "EU"
)

// Selection is one recorded gateway choice.
type Selection struct {
	Gateway  domain.GatewayType `json:"gateway"`
	Strategy string             `json:"strategy"`
	At       time.Time          `json:"at"`
}

type config struct {
	clock          clockz.Clock
	historySize    int
	failoverOrder  []domain.GatewayType
	abGroups       map[string]domain.GatewayType
	regionGateways map[string][]domain.GatewayType
	countryRegions map[string]string
}

// Option configures a Selector.
type Option func(*config)

// WithClock sets the clock used to timestamp selections.
func WithClock(c clockz.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithHistorySize sets the selection history capacity.
func WithHistorySize(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.historySize = n
		}
	}
}

// WithFailoverOrder sets the preference order of the Failover strategy.
func WithFailoverOrder(order ...domain.GatewayType) Option {
	return func(cfg *config) {
		if len(order) > 0 {
			cfg.failoverOrder = append([]domain.GatewayType(nil), order...)
		}
	}
}

// WithABTestGroups maps A/B test group labels to gateways.
func WithABTestGroups(groups map[string]domain.GatewayType) Option {
	return func(cfg *config) {
		if len(groups) > 0 {
			cfg.abGroups = make(map[string]domain.GatewayType, len(groups))
			for k, v := range groups {
				cfg.abGroups[k] = v
			}
		}
	}
}

// WithRegionGateways maps a region to its preferred gateways.
func WithRegionGateways(region string, gateways ...domain.GatewayType) Option {
	return func(cfg *config) {
		cfg.regionGateways[region] = append([]domain.GatewayType(nil), gateways...)
	}
}

func defaultConfig() config {
	cfg := config{
		clock:         clockz.RealClock,
		historySize:   DefaultHistorySize,
		failoverOrder: []domain.GatewayType{domain.GatewayStripe, domain.GatewayTilled, domain.GatewaySquare},
		abGroups: map[string]domain.GatewayType{
			"A": domain.GatewayStripe,
			"B": domain.GatewayTilled,
		},
		regionGateways: map[string][]domain.GatewayType{
			RegionNorthAmerica: {domain.GatewayStripe, domain.GatewayTilled},
			RegionEurope:       {domain.GatewayStripe},
		},
		countryRegions: make(map[string]string),
	}
	for _, c := range []string{"US", "CA", "MX"} {
		cfg.countryRegions[c] = RegionNorthAmerica
	}
	for _, c := range []string{
		"AT", "BE", "BG", "CH", "CY", "CZ", "DE", "DK", "EE", "ES", "FI", "FR", "GB", "GR",
		"HR", "HU", "IE", "IS", "IT", "LI", "LT", "LU", "LV", "MT", "NL", "NO", "PL", "PT",
		"RO", "SE", "SI", "SK",
	} {
		cfg.countryRegions[c] = RegionEurope
	}
	return cfg
}

// Selector chooses gateways. It is safe for concurrent use.
type Selector struct {
	metrics *Metrics
	cfg     config
	rr      atomic.Uint64

	mu      sync.Mutex
	history []Selection
	next    int
	full    bool
	counts  map[domain.GatewayType]int64
}

// New creates a Selector over a metrics store.
func New(metrics *Metrics, opts ...Option) *Selector {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if metrics == nil {
		metrics = NewMetrics(cfg.clock)
	}
	return &Selector{
		metrics: metrics,
		cfg:     cfg,
		history: make([]Selection, cfg.historySize),
		counts:  make(map[domain.GatewayType]int64),
	}
}

// Metrics returns the underlying metrics store.
func (s *Selector) Metrics() *Metrics {
	return s.metrics
}

// Select picks one gateway from available. Unhealthy gateways are skipped
// unless every gateway is unhealthy, in which case all are considered. A nil
// strategy means LowestCost.
func (s *Selector) Select(available []domain.GatewayType, sc domain.SelectionContext, strategy Strategy) (domain.GatewayType, error) {
	if len(available) == 0 {
		return "", domain.NewGatewayError(domain.CodeNoGatewaysAvailable, "no payment gateways available", "")
	}
	if strategy == nil {
		strategy = LowestCost{}
	}

	candidates := make([]domain.GatewayType, 0, len(available))
	for _, g := range available {
		if s.isHealthy(g) {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) == 0 {
		candidates = append(candidates, available...)
	}

	chosen := strategy.choose(s, candidates, sc)
	s.record(chosen, strategy.Name())
	return chosen, nil
}

func (s *Selector) record(g domain.GatewayType, strategy string) {
	sel := Selection{Gateway: g, Strategy: strategy, At: s.cfg.clock.Now().UTC()}

	s.mu.Lock()
	s.history[s.next] = sel
	s.next = (s.next + 1) % len(s.history)
	if s.next == 0 {
		s.full = true
	}
	s.counts[g]++
	s.mu.Unlock()

	selectionsTotal.WithLabelValues(g.String(), strategy).Inc()
}

// History returns recorded selections, oldest first.
func (s *Selector) History() []Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.full {
		return append([]Selection(nil), s.history[:s.next]...)
	}
	out := make([]Selection, 0, len(s.history))
	out = append(out, s.history[s.next:]...)
	return append(out, s.history[:s.next]...)
}

// SelectionCounts returns how many times each gateway was selected since start.
func (s *Selector) SelectionCounts() map[domain.GatewayType]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.GatewayType]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
