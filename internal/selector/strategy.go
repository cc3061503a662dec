package selector

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
)

// Strategy names.
const (
	NameLowestCost         = "lowest_cost"
	NameHighestSuccessRate = "highest_success_rate"
	NameRoundRobin         = "round_robin"
	NameFailover           = "failover"
	NameGeographic         = "geographic"
	NameCustomerPreference = "customer_preference"
	NameABTest             = "a_b_test"
)

// Strategy picks one gateway from a non-empty candidate list. The set of
// strategies is closed: only this package can implement it.
type Strategy interface {
	Name() string
	choose(s *Selector, candidates []domain.GatewayType, sc domain.SelectionContext) domain.GatewayType
}

// LowestCost minimizes fixed + amount * percentage / 100. Ties keep list order.
type LowestCost struct{}

// HighestSuccessRate maximizes the success-rate EMA. Ties keep list order.
type HighestSuccessRate struct{}

// RoundRobin cycles through candidates with a selector-wide counter.
type RoundRobin struct{}

// Failover walks the configured preference order and returns the first
// candidate that is healthy.
type Failover struct{}

// Geographic prefers gateways mapped to the customer's region.
type Geographic struct{}

// CustomerPreference returns the first candidate. Stored per-customer
// preferences are not looked up.
type CustomerPreference struct{}

// ABTest maps the test group to a gateway and falls back to LowestCost when
// no group is set.
type ABTest struct{}

// Name implements Strategy.
func (LowestCost) Name() string { return NameLowestCost }

// Name implements Strategy.
func (HighestSuccessRate) Name() string { return NameHighestSuccessRate }

// Name implements Strategy.
func (RoundRobin) Name() string { return NameRoundRobin }

// Name implements Strategy.
func (Failover) Name() string { return NameFailover }

// Name implements Strategy.
func (Geographic) Name() string { return NameGeographic }

// Name implements Strategy.
func (CustomerPreference) Name() string { return NameCustomerPreference }

// Name implements Strategy.
func (ABTest) Name() string { return NameABTest }

var strategies = map[string]Strategy{
	NameLowestCost:         LowestCost{},
	NameHighestSuccessRate: HighestSuccessRate{},
	NameRoundRobin:         RoundRobin{},
	NameFailover:           Failover{},
	NameGeographic:         Geographic{},
	NameCustomerPreference: CustomerPreference{},
	NameABTest:             ABTest{},
}

// StrategyNames lists every strategy name.
func StrategyNames() []string {
	return []string{
		NameLowestCost,
		NameHighestSuccessRate,
		NameRoundRobin,
		NameFailover,
		NameGeographic,
		NameCustomerPreference,
		NameABTest,
	}
}

// ParseStrategy resolves a strategy by name. Unknown names fail with
// UNKNOWN_STRATEGY.
func ParseStrategy(name string) (Strategy, error) {
	s, ok := strategies[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, domain.NewGatewayError(domain.CodeUnknownStrategy,
			fmt.Sprintf("unknown selection strategy %q", name), "")
	}
	return s, nil
}

func (LowestCost) choose(s *Selector, candidates []domain.GatewayType, sc domain.SelectionContext) domain.GatewayType {
	best := candidates[0]
	bestCost := s.TransactionCost(best, sc.Amount())
	for _, c := range candidates[1:] {
		if cost := s.TransactionCost(c, sc.Amount()); cost.LessThan(bestCost) {
			best, bestCost = c, cost
		}
	}
	return best
}

func (HighestSuccessRate) choose(s *Selector, candidates []domain.GatewayType, _ domain.SelectionContext) domain.GatewayType {
	best := candidates[0]
	bestRate := s.successRate(best)
	for _, c := range candidates[1:] {
		if rate := s.successRate(c); rate > bestRate {
			best, bestRate = c, rate
		}
	}
	return best
}

func (RoundRobin) choose(s *Selector, candidates []domain.GatewayType, _ domain.SelectionContext) domain.GatewayType {
	n := s.rr.Add(1) - 1
	return candidates[n%uint64(len(candidates))]
}

func (Failover) choose(s *Selector, candidates []domain.GatewayType, _ domain.SelectionContext) domain.GatewayType {
	for _, preferred := range s.cfg.failoverOrder {
		if contains(candidates, preferred) && s.isHealthy(preferred) {
			return preferred
		}
	}
	return candidates[0]
}

func (Geographic) choose(s *Selector, candidates []domain.GatewayType, sc domain.SelectionContext) domain.GatewayType {
	region, ok := s.cfg.countryRegions[sc.CustomerCountry()]
	if !ok {
		return candidates[0]
	}
	for _, preferred := range s.cfg.regionGateways[region] {
		if contains(candidates, preferred) {
			return preferred
		}
	}
	return candidates[0]
}

func (CustomerPreference) choose(_ *Selector, candidates []domain.GatewayType, _ domain.SelectionContext) domain.GatewayType {
	return candidates[0]
}

func (ABTest) choose(s *Selector, candidates []domain.GatewayType, sc domain.SelectionContext) domain.GatewayType {
	group := sc.TestGroup()
	if group == "" {
		return LowestCost{}.choose(s, candidates, sc)
	}
	if gw, ok := s.cfg.abGroups[strings.ToUpper(group)]; ok && contains(candidates, gw) {
		return gw
	}
	return candidates[0]
}

// TransactionCost returns the fee for amount on gateway t. A gateway without
// metrics costs zero.
func (s *Selector) TransactionCost(t domain.GatewayType, amount decimal.Decimal) decimal.Decimal {
	m, ok := s.metrics.Snapshot(t)
	if !ok {
		return decimal.Zero
	}
	return m.TransactionCost(amount)
}

func (s *Selector) successRate(t domain.GatewayType) float64 {
	m, ok := s.metrics.Snapshot(t)
	if !ok {
		return NeutralSuccessRate
	}
	return m.SuccessRate
}

// isHealthy treats gateways without metrics as healthy.
func (s *Selector) isHealthy(t domain.GatewayType) bool {
	m, ok := s.metrics.Snapshot(t)
	return !ok || m.IsHealthy()
}

func contains(list []domain.GatewayType, t domain.GatewayType) bool {
	for _, g := range list {
		if g == t {
			return true
		}
	}
	return false
}
