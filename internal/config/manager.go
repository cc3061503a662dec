package config

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/internal/selector"
)

// Default tuning knobs.
const (
	DefaultHealthCheckInterval = 5 * time.Minute
	DefaultRequestTimeout      = 30 * time.Second
	DefaultMaxRetries          = 3
)

// ManagerConfig is the resolved configuration the gateway manager is built from.
type ManagerConfig struct {
	Environment         Environment
	Gateways            map[domain.GatewayType]gateway.Config
	DefaultStrategy     string
	FailoverEnabled     bool
	HealthCheckInterval time.Duration
	RequestTimeout      time.Duration
	MaxRetries          int
	// ABTestGroups maps test group labels to gateways.
	ABTestGroups  map[string]domain.GatewayType
	FailoverOrder []domain.GatewayType
	// LegacyIDInference allows guessing a payment's gateway from its id prefix.
	LegacyIDInference bool
}

// Clone returns a deep copy of mc.
func (mc ManagerConfig) Clone() ManagerConfig {
	out := mc
	out.Gateways = make(map[domain.GatewayType]gateway.Config, len(mc.Gateways))
	for t, g := range mc.Gateways {
		out.Gateways[t] = g.Clone()
	}
	out.ABTestGroups = make(map[string]domain.GatewayType, len(mc.ABTestGroups))
	for k, v := range mc.ABTestGroups {
		out.ABTestGroups[k] = v
	}
	out.FailoverOrder = append([]domain.GatewayType(nil), mc.FailoverOrder...)
	return out
}

// EnabledGateways returns enabled gateway configs ordered by priority, then name.
func (mc ManagerConfig) EnabledGateways() []gateway.Config {
	out := make([]gateway.Config, 0, len(mc.Gateways))
	for _, g := range mc.Gateways {
		if g.Enabled {
			out = append(out, g.Clone())
		}
	}
	SortByPriority(out)
	return out
}

// SortByPriority orders gateway configs by priority, then name.
func SortByPriority(cfgs []gateway.Config) {
	sort.SliceStable(cfgs, func(i, j int) bool {
		if cfgs[i].Priority != cfgs[j].Priority {
			return cfgs[i].Priority < cfgs[j].Priority
		}
		return cfgs[i].Type < cfgs[j].Type
	})
}

// Fees holds a gateway's default pricing.
type Fees struct {
	Fixed      decimal.Decimal
	Percentage decimal.Decimal
}

// DefaultFees returns the list pricing of each provider.
func DefaultFees() map[domain.GatewayType]Fees {
	return map[domain.GatewayType]Fees{
		domain.GatewayStripe: {Fixed: decimal.RequireFromString("0.30"), Percentage: decimal.RequireFromString("2.9")},
		domain.GatewaySquare: {Fixed: decimal.RequireFromString("0.10"), Percentage: decimal.RequireFromString("2.6")},
		domain.GatewayTilled: {Fixed: decimal.RequireFromString("0.15"), Percentage: decimal.RequireFromString("2.5")},
	}
}

type envDefaults struct {
	testMode   bool
	strategy   string
	priorities map[domain.GatewayType]int
}

var environmentDefaults = map[Environment]envDefaults{
	Development: {
		testMode: true,
		strategy: selector.NameLowestCost,
		priorities: map[domain.GatewayType]int{
			domain.GatewayStripe: 1,
			domain.GatewayTilled: 2,
			domain.GatewaySquare: 3,
		},
	},
	Staging: {
		testMode: true,
		strategy: selector.NameABTest,
		priorities: map[domain.GatewayType]int{
			domain.GatewayStripe: 1,
			domain.GatewayTilled: 2,
			domain.GatewaySquare: 3,
		},
	},
	Production: {
		testMode: false,
		strategy: selector.NameLowestCost,
		priorities: map[domain.GatewayType]int{
			domain.GatewayTilled: 1,
			domain.GatewayStripe: 2,
			domain.GatewaySquare: 3,
		},
	},
}

// DefaultManagerConfig returns the built-in defaults for env. Gateways carry
// no credentials; Resolve merges them in.
func DefaultManagerConfig(env Environment) ManagerConfig {
	d, ok := environmentDefaults[env]
	if !ok {
		env = Development
		d = environmentDefaults[Development]
	}

	fees := DefaultFees()
	gateways := make(map[domain.GatewayType]gateway.Config, len(fees))
	for _, t := range domain.SupportedGatewayTypes() {
		gateways[t] = gateway.Config{
			Type:           t,
			Enabled:        true,
			TestMode:       d.testMode,
			Priority:       d.priorities[t],
			Credentials:    map[string]string{},
			Extra:          map[string]string{},
			TransactionFee: fees[t].Fixed,
			PercentageFee:  fees[t].Percentage,
			Timeout:        DefaultRequestTimeout,
		}
	}

	return ManagerConfig{
		Environment:         env,
		Gateways:            gateways,
		DefaultStrategy:     d.strategy,
		FailoverEnabled:     true,
		HealthCheckInterval: DefaultHealthCheckInterval,
		RequestTimeout:      DefaultRequestTimeout,
		MaxRetries:          DefaultMaxRetries,
		ABTestGroups: map[string]domain.GatewayType{
			"A": domain.GatewayStripe,
			"B": domain.GatewayTilled,
		},
		FailoverOrder: []domain.GatewayType{domain.GatewayStripe, domain.GatewayTilled, domain.GatewaySquare},
	}
}
