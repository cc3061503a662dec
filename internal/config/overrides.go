package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/selector"
)

// Overrides are operator knobs applied on top of the environment defaults.
type Overrides struct {
	// ForceGateway moves one gateway to priority 1 and enables it.
	ForceGateway        string
	DefaultStrategy     string
	DisableFailover     bool
	HealthCheckInterval time.Duration
}

// Apply mutates mc. Unknown gateways and strategies are rejected.
func (o Overrides) Apply(mc *ManagerConfig) error {
	if o.ForceGateway != "" {
		t, err := domain.ParseGatewayType(o.ForceGateway)
		if err != nil {
			return fmt.Errorf("PAYMENT_FORCE_GATEWAY: %w", err)
		}
		forced, ok := mc.Gateways[t]
		if !ok {
			return fmt.Errorf("PAYMENT_FORCE_GATEWAY: gateway %q is not configured", t)
		}
		for gt, g := range mc.Gateways {
			if gt != t && g.Priority <= 1 {
				g.Priority = 2
				mc.Gateways[gt] = g
			}
		}
		forced.Priority = 1
		forced.Enabled = true
		mc.Gateways[t] = forced
	}
	if o.DefaultStrategy != "" {
		s, err := selector.ParseStrategy(o.DefaultStrategy)
		if err != nil {
			return fmt.Errorf("PAYMENT_DEFAULT_STRATEGY: %w", err)
		}
		mc.DefaultStrategy = s.Name()
	}
	if o.DisableFailover {
		mc.FailoverEnabled = false
	}
	if o.HealthCheckInterval > 0 {
		mc.HealthCheckInterval = o.HealthCheckInterval
	}
	return nil
}

// FileOverrides is the YAML overrides document.
type FileOverrides struct {
	DefaultStrategy     string                         `yaml:"default_strategy"`
	FailoverEnabled     *bool                          `yaml:"failover_enabled"`
	HealthCheckInterval time.Duration                  `yaml:"health_check_interval"`
	RequestTimeout      time.Duration                  `yaml:"request_timeout"`
	FailoverOrder       []string                       `yaml:"failover_order"`
	ABTestGroups        map[string]string              `yaml:"ab_test_groups"`
	Gateways            map[string]GatewayFileOverride `yaml:"gateways"`
}

// GatewayFileOverride overrides one gateway. Nil fields are left unchanged.
type GatewayFileOverride struct {
	Enabled        *bool             `yaml:"enabled"`
	TestMode       *bool             `yaml:"test_mode"`
	Priority       *int              `yaml:"priority"`
	TransactionFee *string           `yaml:"transaction_fee"`
	PercentageFee  *string           `yaml:"percentage_fee"`
	BaseURL        string            `yaml:"base_url"`
	Timeout        time.Duration     `yaml:"timeout"`
	Extra          map[string]string `yaml:"extra"`
}

// LoadOverridesFile reads a YAML overrides document.
func LoadOverridesFile(path string) (FileOverrides, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileOverrides{}, fmt.Errorf("read overrides file: %w", err)
	}
	return ParseOverrides(raw)
}

// ParseOverrides decodes a YAML overrides document.
func ParseOverrides(raw []byte) (FileOverrides, error) {
	var f FileOverrides
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return FileOverrides{}, fmt.Errorf("parse overrides file: %w", err)
	}
	return f, nil
}

// Apply mutates mc.
func (f FileOverrides) Apply(mc *ManagerConfig) error {
	if f.DefaultStrategy != "" {
		s, err := selector.ParseStrategy(f.DefaultStrategy)
		if err != nil {
			return fmt.Errorf("overrides default_strategy: %w", err)
		}
		mc.DefaultStrategy = s.Name()
	}
	if f.FailoverEnabled != nil {
		mc.FailoverEnabled = *f.FailoverEnabled
	}
	if f.HealthCheckInterval > 0 {
		mc.HealthCheckInterval = f.HealthCheckInterval
	}
	if f.RequestTimeout > 0 {
		mc.RequestTimeout = f.RequestTimeout
	}
	if len(f.FailoverOrder) > 0 {
		order := make([]domain.GatewayType, 0, len(f.FailoverOrder))
		for _, name := range f.FailoverOrder {
			t, err := domain.ParseGatewayType(name)
			if err != nil {
				return fmt.Errorf("overrides failover_order: %w", err)
			}
			order = append(order, t)
		}
		mc.FailoverOrder = order
	}
	if len(f.ABTestGroups) > 0 {
		groups := make(map[string]domain.GatewayType, len(f.ABTestGroups))
		for group, name := range f.ABTestGroups {
			t, err := domain.ParseGatewayType(name)
			if err != nil {
				return fmt.Errorf("overrides ab_test_groups[%s]: %w", group, err)
			}
			groups[group] = t
		}
		mc.ABTestGroups = groups
	}

	for name, o := range f.Gateways {
		t, err := domain.ParseGatewayType(name)
		if err != nil {
			return fmt.Errorf("overrides gateways: %w", err)
		}
		g, ok := mc.Gateways[t]
		if !ok {
			return fmt.Errorf("overrides gateways: %q has no adapter", t)
		}
		if o.Enabled != nil {
			g.Enabled = *o.Enabled
		}
		if o.TestMode != nil {
			g.TestMode = *o.TestMode
		}
		if o.Priority != nil {
			g.Priority = *o.Priority
		}
		if o.TransactionFee != nil {
			fee, err := decimal.NewFromString(*o.TransactionFee)
			if err != nil {
				return fmt.Errorf("overrides gateways.%s.transaction_fee: %w", t, err)
			}
			g.TransactionFee = fee
		}
		if o.PercentageFee != nil {
			pct, err := decimal.NewFromString(*o.PercentageFee)
			if err != nil {
				return fmt.Errorf("overrides gateways.%s.percentage_fee: %w", t, err)
			}
			g.PercentageFee = pct
		}
		if o.BaseURL != "" {
			g.BaseURL = o.BaseURL
		}
		if o.Timeout > 0 {
			g.Timeout = o.Timeout
		}
		if g.Extra == nil {
			g.Extra = map[string]string{}
		}
		for k, v := range o.Extra {
			g.Extra[k] = v
		}
		mc.Gateways[t] = g
	}
	return nil
}
