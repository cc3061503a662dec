package config

import (
	"fmt"
	"strings"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/internal/registry"
	"github.com/c50bossio/6fb-booking-sub001/internal/selector"
)

// Report is the categorized result of ValidateConfig.
type Report struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Info     []string `json:"info"`
}

// Valid reports whether there are no errors.
func (r Report) Valid() bool {
	return len(r.Errors) == 0
}

// ValidateConfig inspects a resolved config for problems an operator must fix
// (errors) or should know about (warnings).
func ValidateConfig(mc ManagerConfig) Report {
	r := Report{Errors: []string{}, Warnings: []string{}, Info: []string{}}
	templates := registry.DefaultTemplates()

	enabled := mc.EnabledGateways()
	if len(enabled) == 0 {
		r.Errors = append(r.Errors, "no payment gateway is enabled")
	}
	if len(enabled) == 1 {
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("only %s is enabled; failover is not possible", enabled[0].Type))
	}

	names := make([]string, 0, len(enabled))
	for _, g := range enabled {
		names = append(names, g.Type.String())

		if tmpl, ok := templates[g.Type]; ok && tmpl.Primary != "" && !g.HasCredential(tmpl.Primary) {
			r.Errors = append(r.Errors, fmt.Sprintf("%s is enabled but %s is not set", g.Type, tmpl.Primary))
		}
		if g.WebhookSecret == "" && !g.HasCredential(gateway.KeyWebhookSecret) {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s has no webhook secret; its webhooks will be rejected", g.Type))
		}
		switch g.Type {
		case domain.GatewayTilled:
			if !g.HasCredential(gateway.KeyAccountID) {
				r.Warnings = append(r.Warnings, "tilled account_id is not set")
			}
		case domain.GatewaySquare:
			if !g.HasCredential(gateway.KeyLocationID) {
				r.Warnings = append(r.Warnings, "square location_id is not set")
			}
		}
		if mc.Environment.IsProduction() && g.TestMode {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s runs in test mode in production", g.Type))
		}
	}

	if _, err := selector.ParseStrategy(mc.DefaultStrategy); err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("invalid default strategy %q", mc.DefaultStrategy))
	}
	if !mc.FailoverEnabled {
		r.Warnings = append(r.Warnings, "failover is disabled")
	}

	r.Info = append(r.Info,
		fmt.Sprintf("environment: %s", mc.Environment),
		fmt.Sprintf("default strategy: %s", mc.DefaultStrategy),
		fmt.Sprintf("enabled gateways: %s", strings.Join(names, ", ")),
		fmt.Sprintf("failover enabled: %t", mc.FailoverEnabled),
		fmt.Sprintf("health check interval: %s", mc.HealthCheckInterval),
	)
	return r
}
