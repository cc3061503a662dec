package domain

import (
	"fmt"
	"strings"
)

// GatewayType identifies a payment processor integration.
type GatewayType string

// Supported gateway types. PayPal is reserved and has no adapter.
const (
	GatewayStripe GatewayType = "stripe"
	GatewaySquare GatewayType = "square"
	GatewayTilled GatewayType = "tilled"
	GatewayPayPal GatewayType = "paypal"
)

// String returns the gateway identifier.
func (g GatewayType) String() string {
	return string(g)
}

// ValidGatewayTypes returns every known gateway type, including reserved ones.
func ValidGatewayTypes() []GatewayType {
	return []GatewayType{GatewayStripe, GatewaySquare, GatewayTilled, GatewayPayPal}
}

// SupportedGatewayTypes returns the gateway types that have an adapter.
func SupportedGatewayTypes() []GatewayType {
	return []GatewayType{GatewayStripe, GatewaySquare, GatewayTilled}
}

// IsValid reports whether g is a known gateway type.
func (g GatewayType) IsValid() bool {
	for _, t := range ValidGatewayTypes() {
		if t == g {
			return true
		}
	}
	return false
}

// IsSupported reports whether g has an adapter implementation.
func (g GatewayType) IsSupported() bool {
	for _, t := range SupportedGatewayTypes() {
		if t == g {
			return true
		}
	}
	return false
}

// ParseGatewayType converts a case-insensitive name into a GatewayType.
func ParseGatewayType(s string) (GatewayType, error) {
	g := GatewayType(strings.ToLower(strings.TrimSpace(s)))
	if !g.IsValid() {
		return "", fmt.Errorf("unknown gateway type %q", s)
	}
	return g, nil
}
