package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies have no minor unit; amounts are sent to providers as-is.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {},
	"MGA": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {},
	"XOF": {}, "XPF": {},
}

var hundred = decimal.NewFromInt(100)

// NormalizeCurrency upper-cases and trims an ISO-4217 code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// IsZeroDecimal reports whether the currency has no minor unit.
func IsZeroDecimal(currency string) bool {
	_, ok := zeroDecimalCurrencies[NormalizeCurrency(currency)]
	return ok
}

// ToMinorUnits converts a major-unit amount into the integer representation
// providers expect: cents for 2-decimal currencies, identity for zero-decimal
// ones. Fractions below the currency exponent are rounded half away from zero.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if IsZeroDecimal(currency) {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts a provider integer amount back into major units.
func FromMinorUnits(units int64, currency string) decimal.Decimal {
	d := decimal.NewFromInt(units)
	if IsZeroDecimal(currency) {
		return d
	}
	return d.Div(hundred)
}

// AmountBounds is the inclusive range a provider accepts for one charge.
type AmountBounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// DefaultAmountBounds is USD 0.50 through 999,999.99.
func DefaultAmountBounds() AmountBounds {
	return AmountBounds{
		Min: decimal.RequireFromString("0.50"),
		Max: decimal.RequireFromString("999999.99"),
	}
}

// ValidateAmount checks amount and currency against the bounds.
func ValidateAmount(amount decimal.Decimal, currency string, bounds AmountBounds, gateway GatewayType) error {
	if len(NormalizeCurrency(currency)) != 3 {
		return NewGatewayError(CodeInvalidCurrency, fmt.Sprintf("currency %q must be a 3-letter ISO code", currency), gateway)
	}
	if amount.LessThan(bounds.Min) {
		return NewGatewayError(CodeInvalidAmount,
			fmt.Sprintf("amount %s is below the minimum of %s", amount.String(), bounds.Min.String()), gateway)
	}
	if amount.GreaterThan(bounds.Max) {
		return NewGatewayError(CodeInvalidAmount,
			fmt.Sprintf("amount %s exceeds the maximum of %s", amount.String(), bounds.Max.String()), gateway)
	}
	return nil
}
