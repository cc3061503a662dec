package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
)

// Feature names advertised by SupportedFeatures.
const (
	FeaturePaymentIntents = "payment_intents"
	FeatureRefunds        = "refunds"
	FeaturePartialRefunds = "partial_refunds"
	FeatureCustomers      = "customers"
	FeaturePayouts        = "payouts"
	FeatureWebhooks       = "webhooks"
	FeatureApplePay       = "apple_pay"
	FeatureGooglePay      = "google_pay"
	FeatureACH            = "ach"
	FeatureSavedCards     = "saved_cards"
)

// CreateIntentInput holds the parameters for creating a payment intent.
type CreateIntentInput struct {
	Amount             decimal.Decimal
	Currency           string
	Metadata           map[string]string
	CustomerID         string
	PaymentMethodTypes []string
	// PaymentMethodID is a provider source token. Square needs one up front.
	PaymentMethodID string
}

// CustomerInput holds the parameters for creating a customer.
type CustomerInput struct {
	Email    string
	Name     string
	Phone    string
	Metadata map[string]string
}

// HealthStatus is the result of a provider liveness probe.
type HealthStatus struct {
	Healthy      bool           `json:"healthy"`
	ResponseTime time.Duration  `json:"-"`
	ResponseMs   float64        `json:"response_time_ms"`
	Details      map[string]any `json:"details,omitempty"`
	Error        string         `json:"error,omitempty"`
	CheckedAt    time.Time      `json:"checked_at"`
}

// Adapter is the uniform operation set every payment provider implements. No
// provider-specific type crosses this boundary: results are domain records and
// every failure is a *domain.GatewayError.
type Adapter interface {
	// Type returns the gateway this adapter talks to.
	Type() domain.GatewayType

	// CreatePaymentIntent validates the amount and creates a pending payment.
	CreatePaymentIntent(ctx context.Context, in CreateIntentInput) (*domain.PaymentIntent, error)

	// ConfirmPayment finalizes a pending payment. Capture-style providers
	// complete the payment instead of confirming it.
	ConfirmPayment(ctx context.Context, paymentID, paymentMethod string, metadata map[string]string) (*domain.PaymentResult, error)

	// GetPayment fetches the current state of a payment.
	GetPayment(ctx context.Context, paymentID string) (*domain.PaymentResult, error)

	// CreateRefund refunds a payment. A nil amount refunds the full charge.
	CreateRefund(ctx context.Context, paymentID string, amount *decimal.Decimal, reason string) (*domain.RefundResult, error)

	// GetRefund fetches a refund.
	GetRefund(ctx context.Context, refundID string) (*domain.RefundResult, error)

	// CreateCustomer creates a customer record on the provider.
	CreateCustomer(ctx context.Context, in CustomerInput) (*domain.CustomerResult, error)

	// GetCustomer fetches a customer record.
	GetCustomer(ctx context.Context, customerID string) (*domain.CustomerResult, error)

	// CreatePayout sends funds to a destination account. Providers without a
	// payout API return a synthetic pending result.
	CreatePayout(ctx context.Context, amount decimal.Decimal, destinationAccount, currency string) (*domain.PayoutResult, error)

	// VerifyWebhook checks a webhook signature against the raw payload.
	VerifyWebhook(payload []byte, signature, secret string) bool

	// ParseWebhookEvent verifies the signature and then decodes the payload.
	// It fails with INVALID_WEBHOOK_SIGNATURE before reading the payload.
	ParseWebhookEvent(payload []byte, signature, secret string) (*domain.WebhookEvent, error)

	// HealthCheck probes the provider. It never panics and never errors.
	HealthCheck(ctx context.Context) HealthStatus

	// SupportedFeatures advertises static capabilities.
	SupportedFeatures() map[string]bool

	// ValidateAmount checks provider-specific amount bounds.
	ValidateAmount(amount decimal.Decimal, currency string) error
}
