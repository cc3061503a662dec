package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Metadata keys stamped by the manager onto payment intents.
const (
	MetadataGatewayType       = "gateway_type"
	MetadataSelectionStrategy = "selection_strategy"
	MetadataGatewayRef        = "gateway_ref"
)

// GatewayData carries a provider's raw response fields. Only the adapter that
// produced it may interpret its contents.
type GatewayData map[string]any

// PaymentIntent is a pending payment created on a gateway.
type PaymentIntent struct {
	ID           string            `json:"id"`
	Gateway      GatewayType       `json:"gateway"`
	Amount       decimal.Decimal   `json:"amount"`
	Currency     string            `json:"currency"`
	Status       PaymentStatus     `json:"status"`
	ClientSecret string            `json:"client_secret,omitempty"`
	CustomerID   string            `json:"customer_id,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	GatewayData  GatewayData       `json:"gateway_data,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Reference returns the gateway-tagged id of the intent.
func (p *PaymentIntent) Reference() string {
	return FormatReference(p.Gateway, p.ID)
}

// PaymentResult is the state of a payment after confirmation or lookup.
type PaymentResult struct {
	ID              string            `json:"id"`
	Gateway         GatewayType       `json:"gateway"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	Status          PaymentStatus     `json:"status"`
	PaymentMethodID string            `json:"payment_method_id,omitempty"`
	FailureReason   string            `json:"failure_reason,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	GatewayData     GatewayData       `json:"gateway_data,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// RefundResult is the state of a refund.
type RefundResult struct {
	ID          string            `json:"id"`
	Gateway     GatewayType       `json:"gateway"`
	PaymentID   string            `json:"payment_id"`
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	Status      RefundStatus      `json:"status"`
	Reason      string            `json:"reason,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	GatewayData GatewayData       `json:"gateway_data,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// PayoutResult is the state of a payout to a connected account.
type PayoutResult struct {
	ID                 string          `json:"id"`
	Gateway            GatewayType     `json:"gateway"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Status             PayoutStatus    `json:"status"`
	DestinationAccount string          `json:"destination_account,omitempty"`
	ArrivalDate        *time.Time      `json:"arrival_date,omitempty"`
	GatewayData        GatewayData     `json:"gateway_data,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// CustomerResult is a customer record held by a gateway.
type CustomerResult struct {
	ID          string            `json:"id"`
	Gateway     GatewayType       `json:"gateway"`
	Email       string            `json:"email,omitempty"`
	Name        string            `json:"name,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	GatewayData GatewayData       `json:"gateway_data,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// WebhookEvent is a verified, provider-agnostic webhook notification.
type WebhookEvent struct {
	ID          string         `json:"id"`
	Gateway     GatewayType    `json:"gateway"`
	Type        string         `json:"type"`
	ObjectID    string         `json:"object_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	GatewayData GatewayData    `json:"gateway_data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// PaymentRef persists which gateway owns a provider id so that follow-up calls
// never have to guess.
type PaymentRef struct {
	Gateway    GatewayType     `json:"gateway"`
	ProviderID string          `json:"provider_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Reference returns the "{gateway}:{provider_id}" form of the ref.
func (r *PaymentRef) Reference() string {
	return FormatReference(r.Gateway, r.ProviderID)
}

// FormatReference joins a gateway and provider id into a tagged reference.
func FormatReference(gateway GatewayType, providerID string) string {
	return fmt.Sprintf("%s:%s", gateway, providerID)
}

// ParseReference splits a "{gateway}:{provider_id}" reference. ok is false when
// the string does not start with a known gateway tag.
func ParseReference(ref string) (gateway GatewayType, providerID string, ok bool) {
	head, tail, found := strings.Cut(ref, ":")
	if !found || tail == "" {
		return "", "", false
	}
	g := GatewayType(strings.ToLower(head))
	if !g.IsValid() {
		return "", "", false
	}
	return g, tail, true
}

// CopyMetadata returns a shallow copy of m (nil-safe).
func CopyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
