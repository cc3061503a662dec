// Package square adapts the Square Payments REST API (v2) to the
// gateway.Adapter contract.
package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/pkg/httpclient"
)

const (
	productionURL = "https://connect.squareup.com"
	sandboxURL    = "https://connect.squareupsandbox.com"

	// DefaultAPIVersion is the pinned Square-Version header.
	DefaultAPIVersion = "2024-01-18"

	// sandboxNonce is Square's test card nonce, used when no source is supplied
	// in test mode.
	sandboxNonce = "cnon:card-nonce-ok"
)

var paymentStatuses = gateway.NewStatusMap(domain.PaymentStatusPending, map[string]domain.PaymentStatus{
	"APPROVED":  domain.PaymentStatusSucceeded,
	"COMPLETED": domain.PaymentStatusSucceeded,
	"PENDING":   domain.PaymentStatusPending,
	"CANCELED":  domain.PaymentStatusCanceled,
	"FAILED":    domain.PaymentStatusFailed,
})

var refundStatuses = gateway.NewStatusMap(domain.RefundStatusPending, map[string]domain.RefundStatus{
	"PENDING":   domain.RefundStatusPending,
	"COMPLETED": domain.RefundStatusSucceeded,
	"REJECTED":  domain.RefundStatusFailed,
	"FAILED":    domain.RefundStatusFailed,
})

type money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type payment struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountMoney money  `json:"amount_money"`
	SourceType  string `json:"source_type,omitempty"`
	LocationID  string `json:"location_id,omitempty"`
	CustomerID  string `json:"customer_id,omitempty"`
	ReceiptURL  string `json:"receipt_url,omitempty"`
	Note        string `json:"note,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	CardDetails *struct {
		Status string `json:"status"`
		Card   struct {
			ID        string `json:"id,omitempty"`
			CardBrand string `json:"card_brand,omitempty"`
			Last4     string `json:"last_4,omitempty"`
		} `json:"card"`
	} `json:"card_details,omitempty"`
}

type refund struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountMoney money  `json:"amount_money"`
	PaymentID   string `json:"payment_id"`
	Reason      string `json:"reason,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type customer struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address,omitempty"`
	GivenName    string `json:"given_name,omitempty"`
	FamilyName   string `json:"family_name,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	ReferenceID  string `json:"reference_id,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

type apiError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
	Field    string `json:"field,omitempty"`
}

type errorEnvelope struct {
	Errors []apiError `json:"errors"`
}

type webhookPayload struct {
	MerchantID string `json:"merchant_id"`
	Type       string `json:"type"`
	EventID    string `json:"event_id"`
	CreatedAt  string `json:"created_at"`
	Data       struct {
		Type   string         `json:"type"`
		ID     string         `json:"id"`
		Object map[string]any `json:"object"`
	} `json:"data"`
}

// Adapter talks to Square over REST.
type Adapter struct {
	gateway.Base
	client      httpclient.Doer
	baseURL     string
	accessToken string
	locationID  string
	apiVersion  string
}

var _ gateway.Adapter = (*Adapter)(nil)

// New creates a Square adapter. cfg must carry access_token and location_id.
func New(cfg gateway.Config, opts ...gateway.Option) (*Adapter, error) {
	cfg.Type = domain.GatewaySquare
	token := cfg.Credential(gateway.KeyAccessToken)
	if token == "" {
		return nil, domain.NewGatewayError(domain.CodeGatewayNotConfigured, "square access_token is required", domain.GatewaySquare)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = productionURL
		if cfg.TestMode {
			baseURL = sandboxURL
		}
	}
	version := cfg.Credential(gateway.KeyAPIVersion)
	if version == "" {
		version = DefaultAPIVersion
	}

	o := gateway.ResolveOptions(cfg, opts...)
	return &Adapter{
		Base:        gateway.NewBase(cfg, o),
		client:      o.Doer,
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: token,
		locationID:  cfg.Credential(gateway.KeyLocationID),
		apiVersion:  version,
	}, nil
}

// CreatePaymentIntent creates a delayed-capture Square payment.
func (a *Adapter) CreatePaymentIntent(ctx context.Context, in gateway.CreateIntentInput) (pi *domain.PaymentIntent, err error) {
	defer observe("create_payment_intent", time.Now(), &err)

	if err := a.ValidateAmount(in.Amount, in.Currency); err != nil {
		return nil, err
	}

	source := in.PaymentMethodID
	if source == "" {
		if !a.Config().TestMode {
			return nil, a.Err(domain.CodePaymentMethodRequired, "square requires a payment source id to create a payment")
		}
		source = sandboxNonce
	}

	currency := domain.NormalizeCurrency(in.Currency)
	body := map[string]any{
		"idempotency_key": uuid.New().String(),
		"source_id":       source,
		"amount_money":    money{Amount: domain.ToMinorUnits(in.Amount, currency), Currency: currency},
		"autocomplete":    false,
	}
	if a.locationID != "" {
		body["location_id"] = a.locationID
	}
	if in.CustomerID != "" {
		body["customer_id"] = in.CustomerID
	}
	if ref := in.Metadata["booking_id"]; ref != "" {
		body["reference_id"] = ref
	}

	var resp struct {
		Payment payment `json:"payment"`
	}
	if err := a.call(ctx, http.MethodPost, "/v2/payments", body, &resp, domain.CodeAPIError); err != nil {
		return nil, err
	}
	p := resp.Payment

	a.Logger().DebugContext(ctx, "square payment created", slog.String("payment_id", p.ID), slog.String("status", p.Status))

	return &domain.PaymentIntent{
		ID:          p.ID,
		Gateway:     domain.GatewaySquare,
		Amount:      domain.FromMinorUnits(p.AmountMoney.Amount, p.AmountMoney.Currency),
		Currency:    p.AmountMoney.Currency,
		Status:      paymentStatuses.Lookup(p.Status),
		CustomerID:  p.CustomerID,
		Metadata:    domain.CopyMetadata(in.Metadata),
		GatewayData: paymentData(p),
		CreatedAt:   a.parseTime(p.CreatedAt),
	}, nil
}

// ConfirmPayment completes (captures) an approved Square payment.
func (a *Adapter) ConfirmPayment(ctx context.Context, paymentID, _ string, metadata map[string]string) (res *domain.PaymentResult, err error) {
	defer observe("confirm_payment", time.Now(), &err)

	var resp struct {
		Payment payment `json:"payment"`
	}
	path := "/v2/payments/" + url.PathEscape(paymentID) + "/complete"
	if err := a.call(ctx, http.MethodPost, path, map[string]any{}, &resp, domain.CodePaymentNotFound); err != nil {
		return nil, err
	}
	return a.paymentResult(resp.Payment, metadata), nil
}

// GetPayment fetches a Square payment.
func (a *Adapter) GetPayment(ctx context.Context, paymentID string) (res *domain.PaymentResult, err error) {
	defer observe("get_payment", time.Now(), &err)

	var resp struct {
		Payment payment `json:"payment"`
	}
	if err := a.call(ctx, http.MethodGet, "/v2/payments/"+url.PathEscape(paymentID), nil, &resp, domain.CodePaymentNotFound); err != nil {
		return nil, err
	}
	return a.paymentResult(resp.Payment, nil), nil
}

// CreateRefund refunds a Square payment. A nil amount refunds the full charge.
func (a *Adapter) CreateRefund(ctx context.Context, paymentID string, amount *decimal.Decimal, reason string) (res *domain.RefundResult, err error) {
	defer observe("create_refund", time.Now(), &err)

	p, err := a.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	refundAmount := p.Amount
	if amount != nil {
		refundAmount = *amount
	}

	body := map[string]any{
		"idempotency_key": uuid.New().String(),
		"payment_id":      paymentID,
		"amount_money":    money{Amount: domain.ToMinorUnits(refundAmount, p.Currency), Currency: p.Currency},
	}
	if reason != "" {
		body["reason"] = reason
	}

	var resp struct {
		Refund refund `json:"refund"`
	}
	if err := a.call(ctx, http.MethodPost, "/v2/refunds", body, &resp, domain.CodePaymentNotFound); err != nil {
		return nil, err
	}
	return a.refundResult(resp.Refund), nil
}

// GetRefund fetches a Square refund.
func (a *Adapter) GetRefund(ctx context.Context, refundID string) (res *domain.RefundResult, err error) {
	defer observe("get_refund", time.Now(), &err)

	var resp struct {
		Refund refund `json:"refund"`
	}
	if err := a.call(ctx, http.MethodGet, "/v2/refunds/"+url.PathEscape(refundID), nil, &resp, domain.CodeRefundNotFound); err != nil {
		return nil, err
	}
	return a.refundResult(resp.Refund), nil
}

// CreateCustomer creates a Square customer.
func (a *Adapter) CreateCustomer(ctx context.Context, in gateway.CustomerInput) (res *domain.CustomerResult, err error) {
	defer observe("create_customer", time.Now(), &err)

	given, family, _ := strings.Cut(strings.TrimSpace(in.Name), " ")
	body := map[string]any{"idempotency_key": uuid.New().String()}
	if in.Email != "" {
		body["email_address"] = in.Email
	}
	if given != "" {
		body["given_name"] = given
	}
	if family != "" {
		body["family_name"] = family
	}
	if in.Phone != "" {
		body["phone_number"] = in.Phone
	}
	if ref := in.Metadata["user_id"]; ref != "" {
		body["reference_id"] = ref
	}

	var resp struct {
		Customer customer `json:"customer"`
	}
	if err := a.call(ctx, http.MethodPost, "/v2/customers", body, &resp, domain.CodeAPIError); err != nil {
		return nil, err
	}
	out := a.customerResult(resp.Customer)
	out.Metadata = domain.CopyMetadata(in.Metadata)
	return out, nil
}

// GetCustomer fetches a Square customer.
func (a *Adapter) GetCustomer(ctx context.Context, customerID string) (res *domain.CustomerResult, err error) {
	defer observe("get_customer", time.Now(), &err)

	var resp struct {
		Customer customer `json:"customer"`
	}
	if err := a.call(ctx, http.MethodGet, "/v2/customers/"+url.PathEscape(customerID), nil, &resp, domain.CodeCustomerNotFound); err != nil {
		return nil, err
	}
	return a.customerResult(resp.Customer), nil
}

// CreatePayout returns a synthetic pending result. Square deposits settle
// automatically and there is no payout API to call.
func (a *Adapter) CreatePayout(ctx context.Context, amount decimal.Decimal, destinationAccount, currency string) (*domain.PayoutResult, error) {
	if err := a.ValidateAmount(amount, currency); err != nil {
		return nil, err
	}
	a.Logger().DebugContext(ctx, "square payouts are automatic; returning synthetic result")
	return &domain.PayoutResult{
		ID:                 "sq_auto_" + uuid.New().String(),
		Gateway:            domain.GatewaySquare,
		Amount:             amount,
		Currency:           domain.NormalizeCurrency(currency),
		Status:             domain.PayoutStatusPending,
		DestinationAccount: destinationAccount,
		GatewayData: domain.GatewayData{
			"automatic": true,
			"message":   "square settles deposits automatically",
		},
		CreatedAt: a.Now(),
	}, nil
}

// VerifyWebhook checks an HMAC-SHA1 signature over the raw body.
func (a *Adapter) VerifyWebhook(payload []byte, signature, secret string) bool {
	return gateway.VerifyHMACSHA1Hex(payload, signature, secret)
}

// ParseWebhookEvent verifies and decodes a Square notification.
func (a *Adapter) ParseWebhookEvent(payload []byte, signature, secret string) (*domain.WebhookEvent, error) {
	if !a.VerifyWebhook(payload, signature, secret) {
		return nil, a.Err(domain.CodeInvalidWebhookSignature, "square webhook signature verification failed")
	}

	var wp webhookPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		return nil, a.WrapErr(err, domain.CodeInvalidWebhookPayload, "decode square event")
	}
	return &domain.WebhookEvent{
		ID:       wp.EventID,
		Gateway:  domain.GatewaySquare,
		Type:     wp.Type,
		ObjectID: wp.Data.ID,
		Data:     wp.Data.Object,
		GatewayData: domain.GatewayData{
			"merchant_id": wp.MerchantID,
			"object_type": wp.Data.Type,
		},
		CreatedAt: a.parseTime(wp.CreatedAt),
	}, nil
}

// HealthCheck fetches the configured location.
func (a *Adapter) HealthCheck(ctx context.Context) gateway.HealthStatus {
	return gateway.SafeHealthCheck(ctx, a.Clock(), func(ctx context.Context) (map[string]any, error) {
		if a.locationID == "" {
			return nil, a.Err(domain.CodeGatewayNotConfigured, "square location_id is not configured")
		}
		var resp struct {
			Location struct {
				ID     string `json:"id"`
				Name   string `json:"name"`
				Status string `json:"status"`
			} `json:"location"`
		}
		if err := a.call(ctx, http.MethodGet, "/v2/locations/"+url.PathEscape(a.locationID), nil, &resp, domain.CodeGatewayNotConfigured); err != nil {
			return nil, err
		}
		return map[string]any{
			"location_id":     resp.Location.ID,
			"location_name":   resp.Location.Name,
			"location_status": resp.Location.Status,
		}, nil
	})
}

// SupportedFeatures advertises Square capabilities.
func (a *Adapter) SupportedFeatures() map[string]bool {
	return map[string]bool{
		gateway.FeaturePaymentIntents: true,
		gateway.FeatureRefunds:        true,
		gateway.FeaturePartialRefunds: true,
		gateway.FeatureCustomers:      true,
		gateway.FeaturePayouts:        false,
		gateway.FeatureWebhooks:       true,
		gateway.FeatureApplePay:       true,
		gateway.FeatureGooglePay:      true,
		gateway.FeatureACH:            true,
		gateway.FeatureSavedCards:     true,
	}
}

func (a *Adapter) call(ctx context.Context, method, path string, in, out any, notFound string) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.accessToken)
	header.Set("Square-Version", a.apiVersion)

	err := httpclient.DoJSON(ctx, a.client, method, a.baseURL+path, header, in, out)
	if err == nil {
		return nil
	}

	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return a.WrapErr(err, domain.CodeAPIError, fmt.Sprintf("%s %s", method, path))
	}

	var env errorEnvelope
	_ = json.Unmarshal(statusErr.Body, &env)

	code := domain.CodeAPIError
	if statusErr.StatusCode == http.StatusNotFound {
		code = notFound
	}
	msg := fmt.Sprintf("square returned status %d", statusErr.StatusCode)
	providerCode := ""
	if len(env.Errors) > 0 {
		first := env.Errors[0]
		providerCode = first.Code
		if first.Detail != "" {
			msg = first.Detail
		}
		if first.Code == "NOT_FOUND" {
			code = notFound
		}
	}
	gwErr := a.WrapErr(statusErr, code, msg)
	gwErr.ProviderCode = providerCode
	return gwErr
}

func (a *Adapter) paymentResult(p payment, metadata map[string]string) *domain.PaymentResult {
	res := &domain.PaymentResult{
		ID:          p.ID,
		Gateway:     domain.GatewaySquare,
		Amount:      domain.FromMinorUnits(p.AmountMoney.Amount, p.AmountMoney.Currency),
		Currency:    p.AmountMoney.Currency,
		Status:      paymentStatuses.Lookup(p.Status),
		Metadata:    domain.CopyMetadata(metadata),
		GatewayData: paymentData(p),
		CreatedAt:   a.parseTime(p.CreatedAt),
	}
	if p.CardDetails != nil {
		res.PaymentMethodID = p.CardDetails.Card.ID
		if p.Status == "FAILED" {
			res.FailureReason = p.CardDetails.Status
		}
	}
	return res
}

func (a *Adapter) refundResult(r refund) *domain.RefundResult {
	return &domain.RefundResult{
		ID:        r.ID,
		Gateway:   domain.GatewaySquare,
		PaymentID: r.PaymentID,
		Amount:    domain.FromMinorUnits(r.AmountMoney.Amount, r.AmountMoney.Currency),
		Currency:  r.AmountMoney.Currency,
		Status:    refundStatuses.Lookup(r.Status),
		Reason:    r.Reason,
		Metadata:  map[string]string{},
		GatewayData: domain.GatewayData{
			"provider_status": r.Status,
		},
		CreatedAt: a.parseTime(r.CreatedAt),
	}
}

func (a *Adapter) customerResult(c customer) *domain.CustomerResult {
	return &domain.CustomerResult{
		ID:       c.ID,
		Gateway:  domain.GatewaySquare,
		Email:    c.EmailAddress,
		Name:     strings.TrimSpace(c.GivenName + " " + c.FamilyName),
		Phone:    c.PhoneNumber,
		Metadata: map[string]string{},
		GatewayData: domain.GatewayData{
			"reference_id": c.ReferenceID,
		},
		CreatedAt: a.parseTime(c.CreatedAt),
	}
}

func (a *Adapter) parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return a.Now()
}

func paymentData(p payment) domain.GatewayData {
	d := domain.GatewayData{
		"provider_status": p.Status,
		"source_type":     p.SourceType,
		"location_id":     p.LocationID,
	}
	if p.ReceiptURL != "" {
		d["receipt_url"] = p.ReceiptURL
	}
	if p.CardDetails != nil {
		d["card_brand"] = p.CardDetails.Card.CardBrand
		d["card_last_4"] = p.CardDetails.Card.Last4
	}
	return d
}

func observe(op string, start time.Time, err *error) {
	gateway.ObserveCall(domain.GatewaySquare, op, start, *err)
}
