// Package tilled adapts the Tilled REST API (v1) to the gateway.Adapter contract.
package tilled

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

	"github.com/shopspring/decimal"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/pkg/httpclient"
)

const (
	productionURL = "https://api.tilled.com"
	sandboxURL    = "https://sandbox-api.tilled.com"
)

var paymentStatuses = gateway.NewStatusMap(domain.PaymentStatusPending, map[string]domain.PaymentStatus{
	"requires_payment_method": domain.PaymentStatusPending,
	"requires_confirmation":   domain.PaymentStatusPending,
	"requires_action":         domain.PaymentStatusRequiresAction,
	"processing":              domain.PaymentStatusProcessing,
	"requires_capture":        domain.PaymentStatusProcessing,
	"succeeded":               domain.PaymentStatusSucceeded,
	"canceled":                domain.PaymentStatusCanceled,
	"failed":                  domain.PaymentStatusFailed,
})

var refundStatuses = gateway.NewStatusMap(domain.RefundStatusPending, map[string]domain.RefundStatus{
	"pending":   domain.RefundStatusPending,
	"succeeded": domain.RefundStatusSucceeded,
	"failed":    domain.RefundStatusFailed,
	"canceled":  domain.RefundStatusCanceled,
})

var payoutStatuses = gateway.NewStatusMap(domain.PayoutStatusPending, map[string]domain.PayoutStatus{
	"pending":    domain.PayoutStatusPending,
	"in_transit": domain.PayoutStatusInTransit,
	"paid":       domain.PayoutStatusPaid,
	"failed":     domain.PayoutStatusFailed,
	"canceled":   domain.PayoutStatusCanceled,
})

type paymentIntent struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Amount           int64             `json:"amount"`
	AmountReceived   int64             `json:"amount_received"`
	Currency         string            `json:"currency"`
	ClientSecret     string            `json:"client_secret"`
	CustomerID       string            `json:"customer_id"`
	PaymentMethodID  string            `json:"payment_method_id"`
	CaptureMethod    string            `json:"capture_method"`
	Metadata         map[string]string `json:"metadata"`
	CreatedAt        string            `json:"created_at"`
	LastPaymentError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type refund struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	PaymentIntentID string            `json:"payment_intent_id"`
	Reason          string            `json:"reason"`
	Metadata        map[string]string `json:"metadata"`
	CreatedAt       string            `json:"created_at"`
}

type customer struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Phone     string            `json:"phone"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt string            `json:"created_at"`
}

type payout struct {
	ID                   string `json:"id"`
	Status               string `json:"status"`
	Amount               int64  `json:"amount"`
	Currency             string `json:"currency"`
	DestinationAccountID string `json:"destination_account_id"`
	ArrivalDate          string `json:"arrival_date"`
	CreatedAt            string `json:"created_at"`
}

type errorEnvelope struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	StatusCode int    `json:"statusCode"`
}

type webhookPayload struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	AccountID string         `json:"account_id"`
	Livemode  bool           `json:"livemode"`
	CreatedAt string         `json:"created_at"`
	Data      map[string]any `json:"data"`
}

// Adapter talks to Tilled over REST.
type Adapter struct {
	gateway.Base
	client    httpclient.Doer
	baseURL   string
	secretKey string
	accountID string
}

var _ gateway.Adapter = (*Adapter)(nil)

// New creates a Tilled adapter. cfg must carry secret_key and account_id.
func New(cfg gateway.Config, opts ...gateway.Option) (*Adapter, error) {
	cfg.Type = domain.GatewayTilled
	key := cfg.Credential(gateway.KeySecretKey)
	if key == "" {
		key = cfg.Credential(gateway.KeyAPIKey)
	}
	if key == "" {
		return nil, domain.NewGatewayError(domain.CodeGatewayNotConfigured, "tilled secret_key is required", domain.GatewayTilled)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = productionURL
		if cfg.TestMode {
			baseURL = sandboxURL
		}
	}

	o := gateway.ResolveOptions(cfg, opts...)
	return &Adapter{
		Base:      gateway.NewBase(cfg, o),
		client:    o.Doer,
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: key,
		accountID: cfg.Credential(gateway.KeyAccountID),
	}, nil
}

// CreatePaymentIntent creates a Tilled payment intent.
func (a *Adapter) CreatePaymentIntent(ctx context.Context, in gateway.CreateIntentInput) (pi *domain.PaymentIntent, err error) {
	defer observe("create_payment_intent", time.Now(), &err)

	if err := a.ValidateAmount(in.Amount, in.Currency); err != nil {
		return nil, err
	}

	methods := in.PaymentMethodTypes
	if len(methods) == 0 {
		methods = []string{"card"}
	}
	body := map[string]any{
		"amount":               domain.ToMinorUnits(in.Amount, in.Currency),
		"currency":             strings.ToLower(in.Currency),
		"payment_method_types": methods,
		"capture_method":       "automatic",
		"metadata":             domain.CopyMetadata(in.Metadata),
	}
	if in.CustomerID != "" {
		body["customer_id"] = in.CustomerID
	}
	if in.PaymentMethodID != "" {
		body["payment_method_id"] = in.PaymentMethodID
	}

	var intent paymentIntent
	if err := a.call(ctx, http.MethodPost, "/v1/payment-intents", body, &intent, domain.CodeAPIError); err != nil {
		return nil, err
	}

	a.Logger().DebugContext(ctx, "tilled payment intent created", slog.String("payment_intent_id", intent.ID))

	return &domain.PaymentIntent{
		ID:           intent.ID,
		Gateway:      domain.GatewayTilled,
		Amount:       domain.FromMinorUnits(intent.Amount, intent.Currency),
		Currency:     strings.ToUpper(intent.Currency),
		Status:       paymentStatuses.Lookup(intent.Status),
		ClientSecret: intent.ClientSecret,
		CustomerID:   intent.CustomerID,
		Metadata:     mergeMetadata(in.Metadata, intent.Metadata),
		GatewayData:  intentData(intent),
		CreatedAt:    a.parseTime(intent.CreatedAt),
	}, nil
}

// ConfirmPayment confirms a Tilled payment intent.
func (a *Adapter) ConfirmPayment(ctx context.Context, paymentID, paymentMethod string, metadata map[string]string) (res *domain.PaymentResult, err error) {
	defer observe("confirm_payment", time.Now(), &err)

	body := map[string]any{}
	if paymentMethod != "" {
		body["payment_method_id"] = paymentMethod
	}
	var intent paymentIntent
	path := "/v1/payment-intents/" + url.PathEscape(paymentID) + "/confirm"
	if err := a.call(ctx, http.MethodPost, path, body, &intent, domain.CodePaymentNotFound); err != nil {
		return nil, err
	}
	return a.paymentResult(intent, metadata), nil
}

// GetPayment fetches a Tilled payment intent.
func (a *Adapter) GetPayment(ctx context.Context, paymentID string) (res *domain.PaymentResult, err error) {
	defer observe("get_payment", time.Now(), &err)

	var intent paymentIntent
	if err := a.call(ctx, http.MethodGet, "/v1/payment-intents/"+url.PathEscape(paymentID), nil, &intent, domain.CodePaymentNotFound); err != nil {
		return nil, err
	}
	return a.paymentResult(intent, nil), nil
}

// CreateRefund refunds a Tilled payment intent. A nil amount refunds the full charge.
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
		"payment_intent_id": paymentID,
		"amount":            domain.ToMinorUnits(refundAmount, p.Currency),
	}
	if reason != "" {
		body["reason"] = reason
	}

	var r refund
	if err := a.call(ctx, http.MethodPost, "/v1/refunds", body, &r, domain.CodePaymentNotFound); err != nil {
		return nil, err
	}
	return a.refundResult(r), nil
}

// GetRefund fetches a Tilled refund.
func (a *Adapter) GetRefund(ctx context.Context, refundID string) (res *domain.RefundResult, err error) {
	defer observe("get_refund", time.Now(), &err)

	var r refund
	if err := a.call(ctx, http.MethodGet, "/v1/refunds/"+url.PathEscape(refundID), nil, &r, domain.CodeRefundNotFound); err != nil {
		return nil, err
	}
	return a.refundResult(r), nil
}

// CreateCustomer creates a Tilled customer.
func (a *Adapter) CreateCustomer(ctx context.Context, in gateway.CustomerInput) (res *domain.CustomerResult, err error) {
	defer observe("create_customer", time.Now(), &err)

	first, last, _ := strings.Cut(strings.TrimSpace(in.Name), " ")
	body := map[string]any{
		"email":      in.Email,
		"first_name": first,
		"last_name":  last,
		"metadata":   domain.CopyMetadata(in.Metadata),
	}
	if in.Phone != "" {
		body["phone"] = in.Phone
	}

	var c customer
	if err := a.call(ctx, http.MethodPost, "/v1/customers", body, &c, domain.CodeAPIError); err != nil {
		return nil, err
	}
	return a.customerResult(c), nil
}

// GetCustomer fetches a Tilled customer.
func (a *Adapter) GetCustomer(ctx context.Context, customerID string) (res *domain.CustomerResult, err error) {
	defer observe("get_customer", time.Now(), &err)

	var c customer
	if err := a.call(ctx, http.MethodGet, "/v1/customers/"+url.PathEscape(customerID), nil, &c, domain.CodeCustomerNotFound); err != nil {
		return nil, err
	}
	return a.customerResult(c), nil
}

// CreatePayout requests a payout to a merchant account.
func (a *Adapter) CreatePayout(ctx context.Context, amount decimal.Decimal, destinationAccount, currency string) (res *domain.PayoutResult, err error) {
	defer observe("create_payout", time.Now(), &err)

	if err := a.ValidateAmount(amount, currency); err != nil {
		return nil, err
	}
	body := map[string]any{
		"amount":                 domain.ToMinorUnits(amount, currency),
		"currency":               strings.ToLower(currency),
		"destination_account_id": destinationAccount,
	}

	var p payout
	if err := a.call(ctx, http.MethodPost, "/v1/payouts", body, &p, domain.CodeAPIError); err != nil {
		return nil, err
	}

	out := &domain.PayoutResult{
		ID:                 p.ID,
		Gateway:            domain.GatewayTilled,
		Amount:             domain.FromMinorUnits(p.Amount, p.Currency),
		Currency:           strings.ToUpper(p.Currency),
		Status:             payoutStatuses.Lookup(p.Status),
		DestinationAccount: p.DestinationAccountID,
		GatewayData:        domain.GatewayData{"provider_status": p.Status},
		CreatedAt:          a.parseTime(p.CreatedAt),
	}
	if out.DestinationAccount == "" {
		out.DestinationAccount = destinationAccount
	}
	if t, err := time.Parse(time.RFC3339, p.ArrivalDate); err == nil {
		arrival := t.UTC()
		out.ArrivalDate = &arrival
	}
	return out, nil
}

// VerifyWebhook checks a Tilled-Signature header with HMAC-SHA256.
func (a *Adapter) VerifyWebhook(payload []byte, signature, secret string) bool {
	return gateway.VerifyHMACSHA256(payload, signature, secret)
}

// ParseWebhookEvent verifies and decodes a Tilled event.
func (a *Adapter) ParseWebhookEvent(payload []byte, signature, secret string) (*domain.WebhookEvent, error) {
	if !a.VerifyWebhook(payload, signature, secret) {
		return nil, a.Err(domain.CodeInvalidWebhookSignature, "tilled webhook signature verification failed")
	}

	var wp webhookPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		return nil, a.WrapErr(err, domain.CodeInvalidWebhookPayload, "decode tilled event")
	}
	out := &domain.WebhookEvent{
		ID:      wp.ID,
		Gateway: domain.GatewayTilled,
		Type:    wp.Type,
		Data:    wp.Data,
		GatewayData: domain.GatewayData{
			"account_id": wp.AccountID,
			"livemode":   wp.Livemode,
		},
		CreatedAt: a.parseTime(wp.CreatedAt),
	}
	if id, ok := wp.Data["id"].(string); ok {
		out.ObjectID = id
	}
	return out, nil
}

// HealthCheck fetches the merchant account.
func (a *Adapter) HealthCheck(ctx context.Context) gateway.HealthStatus {
	return gateway.SafeHealthCheck(ctx, a.Clock(), func(ctx context.Context) (map[string]any, error) {
		var account struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		}
		if err := a.call(ctx, http.MethodGet, "/v1/accounts", nil, &account, domain.CodeGatewayNotConfigured); err != nil {
			return nil, err
		}
		return map[string]any{
			"account_id":   account.ID,
			"account_name": account.Name,
			"account_type": account.Type,
		}, nil
	})
}

// SupportedFeatures advertises Tilled capabilities. Tilled has no Apple Pay.
func (a *Adapter) SupportedFeatures() map[string]bool {
	return map[string]bool{
		gateway.FeaturePaymentIntents: true,
		gateway.FeatureRefunds:        true,
		gateway.FeaturePartialRefunds: true,
		gateway.FeatureCustomers:      true,
		gateway.FeaturePayouts:        true,
		gateway.FeatureWebhooks:       true,
		gateway.FeatureApplePay:       false,
		gateway.FeatureGooglePay:      false,
		gateway.FeatureACH:            true,
		gateway.FeatureSavedCards:     true,
	}
}

func (a *Adapter) call(ctx context.Context, method, path string, in, out any, notFound string) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.secretKey)
	if a.accountID != "" {
		header.Set("tilled-account", a.accountID)
	}

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
	msg := env.Message
	if msg == "" {
		msg = fmt.Sprintf("tilled returned status %d", statusErr.StatusCode)
	}
	gwErr := a.WrapErr(statusErr, code, msg)
	gwErr.ProviderCode = env.Code
	return gwErr
}

func (a *Adapter) paymentResult(intent paymentIntent, metadata map[string]string) *domain.PaymentResult {
	res := &domain.PaymentResult{
		ID:              intent.ID,
		Gateway:         domain.GatewayTilled,
		Amount:          domain.FromMinorUnits(intent.Amount, intent.Currency),
		Currency:        strings.ToUpper(intent.Currency),
		Status:          paymentStatuses.Lookup(intent.Status),
		PaymentMethodID: intent.PaymentMethodID,
		Metadata:        mergeMetadata(metadata, intent.Metadata),
		GatewayData:     intentData(intent),
		CreatedAt:       a.parseTime(intent.CreatedAt),
	}
	if intent.LastPaymentError != nil {
		res.FailureReason = intent.LastPaymentError.Message
	}
	return res
}

func (a *Adapter) refundResult(r refund) *domain.RefundResult {
	return &domain.RefundResult{
		ID:          r.ID,
		Gateway:     domain.GatewayTilled,
		PaymentID:   r.PaymentIntentID,
		Amount:      domain.FromMinorUnits(r.Amount, r.Currency),
		Currency:    strings.ToUpper(r.Currency),
		Status:      refundStatuses.Lookup(r.Status),
		Reason:      r.Reason,
		Metadata:    domain.CopyMetadata(r.Metadata),
		GatewayData: domain.GatewayData{"provider_status": r.Status},
		CreatedAt:   a.parseTime(r.CreatedAt),
	}
}

func (a *Adapter) customerResult(c customer) *domain.CustomerResult {
	return &domain.CustomerResult{
		ID:          c.ID,
		Gateway:     domain.GatewayTilled,
		Email:       c.Email,
		Name:        strings.TrimSpace(c.FirstName + " " + c.LastName),
		Phone:       c.Phone,
		Metadata:    domain.CopyMetadata(c.Metadata),
		GatewayData: domain.GatewayData{},
		CreatedAt:   a.parseTime(c.CreatedAt),
	}
}

func (a *Adapter) parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return a.Now()
}

func intentData(intent paymentIntent) domain.GatewayData {
	return domain.GatewayData{
		"provider_status": intent.Status,
		"capture_method":  intent.CaptureMethod,
		"amount_received": intent.AmountReceived,
	}
}

func mergeMetadata(requested, returned map[string]string) map[string]string {
	out := domain.CopyMetadata(returned)
	for k, v := range requested {
		out[k] = v
	}
	return out
}

func observe(op string, start time.Time, err *error) {
	gateway.ObserveCall(domain.GatewayTilled, op, start, *err)
}
