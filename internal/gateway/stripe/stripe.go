// Package stripe adapts the Stripe API to the gateway.Adapter contract.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
)

var paymentStatuses = gateway.NewStatusMap(domain.PaymentStatusPending, map[string]domain.PaymentStatus{
	"requires_payment_method": domain.PaymentStatusPending,
	"requires_confirmation":   domain.PaymentStatusPending,
	"requires_action":         domain.PaymentStatusRequiresAction,
	"processing":              domain.PaymentStatusProcessing,
	"requires_capture":        domain.PaymentStatusProcessing,
	"succeeded":               domain.PaymentStatusSucceeded,
	"canceled":                domain.PaymentStatusCanceled,
})

var refundStatuses = gateway.NewStatusMap(domain.RefundStatusPending, map[string]domain.RefundStatus{
	"pending":         domain.RefundStatusPending,
	"requires_action": domain.RefundStatusPending,
	"succeeded":       domain.RefundStatusSucceeded,
	"failed":          domain.RefundStatusFailed,
	"canceled":        domain.RefundStatusCanceled,
})

// refundReasons are the only reasons Stripe accepts; anything else goes to metadata.
var refundReasons = map[string]bool{
	"duplicate":             true,
	"fraudulent":            true,
	"requested_by_customer": true,
}

// Adapter talks to Stripe through stripe-go.
type Adapter struct {
	gateway.Base
	api *client.API
}

var _ gateway.Adapter = (*Adapter)(nil)

// New creates a Stripe adapter. cfg.Credentials must carry api_key.
func New(cfg gateway.Config, opts ...gateway.Option) (*Adapter, error) {
	cfg.Type = domain.GatewayStripe
	apiKey := cfg.Credential(gateway.KeyAPIKey)
	if apiKey == "" {
		return nil, domain.NewGatewayError(domain.CodeGatewayNotConfigured, "stripe api_key is required", domain.GatewayStripe)
	}

	o := gateway.ResolveOptions(cfg, opts...)

	backendCfg := &stripego.BackendConfig{
		HTTPClient:        o.HTTPClient,
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelNull},
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripego.String(strings.TrimRight(cfg.BaseURL, "/"))
	}
	backend := stripego.GetBackendWithConfig(stripego.APIBackend, backendCfg)

	api := &client.API{}
	api.Init(apiKey, &stripego.Backends{API: backend, Connect: backend, Uploads: backend})

	return &Adapter{Base: gateway.NewBase(cfg, o), api: api}, nil
}

// CreatePaymentIntent creates a Stripe PaymentIntent.
func (a *Adapter) CreatePaymentIntent(ctx context.Context, in gateway.CreateIntentInput) (pi *domain.PaymentIntent, err error) {
	defer observe("create_payment_intent", time.Now(), &err)

	if err := a.ValidateAmount(in.Amount, in.Currency); err != nil {
		return nil, err
	}

	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(domain.ToMinorUnits(in.Amount, in.Currency)),
		Currency: stripego.String(strings.ToLower(in.Currency)),
	}
	params.Context = ctx
	if in.CustomerID != "" {
		params.Customer = stripego.String(in.CustomerID)
	}
	if in.PaymentMethodID != "" {
		params.PaymentMethod = stripego.String(in.PaymentMethodID)
	}
	methods := in.PaymentMethodTypes
	if len(methods) == 0 {
		methods = []string{"card"}
	}
	params.PaymentMethodTypes = stripego.StringSlice(methods)
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	intent, err := a.api.PaymentIntents.New(params)
	if err != nil {
		return nil, a.convertError(err, domain.CodeAPIError, "create payment intent")
	}

	a.Logger().DebugContext(ctx, "stripe payment intent created", slog.String("payment_intent_id", intent.ID))

	return &domain.PaymentIntent{
		ID:           intent.ID,
		Gateway:      domain.GatewayStripe,
		Amount:       domain.FromMinorUnits(intent.Amount, string(intent.Currency)),
		Currency:     strings.ToUpper(string(intent.Currency)),
		Status:       paymentStatuses.Lookup(string(intent.Status)),
		ClientSecret: intent.ClientSecret,
		CustomerID:   customerID(intent),
		Metadata:     mergeMetadata(in.Metadata, intent.Metadata),
		GatewayData:  intentData(intent),
		CreatedAt:    a.UnixTime(intent.Created),
	}, nil
}

// ConfirmPayment confirms a PaymentIntent, optionally attaching a payment method.
func (a *Adapter) ConfirmPayment(ctx context.Context, paymentID, paymentMethod string, metadata map[string]string) (res *domain.PaymentResult, err error) {
	defer observe("confirm_payment", time.Now(), &err)

	params := &stripego.PaymentIntentConfirmParams{}
	params.Context = ctx
	if paymentMethod != "" {
		params.PaymentMethod = stripego.String(paymentMethod)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	intent, err := a.api.PaymentIntents.Confirm(paymentID, params)
	if err != nil {
		return nil, a.convertError(err, domain.CodePaymentNotFound, "confirm payment")
	}
	return a.paymentResult(intent, metadata), nil
}

// GetPayment fetches a PaymentIntent.
func (a *Adapter) GetPayment(ctx context.Context, paymentID string) (res *domain.PaymentResult, err error) {
	defer observe("get_payment", time.Now(), &err)

	params := &stripego.PaymentIntentParams{}
	params.Context = ctx

	intent, err := a.api.PaymentIntents.Get(paymentID, params)
	if err != nil {
		return nil, a.convertError(err, domain.CodePaymentNotFound, "get payment")
	}
	return a.paymentResult(intent, nil), nil
}

// CreateRefund refunds a PaymentIntent. A nil amount refunds the amount received.
func (a *Adapter) CreateRefund(ctx context.Context, paymentID string, amount *decimal.Decimal, reason string) (res *domain.RefundResult, err error) {
	defer observe("create_refund", time.Now(), &err)

	payment, err := a.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	refundAmount := payment.Amount
	if amount != nil {
		refundAmount = *amount
	}

	params := &stripego.RefundParams{
		PaymentIntent: stripego.String(paymentID),
		Amount:        stripego.Int64(domain.ToMinorUnits(refundAmount, payment.Currency)),
	}
	params.Context = ctx
	if reason != "" {
		if refundReasons[reason] {
			params.Reason = stripego.String(reason)
		} else {
			params.AddMetadata("reason", reason)
		}
	}

	refund, err := a.api.Refunds.New(params)
	if err != nil {
		return nil, a.convertError(err, domain.CodePaymentNotFound, "create refund")
	}
	result := a.refundResult(refund)
	if result.PaymentID == "" {
		result.PaymentID = paymentID
	}
	if reason != "" {
		result.Reason = reason
	}
	return result, nil
}

// GetRefund fetches a refund.
func (a *Adapter) GetRefund(ctx context.Context, refundID string) (res *domain.RefundResult, err error) {
	defer observe("get_refund", time.Now(), &err)

	params := &stripego.RefundParams{}
	params.Context = ctx

	refund, err := a.api.Refunds.Get(refundID, params)
	if err != nil {
		return nil, a.convertError(err, domain.CodeRefundNotFound, "get refund")
	}
	return a.refundResult(refund), nil
}

// CreateCustomer creates a Stripe customer.
func (a *Adapter) CreateCustomer(ctx context.Context, in gateway.CustomerInput) (res *domain.CustomerResult, err error) {
	defer observe("create_customer", time.Now(), &err)

	params := &stripego.CustomerParams{}
	params.Context = ctx
	if in.Email != "" {
		params.Email = stripego.String(in.Email)
	}
	if in.Name != "" {
		params.Name = stripego.String(in.Name)
	}
	if in.Phone != "" {
		params.Phone = stripego.String(in.Phone)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	c, err := a.api.Customers.New(params)
	if err != nil {
		return nil, a.convertError(err, domain.CodeAPIError, "create customer")
	}
	return a.customerResult(c), nil
}

// GetCustomer fetches a Stripe customer.
func (a *Adapter) GetCustomer(ctx context.Context, customerID string) (res *domain.CustomerResult, err error) {
	defer observe("get_customer", time.Now(), &err)

	params := &stripego.CustomerParams{}
	params.Context = ctx

	c, err := a.api.Customers.Get(customerID, params)
	if err != nil {
		return nil, a.convertError(err, domain.CodeCustomerNotFound, "get customer")
	}
	if c.Deleted {
		return nil, a.Err(domain.CodeCustomerNotFound, fmt.Sprintf("customer %s was deleted", customerID))
	}
	return a.customerResult(c), nil
}

// CreatePayout moves funds to a connected account with a Connect transfer.
func (a *Adapter) CreatePayout(ctx context.Context, amount decimal.Decimal, destinationAccount, currency string) (res *domain.PayoutResult, err error) {
	defer observe("create_payout", time.Now(), &err)

	if err := a.ValidateAmount(amount, currency); err != nil {
		return nil, err
	}

	params := &stripego.TransferParams{
		Amount:      stripego.Int64(domain.ToMinorUnits(amount, currency)),
		Currency:    stripego.String(strings.ToLower(currency)),
		Destination: stripego.String(destinationAccount),
	}
	params.Context = ctx

	tr, err := a.api.Transfers.New(params)
	if err != nil {
		return nil, a.convertError(err, domain.CodeAPIError, "create payout")
	}

	status := domain.PayoutStatusPaid
	if tr.Reversed {
		status = domain.PayoutStatusCanceled
	}
	dest := destinationAccount
	if tr.Destination != nil && tr.Destination.ID != "" {
		dest = tr.Destination.ID
	}
	return &domain.PayoutResult{
		ID:                 tr.ID,
		Gateway:            domain.GatewayStripe,
		Amount:             domain.FromMinorUnits(tr.Amount, string(tr.Currency)),
		Currency:           strings.ToUpper(string(tr.Currency)),
		Status:             status,
		DestinationAccount: dest,
		GatewayData: domain.GatewayData{
			"object":   "transfer",
			"reversed": tr.Reversed,
			"livemode": tr.Livemode,
		},
		CreatedAt: a.UnixTime(tr.Created),
	}, nil
}

// VerifyWebhook checks a Stripe-Signature header.
func (a *Adapter) VerifyWebhook(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return webhook.ValidatePayload(payload, signature, secret) == nil
}

// ParseWebhookEvent verifies and decodes a Stripe event.
func (a *Adapter) ParseWebhookEvent(payload []byte, signature, secret string) (*domain.WebhookEvent, error) {
	if !a.VerifyWebhook(payload, signature, secret) {
		return nil, a.Err(domain.CodeInvalidWebhookSignature, "stripe webhook signature verification failed")
	}

	var ev stripego.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, a.WrapErr(err, domain.CodeInvalidWebhookPayload, "decode stripe event")
	}

	out := &domain.WebhookEvent{
		ID:      ev.ID,
		Gateway: domain.GatewayStripe,
		Type:    ev.Type,
		GatewayData: domain.GatewayData{
			"livemode":    ev.Livemode,
			"api_version": ev.APIVersion,
		},
		CreatedAt: a.UnixTime(ev.Created),
	}
	if ev.Data != nil {
		out.Data = ev.Data.Object
		if id, ok := ev.Data.Object["id"].(string); ok {
			out.ObjectID = id
		}
	}
	return out, nil
}

// HealthCheck fetches the account balance.
func (a *Adapter) HealthCheck(ctx context.Context) gateway.HealthStatus {
	return gateway.SafeHealthCheck(ctx, a.Clock(), func(ctx context.Context) (map[string]any, error) {
		params := &stripego.BalanceParams{}
		params.Context = ctx
		bal, err := a.api.Balance.Get(params)
		if err != nil {
			return nil, a.convertError(err, domain.CodeAPIError, "fetch balance")
		}
		return map[string]any{
			"livemode":           bal.Livemode,
			"available_balances": len(bal.Available),
		}, nil
	})
}

// SupportedFeatures advertises Stripe capabilities.
func (a *Adapter) SupportedFeatures() map[string]bool {
	return map[string]bool{
		gateway.FeaturePaymentIntents: true,
		gateway.FeatureRefunds:        true,
		gateway.FeaturePartialRefunds: true,
		gateway.FeatureCustomers:      true,
		gateway.FeaturePayouts:        true,
		gateway.FeatureWebhooks:       true,
		gateway.FeatureApplePay:       true,
		gateway.FeatureGooglePay:      true,
		gateway.FeatureACH:            true,
		gateway.FeatureSavedCards:     true,
	}
}

func (a *Adapter) paymentResult(intent *stripego.PaymentIntent, metadata map[string]string) *domain.PaymentResult {
	res := &domain.PaymentResult{
		ID:          intent.ID,
		Gateway:     domain.GatewayStripe,
		Amount:      domain.FromMinorUnits(intent.Amount, string(intent.Currency)),
		Currency:    strings.ToUpper(string(intent.Currency)),
		Status:      paymentStatuses.Lookup(string(intent.Status)),
		Metadata:    mergeMetadata(metadata, intent.Metadata),
		GatewayData: intentData(intent),
		CreatedAt:   a.UnixTime(intent.Created),
	}
	if intent.PaymentMethod != nil {
		res.PaymentMethodID = intent.PaymentMethod.ID
	}
	if intent.LastPaymentError != nil {
		res.FailureReason = intent.LastPaymentError.Msg
	}
	return res
}

func (a *Adapter) refundResult(r *stripego.Refund) *domain.RefundResult {
	res := &domain.RefundResult{
		ID:       r.ID,
		Gateway:  domain.GatewayStripe,
		Amount:   domain.FromMinorUnits(r.Amount, string(r.Currency)),
		Currency: strings.ToUpper(string(r.Currency)),
		Status:   refundStatuses.Lookup(string(r.Status)),
		Reason:   string(r.Reason),
		Metadata: domain.CopyMetadata(r.Metadata),
		GatewayData: domain.GatewayData{
			"object": "refund",
		},
		CreatedAt: a.UnixTime(r.Created),
	}
	if r.PaymentIntent != nil {
		res.PaymentID = r.PaymentIntent.ID
	}
	if r.Charge != nil {
		res.GatewayData["charge_id"] = r.Charge.ID
	}
	return res
}

func (a *Adapter) customerResult(c *stripego.Customer) *domain.CustomerResult {
	return &domain.CustomerResult{
		ID:       c.ID,
		Gateway:  domain.GatewayStripe,
		Email:    c.Email,
		Name:     c.Name,
		Phone:    c.Phone,
		Metadata: domain.CopyMetadata(c.Metadata),
		GatewayData: domain.GatewayData{
			"livemode": c.Livemode,
		},
		CreatedAt: a.UnixTime(c.Created),
	}
}

// convertError turns a stripe-go error into a GatewayError. notFound is the
// code used when Stripe reports a missing resource.
func (a *Adapter) convertError(err error, notFound, op string) error {
	var se *stripego.Error
	if !errors.As(err, &se) {
		return a.WrapErr(err, domain.CodeAPIError, op)
	}

	code := domain.CodeAPIError
	if se.HTTPStatusCode == http.StatusNotFound || se.Code == stripego.ErrorCodeResourceMissing {
		code = notFound
	}
	gwErr := a.WrapErr(errors.New(se.Msg), code, op)
	gwErr.ProviderCode = string(se.Code)
	if se.DeclineCode != "" {
		gwErr.ProviderCode = string(se.DeclineCode)
	}
	return gwErr
}

func intentData(intent *stripego.PaymentIntent) domain.GatewayData {
	return domain.GatewayData{
		"object":          "payment_intent",
		"livemode":        intent.Livemode,
		"capture_method":  string(intent.CaptureMethod),
		"amount_received": intent.AmountReceived,
		"provider_status": string(intent.Status),
	}
}

func customerID(intent *stripego.PaymentIntent) string {
	if intent.Customer == nil {
		return ""
	}
	return intent.Customer.ID
}

func mergeMetadata(requested, returned map[string]string) map[string]string {
	out := domain.CopyMetadata(returned)
	for k, v := range requested {
		out[k] = v
	}
	return out
}

func observe(op string, start time.Time, err *error) {
	gateway.ObserveCall(domain.GatewayStripe, op, start, *err)
}
