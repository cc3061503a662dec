// Package fake provides an in-memory gateway.Adapter with failure injection
// and simulated latency. It backs the development environment, the operator
// simulation and tests.
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
)

// Operation names accepted by Fail and Calls.
const (
	OpCreatePaymentIntent = "create_payment_intent"
	OpConfirmPayment      = "confirm_payment"
	OpGetPayment          = "get_payment"
	OpCreateRefund        = "create_refund"
	OpGetRefund           = "get_refund"
	OpCreateCustomer      = "create_customer"
	OpGetCustomer         = "get_customer"
	OpCreatePayout        = "create_payout"
	OpHealthCheck         = "health_check"
)

// idPrefixes mimic the id shapes of the real providers.
var idPrefixes = map[domain.GatewayType]string{
	domain.GatewayStripe: "pi_",
	domain.GatewaySquare: "sq_",
	domain.GatewayTilled: "tld_",
}

// Adapter is a thread-safe in-memory payment gateway.
type Adapter struct {
	gateway.Base

	mu          sync.Mutex
	payments    map[string]*domain.PaymentResult
	refunds     map[string]*domain.RefundResult
	customers   map[string]*domain.CustomerResult
	failures    map[string]error
	failureRate float64
	latency     time.Duration
	unhealthy   error
	panicHealth bool
	calls       map[string]int
}

var _ gateway.Adapter = (*Adapter)(nil)

// New creates a fake adapter impersonating cfg.Type (stripe when empty).
func New(cfg gateway.Config, opts ...gateway.Option) *Adapter {
	if cfg.Type == "" {
		cfg.Type = domain.GatewayStripe
	}
	o := gateway.ResolveOptions(cfg, opts...)
	return &Adapter{
		Base:      gateway.NewBase(cfg, o),
		payments:  make(map[string]*domain.PaymentResult),
		refunds:   make(map[string]*domain.RefundResult),
		customers: make(map[string]*domain.CustomerResult),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

// Fail makes op return err until cleared. An empty op fails every operation.
// A nil err clears the injection for op.
func (a *Adapter) Fail(op string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err == nil {
		delete(a.failures, op)
		return
	}
	a.failures[op] = err
}

// ClearFailures removes every injected failure.
func (a *Adapter) ClearFailures() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = make(map[string]error)
	a.failureRate = 0
}

// SetFailureRate makes business operations fail randomly with probability rate.
func (a *Adapter) SetFailureRate(rate float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failureRate = rate
}

// SetLatency delays every operation by d on the adapter clock.
func (a *Adapter) SetLatency(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latency = d
}

// SetUnhealthy makes HealthCheck report err. A nil err restores health.
func (a *Adapter) SetUnhealthy(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unhealthy = err
}

// PanicOnHealthCheck makes the health probe panic.
func (a *Adapter) PanicOnHealthCheck(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.panicHealth = v
}

// Calls returns how many times op was invoked.
func (a *Adapter) Calls(op string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[op]
}

// CreatePaymentIntent stores a pending payment.
func (a *Adapter) CreatePaymentIntent(ctx context.Context, in gateway.CreateIntentInput) (pi *domain.PaymentIntent, err error) {
	defer a.observe(OpCreatePaymentIntent, time.Now(), &err)
	if err := a.begin(ctx, OpCreatePaymentIntent); err != nil {
		return nil, err
	}
	if err := a.ValidateAmount(in.Amount, in.Currency); err != nil {
		return nil, err
	}

	now := a.Now()
	id := a.newID()
	currency := domain.NormalizeCurrency(in.Currency)

	a.mu.Lock()
	a.payments[id] = &domain.PaymentResult{
		ID:          id,
		Gateway:     a.Type(),
		Amount:      in.Amount,
		Currency:    currency,
		Status:      domain.PaymentStatusPending,
		Metadata:    domain.CopyMetadata(in.Metadata),
		GatewayData: domain.GatewayData{"fake": true},
		CreatedAt:   now,
	}
	a.mu.Unlock()

	return &domain.PaymentIntent{
		ID:           id,
		Gateway:      a.Type(),
		Amount:       in.Amount,
		Currency:     currency,
		Status:       domain.PaymentStatusPending,
		ClientSecret: id + "_secret",
		CustomerID:   in.CustomerID,
		Metadata:     domain.CopyMetadata(in.Metadata),
		GatewayData:  domain.GatewayData{"fake": true},
		CreatedAt:    now,
	}, nil
}

// ConfirmPayment marks a stored payment succeeded.
func (a *Adapter) ConfirmPayment(ctx context.Context, paymentID, paymentMethod string, metadata map[string]string) (res *domain.PaymentResult, err error) {
	defer a.observe(OpConfirmPayment, time.Now(), &err)
	if err := a.begin(ctx, OpConfirmPayment); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.payments[paymentID]
	if !ok {
		return nil, a.Err(domain.CodePaymentNotFound, fmt.Sprintf("payment %s not found", paymentID))
	}
	p.Status = domain.PaymentStatusSucceeded
	p.PaymentMethodID = paymentMethod
	for k, v := range metadata {
		p.Metadata[k] = v
	}
	return copyPayment(p), nil
}

// GetPayment returns a stored payment.
func (a *Adapter) GetPayment(ctx context.Context, paymentID string) (res *domain.PaymentResult, err error) {
	defer a.observe(OpGetPayment, time.Now(), &err)
	if err := a.begin(ctx, OpGetPayment); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.payments[paymentID]
	if !ok {
		return nil, a.Err(domain.CodePaymentNotFound, fmt.Sprintf("payment %s not found", paymentID))
	}
	return copyPayment(p), nil
}

// CreateRefund refunds a stored payment. A nil amount refunds it in full.
func (a *Adapter) CreateRefund(ctx context.Context, paymentID string, amount *decimal.Decimal, reason string) (res *domain.RefundResult, err error) {
	defer a.observe(OpCreateRefund, time.Now(), &err)
	if err := a.begin(ctx, OpCreateRefund); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.payments[paymentID]
	if !ok {
		return nil, a.Err(domain.CodePaymentNotFound, fmt.Sprintf("payment %s not found", paymentID))
	}
	refundAmount := p.Amount
	if amount != nil {
		if amount.GreaterThan(p.Amount) {
			return nil, a.Err(domain.CodeInvalidAmount, "refund exceeds the payment amount")
		}
		refundAmount = *amount
	}

	r := &domain.RefundResult{
		ID:          "re_" + uuid.NewString(),
		Gateway:     a.Type(),
		PaymentID:   paymentID,
		Amount:      refundAmount,
		Currency:    p.Currency,
		Status:      domain.RefundStatusSucceeded,
		Reason:      reason,
		Metadata:    map[string]string{},
		GatewayData: domain.GatewayData{"fake": true},
		CreatedAt:   a.Now(),
	}
	a.refunds[r.ID] = r
	out := *r
	return &out, nil
}

// GetRefund returns a stored refund.
func (a *Adapter) GetRefund(ctx context.Context, refundID string) (res *domain.RefundResult, err error) {
	defer a.observe(OpGetRefund, time.Now(), &err)
	if err := a.begin(ctx, OpGetRefund); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.refunds[refundID]
	if !ok {
		return nil, a.Err(domain.CodeRefundNotFound, fmt.Sprintf("refund %s not found", refundID))
	}
	out := *r
	return &out, nil
}

// CreateCustomer stores a customer.
func (a *Adapter) CreateCustomer(ctx context.Context, in gateway.CustomerInput) (res *domain.CustomerResult, err error) {
	defer a.observe(OpCreateCustomer, time.Now(), &err)
	if err := a.begin(ctx, OpCreateCustomer); err != nil {
		return nil, err
	}

	c := &domain.CustomerResult{
		ID:          "cus_" + uuid.NewString(),
		Gateway:     a.Type(),
		Email:       in.Email,
		Name:        in.Name,
		Phone:       in.Phone,
		Metadata:    domain.CopyMetadata(in.Metadata),
		GatewayData: domain.GatewayData{"fake": true},
		CreatedAt:   a.Now(),
	}
	a.mu.Lock()
	a.customers[c.ID] = c
	a.mu.Unlock()

	out := *c
	return &out, nil
}

// GetCustomer returns a stored customer.
func (a *Adapter) GetCustomer(ctx context.Context, customerID string) (res *domain.CustomerResult, err error) {
	defer a.observe(OpGetCustomer, time.Now(), &err)
	if err := a.begin(ctx, OpGetCustomer); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.customers[customerID]
	if !ok {
		return nil, a.Err(domain.CodeCustomerNotFound, fmt.Sprintf("customer %s not found", customerID))
	}
	out := *c
	return &out, nil
}

// CreatePayout returns a pending payout.
func (a *Adapter) CreatePayout(ctx context.Context, amount decimal.Decimal, destinationAccount, currency string) (res *domain.PayoutResult, err error) {
	defer a.observe(OpCreatePayout, time.Now(), &err)
	if err := a.begin(ctx, OpCreatePayout); err != nil {
		return nil, err
	}
	if err := a.ValidateAmount(amount, currency); err != nil {
		return nil, err
	}
	return &domain.PayoutResult{
		ID:                 "po_" + uuid.NewString(),
		Gateway:            a.Type(),
		Amount:             amount,
		Currency:           domain.NormalizeCurrency(currency),
		Status:             domain.PayoutStatusPending,
		DestinationAccount: destinationAccount,
		GatewayData:        domain.GatewayData{"fake": true},
		CreatedAt:          a.Now(),
	}, nil
}

// VerifyWebhook checks a hex HMAC-SHA256 signature.
func (a *Adapter) VerifyWebhook(payload []byte, signature, secret string) bool {
	return gateway.VerifyHMACSHA256(payload, signature, secret)
}

// ParseWebhookEvent verifies and decodes {"id","type","data"} payloads.
func (a *Adapter) ParseWebhookEvent(payload []byte, signature, secret string) (*domain.WebhookEvent, error) {
	if !a.VerifyWebhook(payload, signature, secret) {
		return nil, a.Err(domain.CodeInvalidWebhookSignature, "webhook signature verification failed")
	}
	var body struct {
		ID   string         `json:"id"`
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, a.WrapErr(err, domain.CodeInvalidWebhookPayload, "decode webhook payload")
	}
	ev := &domain.WebhookEvent{
		ID:          body.ID,
		Gateway:     a.Type(),
		Type:        body.Type,
		Data:        body.Data,
		GatewayData: domain.GatewayData{"fake": true},
		CreatedAt:   a.Now(),
	}
	if id, ok := body.Data["id"].(string); ok {
		ev.ObjectID = id
	}
	return ev, nil
}

// HealthCheck reports the configured health state.
func (a *Adapter) HealthCheck(ctx context.Context) gateway.HealthStatus {
	return gateway.SafeHealthCheck(ctx, a.Clock(), func(ctx context.Context) (map[string]any, error) {
		a.mu.Lock()
		a.calls[OpHealthCheck]++
		unhealthy, panicHealth := a.unhealthy, a.panicHealth
		a.mu.Unlock()

		if panicHealth {
			panic("fake gateway health probe panicked")
		}
		if unhealthy != nil {
			return nil, unhealthy
		}
		return map[string]any{"fake": true}, nil
	})
}

// SupportedFeatures advertises every feature.
func (a *Adapter) SupportedFeatures() map[string]bool {
	return map[string]bool{
		gateway.FeaturePaymentIntents: true,
		gateway.FeatureRefunds:        true,
		gateway.FeaturePartialRefunds: true,
		gateway.FeatureCustomers:      true,
		gateway.FeaturePayouts:        true,
		gateway.FeatureWebhooks:       true,
		gateway.FeatureApplePay:       a.Type() != domain.GatewayTilled,
		gateway.FeatureGooglePay:      true,
		gateway.FeatureACH:            true,
		gateway.FeatureSavedCards:     true,
	}
}

// begin counts the call, applies latency and returns any injected failure.
func (a *Adapter) begin(ctx context.Context, op string) error {
	a.mu.Lock()
	a.calls[op]++
	latency := a.latency
	injected, ok := a.failures[op]
	if !ok {
		injected = a.failures[""]
	}
	rate := a.failureRate
	a.mu.Unlock()

	if latency > 0 {
		select {
		case <-a.Clock().After(latency):
		case <-ctx.Done():
			return a.WrapErr(ctx.Err(), domain.CodeAPIError, op+" canceled")
		}
	}
	if injected != nil {
		return domain.AsGatewayError(injected, a.Type())
	}
	if rate > 0 && rand.Float64() < rate {
		return a.Err(domain.CodeAPIError, "simulated provider failure")
	}
	return nil
}

func (a *Adapter) newID() string {
	prefix, ok := idPrefixes[a.Type()]
	if !ok {
		prefix = strings.ToLower(a.Type().String()) + "_"
	}
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (a *Adapter) observe(op string, start time.Time, err *error) {
	gateway.ObserveCall(a.Type(), op, start, *err)
}

func copyPayment(p *domain.PaymentResult) *domain.PaymentResult {
	out := *p
	out.Metadata = domain.CopyMetadata(p.Metadata)
	return &out
}
