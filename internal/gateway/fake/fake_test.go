package fake

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
)

func newTilled() *Adapter {
	return New(gateway.Config{Type: domain.GatewayTilled})
}

func TestCreateConfirmRefund_Lifecycle(t *testing.T) {
	ctx := context.Background()
	a := newTilled()

	pi, err := a.CreatePaymentIntent(ctx, gateway.CreateIntentInput{
		Amount:   decimal.RequireFromString("100.00"),
		Currency: "usd",
		Metadata: map[string]string{"booking_id": "b1"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pi.ID, "tld_"))
	assert.Equal(t, domain.GatewayTilled, pi.Gateway)
	assert.Equal(t, "USD", pi.Currency)
	assert.Equal(t, domain.PaymentStatusPending, pi.Status)

	res, err := a.ConfirmPayment(ctx, pi.ID, "pm_1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSucceeded, res.Status)
	assert.Equal(t, "b1", res.Metadata["booking_id"])

	partial := decimal.NewFromInt(40)
	r, err := a.CreateRefund(ctx, pi.ID, &partial, "duplicate")
	require.NoError(t, err)
	assert.True(t, partial.Equal(r.Amount))

	full, err := a.CreateRefund(ctx, pi.ID, nil, "")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(full.Amount))

	got, err := a.GetRefund(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	assert.Equal(t, 1, a.Calls(OpCreatePaymentIntent))
	assert.Equal(t, 2, a.Calls(OpCreateRefund))
}

func TestGetPayment_NotFound(t *testing.T) {
	_, err := newTilled().GetPayment(context.Background(), "missing")
	assert.Equal(t, domain.CodePaymentNotFound, domain.ErrorCode(err))
}

func TestCreateRefund_ExceedsAmount(t *testing.T) {
	ctx := context.Background()
	a := newTilled()
	pi, err := a.CreatePaymentIntent(ctx, gateway.CreateIntentInput{Amount: decimal.NewFromInt(10), Currency: "USD"})
	require.NoError(t, err)

	tooMuch := decimal.NewFromInt(11)
	_, err = a.CreateRefund(ctx, pi.ID, &tooMuch, "")
	assert.Equal(t, domain.CodeInvalidAmount, domain.ErrorCode(err))
}

func TestFail_InjectsPerOperation(t *testing.T) {
	ctx := context.Background()
	a := newTilled()
	a.Fail(OpCreatePaymentIntent, errors.New("boom"))

	_, err := a.CreatePaymentIntent(ctx, gateway.CreateIntentInput{Amount: decimal.NewFromInt(10), Currency: "USD"})
	require.Error(t, err)
	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, domain.CodeUnexpectedError, gwErr.Code)
	assert.Equal(t, domain.GatewayTilled, gwErr.Gateway)

	_, err = a.CreateCustomer(ctx, gateway.CustomerInput{Email: "a@b.c"})
	assert.NoError(t, err)

	a.Fail(OpCreatePaymentIntent, nil)
	_, err = a.CreatePaymentIntent(ctx, gateway.CreateIntentInput{Amount: decimal.NewFromInt(10), Currency: "USD"})
	assert.NoError(t, err)
}

func TestFail_EmptyOpFailsEverything(t *testing.T) {
	ctx := context.Background()
	a := newTilled()
	a.Fail("", domain.NewGatewayError(domain.CodeAPIError, "down", domain.GatewayTilled))

	_, err := a.CreateCustomer(ctx, gateway.CustomerInput{})
	assert.Equal(t, domain.CodeAPIError, domain.ErrorCode(err))
	_, err = a.GetPayment(ctx, "x")
	assert.Equal(t, domain.CodeAPIError, domain.ErrorCode(err))

	a.ClearFailures()
	_, err = a.CreateCustomer(ctx, gateway.CustomerInput{})
	assert.NoError(t, err)
}

func TestSetFailureRate_Always(t *testing.T) {
	a := newTilled()
	a.SetFailureRate(1)
	_, err := a.CreatePaymentIntent(context.Background(), gateway.CreateIntentInput{Amount: decimal.NewFromInt(10), Currency: "USD"})
	assert.Equal(t, domain.CodeAPIError, domain.ErrorCode(err))
}

func TestLatency_UsesClock(t *testing.T) {
	clock := clockz.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	a := New(gateway.Config{Type: domain.GatewayStripe}, gateway.WithClock(clock))
	a.SetLatency(time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := a.CreateCustomer(context.Background(), gateway.CustomerInput{})
		done <- err
	}()

	require.Eventually(t, func() bool {
		clock.Advance(time.Second)
		select {
		case err := <-done:
			return err == nil
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestLatency_ContextCanceled(t *testing.T) {
	a := newTilled()
	a.SetLatency(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.CreateCustomer(ctx, gateway.CustomerInput{})
	assert.Equal(t, domain.CodeAPIError, domain.ErrorCode(err))
}

func TestHealthCheck(t *testing.T) {
	a := newTilled()
	assert.True(t, a.HealthCheck(context.Background()).Healthy)

	a.SetUnhealthy(errors.New("maintenance"))
	h := a.HealthCheck(context.Background())
	assert.False(t, h.Healthy)
	assert.Equal(t, "maintenance", h.Error)

	a.SetUnhealthy(nil)
	a.PanicOnHealthCheck(true)
	h = a.HealthCheck(context.Background())
	assert.False(t, h.Healthy)
	assert.Contains(t, h.Error, "panicked")
	assert.Equal(t, 3, a.Calls(OpHealthCheck))
}

func TestParseWebhookEvent(t *testing.T) {
	a := newTilled()
	payload := []byte(`{"id":"evt_1","type":"payment.succeeded","data":{"id":"tld_1"}}`)
	sig := gateway.SignHMACSHA256Hex(payload, "secret")

	ev, err := a.ParseWebhookEvent(payload, sig, "secret")
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "tld_1", ev.ObjectID)

	payload[5] ^= 0x01
	_, err = a.ParseWebhookEvent(payload, sig, "secret")
	assert.Equal(t, domain.CodeInvalidWebhookSignature, domain.ErrorCode(err))
}

func TestSupportedFeatures_TilledHasNoApplePay(t *testing.T) {
	assert.False(t, newTilled().SupportedFeatures()[gateway.FeatureApplePay])
	assert.True(t, New(gateway.Config{Type: domain.GatewayStripe}).SupportedFeatures()[gateway.FeatureApplePay])
}
