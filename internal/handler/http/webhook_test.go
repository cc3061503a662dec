package http

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
)

func signedWebhook(gw domain.GatewayType, payload string) ([]byte, map[string]string) {
	body := []byte(payload)
	sig := gateway.SignHMACSHA256Hex(body, "whsec_"+gw.String())
	return body, map[string]string{signatureHeaders[gw]: sig}
}

const succeededEvent = `{"id":"evt_1","type":"payment_intent.succeeded","data":{"id":"pi_1"}}`

func TestWebhook_Accepted(t *testing.T) {
	f := newFixture(t, RouterConfig{})
	body, headers := signedWebhook(domain.GatewayTilled, succeededEvent)

	rec := f.do(t, http.MethodPost, "/webhooks/tilled", body, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp WebhookResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "evt_1", resp.EventID)
	assert.Equal(t, "payment_intent.succeeded", resp.EventType)
	assert.Equal(t, domain.GatewayTilled, resp.Gateway)
	assert.False(t, resp.Duplicate)
}

func TestWebhook_DuplicateAcknowledged(t *testing.T) {
	f := newFixture(t, RouterConfig{})
	body, headers := signedWebhook(domain.GatewayStripe, succeededEvent)

	first := f.do(t, http.MethodPost, "/webhooks/stripe", body, headers)
	require.Equal(t, http.StatusOK, first.Code)

	second := f.do(t, http.MethodPost, "/webhooks/stripe", body, headers)
	require.Equal(t, http.StatusOK, second.Code)

	var resp WebhookResponse
	decodeData(t, second, &resp)
	assert.True(t, resp.Duplicate)
}

func TestWebhook_SameEventIDOnOtherGatewayIsNotDuplicate(t *testing.T) {
	f := newFixture(t, RouterConfig{})

	body, headers := signedWebhook(domain.GatewayStripe, succeededEvent)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/webhooks/stripe", body, headers).Code)

	body, headers = signedWebhook(domain.GatewayTilled, succeededEvent)
	rec := f.do(t, http.MethodPost, "/webhooks/tilled", body, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp WebhookResponse
	decodeData(t, rec, &resp)
	assert.False(t, resp.Duplicate)
}

func TestWebhook_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    []byte
		headers map[string]string
		status  int
		code    string
	}{
		{
			name:    "bad signature",
			path:    "/webhooks/tilled",
			body:    []byte(succeededEvent),
			headers: map[string]string{"Tilled-Signature": "deadbeef"},
			status:  http.StatusUnauthorized,
			code:    domain.CodeInvalidWebhookSignature,
		},
		{
			name:   "missing signature header",
			path:   "/webhooks/tilled",
			body:   []byte(succeededEvent),
			status: http.StatusUnauthorized,
			code:   domain.CodeInvalidWebhookSignature,
		},
		{
			name:    "signature in wrong header",
			path:    "/webhooks/stripe",
			body:    []byte(succeededEvent),
			headers: map[string]string{"Tilled-Signature": gateway.SignHMACSHA256Hex([]byte(succeededEvent), "whsec_stripe")},
			status:  http.StatusUnauthorized,
			code:    domain.CodeInvalidWebhookSignature,
		},
		{
			name:    "unknown gateway",
			path:    "/webhooks/paypal",
			body:    []byte(succeededEvent),
			headers: map[string]string{"Stripe-Signature": "x"},
			status:  http.StatusNotFound,
			code:    "NOT_FOUND",
		},
		{
			name:    "gateway not configured",
			path:    "/webhooks/square",
			body:    []byte(succeededEvent),
			headers: map[string]string{"X-Square-Signature": "x"},
			status:  http.StatusNotFound,
			code:    domain.CodeGatewayNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, RouterConfig{})
			rec := f.do(t, http.MethodPost, tt.path, tt.body, tt.headers)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestWebhook_MalformedPayload(t *testing.T) {
	f := newFixture(t, RouterConfig{})
	body, headers := signedWebhook(domain.GatewayTilled, `{"id":`)

	rec := f.do(t, http.MethodPost, "/webhooks/tilled", body, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.CodeInvalidWebhookPayload, errorCode(t, rec))
}

func TestWebhook_PayloadTooLarge(t *testing.T) {
	f := newFixture(t, RouterConfig{})
	body := bytes.Repeat([]byte("a"), maxWebhookBytes+1)

	rec := f.do(t, http.MethodPost, "/webhooks/tilled", body, map[string]string{"Tilled-Signature": "x"})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", errorCode(t, rec))
}

func TestWebhook_RateLimitedPerGateway(t *testing.T) {
	f := newFixture(t, RouterConfig{WebhookRateLimit: 0.001, WebhookRateBurst: 1})

	body, headers := signedWebhook(domain.GatewayStripe, succeededEvent)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/webhooks/stripe", body, headers).Code)

	limited := f.do(t, http.MethodPost, "/webhooks/stripe", body, headers)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	body, headers = signedWebhook(domain.GatewayTilled, succeededEvent)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/webhooks/tilled", body, headers).Code)
}
