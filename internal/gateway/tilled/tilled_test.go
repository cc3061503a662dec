package tilled

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/pkg/httpclient"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	a, err := New(gateway.Config{
		Credentials: map[string]string{
			gateway.KeySecretKey: "sk_tilled",
			gateway.KeyAccountID: "acct_123",
		},
		TestMode: true,
		BaseURL:  server.URL,
	}, gateway.WithDoer(httpclient.New(httpclient.Config{Timeout: 5 * time.Second, MaxConnsPerHost: 10})))
	require.NoError(t, err)
	return a
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ============================================================================
// Construction
// ============================================================================

func TestNew_SelectsSandboxInTestMode(t *testing.T) {
	a, err := New(gateway.Config{
		Credentials: map[string]string{gateway.KeySecretKey: "sk"},
		TestMode:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, sandboxURL, a.baseURL)
	assert.Equal(t, domain.GatewayTilled, a.Type())

	a, err = New(gateway.Config{Credentials: map[string]string{gateway.KeySecretKey: "sk"}})
	require.NoError(t, err)
	assert.Equal(t, productionURL, a.baseURL)
}

func TestNew_RequiresSecretKey(t *testing.T) {
	_, err := New(gateway.Config{})
	assert.Equal(t, domain.CodeGatewayNotConfigured, domain.ErrorCode(err))
}

// ============================================================================
// Payments
// ============================================================================

func TestCreatePaymentIntent_SendsMinorUnitsAndHeaders(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment-intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_tilled", r.Header.Get("Authorization"))
		assert.Equal(t, "acct_123", r.Header.Get("tilled-account"))

		body := decodeBody(t, r)
		assert.Equal(t, float64(2550), body["amount"])
		assert.Equal(t, "usd", body["currency"])
		assert.Equal(t, []any{"card"}, body["payment_method_types"])
		assert.Equal(t, "cus_9", body["customer_id"])

		writeJSON(w, http.StatusCreated, map[string]any{
			"id":            "tld_pi_1",
			"status":        "requires_payment_method",
			"amount":        2550,
			"currency":      "usd",
			"client_secret": "tld_pi_1_secret",
			"customer_id":   "cus_9",
			"created_at":    "2026-01-02T03:04:05Z",
		})
	})

	pi, err := a.CreatePaymentIntent(context.Background(), gateway.CreateIntentInput{
		Amount:     decimal.RequireFromString("25.50"),
		Currency:   "USD",
		CustomerID: "cus_9",
		Metadata:   map[string]string{"booking_id": "b-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "tld_pi_1", pi.ID)
	assert.Equal(t, domain.GatewayTilled, pi.Gateway)
	assert.True(t, decimal.RequireFromString("25.50").Equal(pi.Amount))
	assert.Equal(t, "USD", pi.Currency)
	assert.Equal(t, domain.PaymentStatusPending, pi.Status)
	assert.Equal(t, "tld_pi_1_secret", pi.ClientSecret)
	assert.Equal(t, "b-1", pi.Metadata["booking_id"])
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), pi.CreatedAt)
}

func TestCreatePaymentIntent_ZeroDecimalCurrency(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, float64(1500), body["amount"])
		writeJSON(w, http.StatusOK, map[string]any{"id": "tld_pi_2", "status": "requires_confirmation", "amount": 1500, "currency": "jpy"})
	})

	pi, err := a.CreatePaymentIntent(context.Background(), gateway.CreateIntentInput{
		Amount:   decimal.NewFromInt(1500),
		Currency: "JPY",
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1500).Equal(pi.Amount))
}

func TestCreatePaymentIntent_InvalidAmountSkipsProvider(t *testing.T) {
	called := false
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := a.CreatePaymentIntent(context.Background(), gateway.CreateIntentInput{
		Amount:   decimal.NewFromInt(-1),
		Currency: "USD",
	})
	assert.Equal(t, domain.CodeInvalidAmount, domain.ErrorCode(err))
	assert.False(t, called)
}

func TestCreatePaymentIntent_ErrorEnvelope(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message":    "Amount must be at least 50",
			"code":       "amount_too_small",
			"statusCode": 400,
		})
	})

	_, err := a.CreatePaymentIntent(context.Background(), gateway.CreateIntentInput{
		Amount:   decimal.RequireFromString("1.00"),
		Currency: "USD",
	})
	require.Error(t, err)

	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, domain.CodeAPIError, gwErr.Code)
	assert.Equal(t, "amount_too_small", gwErr.ProviderCode)
	assert.Equal(t, "Amount must be at least 50", gwErr.Message)
	assert.Equal(t, domain.GatewayTilled, gwErr.Gateway)
}

func TestConfirmPayment_PostsPaymentMethod(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment-intents/tld_pi_1/confirm", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "pm_7", body["payment_method_id"])
		writeJSON(w, http.StatusOK, map[string]any{
			"id":                "tld_pi_1",
			"status":            "succeeded",
			"amount":            1000,
			"currency":          "usd",
			"payment_method_id": "pm_7",
		})
	})

	res, err := a.ConfirmPayment(context.Background(), "tld_pi_1", "pm_7", map[string]string{"note": "x"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSucceeded, res.Status)
	assert.Equal(t, "pm_7", res.PaymentMethodID)
	assert.Equal(t, "x", res.Metadata["note"])
}

func TestGetPayment_NotFound(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Payment intent not found", "code": "not_found"})
	})

	_, err := a.GetPayment(context.Background(), "tld_missing")
	assert.Equal(t, domain.CodePaymentNotFound, domain.ErrorCode(err))
}

func TestCreatePaymentIntent_NotFoundIsAPIError(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Payment method not found", "code": "not_found"})
	})

	_, err := a.CreatePaymentIntent(context.Background(), gateway.CreateIntentInput{
		Amount:          decimal.RequireFromString("10.00"),
		Currency:        "USD",
		PaymentMethodID: "pm_gone",
	})
	assert.Equal(t, domain.CodeAPIError, domain.ErrorCode(err))
}

func TestGetPayment_FailureReason(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":       "tld_pi_3",
			"status":   "failed",
			"amount":   500,
			"currency": "usd",
			"last_payment_error": map[string]any{
				"code":    "card_declined",
				"message": "Your card was declined.",
			},
		})
	})

	res, err := a.GetPayment(context.Background(), "tld_pi_3")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, res.Status)
	assert.Equal(t, "Your card was declined.", res.FailureReason)
}

func TestPaymentStatusMapping(t *testing.T) {
	tests := []struct {
		provider string
		want     domain.PaymentStatus
	}{
		{"requires_payment_method", domain.PaymentStatusPending},
		{"requires_confirmation", domain.PaymentStatusPending},
		{"requires_action", domain.PaymentStatusRequiresAction},
		{"processing", domain.PaymentStatusProcessing},
		{"requires_capture", domain.PaymentStatusProcessing},
		{"succeeded", domain.PaymentStatusSucceeded},
		{"canceled", domain.PaymentStatusCanceled},
		{"something_new", domain.PaymentStatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			assert.Equal(t, tt.want, paymentStatuses.Lookup(tt.provider))
		})
	}
}

// ============================================================================
// Refunds
// ============================================================================

func TestCreateRefund_FullAmountLooksUpPayment(t *testing.T) {
	var refundBody map[string]any
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/payment-intents/tld_pi_1":
			writeJSON(w, http.StatusOK, map[string]any{"id": "tld_pi_1", "status": "succeeded", "amount": 4200, "currency": "usd"})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/refunds":
			refundBody = decodeBody(t, r)
			writeJSON(w, http.StatusOK, map[string]any{
				"id":                "rf_1",
				"status":            "pending",
				"amount":            4200,
				"currency":          "usd",
				"payment_intent_id": "tld_pi_1",
				"reason":            "requested_by_customer",
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	res, err := a.CreateRefund(context.Background(), "tld_pi_1", nil, "requested_by_customer")
	require.NoError(t, err)
	assert.Equal(t, float64(4200), refundBody["amount"])
	assert.Equal(t, "tld_pi_1", refundBody["payment_intent_id"])
	assert.Equal(t, "rf_1", res.ID)
	assert.Equal(t, "tld_pi_1", res.PaymentID)
	assert.Equal(t, domain.RefundStatusPending, res.Status)
	assert.True(t, decimal.RequireFromString("42").Equal(res.Amount))
}

func TestCreateRefund_Partial(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, map[string]any{"id": "tld_pi_1", "status": "succeeded", "amount": 4200, "currency": "usd"})
			return
		}
		body := decodeBody(t, r)
		assert.Equal(t, float64(1000), body["amount"])
		writeJSON(w, http.StatusOK, map[string]any{"id": "rf_2", "status": "succeeded", "amount": 1000, "currency": "usd", "payment_intent_id": "tld_pi_1"})
	})

	amount := decimal.NewFromInt(10)
	res, err := a.CreateRefund(context.Background(), "tld_pi_1", &amount, "")
	require.NoError(t, err)
	assert.Equal(t, domain.RefundStatusSucceeded, res.Status)
}

func TestGetRefund_NotFound(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
	})

	_, err := a.GetRefund(context.Background(), "rf_missing")
	assert.Equal(t, domain.CodeRefundNotFound, domain.ErrorCode(err))
}

// ============================================================================
// Customers and payouts
// ============================================================================

func TestCreateCustomer_SplitsName(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "Ada", body["first_name"])
		assert.Equal(t, "Lovelace", body["last_name"])
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":         "cus_1",
			"email":      "ada@example.com",
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"metadata":   map[string]string{"user_id": "u1"},
		})
	})

	c, err := a.CreateCustomer(context.Background(), gateway.CustomerInput{
		Email:    "ada@example.com",
		Name:     "Ada Lovelace",
		Metadata: map[string]string{"user_id": "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_1", c.ID)
	assert.Equal(t, "Ada Lovelace", c.Name)
	assert.Equal(t, "u1", c.Metadata["user_id"])
}

func TestGetCustomer_NotFound(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := a.GetCustomer(context.Background(), "cus_missing")
	assert.Equal(t, domain.CodeCustomerNotFound, domain.ErrorCode(err))
}

func TestCreatePayout(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payouts", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "acct_dest", body["destination_account_id"])
		assert.Equal(t, float64(12345), body["amount"])
		writeJSON(w, http.StatusOK, map[string]any{
			"id":                     "po_1",
			"status":                 "in_transit",
			"amount":                 12345,
			"currency":               "usd",
			"destination_account_id": "acct_dest",
			"arrival_date":           "2026-02-01T00:00:00Z",
		})
	})

	p, err := a.CreatePayout(context.Background(), decimal.RequireFromString("123.45"), "acct_dest", "USD")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusInTransit, p.Status)
	assert.Equal(t, "acct_dest", p.DestinationAccount)
	require.NotNil(t, p.ArrivalDate)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *p.ArrivalDate)
}

// ============================================================================
// Webhooks
// ============================================================================

func TestParseWebhookEvent_Valid(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","account_id":"acct_123","livemode":false,"data":{"id":"tld_pi_1","status":"succeeded"}}`)
	ts := "1700000000"
	sig := fmt.Sprintf("t=%s,v1=%s", ts, gateway.SignHMACSHA256Hex(append([]byte(ts+"."), payload...), "whsec"))

	ev, err := a.ParseWebhookEvent(payload, sig, "whsec")
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "payment_intent.succeeded", ev.Type)
	assert.Equal(t, "tld_pi_1", ev.ObjectID)
	assert.Equal(t, domain.GatewayTilled, ev.Gateway)
	assert.Equal(t, "acct_123", ev.GatewayData["account_id"])
}

func TestParseWebhookEvent_Tampered(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{}}`)
	sig := gateway.SignHMACSHA256Hex(payload, "whsec")

	assert.True(t, a.VerifyWebhook(payload, sig, "whsec"))

	tampered := []byte(`{"id":"evt_1","type":"payment_intent.canceled","data":{}}`)
	_, err := a.ParseWebhookEvent(tampered, sig, "whsec")
	assert.Equal(t, domain.CodeInvalidWebhookSignature, domain.ErrorCode(err))

	_, err = a.ParseWebhookEvent(payload, sig, "")
	assert.Equal(t, domain.CodeInvalidWebhookSignature, domain.ErrorCode(err))
}

func TestParseWebhookEvent_BadJSON(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	payload := []byte(`not-json`)

	_, err := a.ParseWebhookEvent(payload, gateway.SignHMACSHA256Hex(payload, "whsec"), "whsec")
	assert.Equal(t, domain.CodeInvalidWebhookPayload, domain.ErrorCode(err))
}

// ============================================================================
// Health and features
// ============================================================================

func TestHealthCheck_Healthy(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"id": "acct_123", "name": "Shop", "type": "merchant"})
	})

	h := a.HealthCheck(context.Background())
	assert.True(t, h.Healthy)
	assert.Equal(t, "acct_123", h.Details["account_id"])
	assert.Empty(t, h.Error)
}

func TestHealthCheck_Unhealthy(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "invalid api key"})
	})

	h := a.HealthCheck(context.Background())
	assert.False(t, h.Healthy)
	assert.Contains(t, h.Error, "invalid api key")
}

func TestSupportedFeatures_NoApplePay(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	f := a.SupportedFeatures()
	assert.False(t, f[gateway.FeatureApplePay])
	assert.True(t, f[gateway.FeaturePayouts])
	assert.True(t, f[gateway.FeatureWebhooks])
}
