package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"

	"github.com/c50bossio/6fb-booking-sub001/internal/config"
	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway/fake"
	"github.com/c50bossio/6fb-booking-sub001/internal/manager"
	"github.com/c50bossio/6fb-booking-sub001/internal/repository/memory"
	"github.com/c50bossio/6fb-booking-sub001/internal/selector"
	"github.com/c50bossio/6fb-booking-sub001/pkg/health"
	"github.com/c50bossio/6fb-booking-sub001/pkg/middleware"
	"github.com/c50bossio/6fb-booking-sub001/pkg/pagination"
)

const testJWTSecret = "router-test-secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var primaryCredential = map[domain.GatewayType]string{
	domain.GatewayStripe: gateway.KeyAPIKey,
	domain.GatewaySquare: gateway.KeyAccessToken,
	domain.GatewayTilled: gateway.KeySecretKey,
}

func gwConfig(t domain.GatewayType, priority int, fixed, pct string) gateway.Config {
	return gateway.Config{
		Type:           t,
		Enabled:        true,
		TestMode:       true,
		Priority:       priority,
		Credentials:    map[string]string{primaryCredential[t]: "test_" + t.String()},
		Extra:          map[string]string{gateway.KeyAccountID: "acct_1"},
		WebhookSecret:  "whsec_" + t.String(),
		TransactionFee: decimal.RequireFromString(fixed),
		PercentageFee:  decimal.RequireFromString(pct),
	}
}

// stripeAndTilled leaves Square unconfigured.
func stripeAndTilled() config.ManagerConfig {
	return config.ManagerConfig{
		Environment: config.Development,
		Gateways: map[domain.GatewayType]gateway.Config{
			domain.GatewayStripe: gwConfig(domain.GatewayStripe, 2, "0.30", "2.9"),
			domain.GatewayTilled: gwConfig(domain.GatewayTilled, 1, "0.15", "2.5"),
		},
		DefaultStrategy:     selector.NameLowestCost,
		FailoverEnabled:     true,
		HealthCheckInterval: time.Minute,
		FailoverOrder:       []domain.GatewayType{domain.GatewayStripe, domain.GatewayTilled, domain.GatewaySquare},
	}
}

type fixture struct {
	mgr      *manager.Manager
	adapters map[domain.GatewayType]*fake.Adapter
	handler  http.Handler
}

func newFixture(t *testing.T, cfg RouterConfig) *fixture {
	t.Helper()
	clock := clockz.NewFakeClockAt(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	mc := stripeAndTilled()

	f := &fixture{adapters: make(map[domain.GatewayType]*fake.Adapter)}
	var adapters []gateway.Adapter
	for gt, gc := range mc.Gateways {
		a := fake.New(gc, gateway.WithClock(clock), gateway.WithLogger(testLogger()))
		f.adapters[gt] = a
		adapters = append(adapters, a)
	}

	mgr, err := manager.New(config.NewStore(mc), adapters,
		manager.WithLogger(testLogger()),
		manager.WithClock(clock),
		manager.WithWebhookDedup(memory.NewIdempotencyStore(time.Hour, clock)),
	)
	require.NoError(t, err)
	f.mgr = mgr

	hh := health.NewHandler()
	hh.Register("gateways", func(_ context.Context) error { return nil })
	f.handler = NewRouter(mgr, hh, cfg, testLogger())
	return f
}

func adminConfig() RouterConfig {
	return RouterConfig{ValidateToken: middleware.HMACValidator(testJWTSecret)}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env), "body: %s", rec.Body.String())
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.Nil(t, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error, "body: %s", rec.Body.String())
	return env.Error.Code
}

// ============================================================================
// Probes
// ============================================================================

func TestRouter_HealthProbes(t *testing.T) {
	f := newFixture(t, RouterConfig{})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health/live", nil, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health/ready", nil, nil).Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	f := newFixture(t, RouterConfig{})
	f.do(t, http.MethodGet, "/api/v1/gateways", nil, nil)

	rec := f.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRouter_CorrelationIDEchoed(t *testing.T) {
	f := newFixture(t, RouterConfig{})
	rec := f.do(t, http.MethodGet, "/api/v1/gateways", nil, map[string]string{
		middleware.CorrelationIDHeader: "corr-42",
	})
	assert.Equal(t, "corr-42", rec.Header().Get(middleware.CorrelationIDHeader))
}

// ============================================================================
// Read-only gateway endpoints
// ============================================================================

func TestList_ReturnsConfiguredGateways(t *testing.T) {
	f := newFixture(t, RouterConfig{})

	rec := f.do(t, http.MethodGet, "/api/v1/gateways", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var statuses []manager.GatewayStatus
	decodeData(t, rec, &statuses)
	require.Len(t, statuses, 2)

	seen := map[domain.GatewayType]manager.GatewayStatus{}
	for _, st := range statuses {
		seen[st.Gateway] = st
	}
	assert.Equal(t, 1, seen[domain.GatewayTilled].Priority)
	assert.True(t, seen[domain.GatewayStripe].Enabled)
	assert.NotEmpty(t, seen[domain.GatewayStripe].Features)
}

func TestHealth_AllHealthy(t *testing.T) {
	f := newFixture(t, RouterConfig{})

	rec := f.do(t, http.MethodGet, "/api/v1/gateways/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 2, resp.Healthy)
	assert.True(t, resp.Gateways[domain.GatewayTilled].Healthy)
}

func TestHealth_PartialOutageStillOK(t *testing.T) {
	f := newFixture(t, RouterConfig{})
	f.adapters[domain.GatewayTilled].SetUnhealthy(errors.New("upstream timeout"))

	rec := f.do(t, http.MethodGet, "/api/v1/gateways/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, 1, resp.Healthy)
	assert.False(t, resp.Gateways[domain.GatewayTilled].Healthy)
	assert.Equal(t, "upstream timeout", resp.Gateways[domain.GatewayTilled].Error)
}

func TestHealth_AllDown(t *testing.T) {
	f := newFixture(t, RouterConfig{})
	for _, a := range f.adapters {
		a.SetUnhealthy(errors.New("down"))
	}

	rec := f.do(t, http.MethodGet, "/api/v1/gateways/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSelections_NewestFirstAndPaged(t *testing.T) {
	f := newFixture(t, RouterConfig{})
	for _, strategy := range []string{selector.NameLowestCost, selector.NameFailover, selector.NameRoundRobin} {
		_, err := f.mgr.CreatePaymentIntent(context.Background(), manager.IntentRequest{
			Amount:   decimal.RequireFromString("100.00"),
			Currency: "USD",
			Strategy: strategy,
		})
		require.NoError(t, err)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/gateways/selections?per_page=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page pagination.Result[selector.Selection]
	decodeData(t, rec, &page)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasNext)
	require.Len(t, page.Items, 2)
	assert.Equal(t, selector.NameRoundRobin, page.Items[0].Strategy)

	rec = f.do(t, http.MethodGet, "/api/v1/gateways/selections?page=2&per_page=2", nil, nil)
	decodeData(t, rec, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, selector.NameLowestCost, page.Items[0].Strategy)
}

func TestValidateConfig_ReportsEnvironment(t *testing.T) {
	f := newFixture(t, RouterConfig{})

	rec := f.do(t, http.MethodGet, "/api/v1/gateways/config/validation", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ValidationResponse
	decodeData(t, rec, &resp)
	assert.True(t, resp.Valid)
	assert.Equal(t, "development", resp.Environment)
	assert.Empty(t, resp.Errors)
}

func TestContentTypeJSON_RejectsOtherMediaTypes(t *testing.T) {
	f := newFixture(t, adminConfig())
	token := adminToken(t, middleware.RoleAdmin)

	rec := f.do(t, http.MethodPut, "/api/v1/gateways/stripe/priority", []byte("priority=3"), map[string]string{
		"Authorization": "Bearer " + token,
		"Content-Type":  "application/x-www-form-urlencoded",
	})
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", errorCode(t, rec))
}
