package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c50bossio/6fb-booking-sub001/internal/config"
	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/manager"
	"github.com/c50bossio/6fb-booking-sub001/pkg/health"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeConfig() *config.Config {
	return &config.Config{
		Environment:          "development",
		LogLevel:             "info",
		HTTPPort:             0,
		ShutdownTimeoutSecs:  1,
		WebhookDedupTTLHours: 1,
		WebhookRateLimit:     50,
		WebhookRateBurst:     100,
		StripeEnabled:        true,
		SquareEnabled:        true,
		TilledEnabled:        true,
		UseFakeGateways:      true,
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// ============================================================================
// Wiring
// ============================================================================

func TestNewApp_FakeGateways(t *testing.T) {
	a, err := NewApp(fakeConfig(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	assert.ElementsMatch(t,
		[]domain.GatewayType{domain.GatewayStripe, domain.GatewaySquare, domain.GatewayTilled},
		a.Manager().Gateways())

	assert.Equal(t, http.StatusOK, get(t, a.Handler(), "/health/live").Code)
	assert.Equal(t, http.StatusOK, get(t, a.Handler(), "/health/ready").Code)
	assert.Equal(t, http.StatusOK, get(t, a.Handler(), "/api/v1/gateways").Code)
}

func TestNewApp_RegistersOptionalGatewayChecks(t *testing.T) {
	a, err := NewApp(fakeConfig(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	names := a.health.Names()
	assert.Contains(t, names, "gateways")
	assert.Contains(t, names, "gateway_stripe")
	assert.Contains(t, names, "gateway_tilled")
	assert.NotContains(t, names, "postgres")
	assert.NotContains(t, names, "kafka")
}

func TestNewApp_AdminRoutesRequireSecret(t *testing.T) {
	open, err := NewApp(fakeConfig(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = open.Shutdown() })

	rec := httptest.NewRecorder()
	open.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/gateways/stripe/disable", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cfg := fakeConfig()
	cfg.AdminJWTSecret = "s3cret"
	secured, err := NewApp(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = secured.Shutdown() })

	rec = httptest.NewRecorder()
	secured.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/gateways/stripe/disable", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewApp_ProductionRejectsInvalidConfig(t *testing.T) {
	cfg := fakeConfig()
	cfg.Environment = "production"
	cfg.UseFakeGateways = false

	_, err := NewApp(cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid gateway configuration")
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := NewApp(fakeConfig(), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// ============================================================================
// Readiness
// ============================================================================

func TestAnyGatewayUsable(t *testing.T) {
	tests := []struct {
		name     string
		statuses []manager.GatewayStatus
		wantErr  bool
	}{
		{"none configured", nil, true},
		{"enabled and healthy", []manager.GatewayStatus{{Gateway: domain.GatewayStripe, Enabled: true, Healthy: true}}, false},
		{"healthy but disabled", []manager.GatewayStatus{{Gateway: domain.GatewayStripe, Healthy: true}}, true},
		{"enabled but down", []manager.GatewayStatus{{Gateway: domain.GatewayStripe, Enabled: true}}, true},
		{"one of two usable", []manager.GatewayStatus{
			{Gateway: domain.GatewayStripe, Enabled: true},
			{Gateway: domain.GatewayTilled, Enabled: true, Healthy: true},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := anyGatewayUsable(tt.statuses)
			if tt.wantErr {
				assert.ErrorIs(t, err, errNoUsableGateway)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReadiness_DegradedWhenOneGatewayOffline(t *testing.T) {
	a, err := NewApp(fakeConfig(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	require.NoError(t, a.Manager().ForceOffline(context.Background(), domain.GatewayStripe))

	resp := a.health.Check(context.Background())
	assert.Equal(t, health.StatusDegraded, resp.Status)
	assert.Equal(t, http.StatusOK, get(t, a.Handler(), "/health/ready").Code)

	for _, gt := range []domain.GatewayType{domain.GatewaySquare, domain.GatewayTilled} {
		require.NoError(t, a.Manager().ForceOffline(context.Background(), gt))
	}
	assert.Equal(t, http.StatusServiceUnavailable, get(t, a.Handler(), "/health/ready").Code)
}
