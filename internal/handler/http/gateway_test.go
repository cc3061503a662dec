package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/c50bossio/6fb-booking-sub001/internal/config"
	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	"github.com/c50bossio/6fb-booking-sub001/internal/gateway"
	"github.com/c50bossio/6fb-booking-sub001/internal/manager"
	"github.com/c50bossio/6fb-booking-sub001/internal/selector"
	"github.com/c50bossio/6fb-booking-sub001/pkg/middleware"
)

func adminToken(t *testing.T, role string) string {
	t.Helper()
	token, err := middleware.SignToken(testJWTSecret, "ops-1", role, time.Hour)
	require.NoError(t, err)
	return token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token, "Content-Type": "application/json"}
}

func (f *fixture) status(t *testing.T, gw domain.GatewayType) manager.GatewayStatus {
	t.Helper()
	for _, st := range f.mgr.GatewayStatuses() {
		if st.Gateway == gw {
			return st
		}
	}
	t.Fatalf("gateway %s not listed", gw)
	return manager.GatewayStatus{}
}

// ============================================================================
// Admin authentication
// ============================================================================

func TestAdmin_RoutesAbsentWithoutValidator(t *testing.T) {
	f := newFixture(t, RouterConfig{})

	rec := f.do(t, http.MethodPost, "/api/v1/gateways/stripe/disable", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, f.status(t, domain.GatewayStripe).Enabled)
}

func TestAdmin_Authentication(t *testing.T) {
	expired, err := middleware.SignToken(testJWTSecret, "ops-1", middleware.RoleAdmin, -time.Minute)
	require.NoError(t, err)
	forged, err := middleware.SignToken("other-secret", "ops-1", middleware.RoleAdmin, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		headers map[string]string
		status  int
		code    string
	}{
		{"no token", nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"malformed header", map[string]string{"Authorization": "Token abc"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired token", bearer(expired), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong secret", bearer(forged), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"non-admin role", bearer(adminToken(t, "viewer")), http.StatusForbidden, "FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, adminConfig())
			rec := f.do(t, http.MethodPost, "/api/v1/gateways/stripe/disable", nil, tt.headers)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
			assert.True(t, f.status(t, domain.GatewayStripe).Enabled)
		})
	}
}

// ============================================================================
// Admin actions
// ============================================================================

func TestAdmin_DisableAndEnable(t *testing.T) {
	f := newFixture(t, adminConfig())
	headers := bearer(adminToken(t, middleware.RoleAdmin))

	rec := f.do(t, http.MethodPost, "/api/v1/gateways/stripe/disable", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	var st manager.GatewayStatus
	decodeData(t, rec, &st)
	assert.Equal(t, domain.GatewayStripe, st.Gateway)
	assert.False(t, st.Enabled)

	rec = f.do(t, http.MethodPost, "/api/v1/gateways/stripe/enable", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.status(t, domain.GatewayStripe).Enabled)
}

func TestAdmin_ForceOfflineAndRestore(t *testing.T) {
	f := newFixture(t, adminConfig())
	headers := bearer(adminToken(t, middleware.RoleAdmin))

	rec := f.do(t, http.MethodPost, "/api/v1/gateways/tilled/offline", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.status(t, domain.GatewayTilled).Healthy)

	rec = f.do(t, http.MethodPost, "/api/v1/gateways/tilled/restore", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.status(t, domain.GatewayTilled).Healthy)
}

func TestAdmin_SetPriority(t *testing.T) {
	f := newFixture(t, adminConfig())
	headers := bearer(adminToken(t, middleware.RoleAdmin))

	rec := f.do(t, http.MethodPut, "/api/v1/gateways/stripe/priority", []byte(`{"priority":5}`), headers)
	require.Equal(t, http.StatusOK, rec.Code)

	var st manager.GatewayStatus
	decodeData(t, rec, &st)
	assert.Equal(t, 5, st.Priority)
}

func TestAdmin_SetPriority_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"zero priority", `{"priority":0}`, "VALIDATION_ERROR"},
		{"above range", `{"priority":101}`, "VALIDATION_ERROR"},
		{"unknown field", `{"priority":2,"weight":1}`, "INVALID_INPUT"},
		{"not json", `{priority`, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, adminConfig())
			rec := f.do(t, http.MethodPut, "/api/v1/gateways/stripe/priority", []byte(tt.body),
				bearer(adminToken(t, middleware.RoleAdmin)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
			assert.Equal(t, 2, f.status(t, domain.GatewayStripe).Priority)
		})
	}
}

func TestAdmin_UnknownAndUnconfiguredGateways(t *testing.T) {
	f := newFixture(t, adminConfig())
	headers := bearer(adminToken(t, middleware.RoleAdmin))

	rec := f.do(t, http.MethodPost, "/api/v1/gateways/paypal/enable", nil, headers)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = f.do(t, http.MethodPost, "/api/v1/gateways/square/enable", nil, headers)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.CodeGatewayNotConfigured, errorCode(t, rec))
}

// ============================================================================
// Service failures
// ============================================================================

type mockGatewayService struct {
	mock.Mock
}

func (m *mockGatewayService) HandleWebhook(ctx context.Context, gw domain.GatewayType, payload []byte, signature, secret string) (*manager.WebhookResult, error) {
	args := m.Called(ctx, gw, payload, signature, secret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*manager.WebhookResult), args.Error(1)
}

func (m *mockGatewayService) GatewayStatuses() []manager.GatewayStatus {
	args := m.Called()
	return args.Get(0).([]manager.GatewayStatus)
}

func (m *mockGatewayService) HealthCheckAll(ctx context.Context) map[domain.GatewayType]gateway.HealthStatus {
	args := m.Called(ctx)
	return args.Get(0).(map[domain.GatewayType]gateway.HealthStatus)
}

func (m *mockGatewayService) SelectionHistory() []selector.Selection {
	args := m.Called()
	return args.Get(0).([]selector.Selection)
}

func (m *mockGatewayService) Config() *config.Store {
	args := m.Called()
	return args.Get(0).(*config.Store)
}

func (m *mockGatewayService) EnableGateway(ctx context.Context, gw domain.GatewayType) error {
	return m.Called(ctx, gw).Error(0)
}

func (m *mockGatewayService) DisableGateway(ctx context.Context, gw domain.GatewayType) error {
	return m.Called(ctx, gw).Error(0)
}

func (m *mockGatewayService) ForceOffline(ctx context.Context, gw domain.GatewayType) error {
	return m.Called(ctx, gw).Error(0)
}

func (m *mockGatewayService) RestoreGateway(ctx context.Context, gw domain.GatewayType) error {
	return m.Called(ctx, gw).Error(0)
}

func (m *mockGatewayService) SetPriority(ctx context.Context, gw domain.GatewayType, priority int) error {
	return m.Called(ctx, gw, priority).Error(0)
}

func serveAdmin(h http.HandlerFunc, method, pattern, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAdmin_UnexpectedServiceErrorIsHidden(t *testing.T) {
	svc := new(mockGatewayService)
	svc.On("DisableGateway", mock.Anything, domain.GatewayStripe).
		Return(errors.New("config store: lock poisoned"))

	h := NewGatewayHandler(svc, testLogger())
	rec := serveAdmin(h.Disable, http.MethodPost, "/{gateway}/disable", "/stripe/disable", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.NotContains(t, env.Error.Message, "lock poisoned")
	svc.AssertExpectations(t)
}

func TestAdmin_SetPriorityPassesValue(t *testing.T) {
	svc := new(mockGatewayService)
	svc.On("SetPriority", mock.Anything, domain.GatewayTilled, 7).Return(nil)
	svc.On("GatewayStatuses").Return([]manager.GatewayStatus{{Gateway: domain.GatewayTilled, Priority: 7}})

	h := NewGatewayHandler(svc, testLogger())
	rec := serveAdmin(h.SetPriority, http.MethodPut, "/{gateway}/priority", "/tilled/priority", `{"priority":7}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var st manager.GatewayStatus
	decodeData(t, rec, &st)
	assert.Equal(t, 7, st.Priority)
	svc.AssertExpectations(t)
}

func TestAdmin_InvalidPriorityNeverReachesService(t *testing.T) {
	svc := new(mockGatewayService)

	h := NewGatewayHandler(svc, testLogger())
	rec := serveAdmin(h.SetPriority, http.MethodPut, "/{gateway}/priority", "/tilled/priority", `{"priority":-1}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "SetPriority", mock.Anything, mock.Anything, mock.Anything)
}
