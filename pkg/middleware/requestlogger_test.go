package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/c50bossio/6fb-booking-sub001/pkg/logger"
)

func newTestLogger(w *bytes.Buffer) *slog.Logger {
	return logger.NewWithWriter("paygate-test", "info", w)
}

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func serveLogged(base *slog.Logger, ctx context.Context) {
	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("handled")
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/gateways", nil).WithContext(ctx)
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestRequestLogger_StoresLoggerInContext(t *testing.T) {
	var buf bytes.Buffer
	serveLogged(newTestLogger(&buf), context.Background())

	out := logLine(t, &buf)
	assert.Equal(t, "handled", out["msg"])
	assert.Equal(t, "paygate-test", out["service"])
	assert.NotContains(t, out, "user_id")
}

func TestRequestLogger_IncludesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	serveLogged(newTestLogger(&buf), logger.WithCorrelationID(context.Background(), "corr-test-123"))

	assert.Equal(t, "corr-test-123", logLine(t, &buf)["correlation_id"])
}

func TestRequestLogger_IncludesUserIDFromAuthContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.WithValue(context.Background(), userIDKey, "ops-admin")
	serveLogged(newTestLogger(&buf), ctx)

	assert.Equal(t, "ops-admin", logLine(t, &buf)["user_id"])
}

func TestRequestLogger_IgnoresUserIDHeader(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogger(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("handled")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "spoofed")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotContains(t, logLine(t, &buf), "user_id")
}

func TestRequestLogger_IncludesTraceFields(t *testing.T) {
	var buf bytes.Buffer
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	serveLogged(newTestLogger(&buf), trace.ContextWithSpanContext(context.Background(), sc))

	out := logLine(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", out["span_id"])
}

// ============================================================================
// RequestLogging
// ============================================================================

func TestRequestLogging_GeneratesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogging(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, logger.CorrelationIDFromContext(r.Context()))
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	id := rec.Header().Get(CorrelationIDHeader)
	require.NotEmpty(t, id)
	out := logLine(t, &buf)
	assert.Equal(t, id, out["correlation_id"])
	assert.Equal(t, float64(http.StatusOK), out["status"])
	assert.Equal(t, float64(2), out["bytes"])
	assert.Equal(t, "INFO", out["level"])
}

func TestRequestLogging_KeepsInboundCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogging(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "upstream-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "upstream-42", rec.Header().Get(CorrelationIDHeader))
	assert.Equal(t, "upstream-42", logLine(t, &buf)["correlation_id"])
}

func TestRequestLogging_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusNoContent, "INFO"},
		{http.StatusUnauthorized, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			handler := RequestLogging(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhooks/square", nil))

			out := logLine(t, &buf)
			assert.Equal(t, tt.level, out["level"])
			assert.Equal(t, float64(tt.status), out["status"])
		})
	}
}
