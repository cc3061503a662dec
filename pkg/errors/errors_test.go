package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// domainErr mimics a domain error that carries its own status and code.
type domainErr struct {
	code   string
	status int
}

func (e *domainErr) Error() string     { return e.code }
func (e *domainErr) HTTPStatus() int   { return e.status }
func (e *domainErr) ErrorCode() string { return e.code }

// ============================================================================
// AppError
// ============================================================================

func TestAppError_ErrorString(t *testing.T) {
	withCause := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: fmt.Errorf("db connection lost")}
	assert.Equal(t, "INTERNAL_ERROR: something broke: db connection lost", withCause.Error())

	bare := &AppError{Code: "NOT_FOUND", Message: "payment not found"}
	assert.Equal(t, "NOT_FOUND: payment not found", bare.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "nope", Err: ErrNotFound}
	assert.True(t, errors.Is(appErr, ErrNotFound))
	assert.Nil(t, (&AppError{Code: "X"}).Unwrap())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("payment_ref", "pi_1"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"invalid input", InvalidInput("bad gateway name"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("missing token"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("admin only"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"rate limited", TooManyRequests("slow down"), "RATE_LIMITED", http.StatusTooManyRequests, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.ErrorCode())
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
			assert.ErrorIs(t, tt.err, tt.sentinel)
		})
	}
}

func TestNotFound_MessageNamesResource(t *testing.T) {
	err := NotFound("payment_ref", "pi_123")
	assert.Equal(t, "payment_ref pi_123 not found", err.Message)
}

func TestInternal_KeepsCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Internal(cause)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, cause)
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrNotFound, "lookup ref")
	assert.Equal(t, "lookup ref: resource not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// HTTPStatus / Code
// ============================================================================

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"status coder", &domainErr{code: "ALL_FAILOVERS_FAILED", status: http.StatusServiceUnavailable}, http.StatusServiceUnavailable, "ALL_FAILOVERS_FAILED"},
		{"wrapped status coder", fmt.Errorf("route: %w", &domainErr{code: "GATEWAY_UNRESOLVED", status: http.StatusBadRequest}), http.StatusBadRequest, "GATEWAY_UNRESOLVED"},
		{"app error", Forbidden("no"), http.StatusForbidden, "FORBIDDEN"},
		{"not found", ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"conflict", ErrConflict, http.StatusConflict, "CONFLICT"},
		{"invalid input", fmt.Errorf("parse: %w", ErrInvalidInput), http.StatusBadRequest, "INVALID_INPUT"},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unavailable", ErrServiceUnavail, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"unknown", errors.New("mystery"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.code, Code(tt.err))
		})
	}
}
