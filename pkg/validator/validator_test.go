package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priorityRequest struct {
	Priority int    `json:"priority" validate:"gte=1,lte=100"`
	Reason   string `json:"reason" validate:"required,max=20"`
}

type currencyInput struct {
	Currency string `validate:"required,len=3,alpha"`
	Group    string `json:"group" validate:"omitempty,oneof=A B"`
	Amount   int    `json:"amount" validate:"gt=0"`
	Hidden   string `json:"-"`
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(priorityRequest{Priority: 3, Reason: "maintenance"}))
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	fields := fieldsOf(t, Validate(priorityRequest{Priority: 0}))
	assert.Equal(t, "is required", fields["reason"])
	assert.Equal(t, "must be greater than or equal to 1", fields["priority"])
}

func TestValidate_FallsBackToStructFieldName(t *testing.T) {
	fields := fieldsOf(t, Validate(currencyInput{Currency: "US", Amount: 1}))
	assert.Equal(t, "must be exactly 3 characters", fields["Currency"])
}

func TestValidate_TagMessages(t *testing.T) {
	tests := []struct {
		name  string
		input currencyInput
		field string
		want  string
	}{
		{"alpha", currencyInput{Currency: "U5D", Amount: 1}, "Currency", "must contain only letters"},
		{"oneof", currencyInput{Currency: "USD", Group: "C", Amount: 1}, "group", "must be one of: A B"},
		{"gt", currencyInput{Currency: "USD"}, "amount", "must be greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := fieldsOf(t, Validate(tt.input))
			assert.Equal(t, tt.want, fields[tt.field])
		})
	}
}

func TestValidate_MaxAndUpperBound(t *testing.T) {
	fields := fieldsOf(t, Validate(priorityRequest{Priority: 101, Reason: strings.Repeat("x", 21)}))
	assert.Equal(t, "must be at most 20", fields["reason"])
	assert.Equal(t, "must be less than or equal to 100", fields["priority"])
}

func TestValidationError_ErrorString(t *testing.T) {
	err := Validate(priorityRequest{Priority: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'reason' is required")
}

// ============================================================================
// DecodeAndValidate
// ============================================================================

func TestDecodeAndValidate_Success(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"priority":2,"reason":"cheaper"}`))

	var p priorityRequest
	require.NoError(t, DecodeAndValidate(httptest.NewRecorder(), req, &p))
	assert.Equal(t, 2, p.Priority)
	assert.Equal(t, "cheaper", p.Reason)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader("{invalid"))

	var p priorityRequest
	err := DecodeAndValidate(httptest.NewRecorder(), req, &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"priority":2,"reason":"x","weight":9}`))

	var p priorityRequest
	err := DecodeAndValidate(httptest.NewRecorder(), req, &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestDecodeAndValidate_RejectsOversizedBody(t *testing.T) {
	body := `{"priority":2,"reason":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))

	var p priorityRequest
	err := DecodeAndValidate(httptest.NewRecorder(), req, &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_ValidationFails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"priority":0,"reason":"x"}`))

	var p priorityRequest
	fields := fieldsOf(t, DecodeAndValidate(httptest.NewRecorder(), req, &p))
	assert.Contains(t, fields, "priority")
}
