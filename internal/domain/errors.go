package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried by GatewayError. Callers branch on these values.
const (
	CodeInvalidAmount           = "INVALID_AMOUNT"
	CodeInvalidCurrency         = "INVALID_CURRENCY"
	CodePaymentNotFound         = "PAYMENT_NOT_FOUND"
	CodeRefundNotFound          = "REFUND_NOT_FOUND"
	CodeCustomerNotFound        = "CUSTOMER_NOT_FOUND"
	CodeGatewayNotRegistered    = "GATEWAY_NOT_REGISTERED"
	CodeGatewayCreationFailed   = "GATEWAY_CREATION_FAILED"
	CodeGatewayNotConfigured    = "GATEWAY_NOT_CONFIGURED"
	CodeGatewayUnresolved       = "GATEWAY_UNRESOLVED"
	CodeMissingConfigFields     = "MISSING_CONFIG_FIELDS"
	CodeInvalidConfig           = "INVALID_CONFIG"
	CodeInvalidWebhookSignature = "INVALID_WEBHOOK_SIGNATURE"
	CodeInvalidWebhookPayload   = "INVALID_WEBHOOK_PAYLOAD"
	CodeNoGatewaysAvailable     = "NO_GATEWAYS_AVAILABLE"
	CodeUnknownStrategy         = "UNKNOWN_STRATEGY"
	CodeInvalidSelectionContext = "INVALID_SELECTION_CONTEXT"
	CodePaymentIntentFailed     = "PAYMENT_INTENT_FAILED"
	CodeAllFailoversFailed      = "ALL_FAILOVERS_FAILED"
	CodePaymentMethodRequired   = "PAYMENT_METHOD_REQUIRED"
	CodeAPIError                = "API_ERROR"
	CodeUnexpectedError         = "UNEXPECTED_ERROR"
)

// GatewayError is the single error kind used by adapters, the factory, the
// selector and the manager.
type GatewayError struct {
	Code    string
	Message string
	Gateway GatewayType
	// ProviderCode preserves the provider's own error code (e.g. card_declined).
	ProviderCode string
	// Fields lists offending configuration fields for MISSING_CONFIG_FIELDS.
	Fields []string
	Err    error
}

// NewGatewayError builds a GatewayError without a cause.
func NewGatewayError(code, message string, gateway GatewayType) *GatewayError {
	return &GatewayError{Code: code, Message: message, Gateway: gateway}
}

// WrapGatewayError builds a GatewayError around a cause.
func WrapGatewayError(err error, code, message string, gateway GatewayType) *GatewayError {
	return &GatewayError{Code: code, Message: message, Gateway: gateway, Err: err}
}

func (e *GatewayError) Error() string {
	prefix := e.Code
	if e.Gateway != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Code, e.Gateway)
	}
	if e.ProviderCode != "" {
		prefix = fmt.Sprintf("%s (%s)", prefix, e.ProviderCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the machine-readable code.
func (e *GatewayError) ErrorCode() string {
	return e.Code
}

// HTTPStatus maps the error code onto an HTTP status for transport layers.
func (e *GatewayError) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidAmount, CodeInvalidCurrency, CodeUnknownStrategy, CodePaymentMethodRequired, CodeInvalidSelectionContext,
		CodeInvalidWebhookPayload, CodeGatewayUnresolved, CodeInvalidConfig, CodeMissingConfigFields:
		return http.StatusBadRequest
	case CodeInvalidWebhookSignature:
		return http.StatusUnauthorized
	case CodePaymentNotFound, CodeRefundNotFound, CodeCustomerNotFound, CodeGatewayNotRegistered,
		CodeGatewayNotConfigured:
		return http.StatusNotFound
	case CodePaymentIntentFailed, CodeAllFailoversFailed, CodeNoGatewaysAvailable:
		return http.StatusServiceUnavailable
	case CodeAPIError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the GatewayError code found in err's chain, or "".
func ErrorCode(err error) string {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Code
	}
	return ""
}

// AsGatewayError converts any error into a GatewayError. Errors that already are
// GatewayErrors are returned unchanged; others become UNEXPECTED_ERROR.
func AsGatewayError(err error, gateway GatewayType) *GatewayError {
	if err == nil {
		return nil
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return WrapGatewayError(err, CodeUnexpectedError, "unexpected gateway error", gateway)
}

// PublicMessage returns the message safe to show API clients.
func (e *GatewayError) PublicMessage() string {
	return e.Message
}
