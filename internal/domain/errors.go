package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure so callers can decide whether retrying makes
// sense. Input, size and duplicate errors are terminal; transport errors are
// retried by the endpoint pool before they surface here.
type ErrorCode string

const (
	CodeInvalidInput        ErrorCode = "INVALID_INPUT"
	CodeUnsupportedVenue    ErrorCode = "UNSUPPORTED_VENUE"
	CodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	CodeImpactTooHigh       ErrorCode = "IMPACT_TOO_HIGH"
	CodeSlippageExceeded    ErrorCode = "SLIPPAGE_EXCEEDED"
	CodeDuplicateTrade      ErrorCode = "DUPLICATE_TRADE"
	CodeEndpointsUnhealthy  ErrorCode = "ENDPOINTS_UNHEALTHY"
	CodeRPCFailed           ErrorCode = "RPC_FAILED"
	CodeRelayError          ErrorCode = "RELAY_ERROR"
	CodeBundleTimeout       ErrorCode = "BUNDLE_TIMEOUT"
	CodeTxTooLarge          ErrorCode = "TX_TOO_LARGE"
)

// TradeError is the error type returned on every expected failure path.
type TradeError struct {
	Code    ErrorCode
	Message string
	cause   error
}

// NewError creates a TradeError without a cause.
func NewError(code ErrorCode, format string, args ...any) *TradeError {
	return &TradeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a TradeError wrapping an underlying cause.
func WrapError(code ErrorCode, cause error, format string, args ...any) *TradeError {
	return &TradeError{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *TradeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TradeError) Unwrap() error { return e.cause }

// Is matches TradeErrors by code, so errors.Is(err, &TradeError{Code: ...})
// works across wrapping.
func (e *TradeError) Is(target error) bool {
	t, ok := target.(*TradeError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the error code from err, or empty string when err is not a
// TradeError.
func CodeOf(err error) ErrorCode {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
