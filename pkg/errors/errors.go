// Package errors defines the standardized error type used across the
// dispatch framework, with stable codes and categories.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Resolution errors
	CodeUnknownIdentifier ErrorCode = "UNKNOWN_IDENTIFIER"
	CodeInvalidIdentifier ErrorCode = "INVALID_IDENTIFIER"
	CodeNotAProvider      ErrorCode = "NOT_A_PROVIDER"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	CodeMissingConfig ErrorCode = "MISSING_CONFIG"

	// Construction and validation errors
	CodeConstructionFailed ErrorCode = "CONSTRUCTION_FAILED"
	CodeInvalidProvider    ErrorCode = "INVALID_PROVIDER"
	CodeUnsupportedChannel ErrorCode = "UNSUPPORTED_CHANNEL"

	// Dispatch errors
	CodeDispatchFailed   ErrorCode = "DISPATCH_FAILED"
	CodeAllProvidersDown ErrorCode = "ALL_PROVIDERS_DOWN"
	CodeNoProvider       ErrorCode = "NO_PROVIDER"

	// Network and transport errors
	CodeNetworkError ErrorCode = "NETWORK_ERROR"
	CodeTimeout      ErrorCode = "TIMEOUT"
	CodeRateLimited  ErrorCode = "RATE_LIMITED"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeServerError  ErrorCode = "SERVER_ERROR"

	// General errors
	CodeUnknownError ErrorCode = "UNKNOWN_ERROR"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	CategoryResolution ErrorCategory = "RESOLUTION"
	CategoryConfig     ErrorCategory = "CONFIG"
	CategoryValidation ErrorCategory = "VALIDATION"
	CategoryDispatch   ErrorCategory = "DISPATCH"
	CategoryNetwork    ErrorCategory = "NETWORK"
	CategoryAuth       ErrorCategory = "AUTH"
	CategoryRateLimit  ErrorCategory = "RATE_LIMIT"
	CategoryInternal   ErrorCategory = "INTERNAL"
)

// MissiveError represents a standardized error with category and code
type MissiveError struct {
	Code     ErrorCode     `json:"code"`
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`
	Provider string        `json:"provider,omitempty"`
	Cause    error         `json:"-"`
}

// Error implements the error interface
func (e *MissiveError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s:%s] %s (provider: %s)", e.Category, e.Code, e.Message, e.Provider)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *MissiveError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison
func (e *MissiveError) Is(target error) bool {
	if t, ok := target.(*MissiveError); ok {
		return e.Code == t.Code && e.Category == t.Category
	}
	return false
}

// IsResolution reports whether the error came from identifier resolution.
func (e *MissiveError) IsResolution() bool {
	return e.Category == CategoryResolution
}

// IsRetryable returns true if the error indicates a retryable condition
func (e *MissiveError) IsRetryable() bool {
	switch e.Code {
	case CodeNetworkError, CodeTimeout, CodeRateLimited, CodeServerError:
		return true
	default:
		return false
	}
}

// HTTPStatusCode returns the corresponding HTTP status code
func (e *MissiveError) HTTPStatusCode() int {
	switch e.Code {
	case CodeInvalidConfig, CodeInvalidIdentifier, CodeUnsupportedChannel:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeUnknownIdentifier:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new MissiveError
func New(code ErrorCode, category ErrorCategory, message string) *MissiveError {
	return &MissiveError{
		Code:     code,
		Category: category,
		Message:  message,
	}
}

// NewWithProvider creates a new MissiveError with provider information
func NewWithProvider(code ErrorCode, category ErrorCategory, message, provider string) *MissiveError {
	return &MissiveError{
		Code:     code,
		Category: category,
		Message:  message,
		Provider: provider,
	}
}

// Wrap wraps an existing error with MissiveError
func Wrap(code ErrorCode, category ErrorCategory, message string, cause error) *MissiveError {
	return &MissiveError{
		Code:     code,
		Category: category,
		Message:  message,
		Cause:    cause,
	}
}

// WrapWithProvider wraps an existing error with MissiveError and provider info
func WrapWithProvider(code ErrorCode, category ErrorCategory, message, provider string, cause error) *MissiveError {
	return &MissiveError{
		Code:     code,
		Category: category,
		Message:  message,
		Provider: provider,
		Cause:    cause,
	}
}

// MapHTTPError maps HTTP status codes to MissiveError
func MapHTTPError(statusCode int, body string, provider string) *MissiveError {
	var code ErrorCode
	var category ErrorCategory
	var message string

	switch {
	case statusCode == 401:
		code = CodeUnauthorized
		category = CategoryAuth
		message = "Authentication required"
	case statusCode == 403:
		code = CodeForbidden
		category = CategoryAuth
		message = "Access forbidden"
	case statusCode == 404:
		code = CodeNotFound
		category = CategoryNetwork
		message = "Resource not found"
	case statusCode == 429:
		code = CodeRateLimited
		category = CategoryRateLimit
		message = "Rate limit exceeded"
	case statusCode >= 400 && statusCode < 500:
		code = CodeInvalidConfig
		category = CategoryValidation
		message = fmt.Sprintf("Client error: %d", statusCode)
	case statusCode >= 500:
		code = CodeServerError
		category = CategoryNetwork
		message = fmt.Sprintf("Server error: %d", statusCode)
	default:
		code = CodeNetworkError
		category = CategoryNetwork
		message = fmt.Sprintf("HTTP error: %d", statusCode)
	}

	if body != "" && len(body) < 200 {
		message += fmt.Sprintf(" - %s", strings.TrimSpace(body))
	}

	return NewWithProvider(code, category, message, provider)
}

// MapNetworkError maps network errors to MissiveError
func MapNetworkError(err error, provider string) *MissiveError {
	if err == nil {
		return nil
	}

	if isTimeoutError(err) {
		return WrapWithProvider(CodeTimeout, CategoryNetwork, "Request timeout", provider, err)
	}

	if isConnectionError(err) {
		return WrapWithProvider(CodeNetworkError, CategoryNetwork, "Connection failed", provider, err)
	}

	return WrapWithProvider(CodeNetworkError, CategoryNetwork, "Network error", provider, err)
}

func isTimeoutError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "i/o timeout")
}

// CodeOf extracts the error code from anywhere in the chain,
// CodeUnknownError when none is present.
func CodeOf(err error) ErrorCode {
	var me *MissiveError
	if stderrors.As(err, &me) {
		return me.Code
	}
	return CodeUnknownError
}

func isConnectionError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection closed") ||
		strings.Contains(errStr, "no route to host") ||
		strings.Contains(errStr, "network unreachable")
}
