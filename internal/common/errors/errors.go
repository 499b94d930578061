// Package errors provides the error taxonomy shared by the provider client,
// the capacity calculator and the HTTP boundary.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeProviderCircuitOpen      ErrorCode = "PROVIDER_CIRCUIT_OPEN"
	ErrCodeProviderRetriesExhausted ErrorCode = "PROVIDER_RETRIES_EXHAUSTED"
	ErrCodeProviderRateLimited      ErrorCode = "PROVIDER_RATE_LIMITED"
	ErrCodeProviderRequestFailed    ErrorCode = "PROVIDER_REQUEST_FAILED"
	ErrCodeProviderResponseInvalid  ErrorCode = "PROVIDER_RESPONSE_INVALID"

	ErrCodeCapacityCalculationFailed ErrorCode = "CAPACITY_CALCULATION_FAILED"
	ErrCodeInvalidCapacityRequest    ErrorCode = "INVALID_CAPACITY_REQUEST"

	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Err       error                  `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Err
}

// WithMetadata attaches a key/value pair and returns the error for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewCircuitOpenError is returned without any network attempt while the breaker is open.
func NewCircuitOpenError(endpoint string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderCircuitOpen,
		Message:   "Scheduling provider circuit is open",
		Details:   fmt.Sprintf("endpoint: %s", endpoint),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Err:       cause,
	}
}

// NewRetriesExhaustedError wraps the last transient failure once every attempt is spent.
func NewRetriesExhaustedError(endpoint string, attempts int, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderRetriesExhausted,
		Message:   "Scheduling provider unavailable after retries",
		Details:   fmt.Sprintf("endpoint: %s, attempts: %d, error: %v", endpoint, attempts, cause),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Err:       cause,
	}
}

// NewRateLimitedError is returned when the provider kept answering 429.
func NewRateLimitedError(endpoint string, attempts int) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderRateLimited,
		Message:   "Scheduling provider rate limit exceeded",
		Details:   fmt.Sprintf("endpoint: %s, attempts: %d", endpoint, attempts),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestFailedError covers non-retryable 4xx answers.
func NewRequestFailedError(endpoint string, status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderRequestFailed,
		Message:   "Scheduling provider rejected the request",
		Details:   fmt.Sprintf("endpoint: %s, status: %d, body: %s", endpoint, status, truncate(body, 256)),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResponseInvalidError covers payloads that fail schema validation or decoding.
func NewResponseInvalidError(endpoint string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderResponseInvalid,
		Message:   "Scheduling provider returned an invalid payload",
		Details:   fmt.Sprintf("endpoint: %s, error: %v", endpoint, err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewCalculationFailedError wraps an upstream failure that aborted a capacity calculation.
func NewCalculationFailedError(date string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCapacityCalculationFailed,
		Message:   "Capacity calculation failed",
		Details:   fmt.Sprintf("date: %s, error: %v", date, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidCapacityRequest,
		Message:   "Invalid capacity request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCacheUnavailableError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Cache backend unavailable",
		Details:   fmt.Sprintf("op: %s, error: %v", op, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandardError finds the first StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether any StandardError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var stdErr *StandardError
		if !stderrors.As(err, &stdErr) {
			return false
		}
		if stdErr.Code == code {
			return true
		}
		err = stdErr.Err
	}
	return false
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "PROVIDER"):
		return "UPSTREAM"
	case strings.Contains(codeStr, "CAPACITY"):
		return "CAPACITY"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps an error code to the status a JSON API would use.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidCapacityRequest:
		return http.StatusBadRequest
	case ErrCodeProviderCircuitOpen, ErrCodeProviderRetriesExhausted, ErrCodeProviderRateLimited:
		return http.StatusServiceUnavailable
	case ErrCodeProviderRequestFailed, ErrCodeProviderResponseInvalid:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
