// Package errors provides the standardized error taxonomy of the hazard service
// and its conversion into client-facing error documents.
package errors

import (
	"errors"
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
	ErrCodeRequestFormat      ErrorCode = "REQUEST_FORMAT_ERROR"
	ErrCodeModelUnavailable   ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeComputation        ErrorCode = "COMPUTATION_ERROR"
	ErrCodeComputationTimeout ErrorCode = "COMPUTATION_TIMEOUT"
	ErrCodeServiceSaturated   ErrorCode = "SERVICE_SATURATED"
	ErrCodeAccessDenied       ErrorCode = "ACCESS_DENIED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// WithMetadata returns e after adding a metadata entry.
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

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewRequestFormatError reports a malformed, incomplete or out-of-range
// request parameter.
func NewRequestFormatError(field string, cause error) *StandardError {
	e := newError(ErrCodeRequestFormat, fmt.Sprintf("Invalid request parameter: %s", field), cause, false)
	return e.WithMetadata("field", field)
}

// NewModelUnavailableError reports an unknown or unloadable hazard model.
func NewModelUnavailableError(modelID string, cause error) *StandardError {
	e := newError(ErrCodeModelUnavailable, fmt.Sprintf("Hazard model %s is not available", modelID), cause, false)
	return e.WithMetadata("model", modelID)
}

// NewComputationError reports an engine failure for a single request.
func NewComputationError(cause error) *StandardError {
	return newError(ErrCodeComputation, "Hazard computation failed", cause, false)
}

// NewComputationTimeoutError reports an exceeded computation deadline.
func NewComputationTimeoutError(timeout time.Duration, cause error) *StandardError {
	e := newError(ErrCodeComputationTimeout, fmt.Sprintf("Hazard computation exceeded %s", timeout), cause, true)
	return e.WithMetadata("timeout_ms", timeout.Milliseconds())
}

// NewServiceSaturatedError reports a full computation queue.
func NewServiceSaturatedError(cause error) *StandardError {
	return newError(ErrCodeServiceSaturated, "Service is at capacity, retry later", cause, true)
}

// NewAccessDeniedError reports a client rejected by the access guard.
func NewAccessDeniedError(clientIP string) *StandardError {
	e := newError(ErrCodeAccessDenied, "Access denied", nil, false)
	return e.WithMetadata("client_ip", clientIP)
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(cause error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", cause, false)
}

// ==========================
// 3. Conversion
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the error code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HTTPStatus maps an error code to the status of the error document.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeRequestFormat:
		return http.StatusBadRequest
	case ErrCodeModelUnavailable:
		return http.StatusNotFound
	case ErrCodeAccessDenied:
		return http.StatusForbidden
	case ErrCodeServiceSaturated:
		return http.StatusServiceUnavailable
	case ErrCodeComputationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return code == ErrCodeComputationTimeout || code == ErrCodeServiceSaturated
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "REQUEST"):
		return "VALIDATION"
	case strings.Contains(codeStr, "MODEL"):
		return "MODEL"
	case strings.Contains(codeStr, "COMPUTATION"), strings.Contains(codeStr, "SATURATED"):
		return "COMPUTE"
	case strings.Contains(codeStr, "ACCESS"):
		return "ACCESS"
	default:
		return "OTHER"
	}
}
