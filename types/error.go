package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across the gateway.
type ErrorCode string

// Caller errors — the request itself is wrong, no upstream call was made.
const (
	ErrMissingCredential ErrorCode = "MISSING_CREDENTIAL"
	ErrInvalidPayload    ErrorCode = "INVALID_PAYLOAD"
)

// Upstream errors — a specific upstream call misbehaved.
const (
	ErrUpstreamRejected  ErrorCode = "UPSTREAM_REJECTED"
	ErrUpstreamMalformed ErrorCode = "UPSTREAM_MALFORMED"
)

// Exhaustion errors — every fallback candidate was tried and none worked.
const (
	ErrNoCandidateAvailable ErrorCode = "NO_CANDIDATE_AVAILABLE"
	ErrNoChatEndpoint       ErrorCode = "NO_CHAT_ENDPOINT"
	ErrIngestionFailed      ErrorCode = "INGESTION_FAILED"
)

// Task lifecycle errors.
const (
	ErrJobFailed   ErrorCode = "JOB_FAILED"
	ErrWaitTimeout ErrorCode = "WAIT_TIMEOUT"
)

const (
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HTTPStatusFor maps an error code to its default HTTP status.
func HTTPStatusFor(code ErrorCode) int {
	switch code {
	case ErrMissingCredential:
		return http.StatusUnauthorized
	case ErrInvalidPayload:
		return http.StatusBadRequest
	case ErrUpstreamRejected, ErrUpstreamMalformed:
		return http.StatusBadGateway
	case ErrNoCandidateAvailable, ErrNoChatEndpoint, ErrIngestionFailed:
		return http.StatusServiceUnavailable
	case ErrJobFailed:
		return http.StatusBadGateway
	case ErrWaitTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
