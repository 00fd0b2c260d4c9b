package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across docflow.
type ErrorCode string

// Workflow error codes
const (
	ErrValidation     ErrorCode = "VALIDATION_ERROR"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrInvalidState   ErrorCode = "INVALID_STATE"
	ErrAgentExecution ErrorCode = "AGENT_EXECUTION_ERROR"
	ErrTimeout        ErrorCode = "TIMEOUT"
	ErrCancelled      ErrorCode = "CANCELLED"
)

// Transport and upstream error codes
const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrForbidden           ErrorCode = "FORBIDDEN"
	ErrRateLimited         ErrorCode = "RATE_LIMITED"
	ErrUpstreamError       ErrorCode = "UPSTREAM_ERROR"
	ErrUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrServiceUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	ErrInternalError       ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Field      string    `json:"field,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Stage != "" {
		prefix = fmt.Sprintf("[%s] %s:", e.Code, e.Stage)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
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

// WithField names the request field that failed validation.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithStage names the pipeline stage the error belongs to.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// =============================================================================
// Constructors
// =============================================================================

// NewValidationError reports a malformed request field.
func NewValidationError(field, message string) *Error {
	return NewError(ErrValidation, message).
		WithField(field).
		WithHTTPStatus(http.StatusBadRequest)
}

// NewNotFoundError reports an unknown resource.
func NewNotFoundError(message string) *Error {
	return NewError(ErrNotFound, message).WithHTTPStatus(http.StatusNotFound)
}

// NewInvalidStateError reports an operation that the resource's current state
// does not permit.
func NewInvalidStateError(message string, status int) *Error {
	return NewError(ErrInvalidState, message).WithHTTPStatus(status)
}

// NewAgentExecutionError wraps a stage failure.
func NewAgentExecutionError(stage string, cause error) *Error {
	return NewError(ErrAgentExecution, "stage execution failed").
		WithStage(stage).
		WithCause(cause).
		WithHTTPStatus(http.StatusInternalServerError)
}

// NewTimeoutError reports an exceeded stage or workflow deadline.
func NewTimeoutError(message string) *Error {
	return NewError(ErrTimeout, message).
		WithHTTPStatus(http.StatusGatewayTimeout).
		WithRetryable(true)
}

// NewCancellationError is the internal signal for a cooperative stop.
func NewCancellationError(message string) *Error {
	return NewError(ErrCancelled, message)
}

// NewInternalError reports an unexpected server-side failure.
func NewInternalError(message string) *Error {
	return NewError(ErrInternalError, message).WithHTTPStatus(http.StatusInternalServerError)
}

// NewUpstreamError reports a failure from an external service.
func NewUpstreamError(provider, message string) *Error {
	return NewError(ErrUpstreamError, message).
		WithProvider(provider).
		WithHTTPStatus(http.StatusBadGateway)
}

// =============================================================================
// Helpers
// =============================================================================

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
