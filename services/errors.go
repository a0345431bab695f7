package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeRateLimit          ErrorType = "rate_limit"
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"
	ErrorTypeCompletionFailure  ErrorType = "completion_failure"
	ErrorTypeAllBackendsFailed  ErrorType = "all_backends_failed"
	ErrorTypeInternal           ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// ErrAllBackendsFailed is the errors.Is target for exhausted failover chains
	ErrAllBackendsFailed = NewDomainError(ErrorTypeAllBackendsFailed, "all backends failed", nil)

	// ErrBackendUnavailable is returned when a selected backend is not serving traffic
	ErrBackendUnavailable = NewDomainError(ErrorTypeBackendUnavailable, "backend unavailable", nil)
)

// NewAllBackendsFailedError reports an exhausted failover chain. Each call
// returns a fresh value so concurrent requests never share a Details map.
func NewAllBackendsFailedError(failedBackend string) *DomainError {
	return NewDomainError(ErrorTypeAllBackendsFailed, "all backends failed", nil).
		WithDetail("failed_backend", failedBackend)
}

// NewRateLimitError creates a rate limit error carrying the retry-after hint
func NewRateLimitError(retryAfterSeconds int) *DomainError {
	return NewDomainError(ErrorTypeRateLimit, "rate limit exceeded", nil).
		WithDetail("retry_after_seconds", retryAfterSeconds)
}

// NewCompletionError wraps an upstream completion failure for a backend
func NewCompletionError(backend string, err error) *DomainError {
	return NewDomainError(ErrorTypeCompletionFailure, "completion request failed", err).
		WithDetail("backend", backend)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, nil)
}

// RetryAfter extracts the retry-after hint from a rate limit error.
// Returns (0, false) when err is not a rate limit error.
func RetryAfter(err error) (int, bool) {
	var de *DomainError
	if !errors.As(err, &de) || de.Type != ErrorTypeRateLimit {
		return 0, false
	}
	if v, ok := de.Details["retry_after_seconds"].(int); ok {
		return v, true
	}
	return 0, true
}

// TypeOf returns the domain error type, or ErrorTypeInternal for unknown errors
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ErrorTypeInternal
}
