// Package errors provides typed errors for the opsdash application.
package errors

import (
	"errors"
	"fmt"
)

// Error types
const (
	// ErrInvalidArgument is returned when an invalid argument is provided
	ErrInvalidArgument = "invalid_argument"

	// ErrConfig is returned for fatal configuration problems: duplicate
	// operation names, missing transport settings, an empty discovered
	// catalog. Configuration errors are never retried.
	ErrConfig = "config"

	// ErrHandler is returned when an operation handler fails; the failure
	// is converted into a result at the dispatch boundary and never
	// crashes the hosting process.
	ErrHandler = "handler"

	// ErrTransportType is returned for transport-level faults: a dropped
	// connection, a dead subprocess, a malformed frame. These cross the
	// session boundary as typed errors so the bridge can decide to rebuild.
	ErrTransportType = "transport"

	// ErrTimeout is returned when a bounded wait (worker startup, worker
	// close) elapses. Distinct from a generic transport error.
	ErrTimeout = "timeout"

	// ErrInternal is returned when there is an internal error
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string, cause error) *Error {
	return NewError(ErrInvalidArgument, message, cause)
}

// NewConfigError creates a new configuration error
func NewConfigError(message string, cause error) *Error {
	return NewError(ErrConfig, message, cause)
}

// NewHandlerError creates a new handler error
func NewHandlerError(message string, cause error) *Error {
	return NewError(ErrHandler, message, cause)
}

// NewTransportError creates a new transport error
func NewTransportError(message string, cause error) *Error {
	return NewError(ErrTransportType, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *Error {
	return NewError(ErrTimeout, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

func is(err error, errorType string) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == errorType
}

// IsInvalidArgument checks if the error is an invalid argument error
func IsInvalidArgument(err error) bool {
	return is(err, ErrInvalidArgument)
}

// IsConfig checks if the error is a configuration error
func IsConfig(err error) bool {
	return is(err, ErrConfig)
}

// IsHandler checks if the error is a handler error
func IsHandler(err error) bool {
	return is(err, ErrHandler)
}

// IsTransport checks if the error is a transport error
func IsTransport(err error) bool {
	return is(err, ErrTransportType)
}

// IsTimeout checks if the error is a timeout error
func IsTimeout(err error) bool {
	return is(err, ErrTimeout)
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	return is(err, ErrInternal)
}
