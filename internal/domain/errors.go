package domain

import (
	"errors"
	"fmt"
)

// Stable machine-readable error codes surfaced to clients. Callers dispatch
// on these codes only; internal causes stay in the logs.
const (
	CodeValidation    = "validation_error"
	CodeNotFound      = "not_found"
	CodeSessionLost   = "session_lost"
	CodeConflict      = "conflict"
	CodeRateLimited   = "rate_limited"
	CodeBackend       = "backend_error"
	CodeWorkflowFatal = "workflow_fatal"
	CodeUnknownType   = "unknown_type"
)

// Error is a coded error carrying a stable machine code alongside a
// human-readable message.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a coded error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a coded error wrapping an internal cause.
func WrapError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// ErrValidation builds a validation error for a missing or malformed field.
func ErrValidation(message string) *Error {
	return NewError(CodeValidation, message)
}

// ErrNotFound builds a not-found error for an absent entity.
func ErrNotFound(what string) *Error {
	return NewError(CodeNotFound, what+" not found")
}

// CodeOf extracts the machine code from an error chain. Unknown errors map
// to backend_error, the transient bucket.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeBackend
}
