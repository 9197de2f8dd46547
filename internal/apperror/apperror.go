// Package apperror defines the error kinds shared by every layer.
//
// Services and repositories return *AppError values that wrap one of the
// sentinel errors below. Handlers never look at messages to decide what to
// do; they call errors.Is against the sentinels and pick a status code.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("backend unavailable")

	// ErrDuplicate is a validation error: errors.Is(err, ErrValidation) holds
	// for anything that matches ErrDuplicate.
	ErrDuplicate = fmt.Errorf("duplicate entry: %w", ErrValidation)
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: lower-level failure, kept for logs
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Duplicate reports a second entry for a key that must be unique. It is a
// validation error so callers show it to the user instead of retrying.
func Duplicate(field, message string) *AppError {
	return &AppError{
		Err:     ErrDuplicate,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Unavailable wraps a storage or network failure. Users see a generic
// message; the cause stays reachable through errors.Is / errors.As.
func Unavailable(backend string, cause error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: "the service is temporarily unavailable, please try again",
		Cause:   fmt.Errorf("%s: %w", backend, cause),
	}
}
