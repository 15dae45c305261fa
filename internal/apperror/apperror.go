// Package apperror defines the domain errors shared by every layer.
//
// Services return these; only the HTTP layer decides which status code they
// become. errors.Is walks through AppError.Unwrap, so a wrapped
// apperror.NotFound still matches ErrNotFound after fmt.Errorf("...: %w").
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream failure")
	ErrCodeUsed     = errors.New("authorization code already used")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message, safe to show to users
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
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

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when no valid session accompanies the request.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Upstream wraps a failure of an external dependency. The message is what the
// end user sees; the cause stays in the chain for server-side logging.
func Upstream(message string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrUpstream, cause),
		Message: message,
	}
}

// CodeUsed reports a second exchange of a one-time authorization code.
// It is deliberately free of the code value itself.
func CodeUsed() *AppError {
	return &AppError{
		Err:     ErrCodeUsed,
		Message: "this sign-in link has already been used",
	}
}
