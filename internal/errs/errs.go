// Package errs contains sentinel errors shared by the storage, service and handler layers.
package errs

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing, invalid or revoked credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller is authenticated but may not act on the entity.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation indicates rejected user input.
	ErrValidation = errors.New("validation failed")

	// ErrOffline indicates the remote store is currently unreachable.
	ErrOffline = errors.New("remote store unavailable")

	// ErrRateLimited indicates the caller exceeded a request budget.
	ErrRateLimited = errors.New("rate limited")
)

// ValidationError carries the user-facing message for one rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid returns a ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// FieldErrors collects every rejected field of one form, in form order.
type FieldErrors []*ValidationError

func (e FieldErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

func (e FieldErrors) Unwrap() error { return ErrValidation }

// Fields maps each rejected field to its message.
func (e FieldErrors) Fields() map[string]string {
	out := make(map[string]string, len(e))
	for _, fe := range e {
		out[fe.Field] = fe.Message
	}
	return out
}
