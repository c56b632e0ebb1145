package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by aggregates and stores. Callers classify with
// errors.Is; ConcurrencyConflict is the only kind the command executor
// retries.
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrValidation          = errors.New("validation failed")
	ErrAlreadyExists       = errors.New("already exists")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrInternal            = errors.New("internal error")
)

// FieldError qualifies a Validation or AlreadyExists error with the field
// that caused it (e.g. the unique constraint that fired).
type FieldError struct {
	Field  string
	Reason string
	kind   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.kind.Error(), e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return e.kind
}

func NewValidationError(field, reason string) error {
	return &FieldError{Field: field, Reason: reason, kind: ErrValidation}
}

func NewAlreadyExistsError(field string) error {
	return &FieldError{Field: field, Reason: "value is already taken", kind: ErrAlreadyExists}
}

func NewForbiddenError(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrForbidden)
}
