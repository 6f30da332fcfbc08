package domain

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrValidation        = errors.New("validation error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNothingToClaim    = errors.New("nothing to claim")
	ErrStreamCancelled   = errors.New("stream cancelled")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPersistence       = errors.New("persistence failure")
	ErrConflict          = errors.New("concurrent modification")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

var classified = []error{
	ErrNotFound, ErrAlreadyExists, ErrValidation, ErrUnauthorized,
	ErrInvalidTransition, ErrNothingToClaim, ErrStreamCancelled,
	ErrInsufficientFunds, ErrPersistence, ErrConflict,
	context.Canceled, context.DeadlineExceeded,
}

// AsPersistence wraps a storage error with ErrPersistence unless it already
// carries one of the domain sentinels or a context error.
func AsPersistence(err error) error {
	if err == nil {
		return nil
	}
	for _, c := range classified {
		if errors.Is(err, c) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// IsRetryable reports whether the operation that produced err may succeed
// if repeated unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrConflict)
}
