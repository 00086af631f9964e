package domain

import (
	"errors"
	"fmt"
)

// General errors
var (
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("validation failed")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)

// Entity lookups wrap ErrNotFound so callers can match either.
var (
	ErrProgressNotFound       = fmt.Errorf("progress record %w", ErrNotFound)
	ErrPreferencesNotFound    = fmt.Errorf("preferences %w", ErrNotFound)
	ErrRecommendationNotFound = fmt.Errorf("recommendation %w", ErrNotFound)
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a ValidationError for the named field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
