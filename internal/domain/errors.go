package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates that a detection policy change was rejected.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUpstreamFetch indicates that the active feedback pool could not be read.
	// Callers must treat it as "unable to determine duplicate status", never as
	// "no duplicates found".
	ErrUpstreamFetch = errors.New("unable to fetch active feedback")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ConfigError describes a rejected policy field.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// FetchError wraps a failure of the active-item store.
type FetchError struct {
	Source string
	Cause  error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch active feedback from %s: %v", e.Source, e.Cause)
}

// Is reports ErrUpstreamFetch so callers can match without unwrapping the cause.
func (e *FetchError) Is(target error) bool {
	return target == ErrUpstreamFetch
}

// Unwrap returns the underlying cause error.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewFetchError creates a new FetchError.
func NewFetchError(source string, cause error) *FetchError {
	return &FetchError{
		Source: source,
		Cause:  cause,
	}
}
