package domain

import (
	"errors"
	"fmt"
)

// Sentinels. Every typed error below unwraps to one of them, so callers can
// branch with errors.Is and only reach for errors.As when they need details.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	// ErrForbidden: the caller is not a participant of the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict: the pair's state forbids the action, e.g. a block.
	ErrConflict = errors.New("conflict")
)

// ValidationError names the offending field. Configuration errors of the
// data-access layer, such as an unknown column, use it too.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NotFoundError is the hard form of a missing row, raised by services where
// the repository's nil result is not acceptable.
type NotFoundError struct {
	Entity string
	ID     string
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AlreadyExistsError reports a unique value taken by another row, such as a
// username.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

// NewAlreadyExistsError creates an AlreadyExistsError.
func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{Entity: entity, ID: id}
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.ID)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }
