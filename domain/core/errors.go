package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrStudyNotFound    = fmt.Errorf("%w: study", ErrNotFound)
	ErrVariableNotFound = fmt.Errorf("%w: variable", ErrNotFound)

	// Table shape errors
	ErrEmptyData     = errors.New("no observations available")
	ErrColumnExists  = errors.New("column already present")
	ErrColumnLength  = errors.New("column length differs from table row count")
	ErrShapeMismatch = errors.New("row count mismatch between paired tables")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid assembler configuration")
	ErrInvalidStyle  = errors.New("invalid figure style")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewVariableLookupError(name string) error {
	return fmt.Errorf("%w: %q", ErrVariableNotFound, name)
}

func NewShapeMismatchError(context string, want, got int) error {
	return fmt.Errorf("%w: %s expected %d rows, got %d", ErrShapeMismatch, context, want, got)
}

func NewConfigError(field string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidConfig, field, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsLookupError(err error) bool {
	return errors.Is(err, ErrVariableNotFound)
}

func IsShapeMismatchError(err error) bool {
	return errors.Is(err, ErrShapeMismatch)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidStyle) ||
		errors.Is(err, ErrEmptyData) ||
		errors.Is(err, ErrColumnExists) ||
		errors.Is(err, ErrColumnLength)
}
