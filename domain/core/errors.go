package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound = errors.New("resource not found")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")

	// Collaborator errors
	ErrEstimationFailure = errors.New("estimation failure")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewInvalidInputError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, reason)
}

func NewEstimationError(method string, cause error) error {
	return fmt.Errorf("%w: method %s: %v", ErrEstimationFailure, method, cause)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsEstimationFailure(err error) bool {
	return errors.Is(err, ErrEstimationFailure)
}
