package service

import (
	"errors"
	"fmt"

	"github.com/stroyteh/kanban-service/internal/repository"
)

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate key, non-empty column)
	ErrConflict = errors.New("resource conflict")

	// ErrForbidden is returned when the caller lacks the role for an action
	ErrForbidden = errors.New("permission denied")

	// ErrUnauthorized is returned when the caller is not authenticated
	ErrUnauthorized = errors.New("unauthorized")
)

// notFound wraps ErrNotFound with the missing resource name
func notFound(resource string) error {
	return fmt.Errorf("%w: %s not found", ErrNotFound, resource)
}

// conflict wraps ErrConflict with a message
func conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// invalid wraps ErrInvalidInput with a message
func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// translate maps repository errors onto service sentinels
func translate(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case repository.IsNotFound(err):
		return notFound(resource)
	case repository.IsUniqueViolation(err):
		return conflict("%s already exists", resource)
	}
	return err
}
