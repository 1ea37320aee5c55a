// Package errors provides the generic error kinds shared by every layer. Domain packages
// build their own sentinels on top of these so callers can match either the precise
// failure or its broad kind with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

// Generic error kinds.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates the resource already exists.
	ErrConflict = errors.New("conflict")

	// ErrForbidden indicates the operation is not permitted in the current state.
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable indicates a required backend cannot be reached or used.
	ErrUnavailable = errors.New("unavailable")

	// ErrIntegrity indicates data failed an integrity or authenticity check.
	ErrIntegrity = errors.New("integrity check failed")
)

// Wrap wraps an error with additional context while preserving the error chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Tag creates a sentinel error with its own message that also matches every kind in
// kinds. Use it to declare domain errors belonging to more than one category.
func Tag(message string, kinds ...error) error {
	return &taggedError{message: message, kinds: kinds}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

type taggedError struct {
	message string
	kinds   []error
}

func (e *taggedError) Error() string {
	return e.message
}

func (e *taggedError) Unwrap() []error {
	return e.kinds
}
