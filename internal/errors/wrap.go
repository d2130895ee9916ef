/**
 * Error Wrapping Utilities for MPTimer
 *
 * Provides convenience functions for error wrapping and creation
 *
 * Author: MPTimer Team
 * Created: 2025-02-06
 */

package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Errorf creates a formatted error.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// WrapTyped wraps an error with a specific error type.
func WrapTyped(errorType ErrorType, op string, err error) *Error {
	return New(errorType, op, "", err)
}

// Configuration returns a configuration error for a key.
func Configuration(op, key string, format string, args ...interface{}) *Error {
	return New(ErrorTypeConfiguration, op, key, fmt.Errorf(format, args...))
}

// WrapWithContext wraps an error, classifying it and recording the
// context deadline if any. Already typed errors are returned unchanged.
func WrapWithContext(ctx context.Context, err error, op, path string) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	wrapped := New(GetErrorType(err), op, path, err)
	if deadline, ok := ctx.Deadline(); ok {
		wrapped.WithContext("deadline", deadline)
	}

	return wrapped
}

// IsTemporary checks if an error is temporary/retryable.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}

	var e *Error
	if AsError(err, &e) {
		return e.IsRetryable()
	}

	return GetErrorType(err).IsRetryable()
}

// IsType reports whether err is or wraps an *Error of the given type.
func IsType(err error, errorType ErrorType) bool {
	var e *Error
	return AsError(err, &e) && e.Type == errorType
}

// AsError checks if an error is of type *Error and assigns it.
func AsError(err error, target **Error) bool {
	if err == nil {
		return false
	}
	return errors.As(err, target)
}
