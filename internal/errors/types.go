/**
 * Error Types for MPTimer
 *
 * Structured error types for the glue around the estimator: configuration
 * loading, the session journal and replay input. The estimator core itself
 * has no error paths.
 *
 * Author: MPTimer Team
 * Created: 2025-02-06
 */

package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/mattn/go-sqlite3"
)

// ErrorType represents the category of error.
type ErrorType int

const (
	// ErrorTypeUnknown represents an unknown error
	ErrorTypeUnknown ErrorType = iota

	// ErrorTypeConfiguration represents invalid tuning or preferences
	ErrorTypeConfiguration

	// ErrorTypeStorage represents journal database or file errors (may be transient)
	ErrorTypeStorage

	// ErrorTypeInput represents malformed replay input
	ErrorTypeInput

	// ErrorTypeCorruption represents a journal that is internally inconsistent
	ErrorTypeCorruption

	// ErrorTypeContext represents context cancellation or timeout
	ErrorTypeContext
)

// String returns the string representation of ErrorType.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeConfiguration:
		return "Configuration"
	case ErrorTypeStorage:
		return "Storage"
	case ErrorTypeInput:
		return "Input"
	case ErrorTypeCorruption:
		return "Corruption"
	case ErrorTypeContext:
		return "Context"
	default:
		return "Unknown"
	}
}

// IsRetryable returns whether the error type is retryable.
func (et ErrorType) IsRetryable() bool {
	return et == ErrorTypeStorage
}

// Error represents a structured error with metadata.
type Error struct {
	// Type categorizes the error
	Type ErrorType

	// Op represents the operation being performed
	Op string

	// Path represents the file, key or session the error concerns
	Path string

	// Err is the underlying error
	Err error

	// Retry contains retry-specific information
	Retry *RetryInfo

	// Context contains additional context information
	Context map[string]interface{}

	// Timestamp when the error occurred
	Timestamp time.Time
}

// RetryInfo contains information about retry attempts.
type RetryInfo struct {
	Attempt         int
	MaxAttempts     int
	BackoffDuration time.Duration
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s [%s] %v", e.Type, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s %v", e.Type, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns whether the error is retryable.
func (e *Error) IsRetryable() bool {
	return e.Type.IsRetryable()
}

// ShouldRetry checks if the error should be retried based on attempts.
func (e *Error) ShouldRetry() bool {
	if !e.IsRetryable() || e.Retry == nil {
		return false
	}
	return e.Retry.Attempt < e.Retry.MaxAttempts
}

// New creates a new Error.
func New(errorType ErrorType, op, path string, err error) *Error {
	return &Error{
		Type:      errorType,
		Op:        op,
		Path:      path,
		Err:       err,
		Timestamp: time.Now(),
		Context:   make(map[string]interface{}),
	}
}

// WithContext adds context information.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRetry adds retry information.
func (e *Error) WithRetry(attempt, maxAttempts int, backoff time.Duration) *Error {
	e.Retry = &RetryInfo{
		Attempt:         attempt,
		MaxAttempts:     maxAttempts,
		BackoffDuration: backoff,
	}
	return e
}

// ErrorBatch collects errors from an operation that continues past them,
// such as reading a replay file with malformed lines.
type ErrorBatch struct {
	Errors []*Error
	Op     string
}

// Error implements the error interface for ErrorBatch.
func (eb *ErrorBatch) Error() string {
	if len(eb.Errors) == 0 {
		return fmt.Sprintf("%s: no errors", eb.Op)
	}
	return fmt.Sprintf("%s: %d errors occurred, first: %v", eb.Op, len(eb.Errors), eb.Errors[0])
}

// Add adds an error to the batch.
func (eb *ErrorBatch) Add(err *Error) {
	eb.Errors = append(eb.Errors, err)
}

// HasErrors returns whether the batch contains any errors.
func (eb *ErrorBatch) HasErrors() bool {
	return len(eb.Errors) > 0
}

// IsContextError checks if the error is due to context cancellation.
func IsContextError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// GetErrorType attempts to determine the error type from a generic error.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}

	if IsContextError(err) {
		return ErrorTypeContext
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
			return ErrorTypeCorruption
		case sqlite3.ErrConstraint:
			return ErrorTypeInput
		default:
			return ErrorTypeStorage
		}
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return ErrorTypeStorage
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ErrorTypeInput
	}

	return ErrorTypeUnknown
}
