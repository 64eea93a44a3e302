// Package errors provides the structured error type (TrackError) used for
// category-based classification and retry decisions across the fetch,
// storage, and reporting layers.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory classifies a TrackError for handling decisions.
type ErrorCategory string

const (
	// Configuration and input errors, surfaced before any network call.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// External system integration errors.
	CategoryNetwork ErrorCategory = "network"
	CategoryTimeout ErrorCategory = "timeout"
	CategoryAuth    ErrorCategory = "auth"

	// Payload and persistence errors.
	CategoryDataShape ErrorCategory = "data_shape"
	CategoryStorage   ErrorCategory = "storage"

	// Runtime and infrastructure errors.
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the invocation
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded data
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// ContextFields carries structured context for a TrackError.
type ContextFields map[string]any

// TrackError is a structured error with category, retryability, and context.
type TrackError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *TrackError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As chains.
func (e *TrackError) Unwrap() error {
	return e.Cause
}

// WithContext adds a context field to the error.
func (e *TrackError) WithContext(key string, value any) *TrackError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new TrackError.
func New(category ErrorCategory, severity ErrorSeverity, message string) *TrackError {
	return &TrackError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: false,
	}
}

// Wrap creates a new TrackError that wraps an existing error.
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *TrackError {
	return &TrackError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// Retryable creates a new retryable TrackError.
func Retryable(category ErrorCategory, severity ErrorSeverity, message string) *TrackError {
	return &TrackError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: true,
	}
}

// WrapRetryable creates a new retryable TrackError that wraps an existing error.
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *TrackError {
	return &TrackError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsCategory reports whether err (or anything it wraps) is a TrackError of
// the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var te *TrackError
	if stderrors.As(err, &te) {
		return te.Category == category
	}
	return false
}

// IsRetryable reports whether err carries the retryable flag. Errors that are
// not TrackErrors are treated as non-retryable.
func IsRetryable(err error) bool {
	var te *TrackError
	if stderrors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or CategoryInternal when
// err is not a TrackError.
func GetCategory(err error) ErrorCategory {
	var te *TrackError
	if stderrors.As(err, &te) {
		return te.Category
	}
	return CategoryInternal
}
