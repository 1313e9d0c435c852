// Package errors provides a lightweight structured error type (SiteError)
// for category-based classification of build failures in the pipeline and CLI.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrorCategory represents the category of a site build error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Rendering errors
	CategoryTemplate ErrorCategory = "template"
	CategoryWidget   ErrorCategory = "widget"
	CategoryRender   ErrorCategory = "render"

	// Runtime and infrastructure errors
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryRuntime    ErrorCategory = "runtime"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the build
	SeverityError   ErrorSeverity = "error"   // Page lost, build continues
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded input
	SeverityInfo    ErrorSeverity = "info"
)

// SiteError is a structured error with category, severity, and context
type SiteError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for SiteError
type ContextFields map[string]any

// Error implements the error interface
func (e *SiteError) Error() string {
	msg := e.Message
	if url, ok := e.Context["url"]; ok {
		msg = fmt.Sprintf("%s %q", msg, url)
	}
	if other, ok := e.Context["conflicts_with"]; ok {
		msg = fmt.Sprintf("%s (same output as %q)", msg, other)
	}
	if file, ok := e.Context["file"]; ok {
		msg = fmt.Sprintf("%s in %q", msg, file)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, msg, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, msg)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *SiteError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *SiteError) WithContext(key string, value any) *SiteError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// IsFatal reports whether the error must abort the build.
func (e *SiteError) IsFatal() bool {
	return e.Severity == SeverityFatal
}

// New creates a new SiteError
func New(category ErrorCategory, severity ErrorSeverity, message string) *SiteError {
	return &SiteError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new SiteError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *SiteError {
	return &SiteError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// As extracts the first SiteError in err's chain.
func As(err error) (*SiteError, bool) {
	var se *SiteError
	if stdErrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if se, ok := As(err); ok {
		return se.Category == category
	}
	return false
}

// IsFatal checks if an error is a fatal SiteError
func IsFatal(err error) bool {
	if se, ok := As(err); ok {
		return se.IsFatal()
	}
	return false
}
