// Package errors provides the structured error type shared by PoseKit components.
//
// ContextualError records which component failed, what it was doing, and the
// optional HTTP status returned by a collaborator. It implements Unwrap so the
// standard errors.Is / errors.As helpers see through it.
//
// Usage:
//
//	err := errors.New("restclient", "StartSession", cause).WithStatusCode(503)
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrUnauthorized marks a 401 from the REST collaborator.
var ErrUnauthorized = stderrors.New("unauthorized")

// ContextualError is a structured error type that provides consistent context
// about where and why an error occurred.
type ContextualError struct {
	// Component identifies the package that produced the error (e.g. "restclient", "config").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// StatusCode is an optional HTTP status code.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError with the given component, operation, and cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Error returns a human-readable representation of the error.
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)

	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Unwrap returns the underlying cause, enabling use with errors.Is and errors.As.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// WithStatusCode sets the status code and returns the error for chaining.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetails sets the details map and returns the error for chaining.
func (e *ContextualError) WithDetails(details map[string]any) *ContextualError {
	e.Details = details
	return e
}

// StatusCode extracts the status code from the first ContextualError in err's chain.
// Returns 0 when there is none.
func StatusCode(err error) int {
	var ce *ContextualError
	if stderrors.As(err, &ce) {
		return ce.StatusCode
	}
	return 0
}
