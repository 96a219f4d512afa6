package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig    = "CONFIG"
	ErrSSH       = "SSH"
	ErrDiscovery = "DISCOVERY"
	ErrConnect   = "CONNECT"
	ErrFetch     = "FETCH"
	ErrDecode    = "DECODE"
	ErrInternal  = "INTERNAL"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrSSH code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrSSH,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Summary returns the message and cause on a single line, for log files and
// status bars where the multi-line rendering doesn't fit.
func (e *Error) Summary() string {
	if e.Cause == nil {
		return e.Message
	}
	cause := e.Cause.Error()
	var inner *Error
	if errors.As(e.Cause, &inner) {
		cause = inner.Summary()
	}
	return e.Message + ": " + cause
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
// Only the outermost structured error is considered.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var hfErr *Error
	if errors.As(err, &hfErr) {
		return hfErr.Code == code
	}
	return false
}

// Summary renders any error on one line. Structured errors use their
// Summary; everything else falls back to Error().
func Summary(err error) string {
	if err == nil {
		return ""
	}
	var hfErr *Error
	if errors.As(err, &hfErr) {
		return hfErr.Summary()
	}
	return err.Error()
}
