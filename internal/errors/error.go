package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	// CategoryUsage marks misconfiguration detectable without running hooks.
	CategoryUsage Category = "usage"
	// CategoryWarning marks non-fatal anomalies.
	CategoryWarning Category = "warning"
	// CategoryHook marks errors raised by user-supplied hooks.
	CategoryHook   Category = "hook"
	CategoryConfig Category = "config"
	CategoryCLI    Category = "cli"
)

// Location identifies the source file responsible for an error.
type Location struct {
	File string
	Line int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return l.File
}

// VPSError is a structured error with a code, a category and an optional
// source file.
type VPSError struct {
	// Code is a unique error identifier (e.g., "E211").
	Code string

	// Category is the error type (usage, warning, hook, ...).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the page file the error originates from, if known.
	Location *Location

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *VPSError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Location != nil {
		msg += " (" + e.Location.String() + ")"
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *VPSError) Unwrap() error {
	return e.Wrapped
}

// WithFile attaches the source file the error originates from.
func (e *VPSError) WithFile(file string) *VPSError {
	if file != "" {
		e.Location = &Location{File: file}
	}
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *VPSError) WithSuggestion(s string) *VPSError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *VPSError) WithDetail(d string) *VPSError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted detailed explanation to the error.
func (e *VPSError) WithDetailf(format string, args ...any) *VPSError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *VPSError) Wrap(err error) *VPSError {
	e.Wrapped = err
	return e
}

// New creates a VPSError from a registered error code.
func New(code string) *VPSError {
	template, ok := registry[code]
	if !ok {
		return &VPSError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &VPSError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new VPSError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *VPSError {
	return &VPSError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a VPSError.
// Errors that already carry a VPSError are returned unchanged.
func FromError(err error, code string) *VPSError {
	if err == nil {
		return nil
	}
	var ve *VPSError
	if stderrors.As(err, &ve) {
		return ve
	}
	return New(code).Wrap(err)
}

// CategoryOf returns the category of the first VPSError in err's tree,
// or "" when there is none.
func CategoryOf(err error) Category {
	var ve *VPSError
	if stderrors.As(err, &ve) {
		return ve.Category
	}
	return ""
}

// IsUsage reports whether err is (or wraps) a usage error.
func IsUsage(err error) bool { return CategoryOf(err) == CategoryUsage }

// IsHook reports whether err is (or wraps) a hook runtime error.
func IsHook(err error) bool { return CategoryOf(err) == CategoryHook }

// IsWarning reports whether err is (or wraps) a warning.
func IsWarning(err error) bool { return CategoryOf(err) == CategoryWarning }

// HasCode reports whether any VPSError in err's tree has the given code.
// Joined errors are searched entry by entry.
func HasCode(err error, code string) bool {
	switch x := err.(type) {
	case nil:
		return false
	case *VPSError:
		return x.Code == code || HasCode(x.Wrapped, code)
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if HasCode(e, code) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return HasCode(x.Unwrap(), code)
	}
	return false
}

// Join combines the non-nil errors into one report. It returns nil when
// every error is nil and the error itself when only one is non-nil.
func Join(errs ...error) error {
	var kept []error
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return stderrors.Join(kept...)
}

// Is and As re-export the standard library helpers so callers importing
// this package under the name errors keep access to them.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is the standard library errors.As.
func As(err error, target any) bool { return stderrors.As(err, target) }
