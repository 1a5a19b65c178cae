// Package errors defines the structured error taxonomy for the transform and
// batch pipeline. Every error carries a stable code so outcomes and reports
// can classify failures without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes. Configuration errors are fatal at load time; all other codes
// are scoped to a row, block or file and convert to a failed outcome.
const (
	CodeConfiguration = "CONFIGURATION_ERROR"
	CodeFormat        = "FORMAT_ERROR"
	CodeValidation    = "VALIDATION_ERROR"
	CodePath          = "PATH_ERROR"
	CodeSize          = "SIZE_ERROR"
	CodeSchema        = "SCHEMA_ERROR"
	CodeLockTimeout   = "LOCK_TIMEOUT"
	CodeGeometry      = "GEOMETRY_WARNING"
	CodeComputation   = "COMPUTATION_WARNING"
)

// Error is a structured pipeline error with a classification code and
// optional details for reports.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// New creates an error with the given code and formatted message.
func New(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error with the given code and message wrapping a cause.
func Wrap(code string, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithDetails attaches structured details and returns the error.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// CodeOf returns the code of err if it is (or wraps) a structured Error,
// otherwise the empty string.
func CodeOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}

// IsFatal reports whether err must abort the whole run. Only load-time
// configuration errors qualify.
func IsFatal(err error) bool {
	return HasCode(err, CodeConfiguration)
}
