// Package validation guards profile submissions before any generation starts.
package validation

import "errors"

// Code classifies a validation failure.
type Code string

// Validation failure codes.
const (
	CodeAgeRestricted            Code = "AgeRestricted"
	CodeMissingRequiredSelection Code = "MissingRequiredSelection"
	CodeMissingRequiredText      Code = "MissingRequiredText"
	CodeFailedVerification       Code = "FailedVerification"
)

// Sentinels for errors.Is matching against *Error values.
var (
	ErrAgeRestricted            = &Error{Code: CodeAgeRestricted}
	ErrMissingRequiredSelection = &Error{Code: CodeMissingRequiredSelection}
	ErrMissingRequiredText      = &Error{Code: CodeMissingRequiredText}
	ErrFailedVerification       = &Error{Code: CodeFailedVerification}
)

// Error represents a rejected profile submission. Error() is the message shown
// to the user; Cause is only reachable through Unwrap.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Terminal reports whether resubmitting the same input can never succeed.
func (e *Error) Terminal() bool {
	return e.Code == CodeAgeRestricted
}

// CodeOf returns the validation code carried by err, or "" when err is not a validation error.
func CodeOf(err error) Code {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
