// Package qerr carries the error taxonomy shared by the session core, the
// HTTP layer and the client SDK. Every error has a stable Code that maps to
// an HTTP status and a message that is safe to show to callers.
package qerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a stable error category that callers can switch on.
type Code string

const (
	CodeUnknown         Code = "unknown"
	CodeValidation      Code = "validation"
	CodeConflict        Code = "conflict"
	CodeNotFound        Code = "not_found"
	CodeUnauthorized    Code = "unauthorized"
	CodeUploadFailed    Code = "upload_failed"
	CodeInternal        Code = "internal"
	CodeTooManyAttempts Code = "too_many_attempts"

	// Client-side codes produced by the SDK.
	CodeExpiredToken  Code = "expired_token"
	CodeRefreshFailed Code = "refresh_failed"
)

// Status returns the HTTP status code for the category.
func (c Code) Status() int {
	switch c {
	case CodeValidation, CodeUploadFailed:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized, CodeExpiredToken, CodeRefreshFailed:
		return http.StatusUnauthorized
	case CodeTooManyAttempts:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a value type that carries a Code, a caller-facing message and the
// underlying error, if any.
type Error struct {
	Code    Code
	Message string
	err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Status returns the HTTP status code for the error.
func (e *Error) Status() int {
	return e.Code.Status()
}

// New wraps an error with the provided code. If err is nil a nil is returned.
func New(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: err.Error(), err: err}
}

// Wrap builds an error with an explicit message and keeps err as the cause.
func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, err: err}
}

func Validation(msg string) *Error   { return &Error{Code: CodeValidation, Message: msg} }
func Conflict(msg string) *Error     { return &Error{Code: CodeConflict, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Code: CodeNotFound, Message: msg} }
func Unauthorized(msg string) *Error { return &Error{Code: CodeUnauthorized, Message: msg} }
func Internal(msg string) *Error     { return &Error{Code: CodeInternal, Message: msg} }

// CodeOf extracts the Code from anywhere in err's chain. Errors that are not
// a *Error report CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode helps callers compare codes without type assertions.
func IsCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// MessageOf returns the caller-facing message of err, or fallback if err is
// not a *Error.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
