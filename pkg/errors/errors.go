// Package errors defines the domain error type shared across services and the
// HTTP transport. Services return *Error values with a machine-readable code;
// the transport maps codes to HTTP statuses and decides how much detail the
// caller may see.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping and logging.
type Code string

const (
	CodeInvalidRequest  Code = "invalid_request"
	CodePaymentRequired Code = "payment_required"
	CodeNotFound        Code = "not_found"
	CodeInternal        Code = "internal_error"
)

// Error carries a code plus a human-readable message. The message for
// CodeInvalidRequest and CodeNotFound may be echoed to callers; internal
// messages never are.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New constructs a domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a domain error that preserves the underlying cause for
// errors.Is/As chains while presenting a controlled message.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf extracts the domain code from an error chain, defaulting to
// CodeInternal for unclassified errors.
func CodeOf(err error) Code {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// MessageOf extracts the domain message from an error chain. Unclassified
// errors yield a generic message so internal detail never leaks.
func MessageOf(err error) string {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.Message
	}
	return "internal server error"
}

// ToHTTPStatus maps a domain code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodePaymentRequired:
		return http.StatusPaymentRequired
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
