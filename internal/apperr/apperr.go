// Package apperr defines the application error taxonomy. Services and
// middleware raise *Error values; the HTTP layer maps them onto status codes
// and the response envelope without leaking internal detail.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for status mapping.
type Kind string

const (
	InvalidID            Kind = "invalid_id"
	InvalidRequestBody   Kind = "invalid_request_body"
	Unauthorized         Kind = "unauthorized"
	Forbidden            Kind = "forbidden"
	NotFound             Kind = "not_found"
	Conflict             Kind = "conflict"
	DuplicateField       Kind = "duplicate_field"
	InvalidReference     Kind = "invalid_reference"
	InvalidSelfReference Kind = "invalid_self_reference"
	StorageFailure       Kind = "storage_failure"
	Configuration        Kind = "configuration"
)

// Error is a typed application error with a client-safe message and optional
// details. The wrapped cause is kept for logs only and never serialized.
type Error struct {
	Kind    Kind
	Message string
	Details string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error of the given kind with a client-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithDetails attaches client-safe details and returns the error.
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// Wrap creates an error of the given kind carrying an internal cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case InvalidID, InvalidRequestBody, DuplicateField, InvalidReference, InvalidSelfReference:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// From extracts the *Error from err, or wraps err as an opaque StorageFailure
// so unexpected errors never expose internals to clients.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(StorageFailure, "internal server error", err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
