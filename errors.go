package funnel

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a structured error response understood by the pipeline's
// default responder. It implements the error interface.
type Error struct {
	Status  int            `json:"-"`                 // HTTP status code (not in JSON)
	Code    string         `json:"code"`              // Machine-readable error code
	Message string         `json:"message"`           // Human-readable message
	Details map[string]any `json:"details,omitempty"` // Optional context
}

// Error implements the error interface.
func (e Error) Error() string {
	return e.Message
}

// WithMessage returns a copy of the error with a custom message.
func (e Error) WithMessage(message string) Error {
	e.Message = message
	return e
}

// WithDetails returns a copy of the error with additional details.
func (e Error) WithDetails(details map[string]any) Error {
	e.Details = details
	return e
}

// Predefined HTTP errors using http.StatusText for default messages.
var (
	ErrBadRequest          = Error{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: http.StatusText(http.StatusBadRequest)}
	ErrUnauthorized        = Error{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: http.StatusText(http.StatusUnauthorized)}
	ErrForbidden           = Error{Status: http.StatusForbidden, Code: "FORBIDDEN", Message: http.StatusText(http.StatusForbidden)}
	ErrNotFound            = Error{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: http.StatusText(http.StatusNotFound)}
	ErrConflict            = Error{Status: http.StatusConflict, Code: "CONFLICT", Message: http.StatusText(http.StatusConflict)}
	ErrUnprocessableEntity = Error{Status: http.StatusUnprocessableEntity, Code: "UNPROCESSABLE_ENTITY", Message: http.StatusText(http.StatusUnprocessableEntity)}
	ErrTooManyRequests     = Error{Status: http.StatusTooManyRequests, Code: "TOO_MANY_REQUESTS", Message: http.StatusText(http.StatusTooManyRequests)}
	ErrInternalServerError = Error{Status: http.StatusInternalServerError, Code: "INTERNAL_SERVER_ERROR", Message: http.StatusText(http.StatusInternalServerError)}
)

// Wrapping and dispatch errors.
var (
	// ErrNotWrappable is returned by Wrap when the target is neither a
	// callable nor a constructible bundle.
	ErrNotWrappable = errors.New("target must be a callable or a constructible bundle")

	// ErrNilCallable is returned when wrapping a nil *Callable.
	ErrNilCallable = errors.New("callable is nil")

	// ErrNilBundle is returned when wrapping a nil *Bundle.
	ErrNilBundle = errors.New("bundle is nil")

	// ErrNotController is returned by FromController when the value is not a
	// non-nil pointer to a struct.
	ErrNotController = errors.New("controller must be a non-nil struct pointer")

	// ErrMissingContinuation reports an invocation whose trailing argument is
	// not a continuation. The call is aborted; there is no delivery channel.
	ErrMissingContinuation = errors.New("trailing argument is not a continuation")

	// ErrUnknownMember is returned when a bundle member lookup fails.
	ErrUnknownMember = errors.New("bundle member not found")
)

// toError converts any recovered or rejected value to an error.
func toError(v any) error {
	switch e := v.(type) {
	case error:
		return e
	case string:
		return errors.New(e)
	default:
		return fmt.Errorf("failure: %v", e)
	}
}
