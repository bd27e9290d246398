// Package apperror holds the error kinds shared by the ledger and the catalog.
// Callers classify with errors.Is against the sentinel kinds; the message of
// the wrapping error is what ends up in the HTTP error body.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrRemoteUnavailable = errors.New("remote service unavailable")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func newKind(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return newKind(ErrNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return newKind(ErrConflict, format, args...)
}

func Validation(format string, args ...any) error {
	return newKind(ErrValidation, format, args...)
}

// RemoteUnavailable keeps cause in the chain so transport errors stay inspectable.
func RemoteUnavailable(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return &kindError{kind: ErrRemoteUnavailable, msg: msg}
	}
	return &causeError{kindError: kindError{kind: ErrRemoteUnavailable, msg: msg}, cause: cause}
}

type causeError struct {
	kindError
	cause error
}

func (e *causeError) Unwrap() []error { return []error{e.kind, e.cause} }

// HTTPStatus maps an error to the status code both services answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus turns a status code received from a peer service back into a kind.
func FromStatus(status int, message string) error {
	switch {
	case status == http.StatusNotFound:
		return NotFound("%s", message)
	case status == http.StatusConflict:
		return Conflict("%s", message)
	case status == http.StatusBadRequest:
		return Validation("%s", message)
	default:
		return RemoteUnavailable(nil, "remote call failed with status %d: %s", status, message)
	}
}
