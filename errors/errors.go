// Package errors defines the structured error kind used across the
// anchor service (spec.md §7): a message, a short machine code, the
// HTTP status it carries, and an optional detail map for machine
// parsing. Handlers never let an unhandled error reach the transport —
// they either emit a *Error verbatim or wrap the unknown failure as an
// opaque 500.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a short machine-readable error identifier, carried in the
// HTTP error envelope's "code" field.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"

	// Opaque implementation-defined kinds (spec.md §6.2: "plus
	// implementation-defined opaque kinds").
	CodeInvalidChallenge Code = "invalid_challenge"
	CodeInternal         Code = "error"
)

var statusByCode = map[Code]int{
	CodeBadRequest:       http.StatusBadRequest,
	CodeUnauthorized:     http.StatusUnauthorized,
	CodeForbidden:        http.StatusForbidden,
	CodeNotFound:         http.StatusNotFound,
	CodeConflict:         http.StatusConflict,
	CodeInvalidChallenge: http.StatusBadRequest,
	CodeInternal:         http.StatusInternalServerError,
}

// Error is the one structured error kind used throughout the service.
type Error struct {
	Code       Code
	Message    string
	HTTPStatus int
	Layer      string // e.g. "auth", "engine", "hook", "store", "http", "config", "chainclient", "observer"
	Cause      error
	Detail     map[string]any
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports equality by Code, so callers can test with errors.Is(err,
// errors.NotFound("", nil)) without constructing a matching detail map.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func newError(code Code, layer, message string, cause error) *Error {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		Layer:      layer,
		Cause:      cause,
		Retryable:  status >= 500,
	}
}

// BadRequest builds a 400 error.
func BadRequest(layer, message string, cause error) *Error {
	return newError(CodeBadRequest, layer, message, cause)
}

// Unauthorized builds a 401 error.
func Unauthorized(layer, message string, cause error) *Error {
	return newError(CodeUnauthorized, layer, message, cause)
}

// Forbidden builds a 403 error.
func Forbidden(layer, message string, cause error) *Error {
	return newError(CodeForbidden, layer, message, cause)
}

// NotFound builds a 404 error.
func NotFound(layer, message string, cause error) *Error {
	return newError(CodeNotFound, layer, message, cause)
}

// Conflict builds a 409 error.
func Conflict(layer, message string, cause error) *Error {
	return newError(CodeConflict, layer, message, cause)
}

// InvalidChallenge builds a 400 error carrying the opaque
// "invalid_challenge" code SEP-10 verification failures use
// (spec.md §4.2 "Failure semantics").
func InvalidChallenge(layer, message string, cause error) *Error {
	return newError(CodeInvalidChallenge, layer, message, cause)
}

// InvalidChallengeRetryable is InvalidChallenge with the retryable hint
// set, for the bounded chain-lookup timeout case (spec.md §5, §7).
func InvalidChallengeRetryable(layer, message string, cause error) *Error {
	e := newError(CodeInvalidChallenge, layer, message, cause)
	e.Retryable = true
	return e
}

// Internal builds a generic 500, used to wrap unknown (unstructured)
// failures before they reach the transport (spec.md §7 "Propagation
// policy").
func Internal(layer, message string, cause error) *Error {
	return newError(CodeInternal, layer, message, cause)
}

// WithDetail attaches machine-parseable detail fields and returns e for
// chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Detail == nil {
		e.Detail = make(map[string]any)
	}
	e.Detail[key] = value
	return e
}

// AsError unwraps err into the service's structured kind, if it is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
