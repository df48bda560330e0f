// Package domainerrors carries a small, transport-agnostic error taxonomy.
// Services return these; handlers map the code to a status via httputil.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a failure independently of the transport.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_error"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeUnavailable  Code = "unavailable"
	CodeBadGateway   Code = "bad_gateway"
	CodeInternal     Code = "internal_error"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether the outermost coded error in the chain has code.
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// CodeOf returns the code of the outermost coded error in the chain.
func CodeOf(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// MessageOf returns the message of the outermost coded error, or err.Error().
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
