// internal/wire/errors.go
package wire

import (
	"errors"
	"fmt"
)

// Code classifies a request failure for the caller.
type Code string

const (
	CodeUnauthorized Code = "unauthorized"
	CodeBadRequest   Code = "badRequest"
	CodeConflict     Code = "conflict"
	CodeNotFound     Code = "notFound"
)

// Error is a request failure with a machine code and a human-readable
// message. Registry operations surface every failure as one of these.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Unauthorizedf(format string, args ...interface{}) *Error {
	return newError(CodeUnauthorized, format, args...)
}

func BadRequestf(format string, args ...interface{}) *Error {
	return newError(CodeBadRequest, format, args...)
}

func Conflictf(format string, args ...interface{}) *Error {
	return newError(CodeConflict, format, args...)
}

func NotFoundf(format string, args ...interface{}) *Error {
	return newError(CodeNotFound, format, args...)
}

// CodeOf extracts the code from an error, defaulting to badRequest for
// plain errors bubbled up from the transition functions.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeBadRequest
}
