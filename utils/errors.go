package utils

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category. Commands exit 1 on any coded
// error and log its message at error level.
type Code string

const (
	ErrCodeInvalidInput        Code = "INVALID_INPUT"
	ErrCodeFileNotFound        Code = "FILE_NOT_FOUND"
	ErrCodeMissingProjection   Code = "MISSING_PROJECTION"
	ErrCodeInvalidGeometryType Code = "INVALID_GEOMETRY_TYPE"
	ErrCodeMissingField        Code = "MISSING_FIELD"
	ErrCodeInvalidWorkspace    Code = "INVALID_WORKSPACE"
	ErrCodeInternal            Code = "INTERNAL"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
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

// NewError creates an Error with a formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error that wraps cause.
func WrapError(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsCode reports whether any error in err's chain is an *Error with code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message without the code prefix.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}
