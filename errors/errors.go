// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package errors

import (
	stderrors "errors"
	"fmt"
)

// GetErrCode returns the error code if the error, or any error
// it wraps, is associated to recognizable error types
func GetErrCode(err error) ErrCode {
	var val *Error
	if stderrors.As(err, &val) {
		return val.code
	}
	return Unknown
}

// base error structure
type Error struct {
	code ErrCode
	msg  string
}

// Error() prints out the error message string
func (e *Error) Error() string {
	return e.msg
}

// Code returns the recognized error code
func (e *Error) Code() ErrCode {
	return e.code
}

// Creates a new error msg without error code
func New(msg string) error {
	return &Error{
		msg: msg,
	}
}

// Wraps the error msg with recognized error codes
func Wrap(code ErrCode, msg string) error {
	return &Error{
		code: code,
		msg:  msg,
	}
}

// Wrapf formats the error msg and wraps it with recognized error codes
func Wrapf(code ErrCode, format string, v ...any) error {
	return &Error{
		code: code,
		msg:  fmt.Sprintf(format, v...),
	}
}

// IsNotFound returns true if err
// item isn't found in the space
func IsNotFound(err error) bool {
	return GetErrCode(err) == NotFound
}

// IsAlreadyExists returns true if err
// item already exists in the space
func IsAlreadyExists(err error) bool {
	return GetErrCode(err) == AlreadyExists
}

// IsInvalidArgument returns true if err
// item is invalid argument
func IsInvalidArgument(err error) bool {
	return GetErrCode(err) == InvalidArgument
}

// IsPreconditionFailed returns true if err
// reports an operation issued in the wrong state
func IsPreconditionFailed(err error) bool {
	return GetErrCode(err) == PreconditionFailed
}
