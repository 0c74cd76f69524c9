// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package errors

// ErrCode is type for multiple reconizable errors.
type ErrCode int

// error codes
const (
	// if error is unknown
	Unknown ErrCode = 0

	// if the named throttler or session is not found
	NotFound ErrCode = 1

	// if the named throttler or session is already present
	AlreadyExists ErrCode = 2

	// if the argument is not valid
	InvalidArgument ErrCode = 3

	// if the operation is not valid in the current state,
	// for example releasing a transfer that was never registered
	PreconditionFailed ErrCode = 4
)

// String returns a short name for the error code, used in
// diagnostics and log fields
func (c ErrCode) String() string {
	switch c {
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case InvalidArgument:
		return "InvalidArgument"
	case PreconditionFailed:
		return "PreconditionFailed"
	}
	return "Unknown"
}
