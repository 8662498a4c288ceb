package ir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes graph model and pass errors.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates a missing or unusable handle was passed in.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeIllegalState indicates a structural invariant is violated: wrong
	// port arity, duplicate Id on insertion, a chain that never reaches its end.
	ErrCodeIllegalState ErrorCode = "ILLEGAL_STATE"

	// ErrCodeInternal indicates a condition that signals a bug in the pass pipeline.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Error is returned by graph mutations and passes when an invariant breaks.
//
// ProcessID names the offending process when one is known so the driver can
// report it without parsing the message.
type Error struct {
	Code      ErrorCode
	Message   string
	ProcessID Id
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProcessID != "" {
		return fmt.Sprintf("%s: %s (process=%s)", e.Code, e.Message, e.ProcessID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewIllegalState creates an ILLEGAL_STATE error for process id.
func NewIllegalState(id Id, format string, args ...any) *Error {
	return &Error{Code: ErrCodeIllegalState, Message: fmt.Sprintf(format, args...), ProcessID: id}
}

// NewInvalidArgument creates an INVALID_ARGUMENT error.
func NewInvalidArgument(format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NewInternal creates an INTERNAL error for process id.
func NewInternal(id Id, format string, args ...any) *Error {
	return &Error{Code: ErrCodeInternal, Message: fmt.Sprintf(format, args...), ProcessID: id}
}

// IsIllegalState reports whether err wraps an ILLEGAL_STATE error.
func IsIllegalState(err error) bool {
	return hasCode(err, ErrCodeIllegalState)
}

// IsInvalidArgument reports whether err wraps an INVALID_ARGUMENT error.
func IsInvalidArgument(err error) bool {
	return hasCode(err, ErrCodeInvalidArgument)
}

// IsInternal reports whether err wraps an INTERNAL error.
func IsInternal(err error) bool {
	return hasCode(err, ErrCodeInternal)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
