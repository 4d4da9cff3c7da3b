package booking

import (
	"errors"
	"fmt"
)

// Code classifies a failed engine operation. Exactly one code per failure.
type Code string

const (
	CodeValidation          Code = "validation"
	CodeNotFound            Code = "not_found"
	CodeCapacityFull        Code = "capacity_full"
	CodeDuplicateBooking    Code = "duplicate_booking"
	CodePatientTimeConflict Code = "patient_time_conflict"
	CodeForbidden           Code = "forbidden"
	CodeInvalidTransition   Code = "invalid_transition"
	CodeAlreadyCancelled    Code = "already_cancelled"
	CodeHasActiveBookings   Code = "has_active_bookings"
	CodeInternal            Code = "internal"
)

// Error is the typed domain error returned by engine operations.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// internalError wraps a storage or infrastructure failure. Driver detail
// stays behind the message and never reaches API clients.
func internalError(err error, message string) *Error {
	return &Error{Code: CodeInternal, Message: message, cause: err}
}

// CodeOf extracts the domain code from err, or CodeInternal for anything
// untyped.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given domain code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
