// Package domainerrors defines coded errors for the domain and service
// layers. Stores return sentinel errors (pkg/platform/sentinel) for
// infrastructure facts; services translate those into coded errors which the
// transport layer maps onto HTTP statuses.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Codes are stable strings surfaced in API
// error envelopes, so renaming one is a breaking change.
type Code string

const (
	// CodeValidation marks malformed or out-of-range caller input, such as a
	// measurement failing normalization.
	CodeValidation Code = "validation_error"

	// CodeInvalidInput marks inputs rejected at a trust boundary before they
	// reach domain logic (unparseable IDs, bad enum values).
	CodeInvalidInput Code = "invalid_input"

	// CodeBadRequest marks requests that are syntactically broken (bad JSON,
	// missing body).
	CodeBadRequest Code = "bad_request"

	// CodeNotFound marks lookups for records that do not exist.
	CodeNotFound Code = "not_found"

	// CodeConflict marks optimistic-concurrency failures and concurrent
	// reviewer collisions. Callers should refetch and retry.
	CodeConflict Code = "conflict"

	// CodeInvalidTransition marks state machine misuse: the requested
	// transition is not legal from the record's current status. No state is
	// mutated.
	CodeInvalidTransition Code = "invalid_transition"

	// CodeInvariantViolation marks a domain invariant breach detected by a
	// model constructor or guard.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeConfiguration marks fatal startup misconfiguration, such as a
	// species table with no generic fallback.
	CodeConfiguration Code = "configuration_error"

	// CodeUnauthorized marks missing authentication context.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden marks authenticated but disallowed actions.
	CodeForbidden Code = "forbidden"

	// CodeInternal marks unexpected failures. Details are logged, never
	// surfaced to callers.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error, optionally wrapping a cause.
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

// New returns a coded error with the given message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf returns a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while preserving the cause for
// errors.Is/As chains. Returns nil if err is nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// CodeOf returns the code of the outermost coded error in the chain, or
// CodeInternal when err carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the message of the outermost coded error, or a generic
// message when err carries no code.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
