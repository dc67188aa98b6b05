// Package domainerrors defines the coded errors the service layer returns to
// callers. Stores return sentinel errors (pkg/platform/sentinel); services
// translate those facts into one of the codes below so transports can map them
// without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and caller handling.
type Code string

const (
	// CodeValidation marks malformed input with field-level detail in the message.
	CodeValidation Code = "validation_error"
	// CodeBadRequest marks a request body that could not be decoded at all.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks a referenced entity that does not exist.
	CodeNotFound Code = "not_found"
	// CodeInvalidStatus marks an operation attempted from a state that does not
	// permit it. Messages always name the required state(s).
	CodeInvalidStatus Code = "invalid_status"
	// CodeAlreadyExists marks an attempt to create a duplicate of a resource
	// that must be unique, such as a second active adverse action for an order.
	CodeAlreadyExists Code = "already_exists"
	// CodeNoActiveMatrix marks an adjudication run with no matrix specified and
	// no active matrix to fall back to.
	CodeNoActiveMatrix Code = "no_active_matrix"
	// CodeAmbiguousMatrix marks an adjudication run with no matrix specified
	// and more than one active matrix.
	CodeAmbiguousMatrix Code = "ambiguous_matrix"
	// CodeMissingApplicant marks adverse-action initiation for an order whose
	// applicant has no contact address.
	CodeMissingApplicant Code = "missing_applicant"
	// CodeConflict marks a uniqueness or concurrent-update violation.
	CodeConflict Code = "conflict"
	// CodeInternal marks persistence or infrastructure failures. Transports
	// must not leak the message to callers.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. It may wrap an underlying cause.
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

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. The cause stays
// reachable through errors.Unwrap for logging; transports only see the code.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is a readability alias for HasCode used at handler call sites.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that never passed through this package.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-safe message from err. Uncoded errors yield a
// generic message so internals never leak.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
