package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindUnavailable
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnavailable:
		return "unavailable"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

// Error is the single error shape the services hand back to callers.
// Sentinel values are compared with errors.Is (pointer identity).
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Op      string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Invalid wraps field level failures (usually validation.Errors) as a
// KindValidation error carrying them in Details.
func Invalid(fields error) error {
	if fields == nil {
		return nil
	}

	return &Error{
		Kind:    KindValidation,
		Code:    "validation_failed",
		Message: "Invalid request",
		Details: map[string]interface{}{"fields": fields},
		Err:     fields,
	}
}

// Storage converts a persistence failure into a KindStorage error.
// Errors that already carry a Kind pass through untouched.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}

	return &Error{
		Kind:    KindStorage,
		Code:    "storage_error",
		Message: "storage operation failed",
		Op:      op,
		Err:     err,
	}
}

// Internal is used for failures that are neither domain nor storage related
// (hashing, token signing).
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindInternal, Code: "internal_error", Message: fmt.Sprintf("%s failed", op), Op: op, Err: err}
}

// KindOf reports the Kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

