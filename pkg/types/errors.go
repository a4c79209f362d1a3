// Package types defines the data model shared across the Cedrus core:
// project identifiers, entities, policies, templates, and the error kinds
// every component returns.
package types

import (
	"errors"
	"fmt"
)

// Kind classifies a core error. Callers switch on Kind rather than parsing
// Error strings.
type Kind string

const (
	KindNoSuchProject        Kind = "no_such_project"
	KindNoSuchEntity         Kind = "no_such_entity"
	KindNoSuchPolicy         Kind = "no_such_policy"
	KindNoSuchTemplate       Kind = "no_such_template"
	KindNoSuchLink           Kind = "no_such_link"
	KindIDConflict           Kind = "id_conflict"
	KindReferentialIntegrity Kind = "referential_integrity"
	KindInvalidSchema        Kind = "invalid_schema"
	KindInvalidPolicy        Kind = "invalid_policy"
	KindInvalidEntity        Kind = "invalid_entity"
	KindInvalidSlot          Kind = "invalid_slot"
	KindSchemaMismatch       Kind = "schema_mismatch"
	KindBackendUnavailable   Kind = "backend_unavailable"
	KindPartiallyDurable     Kind = "partially_durable"
	KindUnauthorized         Kind = "unauthorized"
)

// Error is the error type returned by every core operation. It carries a
// Kind for programmatic branching plus a human-readable message, and wraps
// an optional underlying cause (e.g. a Cedar parser error).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so callers can
// use errors.Is(err, types.New(types.KindNoSuchProject, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// New creates an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an *Error that wraps cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, or "" if err is not (or does not wrap)
// an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
