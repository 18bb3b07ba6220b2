// Package apperr defines the stable error kinds surfaced across the trust
// boundary. Store, core and HTTP layers classify failures with these kinds;
// only the Message of an *Error is ever shown to a caller.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnauthenticated    Kind = "unauthenticated"
	KindForbidden          Kind = "forbidden"
	KindInvalid            Kind = "invalid_request"
	KindNotFound           Kind = "not_found"
	KindPreconditionFailed Kind = "precondition_failed"
	KindGateFailed         Kind = "gate_failed"
	KindConflict           Kind = "conflict"
	KindStoreUnavailable   Kind = "store_unavailable"
	KindInternal           Kind = "internal"
)

// Error carries a kind, a caller-safe message and an optional internal cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthenticated(message string) error { return New(KindUnauthenticated, message) }

func Forbidden(message string) error { return New(KindForbidden, message) }

func Invalid(message string) error { return New(KindInvalid, message) }

// NotFound reports a missing entity. It is used for foreign-tenant ids too, so
// the message never reveals whether the row exists elsewhere.
func NotFound(entity string) error {
	return New(KindNotFound, entity+" not found")
}

// PreconditionFailed names the status the entity was required to be in.
func PreconditionFailed(entity, required string) error {
	return New(KindPreconditionFailed, fmt.Sprintf("%s must be in '%s' status", entity, required))
}

func GateFailed(message string) error { return New(KindGateFailed, message) }

func Conflict(message string) error { return New(KindConflict, message) }

func StoreUnavailable(err error) error {
	return Wrap(KindStoreUnavailable, "backing store unavailable", err)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
