// Package apperr defines the error kinds every layer reports and the HTTP
// status each kind maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound        Kind = "not-found"
	KindForbidden       Kind = "forbidden"
	KindDuplicate       Kind = "duplicate"
	KindConflict        Kind = "conflict"
	KindInvalidState    Kind = "invalid-state"
	KindInvalidInput    Kind = "invalid-input"
	KindUnauthenticated Kind = "unauthenticated"
	KindInternal        Kind = "internal"
)

// Error carries a kind, a client-safe message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind-only sentinels for errors.Is.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrDuplicate    = &Error{Kind: KindDuplicate}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

func Duplicate(format string, args ...any) *Error {
	return New(KindDuplicate, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return New(KindInvalidState, format, args...)
}

func InvalidInput(format string, args ...any) *Error {
	return New(KindInvalidInput, format, args...)
}

func Unauthenticated(format string, args ...any) *Error {
	return New(KindUnauthenticated, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindDuplicate, KindConflict:
		return http.StatusConflict
	case KindInvalidState:
		return http.StatusUnprocessableEntity
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
