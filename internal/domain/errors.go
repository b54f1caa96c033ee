// Copyright (c) 2025 Northbound System
package domain

import (
	"errors"
	"fmt"
)

// Kind enumerates the sum-type error categories used throughout ragcore.
// Every component returns one of these instead of a bare string or a raw
// driver error, so callers can switch on Kind instead of matching message
// text.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindPermissionDenied
	KindQuotaExceeded
	KindUnavailable
	KindDeadlineExceeded
	KindCorrupted
	KindContentFiltered
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindUnavailable:
		return "unavailable"
	case KindDeadlineExceeded:
		return "deadline_exceeded"
	case KindCorrupted:
		return "corrupted"
	case KindContentFiltered:
		return "content_filtered"
	default:
		return "internal"
	}
}

// Error is the sum-type Result{Err{Kind, Message, Cause}} described in
// spec.md §9. It implements error and Unwrap so errors.Is/errors.As compose
// with callers that still reach for the standard library.
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

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error carrying cause as its Unwrap target.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error, and KindInternal otherwise.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Is reports whether err's Kind matches kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
