package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a booking-domain failure.
type Kind string

const (
	KindNotFound          Kind = "NotFound"
	KindPolicyRejected    Kind = "PolicyRejected"
	KindInvalidCardFormat Kind = "InvalidCardFormat"
	KindCardExpired       Kind = "CardExpired"
	KindInvalidCvv        Kind = "InvalidCvv"
	KindInvalidDuration   Kind = "InvalidDuration"
	KindDuplicateBooking  Kind = "DuplicateBooking"
	KindAlreadyCancelled  Kind = "AlreadyCancelled"
	KindForbidden         Kind = "Forbidden"
	KindStoreUnavailable  Kind = "StoreUnavailable"
	KindInvalidInput      Kind = "InvalidInput"
)

// Error is the single error type crossing service boundaries.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrPolicyRejected    = &Error{Kind: KindPolicyRejected}
	ErrInvalidCardFormat = &Error{Kind: KindInvalidCardFormat}
	ErrCardExpired       = &Error{Kind: KindCardExpired}
	ErrInvalidCvv        = &Error{Kind: KindInvalidCvv}
	ErrInvalidDuration   = &Error{Kind: KindInvalidDuration}
	ErrDuplicateBooking  = &Error{Kind: KindDuplicateBooking}
	ErrAlreadyCancelled  = &Error{Kind: KindAlreadyCancelled}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrStoreUnavailable  = &Error{Kind: KindStoreUnavailable}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
)

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or "" if there is none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Reason returns the human-readable reason of a domain error.
func Reason(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Reason != "" {
		return de.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Retryable reports whether the caller may retry the same request later.
func Retryable(err error) bool {
	return KindOf(err) == KindStoreUnavailable
}

// AsStoreFailure passes domain errors through and classifies anything else
// coming out of a store adapter as StoreUnavailable.
func AsStoreFailure(err error, op string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	return Wrap(KindStoreUnavailable, op, err)
}
