// Package apperr defines the error kinds that cross component boundaries.
// Transport failures never leave the market layer raw; they are converted into
// one of these kinds first.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for user-facing messaging.
type Kind string

const (
	KindUnknown             Kind = "unknown"
	KindNotFound            Kind = "not_found"
	KindSalvageOnly         Kind = "salvage_only"
	KindNoResults           Kind = "no_results"
	KindPartialResults      Kind = "partial_results"
	KindRemoteUnavailable   Kind = "remote_unavailable"
	KindConstraintsDegraded Kind = "constraints_degraded"
	KindInvalidRequest      Kind = "invalid_request"
)

// Error carries a kind, a short reason and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.NotFound)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// Sentinels for errors.Is.
var (
	NotFound          = &Error{Kind: KindNotFound}
	SalvageOnly       = &Error{Kind: KindSalvageOnly}
	NoResults         = &Error{Kind: KindNoResults}
	RemoteUnavailable = &Error{Kind: KindRemoteUnavailable}
	InvalidRequest    = &Error{Kind: KindInvalidRequest}
)

// New builds an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Reason returns the short message of an *Error, or err.Error().
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
