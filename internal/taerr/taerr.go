// Package taerr defines the typed error kinds returned across the TA
// command boundary (spec §7) and the mapping to the wire status byte.
package taerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the command-level error kinds surfaced to the client.
type Kind uint8

const (
	KindOK Kind = iota
	KindBadCommand
	KindBadParameters
	KindShortBuffer
	KindNoSession
	KindNotFound
	KindIntegrityError
	KindEntropyQualityError
	KindRateLimited
	KindAccessDenied
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindBadCommand:
		return "bad_command"
	case KindBadParameters:
		return "bad_parameters"
	case KindShortBuffer:
		return "short_buffer"
	case KindNoSession:
		return "no_session"
	case KindNotFound:
		return "not_found"
	case KindIntegrityError:
		return "integrity_error"
	case KindEntropyQualityError:
		return "entropy_quality_error"
	case KindRateLimited:
		return "rate_limited"
	case KindAccessDenied:
		return "access_denied"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Fatal reports whether an error of this kind must end the session,
// per spec §7 propagation policy.
func (k Kind) Fatal() bool {
	switch k {
	case KindIntegrityError, KindInternal:
		return true
	default:
		return false
	}
}

// Error wraps a Kind with non-sensitive context. RequiredSize is only
// meaningful for KindShortBuffer and is surfaced in slot2.a.
type Error struct {
	Kind         Kind
	Msg          string
	RequiredSize uint32
	cause        error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error of the given kind with a non-sensitive message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an Error of the given kind, chaining an underlying cause.
// The cause's text must never itself contain secret material — callers
// are responsible for that invariant.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, cause: cause}
}

// ShortBuffer builds the KindShortBuffer error carrying the required size.
func ShortBuffer(required uint32) *Error {
	return &Error{Kind: KindShortBuffer, Msg: "output buffer too small", RequiredSize: required}
}

// As extracts a *Error from err, defaulting to KindInternal if err is not
// one of ours. Used by the dispatcher when mapping handler errors to the wire.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return &Error{Kind: KindInternal, Msg: "unexpected error", cause: err}
}
