package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure. All kinds are recoverable at the batch
// level: the message is recorded as failed and the batch proceeds.
type Kind string

const (
	KindUnauthenticated   Kind = "unauthenticated"
	KindUnavailable       Kind = "unavailable"
	KindRateLimited       Kind = "rate_limited"
	KindMalformedResponse Kind = "malformed_response"
	KindTimeout           Kind = "timeout"
)

// ErrUnknownProvider is returned by New for a provider name outside the
// supported set. Unlike the Kind taxonomy it is fatal: it surfaces before any
// message is dispatched.
var ErrUnknownProvider = errors.New("unknown provider")

type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two provider errors by Kind, so errors.Is(err, &Error{Kind: k})
// works as a kind test regardless of provider or message.
func (e *Error) Is(target error) bool {
	var pe *Error
	if !errors.As(target, &pe) {
		return false
	}
	return e.Kind == pe.Kind
}

func newError(kind Kind, providerName, message string, err error) *Error {
	return &Error{Kind: kind, Provider: providerName, Message: message, Err: err}
}

// KindOf extracts the failure kind from err, if it carries one.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
