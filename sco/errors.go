package sco

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a request or event could not be honored.
type FailureKind string

const (
	// ProxyUnavailable: the headset profile service is not bound. Retried
	// once when the service reconnects, otherwise surfaced as a failed
	// request.
	ProxyUnavailable FailureKind = "proxy_unavailable"
	// CommandRejected: the accessory refused a connect/disconnect command.
	// Never retried.
	CommandRejected FailureKind = "command_rejected"
	// NoActiveAccessory: no accessory is designated as the routing target.
	NoActiveAccessory FailureKind = "no_active_accessory"
	// StaleTransition: a request or event arrived in a state that does not
	// expect it. Logged and ignored, never fatal.
	StaleTransition FailureKind = "stale_transition"
)

// RequestError describes a failed request. Every branch of the machine
// resolves to a defined state plus an optional broadcast plus a boolean
// outcome; the error only carries detail for logs and callers that want it.
type RequestError struct {
	Kind  FailureKind
	State State // machine state at the time of failure
	Msg   string
}

func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s in state %s", e.Kind, e.State)
	}
	return fmt.Sprintf("%s in state %s: %s", e.Kind, e.State, e.Msg)
}

// Is allows errors.Is to match RequestError values by kind.
func (e *RequestError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*RequestError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinels for errors.Is comparisons.
var (
	ErrProxyUnavailable  = &RequestError{Kind: ProxyUnavailable}
	ErrCommandRejected   = &RequestError{Kind: CommandRejected}
	ErrNoActiveAccessory = &RequestError{Kind: NoActiveAccessory}
	ErrStaleTransition   = &RequestError{Kind: StaleTransition}
)

// IsFailure reports whether err is a RequestError of the given kind.
func IsFailure(err error, kind FailureKind) bool {
	var rerr *RequestError
	if errors.As(err, &rerr) {
		return rerr.Kind == kind
	}
	return false
}
