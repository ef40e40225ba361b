// Package sco implements the connection lifecycle of the synchronous audio
// link to a headset accessory: the serialized state machine, the
// multi-member audio-path tracker, the active-device selector, and the
// deduplicating broadcast gateway.
package sco

import "fmt"

// State is the machine's own connection state. It is owned exclusively by
// the state machine and mutated only inside the broker's serialization
// domain.
type State int

const (
	// StateInactive: no session, no pending work.
	StateInactive State = iota
	// StateActivateRequested: activation asked for, waiting for the headset
	// service or the active device to become available.
	StateActivateRequested
	// StateActiveExternal: a session initiated by the accessory itself is up
	// or connecting.
	StateActiveExternal
	// StateActiveInternal: a session initiated by an application request is up.
	StateActiveInternal
	// StateDeactivateRequested: deactivation asked for while the headset
	// service is unavailable.
	StateDeactivateRequested
	// StateDeactivating: disconnect command issued, awaiting confirmation.
	StateDeactivating
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateActivateRequested:
		return "ACTIVATE_REQ"
	case StateActiveExternal:
		return "ACTIVE_EXTERNAL"
	case StateActiveInternal:
		return "ACTIVE_INTERNAL"
	case StateDeactivateRequested:
		return "DEACTIVATE_REQ"
	case StateDeactivating:
		return "DEACTIVATING"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Mode selects how the SCO session is brought up on the accessory. It is
// resolved once per activation cycle.
type Mode int

const (
	// ModeUndefined defers mode selection to the per-device preference, then
	// to ModeVirtualCall.
	ModeUndefined Mode = -1
	// ModeVirtualCall brings the link up as a virtual voice call.
	ModeVirtualCall Mode = 0
	// ModeVoiceRecognition brings the link up for voice recognition.
	ModeVoiceRecognition Mode = 2

	// modeMax is the largest valid mode value.
	modeMax = 2
)

func (m Mode) String() string {
	switch m {
	case ModeUndefined:
		return "MODE_UNDEFINED"
	case ModeVirtualCall:
		return "MODE_VIRTUAL_CALL"
	case ModeVoiceRecognition:
		return "MODE_VOICE_RECOGNITION"
	default:
		return fmt.Sprintf("MODE(%d)", int(m))
	}
}

// valid reports whether m is one of the defined, selectable modes.
func (m Mode) valid() bool {
	return m >= 0 && m <= modeMax
}

// ExternalState is the externally observable connection state emitted
// through the gateway. Distinct from State, which is internal bookkeeping.
type ExternalState int

const (
	// ExternalError is the pre-boot observable state; it exists so the first
	// Disconnected broadcast is never swallowed by deduplication.
	ExternalError ExternalState = iota
	ExternalDisconnected
	ExternalConnecting
	ExternalConnected
)

func (s ExternalState) String() string {
	switch s {
	case ExternalError:
		return "ERROR"
	case ExternalDisconnected:
		return "DISCONNECTED"
	case ExternalConnecting:
		return "CONNECTING"
	case ExternalConnected:
		return "CONNECTED"
	default:
		return fmt.Sprintf("EXTERNAL(%d)", int(s))
	}
}
