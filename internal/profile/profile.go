// Package profile defines the external profile-service surface the SCO core
// drives: profile identifiers, proxy interfaces, and the registry of
// currently bound proxy handles.
package profile

import (
	"fmt"

	"github.com/srg/scolink/internal/accessory"
)

// ID identifies an external profile service.
type ID int

const (
	Headset ID = iota
	A2DP
	HearingAid
	LEAudio
)

func (id ID) String() string {
	switch id {
	case Headset:
		return "HEADSET"
	case A2DP:
		return "A2DP"
	case HearingAid:
		return "HEARING_AID"
	case LEAudio:
		return "LE_AUDIO"
	default:
		return fmt.Sprintf("PROFILE(%d)", int(id))
	}
}

// AudioStatus is the accessory-reported state of the synchronous audio link.
type AudioStatus int

const (
	AudioUnknown AudioStatus = iota
	AudioDisconnected
	AudioConnecting
	AudioConnected
)

func (s AudioStatus) String() string {
	switch s {
	case AudioDisconnected:
		return "AUDIO_DISCONNECTED"
	case AudioConnecting:
		return "AUDIO_CONNECTING"
	case AudioConnected:
		return "AUDIO_CONNECTED"
	default:
		return fmt.Sprintf("AUDIO_STATUS(%d)", int(s))
	}
}

// Handle is a bound profile-service proxy. Implementations are opaque to the
// core; only the headset handle carries commands.
type Handle interface {
	Profile() ID
}

// HeadsetProxy issues SCO commands to the headset profile service. Connect
// and Disconnect return the synchronous accept/reject of the command; the
// audio-level confirmation arrives later as an asynchronous event.
type HeadsetProxy interface {
	Handle
	Connect(mode int, dev *accessory.Descriptor) bool
	Disconnect(mode int, dev *accessory.Descriptor) bool
	AudioStatus(dev *accessory.Descriptor) AudioStatus
	ActiveDevice() *accessory.Descriptor
}

// Provider kicks off asynchronous binding of a profile service. A true
// return means the bind was accepted, not that the service is up; the handle
// is delivered later through a profile-connected event.
type Provider interface {
	AcquireProxy(id ID) bool
}
