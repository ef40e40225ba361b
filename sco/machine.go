package sco

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/srg/scolink/internal/accessory"
	"github.com/srg/scolink/internal/profile"
)

// PreferenceStore looks up the persisted per-device SCO mode preference.
type PreferenceStore interface {
	LookupPreferredMode(address string) (int, bool)
}

// Watchdog bounds how long the machine waits for the headset service to
// (re)appear after a request. Armed when a proxy acquisition is kicked off,
// canceled when the service connects; on expiry the broker feeds an expiry
// event back into the machine.
type Watchdog interface {
	Arm()
	Cancel()
}

// AudioEvent is an accessory-originated audio status notification. Device
// identifies the physical member the notification is about and may be nil
// when the radio stack did not attach one.
type AudioEvent struct {
	Status profile.AudioStatus
	Device *accessory.Descriptor
}

// Machine serializes every activation/deactivation request and external
// event into one ordered sequence of state transitions, drives the
// connect/disconnect commands through the proxy registry, and reports
// observable changes through the gateway.
//
// Machine is not safe for concurrent use on its own: every method must run
// inside the broker's serialization domain.
type Machine struct {
	logger   *logrus.Logger
	registry *profile.Registry
	tracker  *PathTracker
	selector *Selector
	gateway  *Gateway
	prefs    PreferenceStore
	watchdog Watchdog

	state State
	mode  Mode
}

// NewMachine wires the machine to its collaborators. prefs and watchdog may
// be nil; the machine then skips preference lookup and watchdog arming.
func NewMachine(
	registry *profile.Registry,
	tracker *PathTracker,
	selector *Selector,
	gateway *Gateway,
	prefs PreferenceStore,
	logger *logrus.Logger,
) *Machine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Machine{
		logger:   logger,
		registry: registry,
		tracker:  tracker,
		selector: selector,
		gateway:  gateway,
		prefs:    prefs,
		state:    StateInactive,
		mode:     ModeVirtualCall,
	}
}

// SetWatchdog attaches the proxy-acquisition watchdog. The broker owns the
// timer; the machine only arms and cancels it.
func (m *Machine) SetWatchdog(w Watchdog) {
	m.watchdog = w
}

// State returns the machine's own connection state.
func (m *Machine) State() State {
	return m.state
}

// Mode returns the mode selected for the current activation cycle.
func (m *Machine) Mode() Mode {
	return m.mode
}

// RequestState is the single entry point for application-driven transitions
// and the only function permitted to issue commands on behalf of an
// application request. target must be AudioConnected or AudioDisconnected.
// The boolean return is the request outcome; failures also broadcast
// Disconnected.
func (m *Machine) RequestState(target profile.AudioStatus, mode Mode) bool {
	m.logger.WithFields(logrus.Fields{
		"target": target.String(),
		"mode":   mode.String(),
		"state":  m.state.String(),
	}).Debug("SCO state requested")

	// Adopt a session the machine did not initiate before deciding anything.
	m.resync()

	switch target {
	case profile.AudioConnected:
		return m.requestConnect(mode)
	case profile.AudioDisconnected:
		return m.requestDisconnect()
	default:
		m.logger.WithError(&RequestError{Kind: StaleTransition, State: m.state,
			Msg: fmt.Sprintf("unsupported target %s", target)}).Warn("Ignoring request")
		return false
	}
}

func (m *Machine) requestConnect(mode Mode) bool {
	// The observable state moves to Connecting even when the command cannot
	// be issued yet, except when a session is already up internally.
	if m.state != StateActiveInternal {
		m.gateway.Broadcast(ExternalConnecting)
	}

	switch m.state {
	case StateInactive:
		m.mode = m.resolveMode(mode)
		headset := m.registry.Headset()
		if headset == nil {
			if m.acquireHeadset() {
				m.state = StateActivateRequested
				return true
			}
			m.logger.WithError(&RequestError{Kind: ProxyUnavailable, State: m.state}).
				Warn("Headset service acquisition failed during connection")
			m.gateway.Broadcast(ExternalDisconnected)
			return false
		}
		dev := m.selector.Active()
		if dev == nil {
			m.logger.WithError(&RequestError{Kind: NoActiveAccessory, State: m.state}).
				Warn("No active accessory while connecting")
			m.gateway.Broadcast(ExternalDisconnected)
			return false
		}
		if !headset.Connect(int(m.mode), dev) {
			m.logger.WithError(&RequestError{Kind: CommandRejected, State: m.state,
				Msg: "connect to " + dev.AnonymizedAddress()}).Warn("Connect command rejected")
			m.gateway.Broadcast(ExternalDisconnected)
			return false
		}
		m.state = StateActiveInternal

	case StateDeactivating:
		// A reconnect arrived mid-teardown; re-issue once teardown confirms.
		m.state = StateActivateRequested

	case StateDeactivateRequested:
		// The deactivation never reached the proxy; cancel it.
		m.state = StateActiveInternal
		m.gateway.Broadcast(ExternalConnected)

	case StateActiveInternal:
		// Already active on behalf of an application, nothing to issue.

	case StateActiveExternal:
		// The external owner already holds the session; acknowledge without
		// issuing a command. Once the owner drops it, the machine reconnects
		// on behalf of the requester.
		m.gateway.Broadcast(ExternalConnected)

	default:
		m.logger.WithError(&RequestError{Kind: StaleTransition, State: m.state}).
			Warn("Connect request refused")
		m.gateway.Broadcast(ExternalDisconnected)
		return false
	}
	return true
}

func (m *Machine) requestDisconnect() bool {
	switch m.state {
	case StateActiveInternal:
		headset := m.registry.Headset()
		if headset == nil {
			if m.acquireHeadset() {
				m.state = StateDeactivateRequested
				return true
			}
			m.logger.WithError(&RequestError{Kind: ProxyUnavailable, State: m.state}).
				Warn("Headset service acquisition failed during disconnection")
			m.state = StateInactive
			m.gateway.Broadcast(ExternalDisconnected)
			return false
		}
		dev := m.selector.Active()
		if dev == nil {
			m.state = StateInactive
			m.gateway.Broadcast(ExternalDisconnected)
			return true
		}
		if headset.Disconnect(int(m.mode), dev) {
			m.state = StateDeactivating
		} else {
			m.logger.WithError(&RequestError{Kind: CommandRejected, State: m.state,
				Msg: "disconnect from " + dev.AnonymizedAddress()}).Warn("Disconnect command rejected")
			m.state = StateInactive
			m.gateway.Broadcast(ExternalDisconnected)
		}

	case StateActivateRequested:
		// The activation never reached the proxy; cancel it.
		m.state = StateInactive
		m.gateway.Broadcast(ExternalDisconnected)

	default:
		m.logger.WithError(&RequestError{Kind: StaleTransition, State: m.state}).
			Warn("Disconnect request refused")
		m.gateway.Broadcast(ExternalDisconnected)
		return false
	}
	return true
}

// OnAudioEvent handles an accessory-originated audio status notification.
// For paired/group accessories the event is gated through the path tracker
// first, so member churn that does not change the aggregate path never
// reaches the state machine.
func (m *Machine) OnAudioEvent(ev AudioEvent) {
	m.logger.WithFields(logrus.Fields{
		"status": ev.Status.String(),
		"device": ev.Device.AnonymizedAddress(),
		"state":  m.state.String(),
	}).Debug("Accessory audio event")

	switch ev.Status {
	case profile.AudioConnected, profile.AudioConnecting, profile.AudioDisconnected:
	default:
		m.logger.WithError(&RequestError{Kind: StaleTransition, State: m.state,
			Msg: ev.Status.String()}).Warn("Ignoring audio event")
		return
	}

	if ev.Device != nil && ev.Device.Groupable() {
		if !m.tracker.GateActivation(ev.Device, ev.Status == profile.AudioConnected) {
			return
		}
	}
	m.onAudioStateChanged(ev.Status)
}

func (m *Machine) onAudioStateChanged(status profile.AudioStatus) {
	broadcast := false
	observable := ExternalError

	switch status {
	case profile.AudioConnected:
		observable = ExternalConnected
		switch {
		case m.state == StateActivateRequested:
			// The pending application request is satisfied by the session
			// that just came up.
			m.state = StateActiveInternal
			broadcast = true
		case m.state != StateActiveInternal && m.state != StateDeactivateRequested:
			m.state = StateActiveExternal
		default:
			// An application-originated activation is now satisfied by a
			// session the accessory brought up.
			broadcast = true
		}

	case profile.AudioDisconnected:
		observable = ExternalDisconnected
		if m.state == StateActivateRequested {
			// A start request arrived while the previous session was being
			// torn down; reconnect immediately now that teardown confirmed.
			headset := m.registry.Headset()
			dev := m.selector.Active()
			if headset != nil && dev != nil && headset.Connect(int(m.mode), dev) {
				m.state = StateActiveInternal
				observable = ExternalConnecting
				broadcast = true
				break
			}
		}
		if m.state != StateActiveExternal {
			broadcast = true
		}
		m.state = StateInactive

	case profile.AudioConnecting:
		// Connecting announcements for externally driven sessions are
		// suppressed to avoid noise.
		if m.state != StateActiveInternal && m.state != StateDeactivateRequested {
			m.state = StateActiveExternal
		}
	}

	if broadcast {
		m.gateway.Broadcast(observable)
	}
}

// SetActiveDevice designates dev (or nil) as the routing target. When the
// active accessory goes away the machine resets, clearing the member table
// and deactivating any in-progress session bookkeeping.
func (m *Machine) SetActiveDevice(dev *accessory.Descriptor) {
	if m.selector.SetActive(dev) {
		m.logger.Info("Active accessory removed, resetting SCO state")
		m.Reset()
	}
}

// OnProfileConnected stores the newly bound proxy handle. For the headset
// profile it also adopts the externally reported active accessory,
// re-derives state from the real-world audio status, and replays a pending
// activate/deactivate request.
func (m *Machine) OnProfileConnected(id profile.ID, handle profile.Handle) {
	if id != profile.Headset {
		m.registry.SetConnected(id, handle)
		return
	}
	m.onHeadsetServiceConnected(handle)
}

// OnProfileDisconnected clears the handle for one profile; no cross effect
// on the others.
func (m *Machine) OnProfileDisconnected(id profile.ID) {
	m.registry.SetDisconnected(id)
}

func (m *Machine) onHeadsetServiceConnected(handle profile.Handle) {
	if m.watchdog != nil {
		m.watchdog.Cancel()
	}
	m.registry.SetConnected(profile.Headset, handle)
	headset := m.registry.Headset()
	if headset == nil {
		m.logger.Error("Headset service connected with an unusable handle")
		return
	}

	// Adopt whatever the radio stack currently reports as active, then
	// re-derive our state from the real-world audio status.
	m.SetActiveDevice(headset.ActiveDevice())
	m.resync()

	if m.state != StateActivateRequested && m.state != StateDeactivateRequested {
		return
	}

	issued := false
	if dev := m.selector.Active(); dev != nil {
		switch m.state {
		case StateActivateRequested:
			if headset.Connect(int(m.mode), dev) {
				m.state = StateActiveInternal
				issued = true
			}
		case StateDeactivateRequested:
			if headset.Disconnect(int(m.mode), dev) {
				m.state = StateDeactivating
				issued = true
			}
		}
	}
	if !issued {
		m.logger.WithField("state", m.state.String()).
			Warn("Pending request replay failed after headset service connect")
		m.state = StateInactive
		m.gateway.Broadcast(ExternalDisconnected)
	}
}

// OnWatchdogExpired abandons a pending request after the headset service
// failed to (re)appear in time.
func (m *Machine) OnWatchdogExpired() {
	if m.state != StateActivateRequested && m.state != StateDeactivateRequested {
		return
	}
	m.logger.WithField("state", m.state.String()).
		Warn("Headset service did not connect in time, abandoning request")
	m.Reset()
}

// Reset forces the machine to Inactive, broadcasts Disconnected, and clears
// the per-member audio table.
func (m *Machine) Reset() {
	m.state = StateInactive
	m.gateway.Broadcast(ExternalDisconnected)
	m.tracker.Clear()
}

// IsAudioConnected reports whether the accessory currently confirms a live
// audio link, regardless of who initiated it.
func (m *Machine) IsAudioConnected() bool {
	headset := m.registry.Headset()
	dev := m.selector.Active()
	if headset == nil || dev == nil {
		return false
	}
	return headset.AudioStatus(dev) == profile.AudioConnected
}

// resync adopts a session that exists without the machine having initiated
// it: inactive on our side, but the accessory already reports audio up or
// coming up.
func (m *Machine) resync() {
	headset := m.registry.Headset()
	dev := m.selector.Active()
	if headset == nil || dev == nil || m.state != StateInactive {
		return
	}
	if headset.AudioStatus(dev) != profile.AudioDisconnected {
		m.state = StateActiveExternal
	}
}

// resolveMode picks the mode for this activation cycle: the caller's mode,
// else the per-device preference, else virtual call. Anything out of the
// valid range collapses to virtual call.
func (m *Machine) resolveMode(mode Mode) Mode {
	if mode == ModeUndefined {
		mode = ModeVirtualCall
		if dev := m.selector.Active(); dev != nil && m.prefs != nil {
			if v, ok := m.prefs.LookupPreferredMode(dev.Address); ok {
				mode = Mode(v)
			}
		}
	}
	if !mode.valid() {
		mode = ModeVirtualCall
	}
	return mode
}

func (m *Machine) acquireHeadset() bool {
	if !m.registry.Acquire(profile.Headset) {
		return false
	}
	if m.watchdog != nil {
		m.watchdog.Arm()
	}
	return true
}

// Dump writes a human-readable snapshot for status queries.
func (m *Machine) Dump(w io.Writer, prefix string) {
	fmt.Fprintf(w, "%sheadset service bound: %t\n", prefix, m.registry.Has(profile.Headset))
	fmt.Fprintf(w, "%sactive accessory: %s\n", prefix, m.selector.Current())
	fmt.Fprintf(w, "%srouting: %s\n", prefix, m.selector.Routing())
	fmt.Fprintf(w, "%sstate: %s\n", prefix, m.state)
	fmt.Fprintf(w, "%smode: %s\n", prefix, m.mode)
	fmt.Fprintf(w, "%sobservable: %s\n", prefix, m.gateway.Last())
	for _, member := range m.tracker.Snapshot() {
		fmt.Fprintf(w, "%smember %s connected: %t\n", prefix, member.Address, member.Connected)
	}
}
