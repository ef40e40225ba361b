package sco

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/scolink/internal/accessory"
	"github.com/srg/scolink/internal/eventq"
	"github.com/srg/scolink/internal/profile"
)

// DefaultProxyTimeout bounds how long a pending request waits for the
// headset service to (re)appear.
const DefaultProxyTimeout = 3 * time.Second

// DefaultQueueCapacity is the inbound event queue size. Radio-stack
// callbacks never block: when the queue is full the oldest event is dropped.
const DefaultQueueCapacity = 64

type eventKind int

const (
	evAudio eventKind = iota
	evActiveDevice
	evProfileConnected
	evProfileDisconnected
	evWatchdog
)

type brokerEvent struct {
	kind    eventKind
	audio   AudioEvent
	device  *accessory.Descriptor
	profile profile.ID
	handle  profile.Handle
}

// BrokerOptions configures a Broker.
type BrokerOptions struct {
	Provider      profile.Provider // binds profile services (required for command issuance)
	Notifier      RoutingNotifier  // told about logical add/remove (required)
	Sink          BroadcastSink    // receives observable state changes (may be nil)
	Preferences   PreferenceStore  // per-device mode preference (may be nil)
	Logger        *logrus.Logger
	ProxyTimeout  time.Duration // 0 = DefaultProxyTimeout
	QueueCapacity int           // 0 = DefaultQueueCapacity
}

// Broker owns the single serialization domain for the SCO core: one
// exclusive lock guards every state read and transition, application calls
// take the lock directly, and the radio stack's asynchronous notifications
// are enqueued and drained by one pump goroutine under the same lock.
//
// Callbacks feeding the broker (OnAudioEvent, SetActiveDevice,
// OnProfileConnected, OnProfileDisconnected) only enqueue and never block.
type Broker struct {
	logger *logrus.Logger

	mu      sync.Mutex
	machine *Machine
	gateway *Gateway

	queue        *eventq.Ring[brokerEvent]
	proxyTimeout time.Duration

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewBroker builds the coordinator and its collaborators. Call Run to start
// processing radio-stack events.
func NewBroker(opts BrokerOptions) *Broker {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	timeout := opts.ProxyTimeout
	if timeout == 0 {
		timeout = DefaultProxyTimeout
	}
	capacity := opts.QueueCapacity
	if capacity == 0 {
		capacity = DefaultQueueCapacity
	}

	registry := profile.NewRegistry(opts.Provider, logger)
	tracker := NewPathTracker(logger)
	selector := NewSelector(opts.Notifier, logger)
	gateway := NewGateway(opts.Sink, logger)
	machine := NewMachine(registry, tracker, selector, gateway, opts.Preferences, logger)

	b := &Broker{
		logger:       logger,
		machine:      machine,
		gateway:      gateway,
		queue:        eventq.NewRing[brokerEvent](capacity),
		proxyTimeout: timeout,
	}
	machine.SetWatchdog(&brokerWatchdog{broker: b})
	return b
}

// Run resets the machine, emits the initial Disconnected, and pumps queued
// radio-stack events until ctx is canceled or Close is called. It blocks;
// run it on its own goroutine.
func (b *Broker) Run(ctx context.Context) {
	b.mu.Lock()
	b.machine.Reset()
	b.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.queue.C():
			if !ok {
				return
			}
			b.dispatch(ev)
		}
	}
}

func (b *Broker) dispatch(ev brokerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.kind {
	case evAudio:
		b.machine.OnAudioEvent(ev.audio)
	case evActiveDevice:
		b.machine.SetActiveDevice(ev.device)
	case evProfileConnected:
		b.machine.OnProfileConnected(ev.profile, ev.handle)
	case evProfileDisconnected:
		b.machine.OnProfileDisconnected(ev.profile)
	case evWatchdog:
		b.machine.OnWatchdogExpired()
	}
}

// StartAudio requests SCO activation on behalf of an application. source
// identifies the requester for logs.
func (b *Broker) StartAudio(mode Mode, source string) bool {
	b.logger.WithFields(logrus.Fields{
		"mode":   mode.String(),
		"source": source,
	}).Info("SCO start requested")

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.machine.RequestState(profile.AudioConnected, mode)
}

// StopAudio requests SCO deactivation on behalf of an application.
func (b *Broker) StopAudio(source string) bool {
	b.logger.WithField("source", source).Info("SCO stop requested")

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.machine.RequestState(profile.AudioDisconnected, ModeVirtualCall)
}

// OnAudioEvent enqueues an accessory audio status notification. Safe to call
// from any goroutine; never blocks.
func (b *Broker) OnAudioEvent(ev AudioEvent) {
	b.queue.Send(brokerEvent{kind: evAudio, audio: ev})
}

// SetActiveDevice enqueues a routing-target change (nil for none). It shares
// the queue with audio events so the two are processed in arrival order.
func (b *Broker) SetActiveDevice(dev *accessory.Descriptor) {
	b.queue.Send(brokerEvent{kind: evActiveDevice, device: dev})
}

// OnProfileConnected enqueues a profile-service bind notification.
func (b *Broker) OnProfileConnected(id profile.ID, handle profile.Handle) {
	b.queue.Send(brokerEvent{kind: evProfileConnected, profile: id, handle: handle})
}

// OnProfileDisconnected enqueues a profile-service loss notification.
func (b *Broker) OnProfileDisconnected(id profile.ID) {
	b.queue.Send(brokerEvent{kind: evProfileDisconnected, profile: id})
}

// CurrentState returns the externally observable connection state.
func (b *Broker) CurrentState() ExternalState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gateway.Last()
}

// MachineState returns the machine's own state, for diagnostics.
func (b *Broker) MachineState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.machine.State()
}

// IsAudioConnected reports whether the accessory confirms a live audio link.
func (b *Broker) IsAudioConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.machine.IsAudioConnected()
}

// Dump writes a human-readable snapshot of the whole domain.
func (b *Broker) Dump(w io.Writer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.machine.Dump(w, "  ")
}

// Close stops the watchdog and releases the pump. Stop producers first;
// events sent after Close are dropped.
func (b *Broker) Close() {
	b.timerMu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.timerMu.Unlock()
	b.queue.Close()
}

// brokerWatchdog adapts the broker's timer to the machine's Watchdog
// interface. Expiry is fed back through the event queue so it is processed
// in the same serialization domain as everything else.
type brokerWatchdog struct {
	broker *Broker
}

func (w *brokerWatchdog) Arm() {
	b := w.broker
	b.timerMu.Lock()
	defer b.timerMu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.proxyTimeout, func() {
		b.queue.Send(brokerEvent{kind: evWatchdog})
	})
}

func (w *brokerWatchdog) Cancel() {
	b := w.broker
	b.timerMu.Lock()
	defer b.timerMu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
