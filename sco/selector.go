package sco

import (
	"github.com/sirupsen/logrus"

	"github.com/srg/scolink/internal/accessory"
)

// RoutingNotifier is told when the logical SCO routing target appears or
// disappears. Delivery is best-effort: a failed add rejects the new target,
// a failed remove is only logged.
type RoutingNotifier interface {
	NotifyConnectionChanged(dev *accessory.Descriptor, added bool) bool
}

// activeKind tags the ActiveAccessory variant.
type activeKind int

const (
	activeNone activeKind = iota
	activePlaceholder
	activeReal
)

// ActiveAccessory is a tagged reference to the current SCO routing target:
// none, the reserved placeholder, or a real accessory. Using an explicit
// variant instead of sentinel pointers makes the one-add-one-remove routing
// invariant checkable.
type ActiveAccessory struct {
	kind activeKind
	desc *accessory.Descriptor
}

// NoActive returns the "no accessory" variant.
func NoActive() ActiveAccessory {
	return ActiveAccessory{kind: activeNone}
}

// PlaceholderActive returns the routing-bookkeeping variant: some accessory
// is active, identity collapsed onto the placeholder descriptor.
func PlaceholderActive() ActiveAccessory {
	return ActiveAccessory{kind: activePlaceholder, desc: accessory.Placeholder()}
}

// RealActive returns the variant naming a concrete accessory.
func RealActive(dev *accessory.Descriptor) ActiveAccessory {
	if dev == nil {
		return NoActive()
	}
	return ActiveAccessory{kind: activeReal, desc: dev}
}

// IsNone reports whether no accessory is active.
func (a ActiveAccessory) IsNone() bool { return a.kind == activeNone }

// Descriptor returns the referenced descriptor, nil for the none variant.
func (a ActiveAccessory) Descriptor() *accessory.Descriptor { return a.desc }

func (a ActiveAccessory) String() string {
	switch a.kind {
	case activePlaceholder:
		return "placeholder"
	case activeReal:
		return a.desc.String()
	default:
		return "(none)"
	}
}

// Selector tracks which accessory is the current SCO routing target and
// collapses member churn within a pair/group into a single logical
// add/remove seen by the routing layer.
//
// Only touched inside the broker's serialization domain.
type Selector struct {
	notifier RoutingNotifier
	logger   *logrus.Logger

	// active is the concrete routing target, nil when none.
	active *accessory.Descriptor
	// routing is what the routing layer was told: NoActive or
	// PlaceholderActive, never a real descriptor.
	routing ActiveAccessory
}

// NewSelector creates a selector delivering through notifier.
func NewSelector(notifier RoutingNotifier, logger *logrus.Logger) *Selector {
	if logger == nil {
		logger = logrus.New()
	}
	return &Selector{
		notifier: notifier,
		logger:   logger,
		routing:  NoActive(),
	}
}

// Active returns the concrete routing target, nil when none.
func (s *Selector) Active() *accessory.Descriptor {
	return s.active
}

// Current returns the tagged view of the active accessory.
func (s *Selector) Current() ActiveAccessory {
	return RealActive(s.active)
}

// Routing returns what the routing layer currently believes: none or
// placeholder.
func (s *Selector) Routing() ActiveAccessory {
	return s.routing
}

// SetActive designates dev (or nil for none) as the routing target and
// returns true when the machine must reset because the active accessory went
// away.
//
// A switch between the two members of a stereo pair keeps the previous
// descriptor: the logical audio path is unchanged, and keeping the original
// member guarantees the tear-down fires when the pair finally goes inactive.
func (s *Selector) SetActive(dev *accessory.Descriptor) bool {
	s.logger.WithFields(logrus.Fields{
		"previous": s.active.AnonymizedAddress(),
		"next":     dev.AnonymizedAddress(),
	}).Info("Active SCO accessory change")

	if s.active != nil && dev != nil && s.active.IsPairedWith(dev.Address) {
		s.logger.Info("Primary switch within stereo pair, routing unchanged")
		return false
	}
	if s.active.Equal(dev) {
		return false
	}

	if s.active == nil && dev != nil {
		if !s.notifier.NotifyConnectionChanged(accessory.Placeholder(), true) {
			s.logger.WithField("device", dev.AnonymizedAddress()).
				Error("Routing add notification failed, rejecting new target")
			dev = nil
		} else {
			s.routing = PlaceholderActive()
		}
	}
	if s.active != nil && dev == nil {
		if !s.notifier.NotifyConnectionChanged(accessory.Placeholder(), false) {
			s.logger.WithField("device", s.active.AnonymizedAddress()).
				Warn("Routing remove notification failed")
		}
		s.routing = NoActive()
	}

	s.active = dev
	return s.active == nil
}
