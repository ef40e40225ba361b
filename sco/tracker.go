package sco

import (
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/scolink/internal/accessory"
)

// PathTracker keeps the per-member audio status of the currently active
// paired/group accessory and aggregates it into a single "is the audio path
// up" answer. Entries are keyed by member address, kept in first-observed
// order, and cleared whenever the machine resets to inactive.
//
// Only touched inside the broker's serialization domain.
type PathTracker struct {
	members *orderedmap.OrderedMap[string, bool]
	logger  *logrus.Logger
}

// NewPathTracker creates an empty tracker.
func NewPathTracker(logger *logrus.Logger) *PathTracker {
	if logger == nil {
		logger = logrus.New()
	}
	return &PathTracker{
		members: orderedmap.New[string, bool](),
		logger:  logger,
	}
}

// RecordMemberStatus updates one member's connected flag and returns the new
// aggregate path-up value. Existing entries are updated in place, preserving
// observation order.
func (t *PathTracker) RecordMemberStatus(dev *accessory.Descriptor, connected bool) bool {
	if dev == nil {
		return t.PathUp()
	}
	if prev, ok := t.members.Get(dev.Address); ok && prev != connected {
		t.logger.WithFields(logrus.Fields{
			"member":    dev.AnonymizedAddress(),
			"connected": connected,
		}).Debug("Member audio status changed")
	}
	t.members.Set(dev.Address, connected)
	return t.PathUp()
}

// GateActivation decides whether an audio status change for one member of a
// paired/group accessory should reach the state machine.
//
// Bring-up is suppressed when the path is already up before recording the
// member (no second connect command needed). Tear-down is suppressed when
// the path is still up after recording the member (other members remain
// connected). Non-groupable accessories always pass through.
func (t *PathTracker) GateActivation(dev *accessory.Descriptor, connected bool) bool {
	if dev == nil || !dev.Groupable() {
		return true
	}
	if connected {
		// Pre-transition membership decides bring-up suppression.
		if t.PathUp() {
			t.RecordMemberStatus(dev, connected)
			t.logger.WithField("member", dev.AnonymizedAddress()).
				Info("Audio path already up, suppressing bring-up")
			return false
		}
		t.RecordMemberStatus(dev, connected)
		return true
	}
	// Post-transition membership decides tear-down suppression.
	t.RecordMemberStatus(dev, connected)
	if t.PathUp() {
		t.logger.WithField("member", dev.AnonymizedAddress()).
			Info("Other members still connected, suppressing tear-down")
		return false
	}
	return true
}

// PathUp reports whether at least one tracked member is connected.
func (t *PathTracker) PathUp() bool {
	for pair := t.members.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value {
			return true
		}
	}
	return false
}

// Len reports how many members are tracked.
func (t *PathTracker) Len() int {
	return t.members.Len()
}

// Clear drops all tracked members. Called on machine reset.
func (t *PathTracker) Clear() {
	t.members = orderedmap.New[string, bool]()
}

// Snapshot returns member addresses and flags in observation order, for
// state dumps.
func (t *PathTracker) Snapshot() []MemberStatus {
	out := make([]MemberStatus, 0, t.members.Len())
	for pair := t.members.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, MemberStatus{Address: pair.Key, Connected: pair.Value})
	}
	return out
}

// MemberStatus is one tracked member's audio flag, as reported by Snapshot.
type MemberStatus struct {
	Address   string
	Connected bool
}
