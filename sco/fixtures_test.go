package sco_test

import (
	"github.com/sirupsen/logrus"

	"github.com/srg/scolink/internal/accessory"
	"github.com/srg/scolink/internal/profile"
	"github.com/srg/scolink/sco"
)

// quietLogger keeps test output clean unless a test opts in.
func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// fakeHeadset records issued commands and answers with configurable results.
type fakeHeadset struct {
	acceptConnect    bool
	acceptDisconnect bool
	status           profile.AudioStatus
	active           *accessory.Descriptor

	connects    []int // modes of accepted-or-not connect commands
	disconnects []int
}

func newFakeHeadset() *fakeHeadset {
	return &fakeHeadset{
		acceptConnect:    true,
		acceptDisconnect: true,
		status:           profile.AudioDisconnected,
	}
}

func (h *fakeHeadset) Profile() profile.ID { return profile.Headset }

func (h *fakeHeadset) Connect(mode int, dev *accessory.Descriptor) bool {
	h.connects = append(h.connects, mode)
	return h.acceptConnect
}

func (h *fakeHeadset) Disconnect(mode int, dev *accessory.Descriptor) bool {
	h.disconnects = append(h.disconnects, mode)
	return h.acceptDisconnect
}

func (h *fakeHeadset) AudioStatus(dev *accessory.Descriptor) profile.AudioStatus {
	return h.status
}

func (h *fakeHeadset) ActiveDevice() *accessory.Descriptor {
	return h.active
}

// fakeProvider records acquisition attempts.
type fakeProvider struct {
	accept   bool
	acquired []profile.ID
}

func (p *fakeProvider) AcquireProxy(id profile.ID) bool {
	p.acquired = append(p.acquired, id)
	return p.accept
}

// notifyCall is one routing notification as seen by the fake notifier.
type notifyCall struct {
	address string
	added   bool
}

type fakeNotifier struct {
	accept bool
	calls  []notifyCall
}

func (n *fakeNotifier) NotifyConnectionChanged(dev *accessory.Descriptor, added bool) bool {
	n.calls = append(n.calls, notifyCall{address: dev.Address, added: added})
	return n.accept
}

// fakeSink records every emitted observable state.
type fakeSink struct {
	accept bool
	states []sco.ExternalState
}

func (s *fakeSink) OnScoStateChanged(state, previous sco.ExternalState) bool {
	s.states = append(s.states, state)
	return s.accept
}

func (s *fakeSink) count(state sco.ExternalState) int {
	n := 0
	for _, st := range s.states {
		if st == state {
			n++
		}
	}
	return n
}

func (s *fakeSink) last() sco.ExternalState {
	if len(s.states) == 0 {
		return sco.ExternalError
	}
	return s.states[len(s.states)-1]
}

// fakeWatchdog records arming without any timer.
type fakeWatchdog struct {
	armed    int
	canceled int
}

func (w *fakeWatchdog) Arm()    { w.armed++ }
func (w *fakeWatchdog) Cancel() { w.canceled++ }

// fakePrefs is an in-memory preference store.
type fakePrefs map[string]int

func (p fakePrefs) LookupPreferredMode(address string) (int, bool) {
	mode, ok := p[address]
	return mode, ok
}

func headsetDevice(addr string) *accessory.Descriptor {
	return accessory.New(addr, "Test Headset", accessory.ClassWearableHeadset)
}

func pairedDevice(addr, peer string) *accessory.Descriptor {
	return headsetDevice(addr).WithPeer(peer)
}
