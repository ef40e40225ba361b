package sco

import (
	"github.com/sirupsen/logrus"
)

// BroadcastSink receives externally observable state changes. Delivery is
// best-effort; a false return is logged and never blocks a transition.
type BroadcastSink interface {
	OnScoStateChanged(state, previous ExternalState) bool
}

// BroadcastFunc adapts a function to the BroadcastSink interface.
type BroadcastFunc func(state, previous ExternalState) bool

// OnScoStateChanged implements BroadcastSink.
func (f BroadcastFunc) OnScoStateChanged(state, previous ExternalState) bool {
	return f(state, previous)
}

// Gateway deduplicates and emits externally observable SCO state changes.
// The initial previous-state is ExternalError so the first Disconnected
// emission always goes out.
//
// Only touched inside the broker's serialization domain; Last is safe to
// call there as well.
type Gateway struct {
	sink   BroadcastSink
	logger *logrus.Logger
	last   ExternalState
}

// NewGateway creates a gateway delivering through sink. A nil sink discards
// emissions but still tracks the observable state.
func NewGateway(sink BroadcastSink, logger *logrus.Logger) *Gateway {
	if logger == nil {
		logger = logrus.New()
	}
	return &Gateway{
		sink:   sink,
		logger: logger,
		last:   ExternalError,
	}
}

// Broadcast emits state unless it equals the last emitted state.
func (g *Gateway) Broadcast(state ExternalState) {
	if state == g.last {
		return
	}
	previous := g.last
	g.last = state
	g.logger.WithFields(logrus.Fields{
		"state":    state.String(),
		"previous": previous.String(),
	}).Info("SCO connection state changed")
	if g.sink == nil {
		return
	}
	if !g.sink.OnScoStateChanged(state, previous) {
		g.logger.WithField("state", state.String()).
			Warn("State change delivery failed")
	}
}

// Last returns the most recently emitted observable state.
func (g *Gateway) Last() ExternalState {
	return g.last
}
