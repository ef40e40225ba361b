// Package eventq provides the bounded drop-oldest queue that feeds the
// broker's serialized event pump. Producers are radio-stack callbacks that
// must never block; when the queue is full the oldest event is discarded.
package eventq

import "sync/atomic"

// Ring is a bounded channel-like buffer with overwrite-oldest semantics.
// Readers consume through C() like a normal channel; writers use Send and
// never block indefinitely.
type Ring[T any] struct {
	ch      chan T
	closed  atomic.Bool
	dropped atomic.Uint64
}

// NewRing creates a Ring with the given capacity. Capacity must be positive.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("eventq: capacity must be > 0")
	}
	return &Ring[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. Consumers can range over it until Close.
func (r *Ring[T]) C() <-chan T {
	return r.ch
}

// Send inserts an event, discarding the oldest one when the buffer is full.
// Sends after Close are dropped.
func (r *Ring[T]) Send(v T) {
	if r.closed.Load() {
		return
	}
	select {
	case r.ch <- v:
	default:
		select {
		case <-r.ch:
			r.dropped.Add(1)
		default:
		}
		select {
		case r.ch <- v:
		default:
			r.dropped.Add(1)
		}
	}
}

// TrySend inserts without blocking and without displacing anything. It
// returns false when the buffer is full or closed.
func (r *Ring[T]) TrySend(v T) bool {
	if r.closed.Load() {
		return false
	}
	select {
	case r.ch <- v:
		return true
	default:
		return false
	}
}

// Dropped reports how many events were discarded to make room.
func (r *Ring[T]) Dropped() uint64 {
	return r.dropped.Load()
}

// Len reports the number of buffered events.
func (r *Ring[T]) Len() int {
	return len(r.ch)
}

// Close marks the ring closed and releases readers ranging over C().
// Further sends are silently dropped. Close is idempotent.
func (r *Ring[T]) Close() {
	if r.closed.CompareAndSwap(false, true) {
		close(r.ch)
	}
}
