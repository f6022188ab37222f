package notify

import (
	"context"
	"sync"
)

// Sink is a thread-safe FIFO queue of notifications.
//
// The queue is unbounded so the watcher never blocks on a slow UI. The
// signal channel has a buffer of one and coalesces pushes; consumers wait
// on Pending and then drain with TryPop.
type Sink struct {
	mu     sync.Mutex
	items  []Notification
	closed bool
	signal chan struct{}
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{
		items:  make([]Notification, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Push appends a notification. Returns false if the sink is closed.
func (s *Sink) Push(n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	s.items = append(s.items, n)

	select {
	case s.signal <- struct{}{}:
	default:
	}

	return true
}

// TryPop removes and returns the oldest notification without blocking.
func (s *Sink) TryPop() (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return Notification{}, false
	}

	n := s.items[0]
	// Clear the slot so the payload pointers can be collected.
	s.items[0] = Notification{}

	if len(s.items) == 1 {
		s.items = s.items[:0]
	} else {
		s.items = s.items[1:]
	}

	return n, true
}

// Pop blocks until a notification is available, the sink is closed and
// drained, or ctx is done. ok is false in the latter two cases.
func (s *Sink) Pop(ctx context.Context) (n Notification, ok bool, err error) {
	for {
		if n, ok := s.TryPop(); ok {
			return n, true, nil
		}

		if s.Drained() {
			return Notification{}, false, nil
		}

		select {
		case <-ctx.Done():
			return Notification{}, false, ctx.Err()
		case <-s.signal:
		}
	}
}

// Pending returns a channel that signals when notifications may be
// available. Close closes the channel, so after Close it is always ready and
// a consumer must stop on Drained rather than wait again:
//
//	for !sink.Drained() {
//	    select {
//	    case <-ctx.Done():
//	        return ctx.Err()
//	    case <-sink.Pending():
//	    }
//	    for n, ok := sink.TryPop(); ok; n, ok = sink.TryPop() {
//	        show(n)
//	    }
//	}
//
// Pop does this loop for a single notification.
func (s *Sink) Pending() <-chan struct{} {
	return s.signal
}

// Drained reports whether the sink is closed and empty, so nothing will
// ever be popped again.
func (s *Sink) Drained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed && len(s.items) == 0
}

// Len returns the number of queued notifications.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Close stops further pushes and wakes waiting consumers. Queued
// notifications can still be popped.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.signal)
}
