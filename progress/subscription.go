package progress

import (
	"sync"

	"mediahub/metrics"
)

// Subscription is the queue side of one subscriber. Writers never block on it:
// events are appended under a mutex and the reader is woken through Ready.
type Subscription struct {
	id       string
	registry *Registry

	mu      sync.Mutex
	pending []Event
	closed  bool

	ready chan struct{}
}

func newSubscription(r *Registry, id string) *Subscription {
	return &Subscription{
		id:       id,
		registry: r,
		ready:    make(chan struct{}, 1),
	}
}

func (s *Subscription) ID() string {
	return s.id
}

// Ready fires whenever events were queued or the subscription was closed.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Drain takes every queued event. open is false once the stream has ended and
// no events remain after this batch.
func (s *Subscription) Drain() (events []Event, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events = s.pending
	s.pending = nil
	return events, !s.closed
}

// Cancel detaches the subscription after its transport went away. It never
// evicts a newer subscriber registered for the same id.
func (s *Subscription) Cancel() {
	if s.registry != nil {
		s.registry.remove(s.id, s)
	}
	s.discard()
}

func (s *Subscription) enqueue(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	// a progress event still waiting behind one of the same status is superseded
	if n := len(s.pending); n > 0 && coalescable(s.pending[n-1], ev) {
		s.pending[n-1] = ev
		metrics.EventsCoalesced.Inc()
	} else {
		s.pending = append(s.pending, ev)
	}
	s.mu.Unlock()

	metrics.EventsPushed.Inc()
	s.signal()
}

func coalescable(prev, next Event) bool {
	if prev.Status != next.Status {
		return false
	}
	return next.Status == StatusDownloading || next.Status == StatusProcessing
}

func (s *Subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) discard() {
	s.mu.Lock()
	s.closed = true
	s.pending = nil
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}
