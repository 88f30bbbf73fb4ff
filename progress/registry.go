package progress

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mediahub/metrics"
)

// Registry maps task ids to their single progress subscriber. It is safe for
// concurrent use; each id is expected to have one writer.
type Registry struct {
	logger zerolog.Logger

	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{
		logger: log.With().Str("module", "progress").Str("submodule", "registry").Logger(),
		subs:   make(map[string]*Subscription),
	}
}

// Subscribe registers a subscriber for id, replacing any previous one, and
// queues the connected event. The replaced subscription stays open but gets
// nothing further.
func (r *Registry) Subscribe(id string) *Subscription {
	sub := newSubscription(r, id)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		sub.close()
		return sub
	}

	if _, ok := r.subs[id]; ok {
		r.logger.Debug().Str("task_id", id).Msg("subscriber replaced")
	} else {
		metrics.Subscribers.Inc()
	}
	r.subs[id] = sub
	sub.enqueue(Connected())

	return sub
}

// Push queues ev for the subscriber of id. Without a subscriber it does nothing.
func (r *Registry) Push(id string, ev Event) {
	r.mu.Lock()
	sub, ok := r.subs[id]
	r.mu.Unlock()

	if !ok {
		metrics.EventsDropped.Inc()
		return
	}
	sub.enqueue(ev)
}

// Close ends the stream for id. Already queued events are still delivered.
func (r *Registry) Close(id string) {
	if sub := r.remove(id, nil); sub != nil {
		sub.close()
	}
}

// Unsubscribe drops the subscriber for id without a terminal event.
func (r *Registry) Unsubscribe(id string) {
	if sub := r.remove(id, nil); sub != nil {
		sub.discard()
	}
}

// Has reports whether id currently has a subscriber.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.subs[id]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.subs)
}

// Shutdown closes every subscription. Later subscriptions are born closed.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]*Subscription)
	r.closed = true
	r.mu.Unlock()

	for _, sub := range subs {
		metrics.Subscribers.Dec()
		sub.close()
	}
	r.logger.Debug().Int("closed", len(subs)).Msg("registry shut down")
}

// remove deletes the mapping for id. If only is set, the mapping is removed
// only while it still points at that subscription.
func (r *Registry) remove(id string, only *Subscription) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok || (only != nil && sub != only) {
		return nil
	}
	delete(r.subs, id)
	metrics.Subscribers.Dec()
	return sub
}
