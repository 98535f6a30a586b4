// Package observer provides subscription registries for delivering
// events to interested callers.
//
// Both registries share the same delivery contract:
//   - Callbacks run synchronously on the notifying goroutine
//   - Callbacks run in subscription order
//   - Notify returns only after every callback has returned
//
// Callers that need events delivered without interleaving serialize
// their Notify calls; the registries themselves only order callbacks
// within a single Notify.
package observer

import "sync"

// Subscription identifies one registered callback. The zero value is
// never issued and unsubscribing it is a no-op.
type Subscription uint64

type entry[E any] struct {
	id Subscription
	fn func(E)
}

// Registry is a thread-safe list of callbacks observing one event
// stream.
type Registry[E any] struct {
	mu      sync.RWMutex
	nextID  Subscription
	entries []entry[E]
}

// NewRegistry creates an empty registry.
func NewRegistry[E any]() *Registry[E] {
	return &Registry[E]{}
}

// Subscribe registers a callback and returns its subscription token.
// A nil callback is ignored and yields the zero token.
func (r *Registry[E]) Subscribe(fn func(E)) Subscription {
	if fn == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.entries = append(r.entries, entry[E]{id: r.nextID, fn: fn})
	return r.nextID
}

// Unsubscribe removes a callback. Unknown or already-removed tokens are
// ignored, so double unsubscribe is safe.
func (r *Registry[E]) Unsubscribe(s Subscription) {
	if s == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.id == s {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// Notify calls every registered callback with the event, in
// subscription order. Callbacks registered during delivery see only
// later events; callbacks removed during delivery may still receive
// this one.
func (r *Registry[E]) Notify(event E) {
	r.mu.RLock()
	snapshot := make([]entry[E], len(r.entries))
	copy(snapshot, r.entries)
	r.mu.RUnlock()

	for _, e := range snapshot {
		e.fn(event)
	}
}

// Len returns the number of registered callbacks.
func (r *Registry[E]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
