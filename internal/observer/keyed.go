package observer

import "sync"

// Keyed is a thread-safe registry of callbacks partitioned by key,
// used for per-game subscriptions. Delivery semantics match Registry,
// scoped to one key per Notify.
type Keyed[K comparable, E any] struct {
	mu     sync.RWMutex
	nextID Subscription
	keys   map[K][]entry[E]
	owner  map[Subscription]K
}

// NewKeyed creates an empty keyed registry.
func NewKeyed[K comparable, E any]() *Keyed[K, E] {
	return &Keyed[K, E]{
		keys:  make(map[K][]entry[E]),
		owner: make(map[Subscription]K),
	}
}

// Subscribe registers a callback under the given key. A nil callback is
// ignored and yields the zero token.
func (k *Keyed[K, E]) Subscribe(key K, fn func(E)) Subscription {
	if fn == nil {
		return 0
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	k.nextID++
	k.keys[key] = append(k.keys[key], entry[E]{id: k.nextID, fn: fn})
	k.owner[k.nextID] = key
	return k.nextID
}

// Unsubscribe removes a callback by token. Unknown tokens are ignored.
// The last unsubscribe for a key drops the key entirely.
func (k *Keyed[K, E]) Unsubscribe(s Subscription) {
	if s == 0 {
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	key, ok := k.owner[s]
	if !ok {
		return
	}
	delete(k.owner, s)

	entries := k.keys[key]
	for i, e := range entries {
		if e.id == s {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(k.keys, key)
	} else {
		k.keys[key] = entries
	}
}

// Notify calls every callback registered under the key, in
// subscription order. Keys with no subscribers are a no-op.
func (k *Keyed[K, E]) Notify(key K, event E) {
	k.mu.RLock()
	entries := k.keys[key]
	snapshot := make([]entry[E], len(entries))
	copy(snapshot, entries)
	k.mu.RUnlock()

	for _, e := range snapshot {
		e.fn(event)
	}
}

// Keys returns the keys that currently have at least one subscriber.
func (k *Keyed[K, E]) Keys() []K {
	k.mu.RLock()
	defer k.mu.RUnlock()

	out := make([]K, 0, len(k.keys))
	for key := range k.keys {
		out = append(out, key)
	}
	return out
}

// Len returns the number of callbacks registered under the key.
func (k *Keyed[K, E]) Len(key K) int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys[key])
}
