// Package dispatch fans decoded gateway messages out to subscribers.
//
// The dispatcher:
//   - Delivers every message to the all-messages subscribers
//   - Delivers game-scoped messages to that game's subscribers
//   - Recovers subscriber panics so one bad callback cannot take down
//     the message loop or starve its peers
//
// Delivery is synchronous and in subscription order. The realtime
// engine calls Dispatch from a single goroutine, which is what makes
// message N finish delivering everywhere before message N+1 starts.
package dispatch

import (
	"log/slog"
	"sync"

	"github.com/arcade-live/tablesync/internal/observer"
	"github.com/arcade-live/tablesync/internal/protocol"
)

// Dispatcher routes decoded messages to observer registries.
type Dispatcher struct {
	logger *slog.Logger

	all   *observer.Registry[protocol.Inbound]
	games *observer.Keyed[string, protocol.Inbound]

	mu         sync.RWMutex
	dispatched int64
	panics     int64
}

// Stats contains runtime statistics.
type Stats struct {
	Dispatched       int64 `json:"dispatched"`
	SubscriberPanics int64 `json:"subscriber_panics"`
}

// New creates a Dispatcher with no subscribers.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		logger: logger,
		all:    observer.NewRegistry[protocol.Inbound](),
		games:  observer.NewKeyed[string, protocol.Inbound](),
	}
}

// SubscribeAll registers a callback for every inbound message,
// including server errors that belong to no game.
func (d *Dispatcher) SubscribeAll(fn func(protocol.Inbound)) observer.Subscription {
	if fn == nil {
		return 0
	}
	return d.all.Subscribe(d.recovered(fn))
}

// UnsubscribeAll removes an all-messages callback. Safe to call twice.
func (d *Dispatcher) UnsubscribeAll(s observer.Subscription) {
	d.all.Unsubscribe(s)
}

// SubscribeGame registers a callback for one game's messages.
func (d *Dispatcher) SubscribeGame(gameID string, fn func(protocol.Inbound)) observer.Subscription {
	if fn == nil {
		return 0
	}
	return d.games.Subscribe(gameID, d.recovered(fn))
}

// UnsubscribeGame removes a game-scoped callback. Safe to call twice.
func (d *Dispatcher) UnsubscribeGame(s observer.Subscription) {
	d.games.Unsubscribe(s)
}

// WatchedGames returns the game IDs that currently have subscribers.
func (d *Dispatcher) WatchedGames() []string {
	return d.games.Keys()
}

// Dispatch delivers one message to every interested subscriber and
// returns once all callbacks have run.
func (d *Dispatcher) Dispatch(msg protocol.Inbound) {
	d.all.Notify(msg)
	if id := gameIDOf(msg); id != "" {
		d.games.Notify(id, msg)
	}

	d.mu.Lock()
	d.dispatched++
	d.mu.Unlock()
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return Stats{
		Dispatched:       d.dispatched,
		SubscriberPanics: d.panics,
	}
}

// recovered wraps a subscriber callback so its panics are logged and
// counted instead of unwinding the message loop.
func (d *Dispatcher) recovered(fn func(protocol.Inbound)) func(protocol.Inbound) {
	return func(msg protocol.Inbound) {
		defer func() {
			if r := recover(); r != nil {
				d.mu.Lock()
				d.panics++
				d.mu.Unlock()
				d.logger.Error("subscriber panicked", "kind", msg.Kind(), "panic", r)
			}
		}()
		fn(msg)
	}
}

// gameIDOf returns the game a message is scoped to, or "" for messages
// that belong to no game.
func gameIDOf(msg protocol.Inbound) string {
	switch v := msg.(type) {
	case protocol.GameStateUpdate:
		return v.GameID
	case protocol.ReservationCreated:
		return v.GameID
	case protocol.ReservationReleased:
		return v.GameID
	case protocol.SyncResponse:
		return v.Game.ID
	default:
		return ""
	}
}
