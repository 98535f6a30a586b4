package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/arcade-live/tablesync/internal/dispatch"
	"github.com/arcade-live/tablesync/internal/observer"
	"github.com/arcade-live/tablesync/internal/protocol"
	"github.com/arcade-live/tablesync/internal/store"
	"github.com/arcade-live/tablesync/internal/transport"
)

// Deps are the engine's collaborators. Nil fields fall back to
// production defaults, so tests can inject only what they drive.
type Deps struct {
	Store      *store.Store
	Dispatcher *dispatch.Dispatcher
	Dial       transport.Dialer
	Clock      clockwork.Clock
}

// Engine owns the gateway connection. It dials, watches the link,
// schedules reconnects, decodes frames into the store and fans the
// messages out through its dispatcher.
type Engine struct {
	cfg        Config
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	dial       transport.Dialer
	clock      clockwork.Clock
	logger     *slog.Logger

	states *observer.Registry[StateChange]

	mu            sync.RWMutex
	status        Status
	target        Target
	epoch         uint64
	attempt       int
	conn          transport.Conn
	connDone      chan struct{}
	retryTimer    clockwork.Timer
	lastConnected time.Time
	lastEvent     time.Time
	lastErr       error

	// State change delivery queue, see flush.
	pending  []StateChange
	flushing bool

	framesProcessed int64
	decodeErrors    int64
	reconciles      int64
}

// New creates a disconnected engine. Call SetTarget and then Connect to
// bring the link up.
func New(cfg Config, deps Deps, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	st := deps.Store
	if st == nil {
		st = store.New(clock)
	}
	disp := deps.Dispatcher
	if disp == nil {
		disp = dispatch.New(logger)
	}
	dial := deps.Dial
	if dial == nil {
		dial = transport.Dial
	}

	return &Engine{
		cfg:        cfg,
		store:      st,
		dispatcher: disp,
		dial:       dial,
		clock:      clock,
		logger:     logger,
		states:     observer.NewRegistry[StateChange](),
		status:     StatusDisconnected,
	}
}

// Store returns the entity cache the engine writes into.
func (e *Engine) Store() *store.Store { return e.store }

// Dispatcher returns the message dispatcher the engine feeds.
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.dispatcher }

// SetTarget points the engine at a gateway stream. Changing the target
// while the link is up tears it down and dials the new one; a zero
// target tears it down and leaves the engine disconnected. The retry
// counter and the event cursor start over because they belong to the
// old stream.
func (e *Engine) SetTarget(tgt Target) error {
	if tgt.BaseURL != "" {
		if _, err := transport.BuildURL(tgt.BaseURL, tgt.GameID, tgt.Identity); err != nil {
			return err
		}
	}

	e.mu.Lock()
	if tgt == e.target {
		e.mu.Unlock()
		return nil
	}

	active := e.activeLocked()
	e.target = tgt
	e.attempt = 0
	e.lastEvent = time.Time{}

	if !active {
		e.mu.Unlock()
		return nil
	}

	e.epoch++
	epoch := e.epoch
	e.teardownLocked()
	if tgt.BaseURL == "" {
		e.transitionLocked(StatusDisconnected, 0, nil)
		e.mu.Unlock()
		e.flush()
		return nil
	}
	e.transitionLocked(StatusConnecting, 0, nil)
	e.mu.Unlock()

	e.flush()
	go e.dialAttempt(epoch, tgt, 0)
	return nil
}

// Connect brings the link up. It is a no-op while the engine is already
// connecting or connected. While waiting out a backoff delay it cancels
// the pending retry and dials right away with a fresh attempt counter;
// from Disconnected or Failed it starts a new attempt cycle.
func (e *Engine) Connect() error {
	e.mu.Lock()
	switch e.status {
	case StatusConnecting, StatusConnected:
		e.mu.Unlock()
		return nil
	}
	if e.target.BaseURL == "" {
		e.mu.Unlock()
		return ErrNoTarget
	}

	e.epoch++
	epoch := e.epoch
	e.attempt = 0
	tgt := e.target
	e.teardownLocked()
	e.transitionLocked(StatusConnecting, 0, nil)
	e.mu.Unlock()

	e.flush()
	go e.dialAttempt(epoch, tgt, 0)
	return nil
}

// Disconnect tears the link down and stops any pending reconnect. The
// event cursor survives, so a later Connect still reconciles from where
// this session left off.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	if e.status == StatusDisconnected {
		e.mu.Unlock()
		return
	}

	e.epoch++
	e.teardownLocked()
	e.attempt = 0
	e.transitionLocked(StatusDisconnected, 0, nil)
	e.mu.Unlock()

	e.flush()
}

// Send transmits raw bytes on the live connection. Returns false when
// the link is down or the write fails; the engine never queues outbound
// data.
func (e *Engine) Send(data []byte) bool {
	e.mu.RLock()
	conn := e.conn
	e.mu.RUnlock()

	if conn == nil {
		return false
	}
	if err := conn.Send(data); err != nil {
		e.logger.Warn("send failed", "error", err)
		return false
	}
	return true
}

// Resync asks the gateway for an authoritative snapshot without
// touching the connection. Returns false when the link is down.
func (e *Engine) Resync() bool {
	e.mu.RLock()
	conn := e.conn
	since := e.lastEvent
	connected := e.status == StatusConnected
	e.mu.RUnlock()

	if !connected || conn == nil {
		return false
	}
	e.sendSyncRequest(conn, since)
	return true
}

// Status returns the current connection state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Target returns the currently configured target.
func (e *Engine) Target() Target {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.target
}

// Stats returns runtime counters.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Stats{
		Status:          e.status,
		Target:          e.target,
		Attempt:         e.attempt,
		LastConnectedAt: e.lastConnected,
		LastEventAt:     e.lastEvent,
		LastError:       e.lastErr,
		FramesProcessed: e.framesProcessed,
		DecodeErrors:    e.decodeErrors,
		Reconciles:      e.reconciles,
	}
}

// OnStateChange registers a callback for connection state transitions
// and immediately invokes it once with the current state, so a late
// subscriber never misses where the engine already is. The replayed
// change has From == To. Callbacks run synchronously and in
// registration order; a panicking callback is logged and does not
// disturb its peers.
func (e *Engine) OnStateChange(fn func(StateChange)) observer.Subscription {
	if fn == nil {
		return 0
	}
	wrapped := func(sc StateChange) {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("state observer panicked", "to", sc.To, "panic", r)
			}
		}()
		fn(sc)
	}

	// Snapshot and subscribe under the same lock so no transition can
	// slip between them.
	e.mu.RLock()
	replay := StateChange{From: e.status, To: e.status, Attempt: e.attempt, Err: e.lastErr}
	sub := e.states.Subscribe(wrapped)
	e.mu.RUnlock()

	wrapped(replay)
	return sub
}

// OffStateChange removes a state change callback. Safe to call twice.
func (e *Engine) OffStateChange(s observer.Subscription) {
	e.states.Unsubscribe(s)
}

// SubscribeAll registers a callback for every inbound message.
func (e *Engine) SubscribeAll(fn func(protocol.Inbound)) observer.Subscription {
	return e.dispatcher.SubscribeAll(fn)
}

// UnsubscribeAll removes an all-messages callback.
func (e *Engine) UnsubscribeAll(s observer.Subscription) {
	e.dispatcher.UnsubscribeAll(s)
}

// SubscribeGame registers a callback for one game's messages.
func (e *Engine) SubscribeGame(gameID string, fn func(protocol.Inbound)) observer.Subscription {
	return e.dispatcher.SubscribeGame(gameID, fn)
}

// UnsubscribeGame removes a game-scoped callback.
func (e *Engine) UnsubscribeGame(s observer.Subscription) {
	e.dispatcher.UnsubscribeGame(s)
}

// activeLocked reports whether the engine currently owns a link or is
// working toward one. Caller holds mu.
func (e *Engine) activeLocked() bool {
	switch e.status {
	case StatusConnecting, StatusConnected, StatusReconnecting:
		return true
	}
	return false
}

// teardownLocked stops the retry timer and closes the current
// connection, if any. Caller holds mu and has already bumped the epoch,
// so goroutines watching the old link discard themselves.
func (e *Engine) teardownLocked() {
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
	if e.connDone != nil {
		close(e.connDone)
		e.connDone = nil
	}
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
}

// transitionLocked records a state transition and queues its
// notification. Caller holds mu and must call flush after unlocking.
func (e *Engine) transitionLocked(to Status, attempt int, err error) {
	sc := StateChange{From: e.status, To: to, Attempt: attempt, Err: err}
	e.status = to
	if err != nil {
		e.lastErr = err
	}
	if to == StatusConnected {
		e.lastErr = nil
	}
	e.pending = append(e.pending, sc)
}

// flush drains queued state change notifications. Only one caller
// drains at a time and the queue is FIFO, which gives observers a
// single global order: every observer sees transition N before any
// observer sees N+1. Callbacks run outside the engine lock, so they may
// call back into the engine; transitions they cause are appended to the
// queue and delivered by the active drain.
func (e *Engine) flush() {
	e.mu.Lock()
	if e.flushing {
		e.mu.Unlock()
		return
	}
	e.flushing = true
	for len(e.pending) > 0 {
		sc := e.pending[0]
		e.pending = e.pending[1:]
		e.mu.Unlock()

		e.states.Notify(sc)

		e.mu.Lock()
	}
	e.flushing = false
	e.mu.Unlock()
}
