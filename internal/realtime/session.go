package realtime

import (
	"context"
	"time"

	"github.com/arcade-live/tablesync/internal/protocol"
	"github.com/arcade-live/tablesync/internal/transport"
)

// dialAttempt dials the gateway once. On success it installs the
// connection, starts the read loop and, on anything but the engine's
// very first connection, requests a snapshot to cover the gap. On
// failure it schedules the next retry or gives up.
func (e *Engine) dialAttempt(epoch uint64, tgt Target, attempt int) {
	url, err := transport.BuildURL(tgt.BaseURL, tgt.GameID, tgt.Identity)
	if err != nil {
		e.dialFailed(epoch, attempt, err)
		return
	}

	conn, err := e.dial(context.Background(), url, e.cfg.Dial, e.logger)
	if err != nil {
		e.logger.Warn("dial failed", "url", url, "attempt", attempt, "error", err)
		e.dialFailed(epoch, attempt, err)
		return
	}

	e.mu.Lock()
	if epoch != e.epoch {
		// The engine moved on while we were dialing.
		e.mu.Unlock()
		conn.Close()
		return
	}

	done := make(chan struct{})
	e.conn = conn
	e.connDone = done
	e.attempt = 0
	reconcile := !e.lastConnected.IsZero()
	e.lastConnected = e.clock.Now()
	since := e.lastEvent
	e.transitionLocked(StatusConnected, attempt, nil)
	e.mu.Unlock()

	e.logger.Info("connected", "url", url, "attempt", attempt, "reconcile", reconcile)

	e.flush()
	go e.readLoop(epoch, conn, done)
	if reconcile {
		e.sendSyncRequest(conn, since)
	}
}

// dialFailed advances the retry schedule after a failed dial.
func (e *Engine) dialFailed(epoch uint64, attempt int, err error) {
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}

	next := attempt + 1
	if e.cfg.Backoff.Exhausted(next) {
		e.logger.Error("retries exhausted, giving up", "attempts", attempt, "error", err)
		e.attempt = 0
		e.transitionLocked(StatusFailed, attempt, err)
		e.mu.Unlock()
		e.flush()
		return
	}

	e.attempt = next
	e.transitionLocked(StatusReconnecting, next, err)
	e.scheduleRetryLocked(epoch, next)
	e.mu.Unlock()
	e.flush()
}

// scheduleRetryLocked arms the backoff timer for the given attempt.
// Caller holds mu.
func (e *Engine) scheduleRetryLocked(epoch uint64, attempt int) {
	delay := e.cfg.Backoff.Delay(attempt)
	e.logger.Info("reconnecting", "attempt", attempt, "delay", delay)
	e.retryTimer = e.clock.AfterFunc(delay, func() {
		e.retryFire(epoch, attempt)
	})
}

// retryFire runs when the backoff timer expires. The status check
// guards against a timer that Stop raced with. Observers see the
// engine move back to Connecting for the duration of the dial.
func (e *Engine) retryFire(epoch uint64, attempt int) {
	e.mu.Lock()
	if epoch != e.epoch || e.status != StatusReconnecting {
		e.mu.Unlock()
		return
	}
	tgt := e.target
	e.transitionLocked(StatusConnecting, attempt, nil)
	e.mu.Unlock()
	e.flush()

	e.dialAttempt(epoch, tgt, attempt)
}

// readLoop pumps one connection's frames into the engine until the
// link errors or the engine tears the connection down.
func (e *Engine) readLoop(epoch uint64, conn transport.Conn, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case frame := <-conn.Frames():
			e.handleFrame(epoch, frame)
		case err := <-conn.Errors():
			// Frames already buffered arrived before the link died;
			// process them before reacting to the loss.
			e.drainFrames(epoch, conn)
			e.handleLinkError(epoch, err)
			return
		}
	}
}

func (e *Engine) drainFrames(epoch uint64, conn transport.Conn) {
	for {
		select {
		case frame := <-conn.Frames():
			e.handleFrame(epoch, frame)
		default:
			return
		}
	}
}

// handleFrame decodes one frame, merges it into the store and fans it
// out. Undecodable frames are dropped; they say nothing about the
// health of the link.
func (e *Engine) handleFrame(epoch uint64, frame transport.Frame) {
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	e.framesProcessed++
	e.mu.Unlock()

	msg, err := protocol.Decode(frame.Data)
	if err != nil {
		e.mu.Lock()
		e.decodeErrors++
		e.mu.Unlock()
		e.logger.Warn("dropping frame", "error", err)
		return
	}

	e.apply(msg)

	// Advance the cursor before fanning out, so a subscriber that asks
	// for a resync mid-delivery already covers this message.
	if at := msg.OccurredAt(); !at.IsZero() {
		e.mu.Lock()
		if at.After(e.lastEvent) {
			e.lastEvent = at
		}
		e.mu.Unlock()
	}

	e.dispatcher.Dispatch(msg)
}

// apply merges a decoded message into the store. Server errors carry no
// state; subscribers see them but the cache does not.
func (e *Engine) apply(msg protocol.Inbound) {
	switch m := msg.(type) {
	case protocol.GameStateUpdate:
		e.store.ApplyUpdate(m)
	case protocol.ReservationCreated:
		e.store.ApplyReservationCreated(m)
	case protocol.ReservationReleased:
		e.store.ApplyReservationReleased(m)
	case protocol.SyncResponse:
		e.store.ApplySnapshot(m)
	case protocol.ServerError:
		e.logger.Warn("server error", "code", m.Code, "message", m.Message)
	}
}

// handleLinkError reacts to a dead connection. A normal closure is the
// gateway saying goodbye and ends the session; anything else starts the
// reconnect schedule.
func (e *Engine) handleLinkError(epoch uint64, err error) {
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}

	e.epoch++
	next := e.epoch
	e.teardownLocked()

	if transport.IsNormalClosure(err) {
		e.logger.Info("gateway closed the connection", "error", err)
		e.attempt = 0
		e.transitionLocked(StatusDisconnected, 0, err)
		e.mu.Unlock()
		e.flush()
		return
	}

	e.logger.Warn("connection lost", "error", err)
	if e.cfg.Backoff.Exhausted(1) {
		e.attempt = 0
		e.transitionLocked(StatusFailed, 1, err)
		e.mu.Unlock()
		e.flush()
		return
	}
	e.attempt = 1
	e.transitionLocked(StatusReconnecting, 1, err)
	e.scheduleRetryLocked(next, 1)
	e.mu.Unlock()
	e.flush()
}

// sendSyncRequest asks the gateway for an authoritative snapshot,
// scoped to everything after the cursor when one exists.
func (e *Engine) sendSyncRequest(conn transport.Conn, since time.Time) {
	data, err := protocol.EncodeSyncRequest(protocol.SyncRequest{Since: since})
	if err != nil {
		e.logger.Error("encoding sync request", "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		e.logger.Warn("sync request not sent", "error", err)
		return
	}

	e.mu.Lock()
	e.reconciles++
	e.mu.Unlock()

	e.logger.Info("sync requested", "since", since)
}
