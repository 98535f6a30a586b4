package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn represents a single WebSocket connection to the gateway.
type Conn interface {
	// Connect establishes the WebSocket connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection with code 1000.
	Close() error

	// Send writes raw bytes to the connection.
	Send(data []byte) error

	// Frames returns a channel of all raw inbound frames.
	Frames() <-chan Frame

	// Errors returns a channel of link errors. A read error here means
	// the connection is dead.
	Errors() <-chan error

	// IsConnected returns current link state.
	IsConnected() bool
}

// Dialer creates and connects a Conn. The realtime engine takes one of
// these so tests can substitute their own link.
type Dialer func(ctx context.Context, url string, cfg DialConfig, logger *slog.Logger) (Conn, error)

// Dial creates a Conn and connects it. It is the production Dialer.
func Dial(ctx context.Context, url string, cfg DialConfig, logger *slog.Logger) (Conn, error) {
	c := NewConn(url, cfg, logger)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// conn implements the Conn interface.
type conn struct {
	url    string
	cfg    DialConfig
	logger *slog.Logger

	ws *websocket.Conn

	// Output channels
	frames chan Frame
	errors chan error
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewConn creates an unconnected WebSocket connection. Zero fields in
// cfg fall back to DefaultDialConfig values.
func NewConn(url string, cfg DialConfig, logger *slog.Logger) Conn {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.normalized()

	return &conn{
		url:    url,
		cfg:    cfg,
		logger: logger,
		frames: make(chan Frame, cfg.BufferSize),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (c *conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.ws = ws
	c.connected = true
	c.mu.Unlock()

	// Liveness rides on the read deadline: any traffic extends it, and
	// a link silent for PingTimeout fails the next read.
	ws.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))

	// Server sends ping, we respond with pong.
	ws.SetPingHandler(func(data string) error {
		ws.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))
		return ws.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Server responds to our ping.
	ws.SetPongHandler(func(data string) error {
		return ws.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))
	})

	go c.readLoop()
	go c.keepaliveLoop()

	c.logger.Debug("websocket connected", "url", c.url)

	return nil
}

// Close gracefully closes the connection.
func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	// Signal goroutines to stop
	close(c.done)

	if c.ws != nil {
		// Tell the gateway this is a deliberate goodbye
		c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return c.ws.Close()
	}

	return nil
}

// Send writes raw bytes to the connection.
func (c *conn) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Frames returns the frames channel.
func (c *conn) Frames() <-chan Frame {
	return c.frames
}

// Errors returns the errors channel.
func (c *conn) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current link state.
func (c *conn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// readLoop reads frames from the WebSocket and forwards them to the
// frames channel.
func (c *conn) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.ws.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-c.done:
				return
			default:
				if isTimeout(err) {
					c.logger.Warn("connection stale, no traffic within timeout",
						"timeout", c.cfg.PingTimeout,
					)
					err = ErrStaleConnection
				}
				select {
				case c.errors <- err:
				default:
				}
				return
			}
		}
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))

		frame := Frame{
			Data:       data,
			ReceivedAt: receivedAt,
		}

		select {
		case c.frames <- frame:
		case <-c.done:
			return
		default:
			c.logger.Warn("frame buffer full, dropping frame")
		}
	}
}

// keepaliveLoop pings the gateway every PingInterval. The pong (or any
// other traffic) pushes the read deadline out; a link that answers
// nothing runs the deadline down and dies in readLoop.
func (c *conn) keepaliveLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			ws := c.ws
			c.mu.RUnlock()

			if ws != nil {
				deadline := time.Now().Add(c.cfg.WriteTimeout)
				if err := ws.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
					c.logger.Debug("failed to send ping", "error", err)
				}
			}
		}
	}
}

// isTimeout reports whether err is a read deadline expiry.
func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
