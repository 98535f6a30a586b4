package transport

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no traffic)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Frame wraps raw frame data with its receive timestamp.
type Frame struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// DialConfig configures a single WebSocket connection.
type DialConfig struct {
	HandshakeTimeout time.Duration // Dial deadline
	PingInterval     time.Duration // Keepalive ping cadence
	PingTimeout      time.Duration // Max silence before the link is stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Frame channel buffer size
}

// DefaultDialConfig returns sensible defaults.
func DefaultDialConfig() DialConfig {
	return DialConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// normalized fills every zero or negative field with its default, so a
// partially specified config still yields a working link.
func (cfg DialConfig) normalized() DialConfig {
	def := DefaultDialConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	return cfg
}

// IsNormalClosure reports whether err is a WebSocket close with code
// 1000. A normal closure is the server saying goodbye on purpose;
// everything else is an abnormal loss of the link.
func IsNormalClosure(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure
}
