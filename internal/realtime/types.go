package realtime

import (
	"errors"
	"time"

	"github.com/arcade-live/tablesync/internal/backoff"
	"github.com/arcade-live/tablesync/internal/identity"
	"github.com/arcade-live/tablesync/internal/transport"
)

// Errors
var (
	ErrNoTarget = errors.New("no target configured")
)

// Status is the engine's connection state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusFailed       Status = "failed"
)

// StateChange describes one transition of the connection state machine.
type StateChange struct {
	From    Status
	To      Status
	Attempt int   // Retry attempt this transition belongs to, 0 outside retries
	Err     error // Link or dial error that caused the transition, if any
}

// Target identifies what the engine connects to. Engines watch either
// the whole games list or a single table.
type Target struct {
	BaseURL  string // Gateway base URL, e.g. wss://gw.arcade.live
	GameID   string // Empty = whole games list
	Identity identity.Identity
}

// Config configures the engine.
type Config struct {
	Backoff backoff.Policy
	Dial    transport.DialConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backoff: backoff.Default(),
		Dial:    transport.DefaultDialConfig(),
	}
}

// Stats is a read-only snapshot of the engine for debug endpoints and
// status displays.
type Stats struct {
	Status          Status
	Target          Target
	Attempt         int       // Current retry attempt, 0 when not retrying
	LastConnectedAt time.Time // Zero until the engine's first successful connect
	LastEventAt     time.Time // Server timestamp of the newest processed message
	LastError       error     // Latest link or dial error, cleared on connect
	FramesProcessed int64
	DecodeErrors    int64
	Reconciles      int64
}
