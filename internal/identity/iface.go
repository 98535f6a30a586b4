// Package identity manages the client identity presented to the
// Arcade Live platform.
//
// Every websocket dial and REST call carries two credentials:
//   - a client ID, a UUID minted on first run and persisted locally
//   - the init data blob, a signed session token issued by the platform
//
// The client ID survives restarts via a small SQLite database so the
// gateway can correlate reconnects from the same install.
package identity

import "github.com/google/uuid"

// Identity is the credential pair attached to every gateway connection
// and REST request.
type Identity struct {
	ClientID string // Stable per-install identifier
	InitData string // Signed platform session token
}

// newClientID mints a fresh identifier. Version 7 UUIDs sort by mint
// time, which keeps gateway-side session tables roughly append-ordered;
// if the entropy or clock source misbehaves a v4 still satisfies
// uniqueness.
func newClientID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Store persists the client ID across runs. The concrete types are
// SQLiteStore and MemoryStore.
type Store interface {
	// ClientID returns the stable identifier, minting one on first use.
	ClientID() (string, error)

	// Close releases the underlying storage.
	Close() error
}
