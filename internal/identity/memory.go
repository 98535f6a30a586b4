package identity

import "sync"

// MemoryStore mints a fresh client ID per process. Used when no profile
// directory is configured, and in tests.
type MemoryStore struct {
	once sync.Once
	id   string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// ClientID returns the process-lifetime identifier, minting it on first
// use.
func (m *MemoryStore) ClientID() (string, error) {
	m.once.Do(func() { m.id = newClientID() })
	return m.id, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
