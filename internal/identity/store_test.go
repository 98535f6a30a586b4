package identity

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

func TestSQLiteStore_ClientIDStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	id1, err := s.ClientID()
	if err != nil {
		t.Fatalf("ClientID failed: %v", err)
	}
	parsed, err := uuid.Parse(id1)
	if err != nil {
		t.Fatalf("ClientID %q is not a UUID: %v", id1, err)
	}
	// v7 carries the mint time in its high bits.
	if parsed.Version() != 7 {
		t.Errorf("ClientID version = %d, want 7", parsed.Version())
	}

	id2, err := s.ClientID()
	if err != nil {
		t.Fatalf("second ClientID failed: %v", err)
	}
	if id2 != id1 {
		t.Errorf("ClientID changed within one session: %q then %q", id1, id2)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The same database must yield the same ID after a restart.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	id3, err := s2.ClientID()
	if err != nil {
		t.Fatalf("ClientID after reopen failed: %v", err)
	}
	if id3 != id1 {
		t.Errorf("ClientID changed across restart: %q then %q", id1, id3)
	}
}

func TestOpenOrEphemeralFallsBack(t *testing.T) {
	// Parent directory does not exist, so SQLite cannot create the file.
	path := filepath.Join(t.TempDir(), "missing", "credentials.db")

	s := OpenOrEphemeral(path, nil)
	defer s.Close()

	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("OpenOrEphemeral returned %T, want *MemoryStore", s)
	}
	id, err := s.ClientID()
	if err != nil || id == "" {
		t.Errorf("ClientID = %q, %v; want a minted ID", id, err)
	}
}

func TestOpenOrEphemeralUsesDurableStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.db")

	s := OpenOrEphemeral(path, nil)
	if _, ok := s.(*SQLiteStore); !ok {
		t.Fatalf("OpenOrEphemeral returned %T, want *SQLiteStore", s)
	}
	id1, err := s.ClientID()
	if err != nil {
		t.Fatalf("ClientID failed: %v", err)
	}
	s.Close()

	s2 := OpenOrEphemeral(path, nil)
	defer s2.Close()
	id2, err := s2.ClientID()
	if err != nil {
		t.Fatalf("ClientID after reopen failed: %v", err)
	}
	if id2 != id1 {
		t.Errorf("ClientID changed across restart: %q then %q", id1, id2)
	}
}

func TestMemoryStore_ClientID(t *testing.T) {
	m := NewMemoryStore()

	id1, err := m.ClientID()
	if err != nil {
		t.Fatalf("ClientID failed: %v", err)
	}
	id2, err := m.ClientID()
	if err != nil {
		t.Fatalf("second ClientID failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ClientID changed within one process: %q then %q", id1, id2)
	}

	other := NewMemoryStore()
	otherID, err := other.ClientID()
	if err != nil {
		t.Fatalf("ClientID failed: %v", err)
	}
	if otherID == id1 {
		t.Error("two MemoryStores minted the same ID")
	}
}
