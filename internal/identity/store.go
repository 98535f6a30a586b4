package identity

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const clientIDKey = "client_id"

// SQLiteStore persists credentials in a local SQLite database. WAL mode
// keeps a second process on the same profile directory from tripping
// over the writer.
type SQLiteStore struct {
	db *sql.DB
}

// OpenOrEphemeral opens the durable credential store at path, minting
// the client ID eagerly. When the database cannot be opened or written,
// it degrades to an in-memory identity with a warning instead of
// failing, which keeps the client usable in sandboxed or read-only
// installs at the cost of a fresh ID per run.
func OpenOrEphemeral(path string, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := Open(path)
	if err == nil {
		if _, err = s.ClientID(); err == nil {
			return s
		}
		s.Close()
	}
	logger.Warn("credential db unavailable, using ephemeral identity", "path", path, "err", err)
	return NewMemoryStore()
}

// Open opens (or creates) the credential database and initializes the
// schema.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open credential db: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate credential db: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS credentials (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ClientID returns the stable client identifier, minting and persisting
// a new UUID on first use.
func (s *SQLiteStore) ClientID() (string, error) {
	id, err := s.get(clientIDKey)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	// First run. ON CONFLICT DO NOTHING keeps a concurrent first run
	// from minting two IDs; whichever insert wins is read back.
	if err := s.insert(clientIDKey, newClientID()); err != nil {
		return "", err
	}
	return s.get(clientIDKey)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credential %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) insert(key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(
		`INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("write credential %s: %w", key, err)
	}
	return nil
}
