package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // Register sqlite driver

	"github.com/gridwatch/dayahead/internal/cache"
)

var _ cache.ObjectCache = (*Store)(nil)

//go:embed migrations/001_initial.sql
var migration string

// Store is a sqlite-backed object cache. One row per key, JSON payloads.
type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// In-memory databases are per-connection; multiple connections each get a
	// separate empty database. Limit to one connection so migrations and
	// queries all see the same data.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(migration); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM objects WHERE key = ?", key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) RetrieveObject(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM objects WHERE key = ?", key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("retrieve %s: %w", key, err)
	}
	return json.RawMessage(payload), true, nil
}

// CreateObject persists value under key. An existing key is left untouched:
// cached objects are immutable and re-creation must not overwrite them. The
// latest currency pointer is the one key that floats, so it is upserted.
func (s *Store) CreateObject(ctx context.Context, key string, value json.RawMessage, forceSync bool) error {
	query := "INSERT OR IGNORE INTO objects (key, payload) VALUES (?, ?)"
	if key == cache.CurrencyLatestKey {
		query = "INSERT INTO objects (key, payload) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET payload = excluded.payload"
	}
	if _, err := s.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("create %s: %w", key, err)
	}
	if forceSync {
		return s.checkpoint(ctx)
	}
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, key string, forceSync bool) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM objects WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if forceSync {
		return s.checkpoint(ctx)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM objects ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// checkpoint flushes the WAL so a forced write is durable on disk.
func (s *Store) checkpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}
