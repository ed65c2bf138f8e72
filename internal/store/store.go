// Package store handles SQLite persistence of local console state.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Setting keys.
const (
	KeyToken    = "admin_token"
	KeyViewMode = "admin_users_view_mode"
)

// Store wraps SQLite access for settings and cached list payloads.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := runMigrations(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer; Bubble Tea commands may call in from several goroutines.
	db.SetMaxOpenConns(1)
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// GetSetting returns the value stored under key.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes key. Removing a missing key is not an error.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// LoadToken returns the persisted bearer token.
func (s *Store) LoadToken(ctx context.Context) (string, error) {
	token, _, err := s.GetSetting(ctx, KeyToken)
	return token, err
}

// SaveToken persists the bearer token.
func (s *Store) SaveToken(ctx context.Context, token string) error {
	return s.SetSetting(ctx, KeyToken, token)
}

// ClearToken erases the bearer token.
func (s *Store) ClearToken(ctx context.Context) error {
	return s.DeleteSetting(ctx, KeyToken)
}

// LoadEntry returns a cached payload and the time it was fetched.
func (s *Store) LoadEntry(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	var payload []byte
	var fetchedAtMs int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at_ms FROM cache_entries WHERE key = ?`, key).Scan(&payload, &fetchedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("load cache entry %s: %w", key, err)
	}
	return payload, time.UnixMilli(fetchedAtMs), true, nil
}

// SaveEntry replaces the cached payload for key.
func (s *Store) SaveEntry(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, payload, fetched_at_ms) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, fetched_at_ms = excluded.fetched_at_ms`,
		key, payload, fetchedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save cache entry %s: %w", key, err)
	}
	return nil
}

// DeleteEntry removes the cached payload for key.
func (s *Store) DeleteEntry(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	return nil
}

// ListEntryKeys returns cached keys with their fetch times, oldest first.
func (s *Store) ListEntryKeys(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, fetched_at_ms FROM cache_entries ORDER BY fetched_at_ms ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	out := map[string]time.Time{}
	for rows.Next() {
		var key string
		var ms int64
		if err := rows.Scan(&key, &ms); err != nil {
			return nil, err
		}
		out[key] = time.UnixMilli(ms)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
