// Package settings provides scoped key-value persistence. It backs both
// plugin-style configuration overrides (per-survey flags) and the field
// metadata cache.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MaxKeyLength is the longest key the store accepts. Cache key derivation
// bounds its keys to fit.
const MaxKeyLength = 64

// Store defines scoped get/set semantics over string keys. Scope and scopeID
// partition keys: global settings use empty scope values.
type Store interface {
	Get(ctx context.Context, key, scope, scopeID string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value, scope, scopeID string) error
	Delete(ctx context.Context, key, scope, scopeID string) error
}

// SQLiteStore implements Store on the settings table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get returns the stored value for the scoped key, reporting ok=false when no
// value has been set.
func (s *SQLiteStore) Get(ctx context.Context, key, scope, scopeID string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE scope = ? AND scope_id = ? AND key = ?`,
		scope, scopeID, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get setting %q: %w", key, err)
	}
	if !value.Valid {
		return "", true, nil
	}
	return value.String, true, nil
}

// Set stores the value under the scoped key, replacing any previous value.
func (s *SQLiteStore) Set(ctx context.Context, key, value, scope, scopeID string) error {
	if len(key) > MaxKeyLength {
		return fmt.Errorf("setting key %q exceeds %d characters", key, MaxKeyLength)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (scope, scope_id, key, value, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(scope, scope_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		scope, scopeID, key, value, now(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// Delete removes the scoped key. Deleting an absent key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key, scope, scopeID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM settings WHERE scope = ? AND scope_id = ? AND key = ?`,
		scope, scopeID, key,
	)
	if err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
