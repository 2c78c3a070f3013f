package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertAPIKey implements KeyStore.
func (s *SQLite) InsertAPIKey(ctx context.Context, key APIKey) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO api_keys (key, name, enabled, created_at) VALUES (?, ?, ?, ?)`,
		key.Key, key.Name, boolInt(key.Enabled), toMillis(key.CreatedAt))
	if err != nil {
		return NewStorageError("sqlite", "insert_api_key", err)
	}
	return nil
}

// DeleteAPIKey implements KeyStore.
func (s *SQLite) DeleteAPIKey(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE key = ?`, key)
	if err != nil {
		return NewStorageError("sqlite", "delete_api_key", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewStorageError("sqlite", "delete_api_key", fmt.Errorf("api key: %w", ErrNotFound))
	}
	return nil
}

// ListAPIKeys implements KeyStore.
func (s *SQLite) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, name, enabled, created_at FROM api_keys ORDER BY created_at`)
	if err != nil {
		return nil, NewStorageError("sqlite", "list_api_keys", err)
	}
	defer rows.Close()

	var out []APIKey
	for rows.Next() {
		var k APIKey
		var created int64
		if err := rows.Scan(&k.Key, &k.Name, &k.Enabled, &created); err != nil {
			return nil, NewStorageError("sqlite", "scan_api_key", err)
		}
		k.CreatedAt = fromMillis(created)
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list_api_keys", err)
	}
	return out, nil
}

// LookupAPIKey implements KeyStore.
func (s *SQLite) LookupAPIKey(ctx context.Context, key string) (bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx, `SELECT enabled FROM api_keys WHERE key = ?`, key).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, NewStorageError("sqlite", "lookup_api_key", err)
	}
	return enabled, nil
}
