package storage

import (
	"context"
	"database/sql"
	"fmt"

	"kiro-hq/gateway/pkg/pool"
)

const accountColumns = `id, name, credentials, auth_method, status,
	request_count, success_count, error_count, consecutive_errors,
	input_tokens_total, output_tokens_total, credits_total,
	cooldown_until, last_used_at, created_at`

// FindAllAccounts implements pool.Store.
func (s *SQLite) FindAllAccounts(ctx context.Context) ([]pool.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, NewStorageError("sqlite", "find_accounts", err)
	}
	defer rows.Close()

	var recs []pool.Record
	for rows.Next() {
		rec, err := scanAccount(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan_account", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "find_accounts", err)
	}
	return recs, nil
}

// InsertAccount implements pool.Store.
func (s *SQLite) InsertAccount(ctx context.Context, rec pool.Record) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Credentials, rec.AuthMethod, string(rec.Status),
		rec.Requests, rec.Successes, rec.Errors, rec.ConsecutiveErrors,
		rec.InputTokens, rec.OutputTokens, rec.Credits.String(),
		toMillis(rec.CooldownUntil), toMillis(rec.LastUsedAt), toMillis(rec.CreatedAt),
	)
	if err != nil {
		return NewStorageError("sqlite", "insert_account", err)
	}
	return nil
}

// UpdateAccount implements pool.Store.
func (s *SQLite) UpdateAccount(ctx context.Context, rec pool.Record) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET
		name = ?, credentials = ?, auth_method = ?, status = ?,
		request_count = ?, success_count = ?, error_count = ?, consecutive_errors = ?,
		input_tokens_total = ?, output_tokens_total = ?, credits_total = ?,
		cooldown_until = ?, last_used_at = ?
		WHERE id = ?`,
		rec.Name, rec.Credentials, rec.AuthMethod, string(rec.Status),
		rec.Requests, rec.Successes, rec.Errors, rec.ConsecutiveErrors,
		rec.InputTokens, rec.OutputTokens, rec.Credits.String(),
		toMillis(rec.CooldownUntil), toMillis(rec.LastUsedAt),
		rec.ID,
	)
	if err != nil {
		return NewStorageError("sqlite", "update_account", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewStorageError("sqlite", "update_account", fmt.Errorf("account %s: %w", rec.ID, ErrNotFound))
	}
	return nil
}

// DeleteAccount implements pool.Store.
func (s *SQLite) DeleteAccount(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return NewStorageError("sqlite", "delete_account", err)
	}
	return nil
}

func scanAccount(rows *sql.Rows) (pool.Record, error) {
	var rec pool.Record
	var status string
	var cooldown, lastUsed, created int64
	err := rows.Scan(
		&rec.ID, &rec.Name, &rec.Credentials, &rec.AuthMethod, &status,
		&rec.Requests, &rec.Successes, &rec.Errors, &rec.ConsecutiveErrors,
		&rec.InputTokens, &rec.OutputTokens, &rec.Credits,
		&cooldown, &lastUsed, &created,
	)
	if err != nil {
		return rec, err
	}
	rec.Status = pool.Status(status)
	rec.CooldownUntil = fromMillis(cooldown)
	rec.LastUsedAt = fromMillis(lastUsed)
	rec.CreatedAt = fromMillis(created)
	return rec, nil
}
