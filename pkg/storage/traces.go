package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"kiro-hq/gateway/pkg/audit"
)

const traceColumns = `l.id, l.created_at, l.protocol, l.path, l.requested_model, l.resolved_model, l.stream,
	l.account_id, l.endpoint, l.upstream_status, l.attempts,
	l.input_tokens, l.output_tokens, l.credits, l.tool_calls, l.latency_ms,
	l.status, l.error, l.error_kind, l.client_ip, l.api_key`

// InsertTrace implements audit.Store. The log row and the bodies are written
// in one transaction.
func (s *SQLite) InsertTrace(ctx context.Context, t *audit.Trace) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("sqlite", "insert_trace", err)
	}
	defer tx.Rollback()

	created := toMillis(t.Time)
	_, err = tx.ExecContext(ctx, `INSERT INTO request_logs (
			id, created_at, protocol, path, requested_model, resolved_model, stream,
			account_id, endpoint, upstream_status, attempts,
			input_tokens, output_tokens, credits, tool_calls, latency_ms,
			status, error, error_kind, client_ip, api_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, created, t.Protocol, t.Path, t.RequestedModel, t.ResolvedModel, boolInt(t.Stream),
		t.AccountID, t.Endpoint, t.UpstreamStatus, t.Attempts,
		t.InputTokens, t.OutputTokens, t.Credits, t.ToolCalls, t.Latency.Milliseconds(),
		t.Status, t.Error, t.ErrorKind, t.ClientIP, t.APIKey,
	)
	if err != nil {
		return NewStorageError("sqlite", "insert_request_log", err)
	}

	if t.RequestBody != "" || t.UpstreamPayload != "" || t.ResponseBody != "" {
		_, err = tx.ExecContext(ctx, `INSERT INTO request_traces (id, created_at, request_body, upstream_payload, response_body)
			VALUES (?, ?, ?, ?, ?)`,
			t.ID, created, t.RequestBody, t.UpstreamPayload, t.ResponseBody)
		if err != nil {
			return NewStorageError("sqlite", "insert_request_trace", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError("sqlite", "insert_trace", err)
	}
	return nil
}

// QueryTraces implements audit.Store. Results are newest first.
func (s *SQLite) QueryTraces(ctx context.Context, q audit.Query) ([]*audit.Trace, error) {
	where, args := buildWhereClause(q)

	cols := traceColumns
	from := " FROM request_logs l"
	if q.WithBodies {
		cols += `, COALESCE(t.request_body, ''), COALESCE(t.upstream_payload, ''), COALESCE(t.response_body, '')`
		from += " LEFT JOIN request_traces t ON t.id = l.id"
	}
	query := "SELECT " + cols + from
	if where != "" {
		query += " WHERE " + where
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY l.created_at DESC, l.rowid DESC LIMIT %d", limit)
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "query_traces", err)
	}
	defer rows.Close()

	traces := []*audit.Trace{}
	for rows.Next() {
		t, err := scanTrace(rows, q.WithBodies)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan_trace", err)
		}
		traces = append(traces, t)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "query_traces", err)
	}
	return traces, nil
}

// CountTraces implements audit.Store.
func (s *SQLite) CountTraces(ctx context.Context, q audit.Query) (int64, error) {
	where, args := buildWhereClause(q)
	query := "SELECT COUNT(*) FROM request_logs l"
	if where != "" {
		query += " WHERE " + where
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, NewStorageError("sqlite", "count_traces", err)
	}
	return n, nil
}

// PruneRequestLogs implements audit.Store. Bodies of pruned rows go with them.
func (s *SQLite) PruneRequestLogs(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM request_logs WHERE id NOT IN (
		SELECT id FROM request_logs ORDER BY created_at DESC, rowid DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, NewStorageError("sqlite", "prune_request_logs", err)
	}
	n, _ := res.RowsAffected()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM request_traces WHERE id NOT IN (SELECT id FROM request_logs)`); err != nil {
		return n, NewStorageError("sqlite", "prune_orphan_traces", err)
	}
	return n, nil
}

// PruneTraceBodies implements audit.Store.
func (s *SQLite) PruneTraceBodies(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM request_traces WHERE id NOT IN (
		SELECT id FROM request_traces ORDER BY created_at DESC, rowid DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, NewStorageError("sqlite", "prune_trace_bodies", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// buildWhereClause returns the WHERE clause (without the keyword) and its arguments.
func buildWhereClause(q audit.Query) (string, []any) {
	var conditions []string
	var args []any

	if q.Since != nil {
		conditions = append(conditions, "l.created_at >= ?")
		args = append(args, toMillis(*q.Since))
	}
	if q.Until != nil {
		conditions = append(conditions, "l.created_at <= ?")
		args = append(args, toMillis(*q.Until))
	}
	if q.AccountID != "" {
		conditions = append(conditions, "l.account_id = ?")
		args = append(args, q.AccountID)
	}
	if q.Model != "" {
		conditions = append(conditions, "(l.requested_model = ? OR l.resolved_model = ?)")
		args = append(args, q.Model, q.Model)
	}
	if q.Protocol != "" {
		conditions = append(conditions, "l.protocol = ?")
		args = append(args, q.Protocol)
	}
	switch q.Status {
	case "success":
		conditions = append(conditions, "(l.error = '' AND l.status < 400)")
	case "error":
		conditions = append(conditions, "(l.error != '' OR l.status >= 400)")
	}

	return strings.Join(conditions, " AND "), args
}

func scanTrace(rows *sql.Rows, withBodies bool) (*audit.Trace, error) {
	var t audit.Trace
	var created, latency int64
	dest := []any{
		&t.ID, &created, &t.Protocol, &t.Path, &t.RequestedModel, &t.ResolvedModel, &t.Stream,
		&t.AccountID, &t.Endpoint, &t.UpstreamStatus, &t.Attempts,
		&t.InputTokens, &t.OutputTokens, &t.Credits, &t.ToolCalls, &latency,
		&t.Status, &t.Error, &t.ErrorKind, &t.ClientIP, &t.APIKey,
	}
	if withBodies {
		dest = append(dest, &t.RequestBody, &t.UpstreamPayload, &t.ResponseBody)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	t.Time = fromMillis(created)
	t.Latency = time.Duration(latency) * time.Millisecond
	return &t, nil
}
