package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/kakehashi/internal/model"
)

// AppendCall inserts one call record. The ledger is append-only: records are
// never mutated or deleted here, retention is an operator concern.
func (db *DB) AppendCall(ctx context.Context, call model.ToolCall) (model.ToolCall, error) {
	if call.ID == uuid.Nil {
		call.ID = uuid.New()
	}
	if call.CalledAt.IsZero() {
		call.CalledAt = time.Now().UTC()
	}
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO tool_calls (id, tool_id, backend_name, tool_name, arguments, success, error_message,
		                         latency_ms, called_at, client_ip, request_id, session_id, caller)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		call.ID, call.ToolID, call.BackendName, call.ToolName, call.Arguments, call.Success,
		call.ErrorMessage, call.LatencyMs, call.CalledAt,
		call.ClientIP, call.RequestID, call.SessionID, call.Caller,
	)
	if err != nil {
		return model.ToolCall{}, fmt.Errorf("storage: append call: %w", err)
	}
	return call, nil
}

// ListCalls returns call records matching the filter, newest first, along
// with the total number of matching rows before pagination. A zero Limit
// disables pagination and returns every matching record.
func (db *DB) ListCalls(ctx context.Context, f model.CallFilter) ([]model.ToolCall, int, error) {
	where, args := buildCallWhereClause(f, 1)

	var total int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tool_calls`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count calls: %w", err)
	}

	query := `SELECT id, tool_id, backend_name, tool_name, arguments, success, error_message,
	                 latency_ms, called_at, client_ip, request_id, session_id, caller
	          FROM tool_calls` + where + ` ORDER BY called_at DESC`
	argIdx := len(args) + 1
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		offset := f.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, f.Limit, offset)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list calls: %w", err)
	}
	defer rows.Close()

	var calls []model.ToolCall
	for rows.Next() {
		var c model.ToolCall
		if err := rows.Scan(
			&c.ID, &c.ToolID, &c.BackendName, &c.ToolName, &c.Arguments, &c.Success, &c.ErrorMessage,
			&c.LatencyMs, &c.CalledAt, &c.ClientIP, &c.RequestID, &c.SessionID, &c.Caller,
		); err != nil {
			return nil, 0, fmt.Errorf("storage: scan call: %w", err)
		}
		calls = append(calls, c)
	}
	return calls, total, rows.Err()
}

// buildCallWhereClause assembles WHERE conditions for the call filter.
// Returns the query suffix and the args slice starting at startArgIdx.
func buildCallWhereClause(f model.CallFilter, startArgIdx int) (string, []any) {
	var conditions []string
	var args []any
	idx := startArgIdx

	if f.Backend != "" {
		conditions = append(conditions, fmt.Sprintf("backend_name = $%d", idx))
		args = append(args, f.Backend)
		idx++
	}
	if f.Tool != "" {
		conditions = append(conditions, fmt.Sprintf("tool_name = $%d", idx))
		args = append(args, f.Tool)
		idx++
	}
	if f.Success != nil {
		conditions = append(conditions, fmt.Sprintf("success = $%d", idx))
		args = append(args, *f.Success)
		idx++
	}
	if f.Since != nil {
		conditions = append(conditions, fmt.Sprintf("called_at >= $%d", idx))
		args = append(args, *f.Since)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	clause := " WHERE " + conditions[0]
	for _, c := range conditions[1:] {
		clause += " AND " + c
	}
	return clause, args
}

// CountCalls returns the total number of recorded calls.
func (db *DB) CountCalls(ctx context.Context) (int64, error) {
	var count int64
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tool_calls`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("storage: count calls: %w", err)
	}
	return count, nil
}
