package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/kakehashi/internal/model"
)

// ReplaceBackendTools atomically replaces the cached tool catalog for a
// backend: existing rows are deleted and the discovered set inserted within
// a single transaction, so a stale catalog never coexists with a fresh one.
// Returns the stored tools with ids and refresh time assigned.
// Concurrent replacements contend on the shared prefixed_name index, so
// transient conflicts are retried.
func (db *DB) ReplaceBackendTools(ctx context.Context, backendID uuid.UUID, tools []model.Tool) ([]model.Tool, error) {
	now := time.Now().UTC()
	stored := make([]model.Tool, len(tools))
	for i, t := range tools {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.BackendID = backendID
		t.RefreshedAt = now
		stored[i] = t
	}

	err := withRetry(ctx, 3, 50*time.Millisecond, func() error {
		return db.replaceBackendToolsTx(ctx, backendID, stored)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (db *DB) replaceBackendToolsTx(ctx context.Context, backendID uuid.UUID, tools []model.Tool) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin replace tools tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM tools WHERE backend_id = $1`, backendID); err != nil {
		return fmt.Errorf("storage: delete stale tools: %w", err)
	}

	for _, t := range tools {
		if _, err := tx.Exec(ctx,
			`INSERT INTO tools (id, backend_id, name, prefixed_name, description, input_schema, refreshed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, t.BackendID, t.Name, t.PrefixedName, t.Description, t.InputSchema, t.RefreshedAt,
		); err != nil {
			return fmt.Errorf("storage: insert tool %s: %w", t.PrefixedName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit replace tools tx: %w", err)
	}
	return nil
}

// GetToolByPrefixedName retrieves a tool by its globally unique prefixed name.
func (db *DB) GetToolByPrefixedName(ctx context.Context, prefixedName string) (model.Tool, error) {
	var t model.Tool
	err := db.pool.QueryRow(ctx,
		`SELECT id, backend_id, name, prefixed_name, description, input_schema, refreshed_at
		 FROM tools WHERE prefixed_name = $1`, prefixedName,
	).Scan(
		&t.ID, &t.BackendID, &t.Name, &t.PrefixedName, &t.Description, &t.InputSchema, &t.RefreshedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Tool{}, fmt.Errorf("storage: tool %s: %w", prefixedName, ErrNotFound)
		}
		return model.Tool{}, fmt.Errorf("storage: get tool: %w", err)
	}
	return t, nil
}

// ListTools returns the full cached catalog across all backends,
// ordered by prefixed name.
func (db *DB) ListTools(ctx context.Context) ([]model.Tool, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, backend_id, name, prefixed_name, description, input_schema, refreshed_at
		 FROM tools ORDER BY prefixed_name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list tools: %w", err)
	}
	defer rows.Close()
	return scanTools(rows)
}

// ListToolsByBackend returns the cached catalog for a single backend,
// identified by backend name, ordered by tool name.
func (db *DB) ListToolsByBackend(ctx context.Context, backendName string) ([]model.Tool, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT t.id, t.backend_id, t.name, t.prefixed_name, t.description, t.input_schema, t.refreshed_at
		 FROM tools t
		 JOIN backends b ON b.id = t.backend_id
		 WHERE b.name = $1
		 ORDER BY t.name ASC`, backendName,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list tools by backend: %w", err)
	}
	defer rows.Close()
	return scanTools(rows)
}

func scanTools(rows pgx.Rows) ([]model.Tool, error) {
	var tools []model.Tool
	for rows.Next() {
		var t model.Tool
		if err := rows.Scan(
			&t.ID, &t.BackendID, &t.Name, &t.PrefixedName, &t.Description, &t.InputSchema, &t.RefreshedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan tool: %w", err)
		}
		tools = append(tools, t)
	}
	return tools, rows.Err()
}

// CountTools returns the number of cached tools across all backends.
func (db *DB) CountTools(ctx context.Context) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tools`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("storage: count tools: %w", err)
	}
	return count, nil
}
