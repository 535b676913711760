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

// CreateBackend inserts a new backend registration.
// Returns ErrDuplicate when the name is already taken.
func (db *DB) CreateBackend(ctx context.Context, b model.Backend) (model.Backend, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO backends (id, name, url, enabled, timeout_seconds, prefix, mount_enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.Name, b.URL, b.Enabled, b.TimeoutSeconds, b.Prefix, b.MountEnabled, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Backend{}, fmt.Errorf("storage: backend %s: %w", b.Name, ErrDuplicate)
		}
		return model.Backend{}, fmt.Errorf("storage: create backend: %w", err)
	}
	return b, nil
}

// GetBackendByName retrieves a backend by its unique name.
func (db *DB) GetBackendByName(ctx context.Context, name string) (model.Backend, error) {
	var b model.Backend
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, url, enabled, timeout_seconds, prefix, mount_enabled, created_at, updated_at
		 FROM backends WHERE name = $1`, name,
	).Scan(
		&b.ID, &b.Name, &b.URL, &b.Enabled, &b.TimeoutSeconds,
		&b.Prefix, &b.MountEnabled, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Backend{}, fmt.Errorf("storage: backend %s: %w", name, ErrNotFound)
		}
		return model.Backend{}, fmt.Errorf("storage: get backend: %w", err)
	}
	return b, nil
}

// GetBackendByID retrieves a backend by its internal UUID.
func (db *DB) GetBackendByID(ctx context.Context, id uuid.UUID) (model.Backend, error) {
	var b model.Backend
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, url, enabled, timeout_seconds, prefix, mount_enabled, created_at, updated_at
		 FROM backends WHERE id = $1`, id,
	).Scan(
		&b.ID, &b.Name, &b.URL, &b.Enabled, &b.TimeoutSeconds,
		&b.Prefix, &b.MountEnabled, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Backend{}, fmt.Errorf("storage: backend %s: %w", id, ErrNotFound)
		}
		return model.Backend{}, fmt.Errorf("storage: get backend by id: %w", err)
	}
	return b, nil
}

// ListBackends returns all backends ordered by name.
// When enabledOnly is true, disabled backends are filtered out.
func (db *DB) ListBackends(ctx context.Context, enabledOnly bool) ([]model.Backend, error) {
	query := `SELECT id, name, url, enabled, timeout_seconds, prefix, mount_enabled, created_at, updated_at
		 FROM backends ORDER BY name ASC`
	if enabledOnly {
		query = `SELECT id, name, url, enabled, timeout_seconds, prefix, mount_enabled, created_at, updated_at
		 FROM backends WHERE enabled ORDER BY name ASC`
	}

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("storage: list backends: %w", err)
	}
	defer rows.Close()

	var backends []model.Backend
	for rows.Next() {
		var b model.Backend
		if err := rows.Scan(
			&b.ID, &b.Name, &b.URL, &b.Enabled, &b.TimeoutSeconds,
			&b.Prefix, &b.MountEnabled, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan backend: %w", err)
		}
		backends = append(backends, b)
	}
	return backends, rows.Err()
}

// UpdateBackend writes all mutable columns of an existing backend and
// returns the stored row. The name is immutable and used as the key.
func (db *DB) UpdateBackend(ctx context.Context, b model.Backend) (model.Backend, error) {
	var out model.Backend
	err := db.pool.QueryRow(ctx,
		`UPDATE backends
		 SET url = $1, enabled = $2, timeout_seconds = $3, prefix = $4, mount_enabled = $5, updated_at = now()
		 WHERE name = $6
		 RETURNING id, name, url, enabled, timeout_seconds, prefix, mount_enabled, created_at, updated_at`,
		b.URL, b.Enabled, b.TimeoutSeconds, b.Prefix, b.MountEnabled, b.Name,
	).Scan(
		&out.ID, &out.Name, &out.URL, &out.Enabled, &out.TimeoutSeconds,
		&out.Prefix, &out.MountEnabled, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Backend{}, fmt.Errorf("storage: backend %s: %w", b.Name, ErrNotFound)
		}
		return model.Backend{}, fmt.Errorf("storage: update backend: %w", err)
	}
	return out, nil
}

// DeleteBackend removes a backend by name. Cached tool rows go with it via
// ON DELETE CASCADE; call history keeps its rows with tool_id set to NULL.
// Returns ErrNotFound when no backend with that name exists.
func (db *DB) DeleteBackend(ctx context.Context, name string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM backends WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("storage: delete backend: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: backend %s: %w", name, ErrNotFound)
	}
	return nil
}

// CountBackends returns the number of registered backends.
func (db *DB) CountBackends(ctx context.Context) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM backends`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("storage: count backends: %w", err)
	}
	return count, nil
}
