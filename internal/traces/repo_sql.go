package traces

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"agenttrace-backend/internal/shared/storage/db"
)

// SQLRepo implements Repo on Postgres or SQLite.
type SQLRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// NewSQLRepo constructs a SQLRepo.
func NewSQLRepo(database *sql.DB, dialect db.Dialect) *SQLRepo {
	return &SQLRepo{DB: database, Dialect: dialect}
}

const traceColumns = `id, user_id, name, description, steps, metadata, total_duration_ms, total_tokens, error_count, is_public, created_at`

// Put inserts a trace, or updates its mutable columns when it already exists.
func (r *SQLRepo) Put(ctx context.Context, trace Trace) error {
	const query = `
INSERT INTO traces (` + traceColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    description = excluded.description,
    metadata = excluded.metadata,
    is_public = excluded.is_public`

	steps, err := json.Marshal(trace.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	metadata, err := json.Marshal(trace.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = r.DB.ExecContext(
		ctx,
		r.Dialect.Rebind(query),
		trace.ID,
		nullString(trace.UserID),
		nullString(trace.Name),
		nullString(trace.Description),
		string(steps),
		string(metadata),
		trace.TotalDurationMS,
		trace.TotalTokens,
		trace.ErrorCount,
		trace.IsPublic,
		trace.CreatedAt.UTC(),
	)
	return err
}

// Get returns a trace by ID.
func (r *SQLRepo) Get(ctx context.Context, id string) (Trace, error) {
	const query = `
SELECT ` + traceColumns + `
FROM traces
WHERE id = ?`
	trace, err := scanTrace(r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Trace{}, ErrNotFound
		}
		return Trace{}, err
	}
	return trace, nil
}

// ListByOwner lists traces ordered newest-first.
func (r *SQLRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Trace, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := "user_id = ?"
	args := []any{ownerID, limit, offset}
	if ownerID == "" {
		where = "user_id IS NULL"
		args = []any{limit, offset}
	}
	query := `
SELECT ` + traceColumns + `
FROM traces
WHERE ` + where + `
ORDER BY created_at DESC
LIMIT ? OFFSET ?`

	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Trace{}
	for rows.Next() {
		trace, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, trace)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrace(row rowScanner) (Trace, error) {
	var trace Trace
	var userID, name, description sql.NullString
	var steps, metadata string
	if err := row.Scan(
		&trace.ID,
		&userID,
		&name,
		&description,
		&steps,
		&metadata,
		&trace.TotalDurationMS,
		&trace.TotalTokens,
		&trace.ErrorCount,
		&trace.IsPublic,
		&trace.CreatedAt,
	); err != nil {
		return Trace{}, err
	}
	if userID.Valid {
		trace.UserID = userID.String
	}
	if name.Valid {
		trace.Name = name.String
	}
	if description.Valid {
		trace.Description = description.String
	}
	if err := json.Unmarshal([]byte(steps), &trace.Steps); err != nil {
		return Trace{}, fmt.Errorf("decode steps for %s: %w", trace.ID, err)
	}
	if err := json.Unmarshal([]byte(metadata), &trace.Metadata); err != nil {
		return Trace{}, fmt.Errorf("decode metadata for %s: %w", trace.ID, err)
	}
	if trace.Steps == nil {
		trace.Steps = []Step{}
	}
	if trace.Metadata == nil {
		trace.Metadata = map[string]any{}
	}
	trace.CreatedAt = trace.CreatedAt.UTC()
	return trace, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Repo = (*SQLRepo)(nil)
