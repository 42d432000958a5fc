package filters

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"agenttrace-backend/internal/shared/storage/db"
)

// SQLRepo stores filters in the saved_filters table.
type SQLRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// NewSQLRepo constructs a SQL-backed repo.
func NewSQLRepo(database *sql.DB, dialect db.Dialect) *SQLRepo {
	return &SQLRepo{DB: database, Dialect: dialect}
}

func (r *SQLRepo) Create(ctx context.Context, f SavedFilter) error {
	const query = `
INSERT INTO saved_filters (id, user_id, name, filters, created_at)
VALUES (?, ?, ?, ?, ?)`

	body, err := json.Marshal(f.Filters)
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}
	if _, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query), f.ID, f.UserID, f.Name, string(body), f.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert filter: %w", err)
	}
	return nil
}

func (r *SQLRepo) Get(ctx context.Context, id string) (SavedFilter, error) {
	const query = `SELECT id, user_id, name, filters, created_at FROM saved_filters WHERE id = ?`
	f, err := scanFilter(r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SavedFilter{}, ErrNotFound
		}
		return SavedFilter{}, err
	}
	return f, nil
}

func (r *SQLRepo) ListByUser(ctx context.Context, userID string) ([]SavedFilter, error) {
	const query = `
SELECT id, user_id, name, filters, created_at
FROM saved_filters WHERE user_id = ?
ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), userID)
	if err != nil {
		return nil, fmt.Errorf("list filters: %w", err)
	}
	defer rows.Close()

	out := make([]SavedFilter, 0)
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *SQLRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM saved_filters WHERE id = ?`
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query), id)
	if err != nil {
		return fmt.Errorf("delete filter: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFilter(row rowScanner) (SavedFilter, error) {
	var (
		f    SavedFilter
		body string
	)
	if err := row.Scan(&f.ID, &f.UserID, &f.Name, &body, &f.CreatedAt); err != nil {
		return SavedFilter{}, err
	}
	f.Filters = map[string]any{}
	if body != "" {
		if err := json.Unmarshal([]byte(body), &f.Filters); err != nil {
			return SavedFilter{}, fmt.Errorf("decode filters: %w", err)
		}
	}
	f.CreatedAt = f.CreatedAt.UTC()
	return f, nil
}

var _ Repo = (*SQLRepo)(nil)
