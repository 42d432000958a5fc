package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agenttrace-backend/internal/shared/storage/db"
)

// SQLStore keeps usage in the subscriptions and usage_limits tables.
type SQLStore struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// NewSQLStore constructs a SQL-backed usage store.
func NewSQLStore(database *sql.DB, dialect db.Dialect) *SQLStore {
	return &SQLStore{DB: database, Dialect: dialect}
}

func (s *SQLStore) GetSubscription(ctx context.Context, userID string) (Subscription, error) {
	const query = `
SELECT plan_type, status, current_period_end, cancel_at_period_end
FROM subscriptions WHERE user_id = ?`

	var (
		sub       Subscription
		periodEnd sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, s.Dialect.Rebind(query), userID).
		Scan(&sub.PlanType, &sub.Status, &periodEnd, &sub.CancelAtPeriodEnd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return defaultSubscription(), nil
		}
		return Subscription{}, fmt.Errorf("select subscription: %w", err)
	}
	if periodEnd.Valid {
		t := periodEnd.Time.UTC()
		sub.CurrentPeriodEnd = &t
	}
	return sub, nil
}

func (s *SQLStore) SetSubscription(ctx context.Context, userID string, sub Subscription) error {
	const query = `
INSERT INTO subscriptions (user_id, plan_type, status, current_period_end, cancel_at_period_end, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
	plan_type = excluded.plan_type,
	status = excluded.status,
	current_period_end = excluded.current_period_end,
	cancel_at_period_end = excluded.cancel_at_period_end,
	updated_at = excluded.updated_at`

	var periodEnd sql.NullTime
	if sub.CurrentPeriodEnd != nil {
		periodEnd = sql.NullTime{Time: sub.CurrentPeriodEnd.UTC(), Valid: true}
	}
	_, err := s.DB.ExecContext(ctx, s.Dialect.Rebind(query),
		userID, sub.PlanType, sub.Status, periodEnd, sub.CancelAtPeriodEnd, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *SQLStore) Counter(ctx context.Context, userID string, now time.Time) (Counter, error) {
	return s.inTx(ctx, func(tx *sql.Tx) (Counter, error) {
		return s.ensure(ctx, tx, userID, now)
	})
}

func (s *SQLStore) Increment(ctx context.Context, userID string, now time.Time) (Counter, error) {
	return s.inTx(ctx, func(tx *sql.Tx) (Counter, error) {
		c, err := s.ensure(ctx, tx, userID, now)
		if err != nil {
			return Counter{}, err
		}
		const query = `UPDATE usage_limits SET trace_count = trace_count + 1 WHERE user_id = ?`
		if _, err := tx.ExecContext(ctx, s.Dialect.Rebind(query), userID); err != nil {
			return Counter{}, fmt.Errorf("increment usage: %w", err)
		}
		c.TraceCount++
		return c, nil
	})
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) (Counter, error)) (c Counter, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Counter{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	c, err = fn(tx)
	if err != nil {
		return Counter{}, err
	}
	if err = tx.Commit(); err != nil {
		return Counter{}, err
	}
	return c, nil
}

// ensure creates the row if needed and rolls it into the current period.
func (s *SQLStore) ensure(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (Counter, error) {
	const insert = `
INSERT INTO usage_limits (user_id, trace_count, reset_date) VALUES (?, 0, ?)
ON CONFLICT (user_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, s.Dialect.Rebind(insert), userID, NextReset(now).Format(resetLayout)); err != nil {
		return Counter{}, fmt.Errorf("insert usage: %w", err)
	}

	query := `SELECT trace_count, reset_date FROM usage_limits WHERE user_id = ?`
	if s.Dialect.Name == db.Postgres.Name {
		query += " FOR UPDATE"
	}
	var (
		c     Counter
		reset string
	)
	if err := tx.QueryRowContext(ctx, s.Dialect.Rebind(query), userID).Scan(&c.TraceCount, &reset); err != nil {
		return Counter{}, fmt.Errorf("select usage: %w", err)
	}
	if t, err := time.ParseInLocation(resetLayout, reset, time.UTC); err == nil {
		c.ResetDate = t
	}

	next, rolled := rollover(c, now)
	if !rolled {
		return c, nil
	}
	const update = `UPDATE usage_limits SET trace_count = 0, reset_date = ? WHERE user_id = ?`
	if _, err := tx.ExecContext(ctx, s.Dialect.Rebind(update), next.ResetDate.Format(resetLayout), userID); err != nil {
		return Counter{}, fmt.Errorf("reset usage: %w", err)
	}
	return next, nil
}

var _ Store = (*SQLStore)(nil)
