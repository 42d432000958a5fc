package usage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"agenttrace-backend/internal/shared/storage/db"
)

func TestSQLStoreIncrementInsertsThenBumps(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	now := time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id) DO NOTHING")).
		WithArgs("user-1", "2024-06-01").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT trace_count, reset_date FROM usage_limits WHERE user_id = $1 FOR UPDATE")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"trace_count", "reset_date"}).AddRow(4, "2024-06-01"))
	mock.ExpectExec(regexp.QuoteMeta("SET trace_count = trace_count + 1 WHERE user_id = $1")).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := NewSQLStore(database, db.Postgres).Increment(context.Background(), "user-1", now)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if c.TraceCount != 5 {
		t.Fatalf("expected 5, got %d", c.TraceCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestSQLStoreCounterRollsOverExpiredPeriod(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	now := time.Date(2024, 7, 3, 8, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO usage_limits").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT trace_count, reset_date FROM usage_limits WHERE user_id = ?")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"trace_count", "reset_date"}).AddRow(9, "2024-06-01"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE usage_limits SET trace_count = 0, reset_date = ?")).
		WithArgs("2024-08-01", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := NewSQLStore(database, db.SQLite).Counter(context.Background(), "user-1", now)
	if err != nil {
		t.Fatalf("Counter: %v", err)
	}
	if c.TraceCount != 0 || c.ResetDate.Format(resetLayout) != "2024-08-01" {
		t.Fatalf("unexpected counter %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestSQLStoreMissingSubscriptionDefaultsToFree(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	mock.ExpectQuery("FROM subscriptions").WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"plan_type", "status", "current_period_end", "cancel_at_period_end"}))

	sub, err := NewSQLStore(database, db.Postgres).GetSubscription(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if sub.PlanType != PlanFree || sub.Status != StatusActive {
		t.Fatalf("unexpected subscription %+v", sub)
	}
}
