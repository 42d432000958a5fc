package filters

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"agenttrace-backend/internal/shared/storage/db"
)

func TestSQLRepoCreateEncodesFilters(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5)")).
		WithArgs("f-1", "u1", "errors", `{"step_type":"error"}`, created).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewSQLRepo(database, db.Postgres).Create(context.Background(), SavedFilter{
		ID: "f-1", UserID: "u1", Name: "errors",
		Filters:   map[string]any{"step_type": "error"},
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestSQLRepoListByUser(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("ORDER BY created_at DESC").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "filters", "created_at"}).
			AddRow("f-2", "u1", "slow", `{"min_duration_ms":1000}`, created.Add(time.Hour)).
			AddRow("f-1", "u1", "errors", `{}`, created))

	out, err := NewSQLRepo(database, db.SQLite).ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(out) != 2 || out[0].Filters["min_duration_ms"] != float64(1000) {
		t.Fatalf("unexpected rows %+v", out)
	}
}

func TestSQLRepoDeleteMissing(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	mock.ExpectExec("DELETE FROM saved_filters").WithArgs("nope").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := NewSQLRepo(database, db.Postgres).Delete(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
