package db

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func prepareGoose(dialect Dialect) error {
	goose.SetBaseFS(migrationFiles)
	return goose.SetDialect(dialect.Goose)
}

// RunMigrations applies embedded SQL migrations via goose. If database is nil, it's a no-op.
func RunMigrations(ctx context.Context, database *sql.DB, dialect Dialect) error {
	if database == nil {
		return nil
	}
	if err := prepareGoose(dialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, database, "migrations")
}

// MigrationStatus prints the applied state of every embedded migration.
func MigrationStatus(ctx context.Context, database *sql.DB, dialect Dialect) error {
	if err := prepareGoose(dialect); err != nil {
		return err
	}
	return goose.StatusContext(ctx, database, "migrations")
}
