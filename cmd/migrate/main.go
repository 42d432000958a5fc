package main

// Run database migrations:
//   go run ./cmd/migrate          # apply pending migrations
//   go run ./cmd/migrate status   # print migration state

import (
	"context"
	"os"
	"strings"

	"agenttrace-backend/internal/shared/config"
	"agenttrace-backend/internal/shared/storage/db"
	"agenttrace-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	dialect, err := db.DialectFor(cfg.DBDriver)
	if err != nil {
		telemetry.Error("migrate.dialect_invalid", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	dsn := cfg.DatabaseURL
	if strings.TrimSpace(dsn) == "" && dialect.Name == db.SQLite.Name {
		dsn = cfg.SQLitePath
	}

	sqlDB, err := db.Connect(ctx, dialect, dsn, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer sqlDB.Close()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	switch command {
	case "up":
		err = db.RunMigrations(ctx, sqlDB, dialect)
	case "status":
		err = db.MigrationStatus(ctx, sqlDB, dialect)
	default:
		telemetry.Error("migrate.unknown_command", map[string]any{"command": command})
		os.Exit(2)
	}
	if err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": command, "error": err.Error()})
		os.Exit(1)
	}
	telemetry.Info("migrate.done", map[string]any{"command": command, "dialect": dialect.Name})
}
