package db

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect describes how the repos talk to one SQL engine.
type Dialect struct {
	Name   string
	Driver string // database/sql driver name
	Goose  string // goose dialect name
	Init   []string
}

var (
	Postgres = Dialect{Name: "postgres", Driver: "pgx", Goose: "postgres"}
	SQLite   = Dialect{
		Name:   "sqlite",
		Driver: "sqlite",
		Goose:  "sqlite3",
		Init: []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
		},
	}
)

// DialectFor maps a driver name from config to a Dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported db driver: %s", driver)
	}
}

// Rebind converts ? placeholders into the dialect's form. Question marks
// inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d.Name != Postgres.Name {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	idx := 1
	quoted := false
	for _, ch := range query {
		switch {
		case ch == '\'':
			quoted = !quoted
			b.WriteRune(ch)
		case ch == '?' && !quoted:
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(idx))
			idx++
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}
