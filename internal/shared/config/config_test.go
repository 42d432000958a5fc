package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("AI_MODEL", "")
	t.Setenv("DATABASE_URL", "")

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected dev env, got %q", cfg.Env)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected port 8080, got %q", cfg.Port)
	}
	if cfg.AIModel != "gpt-4o-mini" {
		t.Fatalf("expected default model, got %q", cfg.AIModel)
	}
	if cfg.AITimeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", cfg.AITimeout)
	}
	if cfg.RateLimitPerHour != 100 {
		t.Fatalf("expected 100/h, got %d", cfg.RateLimitPerHour)
	}
	if !cfg.AIEnabled || !cfg.AICacheEnabled {
		t.Fatalf("expected AI and cache enabled by default")
	}
	if cfg.DBDriver != "pgx" {
		t.Fatalf("expected pgx driver by default, got %q", cfg.DBDriver)
	}
}

func TestLoadRejectsUnknownModel(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("AI_MODEL", "gpt-4-turbo")

	cfg := Load()
	if cfg.AIModel != "gpt-4o-mini" {
		t.Fatalf("expected fallback model, got %q", cfg.AIModel)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`port: "9090"
ai_model: gpt-3.5-turbo
ai_enabled: "false"
plans:
  free:
    traces_per_month: 25
    ai_features: false
    api_access: false
    retention_days: 14
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")
	t.Setenv("AI_MODEL", "")
	t.Setenv("AI_ENABLED", "")

	cfg := Load()
	if cfg.Port != "7070" {
		t.Fatalf("expected env port to win, got %q", cfg.Port)
	}
	if cfg.AIModel != "gpt-3.5-turbo" {
		t.Fatalf("expected file model, got %q", cfg.AIModel)
	}
	if cfg.AIEnabled {
		t.Fatalf("expected AI disabled from file")
	}
	free, ok := cfg.Plans["free"]
	if !ok {
		t.Fatalf("expected free plan override, got %+v", cfg.Plans)
	}
	if free.TracesPerMonth != 25 || free.RetentionDays != 14 {
		t.Fatalf("unexpected free plan: %+v", free)
	}
}

func TestNormalizeDriver(t *testing.T) {
	cases := []struct {
		raw, url, want string
	}{
		{"", "postgres://localhost/db", "pgx"},
		{"", "sqlite://./data/a.db", "sqlite"},
		{"", "file:test.db", "sqlite"},
		{"sqlite3", "", "sqlite"},
		{"postgres", "sqlite://x", "pgx"},
	}
	for _, tc := range cases {
		if got := normalizeDriver(tc.raw, tc.url); got != tc.want {
			t.Fatalf("normalizeDriver(%q, %q) = %q, want %q", tc.raw, tc.url, got, tc.want)
		}
	}
}
