package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"agenttrace-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Env  string
	Port string

	DatabaseURL string
	DBDriver    string
	SQLitePath  string

	CORSAllowOrigin []string

	SupabaseURL     string
	SupabaseAnonKey string
	JWTSecret       string

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	AIEnabled      bool
	AICacheEnabled bool
	AIModel        string
	AITimeout      time.Duration

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string

	RateLimitPerHour int
	TracingEnabled   bool
	LogLevel         string

	Plans map[string]PlanConfig
}

// PlanConfig overrides one row of the plan table. Values come from the
// optional YAML file under the "plans" key.
type PlanConfig struct {
	TracesPerMonth int  `koanf:"traces_per_month"`
	AIFeatures     bool `koanf:"ai_features"`
	APIAccess      bool `koanf:"api_access"`
	RetentionDays  int  `koanf:"retention_days"`
}

// Supported analysis models. Anything else falls back to the first entry.
var allowedModels = []string{"gpt-4o-mini", "gpt-3.5-turbo"}

var defaults = map[string]any{
	"env":                 "dev",
	"port":                "8080",
	"db_driver":           "",
	"sqlite_path":         "./data/agenttrace.db",
	"allowed_origins":     "http://localhost:3000,http://localhost:5173",
	"openai_base_url":     "https://api.openai.com/v1",
	"ai_enabled":          "true",
	"ai_cache_enabled":    "true",
	"ai_model":            "gpt-4o-mini",
	"ai_timeout_seconds":  "30",
	"object_store":        "local",
	"local_storage_path":  "./data",
	"rate_limit_per_hour": "100",
	"tracing_enabled":     "false",
	"log_level":           "info",
	"jwt_secret":          "",
	"supabase_url":        "",
	"supabase_anon_key":   "",
	"openai_api_key":      "",
	"database_url":        "",
	"s3_bucket":           "",
	"s3_prefix":           "traces",
	"aws_region":          "",
}

// Load reads configuration from an optional YAML file and the environment.
// Environment variables win over the file; unset keys take defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", ".env.local")

	k := koanf.New(".")

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			telemetry.Error("config.file_load_failed", map[string]any{"path": path, "error": err.Error()})
		}
	}

	// Empty variables are skipped so they do not mask values from the file.
	envProvider := env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return strings.ToLower(key), value
	})
	if err := k.Load(envProvider, nil); err != nil {
		telemetry.Error("config.env_load_failed", map[string]any{"error": err.Error()})
	}

	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) Config {
	for key, val := range defaults {
		if !k.Exists(key) || strings.TrimSpace(k.String(key)) == "" {
			_ = k.Set(key, val)
		}
	}

	env := normalizeEnv(k.String("env"))
	dbURL := k.String("database_url")
	if env == "production" && dbURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": env})
	}

	cfg := Config{
		Env:              env,
		Port:             k.String("port"),
		DatabaseURL:      dbURL,
		DBDriver:         normalizeDriver(k.String("db_driver"), dbURL),
		SQLitePath:       k.String("sqlite_path"),
		CORSAllowOrigin:  splitAndTrim(k.String("allowed_origins")),
		SupabaseURL:      strings.TrimRight(k.String("supabase_url"), "/"),
		SupabaseAnonKey:  k.String("supabase_anon_key"),
		JWTSecret:        k.String("jwt_secret"),
		OpenAIAPIKey:     k.String("openai_api_key"),
		OpenAIBaseURL:    k.String("openai_base_url"),
		AIEnabled:        parseBool(k.String("ai_enabled"), true),
		AICacheEnabled:   parseBool(k.String("ai_cache_enabled"), true),
		AIModel:          normalizeModel(k.String("ai_model")),
		AITimeout:        time.Duration(positiveInt(atoi(k.String("ai_timeout_seconds")), 30)) * time.Second,
		ObjectStoreType:  normalizeStoreType(k.String("object_store")),
		LocalStoreDir:    k.String("local_storage_path"),
		AWSRegion:        k.String("aws_region"),
		S3Bucket:         k.String("s3_bucket"),
		S3Prefix:         k.String("s3_prefix"),
		RateLimitPerHour: positiveInt(atoi(k.String("rate_limit_per_hour")), 100),
		TracingEnabled:   parseBool(k.String("tracing_enabled"), false),
		LogLevel:         k.String("log_level"),
	}

	if k.Exists("plans") {
		plans := map[string]PlanConfig{}
		if err := k.Unmarshal("plans", &plans); err != nil {
			telemetry.Error("config.plans_invalid", map[string]any{"error": err.Error()})
		} else {
			cfg.Plans = plans
		}
	}
	return cfg
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

// normalizeDriver picks the SQL driver. An explicit DB_DRIVER wins; otherwise
// a sqlite:// or file: URL selects sqlite and anything else selects pgx.
func normalizeDriver(raw, dbURL string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqlite", "sqlite3":
		return "sqlite"
	case "pgx", "postgres", "postgresql":
		return "pgx"
	}
	lower := strings.ToLower(dbURL)
	if strings.HasPrefix(lower, "sqlite://") || strings.HasPrefix(lower, "file:") {
		return "sqlite"
	}
	return "pgx"
}

func normalizeModel(raw string) string {
	model := strings.TrimSpace(raw)
	for _, allowed := range allowedModels {
		if model == allowed {
			return model
		}
	}
	return allowedModels[0]
}

func parseBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return def
	}
}

func atoi(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return v
}

func positiveInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
