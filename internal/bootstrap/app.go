package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"agenttrace-backend/internal/analysis"
	supabase "agenttrace-backend/internal/auth"
	"agenttrace-backend/internal/filters"
	"agenttrace-backend/internal/llm"
	"agenttrace-backend/internal/llm/openai"
	"agenttrace-backend/internal/services/health"
	"agenttrace-backend/internal/shared/auth"
	"agenttrace-backend/internal/shared/config"
	"agenttrace-backend/internal/shared/metrics"
	"agenttrace-backend/internal/shared/server"
	"agenttrace-backend/internal/shared/storage/db"
	"agenttrace-backend/internal/shared/storage/object"
	localstore "agenttrace-backend/internal/shared/storage/object/local"
	s3store "agenttrace-backend/internal/shared/storage/object/s3"
	"agenttrace-backend/internal/shared/telemetry"
	"agenttrace-backend/internal/traces"
	"agenttrace-backend/internal/usage"
)

// App holds shared dependencies and the assembled router.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Dialect  db.Dialect
	Store    object.ObjectStore
	Verifier auth.Verifier

	TraceService  *traces.Service
	UsageService  *usage.Service
	FilterService *filters.Service
	Gate          *analysis.Gate
}

// Build prepares dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	dialect, err := db.DialectFor(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := buildDB(ctx, cfg, dialect)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gate, err := buildGate(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Dialect:  dialect,
		Store:    store,
		Verifier: buildVerifier(cfg),
		Gate:     gate,
	}
	buildServices(app)

	healthSvc := health.NewService(nil)
	if sqlDB != nil {
		healthSvc = health.NewService(sqlDB)
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Verifier:        app.Verifier,
		Health:          healthSvc,
		TraceHandler:    traces.NewHandler(app.TraceService, server.UploadLimit(cfg.RateLimitPerHour)),
		AnalysisHandler: analysis.NewHandler(gate, app.TraceService, app.UsageService),
		UsageHandler:    usage.NewHandler(app.UsageService),
		FilterHandler:   filters.NewHandler(app.FilterService),
	})
	return app, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config, dialect db.Dialect) (*sql.DB, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" && dialect.Name == db.SQLite.Name {
		dsn = cfg.SQLitePath
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}
	if dsn == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, dialect, dsn, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "database connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	if isDevLike(cfg.Env) || dialect.Name == db.SQLite.Name {
		if err := db.RunMigrations(ctx, sqlDB, dialect); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(filepath.Join(cfg.LocalStoreDir, "uploads")), nil
	}
}

func buildVerifier(cfg config.Config) auth.Verifier {
	switch {
	case cfg.SupabaseURL != "" && cfg.SupabaseAnonKey != "":
		return supabase.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	case cfg.JWTSecret != "":
		telemetry.Info("bootstrap.dev_jwt_auth", nil)
		return auth.NewJWTVerifier(cfg.JWTSecret)
	default:
		telemetry.Warn("bootstrap.auth_not_configured", nil)
		return nil
	}
}

func buildGate(cfg config.Config) (*analysis.Gate, error) {
	var provider llm.Provider
	configured := true
	switch {
	case strings.TrimSpace(cfg.OpenAIAPIKey) != "":
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.AIModel,
			openai.WithBaseURL(cfg.OpenAIBaseURL),
			openai.WithTimeout(cfg.AITimeout),
		)
		if err != nil {
			return nil, err
		}
		provider = llm.WithRetry(client)
	case isDevLike(cfg.Env):
		provider = llm.PlaceholderProvider{}
		configured = false
	}

	gate := analysis.NewGate(provider, cfg.AIModel)
	gate.Enabled = cfg.AIEnabled
	gate.CacheEnabled = cfg.AICacheEnabled
	gate.Configured = configured && provider != nil
	if cfg.AITimeout > 0 {
		gate.Timeout = cfg.AITimeout
	}
	metrics.RegisterCacheSize(gate.Cache.Len)
	return gate, nil
}

func buildServices(app *App) {
	var (
		traceRepo   traces.Repo
		usageStore  usage.Store
		filtersRepo filters.Repo
	)
	if app.DB != nil {
		traceRepo = traces.NewSQLRepo(app.DB, app.Dialect)
		usageStore = usage.NewSQLStore(app.DB, app.Dialect)
		filtersRepo = filters.NewSQLRepo(app.DB, app.Dialect)
	} else {
		traceRepo = traces.NewMemoryRepo()
		usageStore = usage.NewMemoryStore()
		filtersRepo = filters.NewMemoryRepo()
	}

	app.UsageService = usage.NewStoreService(usageStore, usage.PlansFromConfig(app.Config.Plans))
	app.TraceService = traces.NewService(traceRepo, app.UsageService, app.Store)
	app.FilterService = filters.NewService(filtersRepo)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
