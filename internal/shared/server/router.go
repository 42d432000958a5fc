package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agenttrace-backend/internal/analysis"
	"agenttrace-backend/internal/filters"
	"agenttrace-backend/internal/services/health"
	"agenttrace-backend/internal/shared/auth"
	"agenttrace-backend/internal/shared/config"
	"agenttrace-backend/internal/shared/metrics"
	"agenttrace-backend/internal/shared/server/middleware"
	"agenttrace-backend/internal/shared/server/respond"
	"agenttrace-backend/internal/traces"
	"agenttrace-backend/internal/usage"
)

const apiVersion = "1.0.0"

// RouterDeps carries the handlers the router mounts. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	Verifier        auth.Verifier
	Health          *health.Service
	TraceHandler    *traces.Handler
	AnalysisHandler *analysis.Handler
	UsageHandler    *usage.Handler
	FilterHandler   *filters.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		metrics.Middleware(),
	)

	r.GET("/", func(c *gin.Context) {
		respond.OK(c, gin.H{"message": "AgentTrace API is running", "version": apiVersion})
	})
	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(nil)
	}
	r.GET("/health", func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.Healthy() {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api", middleware.Auth(deps.Verifier))
	registerMeRoutes(api)

	if h := deps.TraceHandler; h != nil {
		if h.UploadLimit == nil {
			h.UploadLimit = UploadLimit(deps.Config.RateLimitPerHour)
		}
		h.RegisterRoutes(api)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(api)
		if deps.Config.Env == "dev" || deps.Config.Env == "local" {
			deps.UsageHandler.RegisterDevRoutes(api)
		}
	}
	if deps.FilterHandler != nil {
		deps.FilterHandler.RegisterRoutes(api)
	}

	return r
}

// UploadLimit is the token-bucket guard on trace uploads.
func UploadLimit(perHour int) gin.HandlerFunc {
	return middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			"UPLOAD": middleware.PerHour(perHour),
		},
		DefaultGroup: "UPLOAD",
	})
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
