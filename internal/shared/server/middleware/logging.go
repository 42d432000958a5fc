package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"agenttrace-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if userID := UserIDFromContext(c); userID != "" {
			fields["user_id"] = userID
		}
		if isGuest, ok := c.Get("isGuest"); ok {
			fields["is_guest"] = isGuest
		}
		if traceID := c.Param("id"); traceID != "" && strings.HasPrefix(c.FullPath(), "/api/traces/") {
			fields["trace_id"] = traceID
		}
		if stepID := c.Param("stepId"); stepID != "" {
			fields["step_id"] = stepID
		}
		if outcome := c.GetString("analysisOutcome"); outcome != "" {
			fields["analysis_outcome"] = outcome
		}

		telemetry.Info("request.complete", fields)
	}
}
