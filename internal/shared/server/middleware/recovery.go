package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"agenttrace-backend/internal/shared/server/respond"
	"agenttrace-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope and logs it with the
// matched route, path ids and OpenTelemetry trace id.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"route":      c.FullPath(),
			}
			if id := c.Param("id"); id != "" {
				fields["trace_id"] = id
			}
			if stepID := c.Param("stepId"); stepID != "" {
				fields["step_id"] = stepID
			}
			if userID := UserIDFromContext(c); userID != "" {
				fields["user_id"] = userID
			}
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
				fields["otel_trace_id"] = sc.TraceID().String()
			}
			telemetry.Error("http.panic", fields)
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Unexpected server error", nil)
		}()
		c.Next()
	}
}
