package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"agenttrace-backend/internal/shared/auth"
	"agenttrace-backend/internal/shared/server/respond"
	"agenttrace-backend/internal/shared/telemetry"
)

const (
	userIDKey       = "userId"
	userEmailKey    = "userEmail"
	guestSessionKey = "guestSession"
	authErrorKey    = "authError"
)

// Auth resolves the caller's identity without rejecting anonymous requests.
// A valid bearer token sets the user; otherwise the request proceeds as a
// guest, tagged with the X-Guest-Id session when one is sent. Routes that need
// a user chain RequireUser after it.
func Auth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		if guestID := strings.TrimSpace(c.GetHeader("X-Guest-Id")); guestID != "" {
			c.Set(guestSessionKey, guestID)
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Set("isGuest", true)
			c.Next()
			return
		}

		if verifier == nil {
			c.Set(authErrorKey, auth.ErrNotConfigured)
			c.Set("isGuest", true)
			c.Next()
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				telemetry.Error("auth.verify_failed", map[string]any{
					"request_id": RequestIDFromContext(c),
					"error":      err.Error(),
				})
			}
			c.Set(authErrorKey, err)
			c.Set("isGuest", true)
			c.Next()
			return
		}

		c.Set(userIDKey, identity.SubjectID)
		if identity.Email != "" {
			c.Set(userEmailKey, identity.Email)
		}
		c.Set("isGuest", false)
		c.Next()
	}
}

// RequireUser rejects requests that Auth did not resolve to a user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserIDFromContext(c) != "" {
			c.Next()
			return
		}
		if raw, ok := c.Get(authErrorKey); ok {
			if err, _ := raw.(error); errors.Is(err, auth.ErrNotConfigured) {
				respond.Error(c, http.StatusServiceUnavailable, "auth_not_configured", "Authentication service not configured", nil)
				return
			}
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired token", nil)
			return
		}
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Authorization header missing", nil)
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userIDKey)
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userEmailKey)
}

// GuestSessionFromContext returns the X-Guest-Id value, if any.
func GuestSessionFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(guestSessionKey)
}
