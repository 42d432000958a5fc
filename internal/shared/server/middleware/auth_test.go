package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"agenttrace-backend/internal/shared/auth"
)

type stubVerifier struct {
	identity auth.Identity
	err      error
}

func (s stubVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	if s.err != nil {
		return auth.Identity{}, s.err
	}
	if token != "good" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return s.identity, nil
}

func newAuthRouter(v auth.Verifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(v))
	r.GET("/open", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user":  UserIDFromContext(c),
			"guest": GuestSessionFromContext(c),
		})
	})
	r.GET("/private", RequireUser(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": UserIDFromContext(c)})
	})
	return r
}

func TestAuthAllowsAnonymousOnOpenRoutes(t *testing.T) {
	r := newAuthRouter(stubVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("X-Guest-Id", "guest-7")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != `{"guest":"guest-7","user":""}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestRequireUserStatuses(t *testing.T) {
	r := newAuthRouter(stubVerifier{identity: auth.Identity{SubjectID: "user-1"}})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
		{"lowercase scheme", "bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, resp.Code)
		}
	}
}

func TestRequireUserWithoutVerifier(t *testing.T) {
	r := newAuthRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}
