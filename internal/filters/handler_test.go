package filters

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"agenttrace-backend/internal/shared/auth"
	"agenttrace-backend/internal/shared/server/middleware"
)

const filterSecret = "filters-secret"

func bearer(t *testing.T, sub string) string {
	t.Helper()
	token, err := auth.SignJWT(filterSecret, auth.Claims{Sub: sub}, time.Now())
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	return "Bearer " + token
}

func TestFilterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", middleware.Auth(auth.NewJWTVerifier(filterSecret)))
	NewHandler(newTestService()).RegisterRoutes(api)

	req := httptest.NewRequest(http.MethodPost, "/api/filters", strings.NewReader(`{"name":"","filters":{}}`))
	req.Header.Set("Authorization", bearer(t, "u1"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty name, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/filters", strings.NewReader(`{"name":"errors","filters":{"step_type":"error"}}`))
	req.Header.Set("Authorization", bearer(t, "u1"))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var created SavedFilter
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil || created.ID == "" {
		t.Fatalf("unexpected create body %s", resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/filters/"+created.ID, nil)
	req.Header.Set("Authorization", bearer(t, "u2"))
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/filters", nil)
	req.Header.Set("Authorization", bearer(t, "u1"))
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	var listed struct {
		Filters []SavedFilter `json:"filters"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &listed); err != nil || len(listed.Filters) != 1 {
		t.Fatalf("unexpected list body %s", resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/filters/"+created.ID, nil)
	req.Header.Set("Authorization", bearer(t, "u1"))
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/filters/"+created.ID, nil)
	req.Header.Set("Authorization", bearer(t, "u1"))
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}
