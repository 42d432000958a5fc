package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHandlerExposesCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	IncTraceIngested("json")
	IncAnalysisOutcome(OutcomeCacheHit)
	ObserveProviderSeconds(0.2)
	ObservePromptTokens(120)

	r := gin.New()
	r.Use(Middleware())
	r.GET("/metrics", Handler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	for _, want := range []string{
		`agenttrace_traces_ingested_total{source="json"}`,
		`agenttrace_analysis_requests_total{outcome="cache_hit"}`,
		"agenttrace_analysis_provider_duration_seconds_count",
		"agenttrace_analysis_prompt_tokens_count",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}

func TestCacheSizeFollowsLatestRegistration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	defer RegisterCacheSize(nil)

	r := gin.New()
	r.GET("/metrics", Handler())
	scrape := func() string {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return resp.Body.String()
	}

	RegisterCacheSize(func() int { return 3 })
	if body := scrape(); !strings.Contains(body, "agenttrace_analysis_cache_entries 3") {
		t.Fatalf("expected first cache size in output")
	}

	RegisterCacheSize(func() int { return 7 })
	body := scrape()
	if !strings.Contains(body, "agenttrace_analysis_cache_entries 7") {
		t.Fatalf("expected second registration to replace the first")
	}
	if strings.Contains(body, "agenttrace_analysis_cache_entries 3") {
		t.Fatalf("stale cache size still exported")
	}
}
