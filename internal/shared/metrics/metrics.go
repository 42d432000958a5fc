package metrics

import (
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analysis outcomes recorded by the gate.
const (
	OutcomeCacheHit      = "cache_hit"
	OutcomeGenerated     = "generated"
	OutcomeFallback      = "fallback"
	OutcomeProviderError = "provider_error"
	OutcomeDisabled      = "disabled"
)

var (
	tracesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agenttrace",
		Name:      "traces_ingested_total",
		Help:      "Traces accepted for storage, by upload source.",
	}, []string{"source"})

	analysisOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agenttrace",
		Name:      "analysis_requests_total",
		Help:      "Analysis requests by outcome.",
	}, []string{"outcome"})

	providerLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agenttrace",
		Name:      "analysis_provider_duration_seconds",
		Help:      "Latency of analysis provider calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	promptTokens = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agenttrace",
		Name:      "analysis_prompt_tokens",
		Help:      "Estimated prompt size sent to the analysis provider.",
		Buckets:   prometheus.ExponentialBuckets(32, 2, 8),
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agenttrace",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
)

// IncTraceIngested counts one stored trace.
func IncTraceIngested(source string) {
	tracesIngested.WithLabelValues(source).Inc()
}

// IncAnalysisOutcome counts one analysis request.
func IncAnalysisOutcome(outcome string) {
	analysisOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveProviderSeconds records a provider call duration.
func ObserveProviderSeconds(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	providerLatency.Observe(seconds)
}

// ObservePromptTokens records the estimated token count of a prompt.
func ObservePromptTokens(tokens int) {
	if tokens < 0 {
		return
	}
	promptTokens.Observe(float64(tokens))
}

var (
	cacheSize atomic.Pointer[func() int]

	_ = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "agenttrace",
		Name:      "analysis_cache_entries",
		Help:      "Entries held by the analysis cache, expired ones included until read.",
	}, func() float64 {
		size := cacheSize.Load()
		if size == nil {
			return 0
		}
		return float64((*size)())
	})
)

// RegisterCacheSize points the cache gauge at size. The most recent call wins,
// so a rebuilt gate replaces the one it supersedes.
func RegisterCacheSize(size func() int) {
	if size == nil {
		cacheSize.Store(nil)
		return
	}
	cacheSize.Store(&size)
}

// Middleware counts requests by matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
