package analysis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"agenttrace-backend/internal/shared/metrics"
	"agenttrace-backend/internal/shared/server/middleware"
	"agenttrace-backend/internal/shared/server/respond"
	"agenttrace-backend/internal/shared/telemetry"
	"agenttrace-backend/internal/traces"
	"agenttrace-backend/internal/usage"
)

const (
	quickTraceID      = "quick-analysis"
	quickStepType     = "error"
	quickContent      = "Quick error analysis"
	previousStepCount = 3
	upgradeMessage    = "AI features require a Pro or Team subscription. Upgrade to access AI-powered error analysis."
)

// TraceSource resolves traces without applying access rules.
type TraceSource interface {
	Lookup(ctx context.Context, id string) (traces.Trace, error)
}

// FeatureChecker reports plan entitlements.
type FeatureChecker interface {
	HasFeature(ctx context.Context, userID, feature string) (bool, error)
}

// Handler exposes the AI analysis endpoints.
type Handler struct {
	Gate     *Gate
	Traces   TraceSource
	Features FeatureChecker
}

// NewHandler constructs a Handler.
func NewHandler(gate *Gate, source TraceSource, features FeatureChecker) *Handler {
	return &Handler{Gate: gate, Traces: source, Features: features}
}

// RegisterRoutes attaches analysis routes to the /api group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	requireUser := middleware.RequireUser()
	rg.POST("/traces/:id/steps/:stepId/ai-analysis", requireUser, h.analyzeStep)
	rg.GET("/traces/:id/steps/:stepId/ai-analysis", requireUser, h.getStepAnalysis)
	rg.GET("/ai/status", requireUser, h.status)
	rg.POST("/ai/quick-analysis", requireUser, h.quickAnalysis)
}

type analyzeRequest struct {
	ForceRefresh bool `json:"force_refresh"`
}

func (h *Handler) analyzeStep(c *gin.Context) {
	var body analyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if !h.requireFeature(c) || !h.requireEnabled(c) {
		return
	}
	req, ok := h.stepRequest(c)
	if !ok {
		return
	}
	req.ForceRefresh = body.ForceRefresh

	res, err := h.Gate.Analyze(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Set("analysisOutcome", outcomeOf(res))
	respond.OK(c, res)
}

func (h *Handler) getStepAnalysis(c *gin.Context) {
	if !h.requireEnabled(c) {
		return
	}
	req, ok := h.stepRequest(c)
	if !ok {
		return
	}
	res, found := h.Gate.Lookup(req)
	if !found {
		respond.Error(c, http.StatusNotFound, "not_found", "No cached analysis found. Use POST endpoint to generate analysis.", nil)
		return
	}
	c.Set("analysisOutcome", metrics.OutcomeCacheHit)
	respond.OK(c, res)
}

func (h *Handler) status(c *gin.Context) {
	respond.OK(c, h.Gate.Status())
}

type quickRequest struct {
	ErrorMessage string `json:"error_message"`
	Context      string `json:"context"`
}

func (h *Handler) quickAnalysis(c *gin.Context) {
	var body quickRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if !h.requireFeature(c) || !h.requireEnabled(c) {
		return
	}
	msg := strings.TrimSpace(body.ErrorMessage)
	if msg == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Error message is required", nil)
		return
	}
	content := body.Context
	if content == "" {
		content = quickContent
	}

	res, err := h.Gate.Analyze(c.Request.Context(), Request{
		Error: msg,
		Step: StepContext{
			StepType: quickStepType,
			Content:  content,
			Inputs:   map[string]any{},
		},
		Trace: TraceContext{TraceID: quickTraceID},
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Set("analysisOutcome", outcomeOf(res))
	respond.OK(c, res)
}

func (h *Handler) requireFeature(c *gin.Context) bool {
	if h.Features == nil {
		return true
	}
	ok, err := h.Features.HasFeature(c.Request.Context(), middleware.UserIDFromContext(c), usage.FeatureAI)
	if err != nil {
		telemetry.Error("analysis.feature_check_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to check subscription", nil)
		return false
	}
	if !ok {
		respond.Error(c, http.StatusForbidden, "upgrade_required", upgradeMessage, nil)
		return false
	}
	return true
}

func (h *Handler) requireEnabled(c *gin.Context) bool {
	if h.Gate.IsEnabled() {
		return true
	}
	metrics.IncAnalysisOutcome(metrics.OutcomeDisabled)
	c.Set("analysisOutcome", metrics.OutcomeDisabled)
	respond.Error(c, http.StatusServiceUnavailable, "ai_disabled", "AI features are currently disabled", nil)
	return false
}

// stepRequest loads the trace and step named in the path and checks that the
// caller may analyze it.
func (h *Handler) stepRequest(c *gin.Context) (Request, bool) {
	traceID := c.Param("id")
	trace, err := h.Traces.Lookup(c.Request.Context(), traceID)
	if err != nil {
		if errors.Is(err, traces.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "Trace not found", nil)
			return Request{}, false
		}
		telemetry.Error("analysis.trace_lookup_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"trace_id":   traceID,
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load trace", nil)
		return Request{}, false
	}
	if trace.UserID != "" && trace.UserID != middleware.UserIDFromContext(c) {
		respond.Error(c, http.StatusForbidden, "forbidden", "Not authorized to analyze this trace", nil)
		return Request{}, false
	}

	idx := trace.StepIndex(c.Param("stepId"))
	if idx < 0 {
		respond.Error(c, http.StatusNotFound, "not_found", "Step not found", nil)
		return Request{}, false
	}
	step := trace.Steps[idx]
	if step.Error == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Step does not have an error to analyze", nil)
		return Request{}, false
	}

	start := idx - previousStepCount
	if start < 0 {
		start = 0
	}
	prior := make([]PriorStep, 0, idx-start)
	for _, p := range trace.Steps[start:idx] {
		prior = append(prior, PriorStep{StepType: p.StepType, Content: p.Content})
	}

	return Request{
		Error: step.Error,
		Step: StepContext{
			StepType: step.StepType,
			Content:  step.Content,
			Inputs:   step.Inputs,
			Outputs:  step.Outputs,
		},
		Trace: TraceContext{TraceID: trace.ID, PreviousSteps: prior},
	}, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrFeatureDisabled):
		c.Set("analysisOutcome", metrics.OutcomeDisabled)
		respond.Error(c, http.StatusServiceUnavailable, "ai_disabled", "AI features are currently disabled", nil)
	case errors.Is(err, ErrProvider):
		c.Set("analysisOutcome", metrics.OutcomeProviderError)
		respond.Error(c, http.StatusServiceUnavailable, "provider_error", err.Error(), nil)
	default:
		telemetry.Error("analysis.request_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to analyze error", nil)
	}
}

func outcomeOf(res Result) string {
	switch {
	case res.Cached:
		return metrics.OutcomeCacheHit
	case res.FallbackReason != FallbackNone:
		return metrics.OutcomeFallback
	default:
		return metrics.OutcomeGenerated
	}
}
