package usage

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"agenttrace-backend/internal/shared/server/middleware"
	"agenttrace-backend/internal/shared/server/respond"
	"agenttrace-backend/internal/shared/telemetry"
)

// Handler exposes subscription and usage endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches subscription routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	requireUser := middleware.RequireUser()
	rg.GET("/subscription", requireUser, h.getSubscription)
	rg.GET("/subscription/usage", requireUser, h.getUsage)
}

// RegisterDevRoutes attaches dev-only plan switching.
func (h *Handler) RegisterDevRoutes(rg *gin.RouterGroup) {
	rg.POST("/dev/subscription", middleware.RequireUser(), h.setPlan)
}

func (h *Handler) getSubscription(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	sub, err := h.Svc.Subscription(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err, "failed to get subscription")
		return
	}
	respond.OK(c, gin.H{
		"plan_type":            sub.PlanType,
		"status":               sub.Status,
		"current_period_end":   sub.CurrentPeriodEnd,
		"cancel_at_period_end": sub.CancelAtPeriodEnd,
		"limits":               h.Svc.PlanFor(sub),
	})
}

func (h *Handler) getUsage(c *gin.Context) {
	u, err := h.Svc.Usage(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err, "failed to get usage stats")
		return
	}
	respond.OK(c, u)
}

type setPlanRequest struct {
	PlanType string `json:"plan_type"`
}

func (h *Handler) setPlan(c *gin.Context) {
	var req setPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlanType == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "plan_type is required", gin.H{"plans": h.Svc.Plans().Names()})
		return
	}
	sub, err := h.Svc.SetPlan(c.Request.Context(), middleware.UserIDFromContext(c), req.PlanType)
	if err != nil {
		if errors.Is(err, ErrUnknownPlan) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), gin.H{"plans": h.Svc.Plans().Names()})
			return
		}
		h.writeError(c, err, "failed to update subscription")
		return
	}
	respond.OK(c, sub)
}

func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
		return
	}
	telemetry.Error("usage.request_failed", map[string]any{
		"request_id": middleware.RequestIDFromContext(c),
		"error":      err.Error(),
	})
	respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
}
