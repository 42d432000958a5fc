package filters

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"agenttrace-backend/internal/shared/server/middleware"
	"agenttrace-backend/internal/shared/server/respond"
	"agenttrace-backend/internal/shared/telemetry"
)

// Handler exposes saved filter endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches filter routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	requireUser := middleware.RequireUser()
	rg.GET("/filters", requireUser, h.list)
	rg.POST("/filters", requireUser, h.create)
	rg.DELETE("/filters/:id", requireUser, h.delete)
}

func (h *Handler) list(c *gin.Context) {
	out, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.internal(c, err, "failed to list filters")
		return
	}
	respond.OK(c, gin.H{"filters": out})
}

type createRequest struct {
	Name    string         `json:"name"`
	Filters map[string]any `json:"filters"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	f, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c), req.Name, req.Filters)
	if err != nil {
		if errors.Is(err, ErrNameRequired) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "Filter name is required", nil)
			return
		}
		h.internal(c, err, "failed to save filter")
		return
	}
	respond.OK(c, f)
}

func (h *Handler) delete(c *gin.Context) {
	err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	switch {
	case err == nil:
		respond.OK(c, gin.H{"message": "Filter deleted successfully"})
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Filter not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "Not authorized to delete this filter", nil)
	default:
		h.internal(c, err, "failed to delete filter")
	}
}

func (h *Handler) internal(c *gin.Context, err error, msg string) {
	telemetry.Error("filters.request_failed", map[string]any{
		"request_id": middleware.RequestIDFromContext(c),
		"error":      err.Error(),
	})
	respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
}
