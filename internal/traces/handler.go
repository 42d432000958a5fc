package traces

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"agenttrace-backend/internal/shared/server/middleware"
	"agenttrace-backend/internal/shared/server/respond"
	"agenttrace-backend/internal/shared/telemetry"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
	// UploadLimit guards the upload routes. Nil disables it.
	UploadLimit gin.HandlerFunc
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, uploadLimit gin.HandlerFunc) *Handler {
	return &Handler{Svc: svc, UploadLimit: uploadLimit}
}

// RegisterRoutes attaches trace routes to the /api group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	limit := h.UploadLimit
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}
	requireUser := middleware.RequireUser()

	rg.POST("/traces/upload", limit, requireUser, h.upload)
	rg.POST("/traces/upload-guest", limit, asGuest, h.upload)
	rg.POST("/traces/upload-file", limit, requireUser, h.uploadFile)
	rg.POST("/traces/upload-file-guest", limit, asGuest, h.uploadFile)

	rg.GET("/traces", h.list)
	rg.GET("/traces/:id", h.get)
	rg.GET("/traces/:id/raw", h.raw)
	rg.PUT("/traces/:id/visibility", requireUser, h.setVisibility)
	rg.GET("/search", requireUser, h.search)
}

type uploadRequest struct {
	TraceData   any    `json:"trace_data"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

const guestUploadKey = "guestUpload"

// asGuest marks an upload as anonymous. A bearer identity on the request is
// ignored so the trace is stored unowned and not counted against any quota.
func asGuest(c *gin.Context) {
	c.Set(guestUploadKey, true)
	c.Next()
}

// uploaderFrom returns the owner fields for an upload.
func uploaderFrom(c *gin.Context) (ownerID, ownerEmail, guestSession string) {
	guestSession = middleware.GuestSessionFromContext(c)
	if c.GetBool(guestUploadKey) {
		return "", "", guestSession
	}
	return middleware.UserIDFromContext(c), middleware.UserEmailFromContext(c), guestSession
}

func viewerFrom(c *gin.Context) Viewer {
	return Viewer{
		UserID:       middleware.UserIDFromContext(c),
		GuestSession: middleware.GuestSessionFromContext(c),
	}
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxFileBytes)

	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			h.writeError(c, ErrPayloadTooLarge, "invalid request body")
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.TraceData == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "trace_data is required", nil)
		return
	}

	ownerID, ownerEmail, guestSession := uploaderFrom(c)
	trace, err := h.Svc.Ingest(c.Request.Context(), IngestInput{
		Payload:      req.TraceData,
		OwnerID:      ownerID,
		OwnerEmail:   ownerEmail,
		GuestSession: guestSession,
		Name:         req.Name,
		Description:  req.Description,
		IsPublic:     req.IsPublic,
	})
	if err != nil {
		h.writeError(c, err, "failed to process trace")
		return
	}
	respond.JSON(c, http.StatusOK, trace.View())
}

func (h *Handler) uploadFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxFileBytes+(1<<20))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	if err := ValidateFile(fileHeader.Filename, fileHeader.Size); err != nil {
		h.writeError(c, err, "invalid file")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, MaxFileBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	if len(body) > MaxFileBytes {
		h.writeError(c, ErrFileTooLarge, "invalid file")
		return
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_json", "Invalid JSON file", nil)
		return
	}

	ownerID, ownerEmail, guestSession := uploaderFrom(c)
	trace, err := h.Svc.Ingest(c.Request.Context(), IngestInput{
		Payload:      payload,
		OwnerID:      ownerID,
		OwnerEmail:   ownerEmail,
		GuestSession: guestSession,
		FileName:     fileHeader.Filename,
	})
	if err != nil {
		h.writeError(c, err, "failed to process trace file")
		return
	}
	respond.JSON(c, http.StatusOK, trace.View())
}

func (h *Handler) list(c *gin.Context) {
	limit := defaultListLimit
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	traces, err := h.Svc.List(c.Request.Context(), viewerFrom(c), limit, offset)
	if err != nil {
		h.writeError(c, err, "failed to list traces")
		return
	}

	views := make([]TraceView, 0, len(traces))
	for _, trace := range traces {
		views = append(views, trace.View())
	}
	respond.OK(c, gin.H{"traces": views, "total": len(views)})
}

func (h *Handler) get(c *gin.Context) {
	trace, err := h.Svc.Get(c.Request.Context(), c.Param("id"), viewerFrom(c))
	if err != nil {
		h.writeError(c, err, "failed to fetch trace")
		return
	}
	respond.OK(c, trace.View())
}

func (h *Handler) raw(c *gin.Context) {
	rc, trace, err := h.Svc.Raw(c.Request.Context(), c.Param("id"), viewerFrom(c))
	if err != nil {
		h.writeError(c, err, "failed to open trace file")
		return
	}
	defer rc.Close()

	name, _ := trace.Metadata["source_file"].(string)
	if name == "" {
		name = trace.ID + ".json"
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.DataFromReader(http.StatusOK, -1, "application/json", rc, nil)
}

type visibilityRequest struct {
	IsPublic *bool `json:"is_public"`
}

func (h *Handler) setVisibility(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsPublic == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "is_public is required", nil)
		return
	}

	trace, err := h.Svc.SetVisibility(c.Request.Context(), c.Param("id"), middleware.UserIDFromContext(c), *req.IsPublic)
	if err != nil {
		h.writeError(c, err, "failed to update visibility")
		return
	}

	state := "private"
	if trace.IsPublic {
		state = "public"
	}
	respond.OK(c, gin.H{
		"message":   "Trace is now " + state,
		"is_public": trace.IsPublic,
	})
}

func (h *Handler) search(c *gin.Context) {
	results, err := h.Svc.Search(c.Request.Context(), middleware.UserIDFromContext(c), c.Query("q"))
	if err != nil {
		h.writeError(c, err, "search failed")
		return
	}
	respond.OK(c, gin.H{"results": results})
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, ErrPayloadTooLarge), errors.Is(err, ErrFileTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error(), nil)
	case errors.Is(err, ErrInvalidFormat),
		errors.Is(err, ErrTooManySteps),
		errors.Is(err, ErrContentTooLong),
		errors.Is(err, ErrInvalidFileType):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrQuotaExceeded):
		respond.Error(c, http.StatusForbidden, "quota_exceeded", strings.TrimPrefix(err.Error(), ErrQuotaExceeded.Error()+": "), nil)
	case errors.Is(err, ErrUnauthenticated):
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "Access denied", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Trace not found", nil)
	case errors.Is(err, ErrNoArchive):
		respond.Error(c, http.StatusNotFound, "not_found", "No archived file for this trace", nil)
	default:
		telemetry.Error("trace.request_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"trace_id":   c.Param("id"),
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
