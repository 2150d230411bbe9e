package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/service"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/transport"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/apperr"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/httpkit"
)

// Handler handles HTTP requests for catalog.
type Handler struct {
	svc *service.Service
}

// New creates a new catalog handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// ListProperties returns the cached catalog snapshot.
// GET /api/v1/admin/catalog/properties
func (h *Handler) ListProperties(c *gin.Context) {
	items, err := h.svc.Snapshot(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, apperr.Unavailable("catalog unavailable", err))
		return
	}
	httpkit.OK(c, transport.PropertyListResponse{
		Items:     items,
		Total:     len(items),
		FetchedAt: timePtr(h.svc.Cache().FetchedAt()),
	})
}

// GetProperty resolves one property by id.
// GET /api/v1/admin/catalog/properties/:id
func (h *Handler) GetProperty(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid property id", nil)
		return
	}
	p, err := h.svc.GetProperty(c.Request.Context(), id)
	if errors.Is(err, domain.ErrPropertyNotFound) {
		httpkit.Error(c, http.StatusNotFound, "property not found", nil)
		return
	}
	if err != nil {
		httpkit.HandleError(c, apperr.Unavailable("catalog unavailable", err))
		return
	}
	httpkit.OK(c, p)
}

// Invalidate drops the cached snapshot.
// POST /api/v1/admin/catalog/invalidate
func (h *Handler) Invalidate(c *gin.Context) {
	previous := h.svc.Cache().FetchedAt()
	h.svc.Cache().Invalidate()
	httpkit.OK(c, transport.InvalidateResponse{Success: true, PreviousAt: timePtr(previous)})
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
