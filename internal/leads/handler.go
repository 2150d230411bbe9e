package leads

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/repository"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/service"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/apperr"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/httpkit"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/phone"
)

// Handler serves the operator read endpoints for leads.
type Handler struct {
	svc   *service.Service
	phone phone.Normalizer
}

func NewHandler(svc *service.Service, normalizer phone.Normalizer) *Handler {
	return &Handler{svc: svc, phone: normalizer}
}

// ListResponse is the body of GET /admin/leads.
type ListResponse struct {
	Items []domain.Lead `json:"items"`
	Total int           `json:"total"`
}

// HandleList lists leads, optionally filtered by quality.
// GET /api/v1/admin/leads?quality=hot&limit=50&offset=0
func (h *Handler) HandleList(c *gin.Context) {
	params := repository.ListParams{
		Limit:  atoiDefault(c.Query("limit"), 50),
		Offset: atoiDefault(c.Query("offset"), 0),
	}
	if q := c.Query("quality"); q != "" {
		quality := domain.Quality(q)
		switch quality {
		case domain.QualityHot, domain.QualityWarm, domain.QualityCold:
			params.Quality = &quality
		default:
			httpkit.HandleError(c, apperr.Validation("quality must be hot, warm or cold"))
			return
		}
	}

	items, total, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, ListResponse{Items: items, Total: total})
}

// HandleGet returns one lead by phone number in any format.
// GET /api/v1/admin/leads/:phone
func (h *Handler) HandleGet(c *gin.Context) {
	key := h.phone.Canonical(c.Param("phone"))
	if key == "" {
		httpkit.HandleError(c, apperr.Validation("invalid phone number"))
		return
	}

	lead, err := h.svc.Get(c.Request.Context(), key)
	if errors.Is(err, domain.ErrLeadNotFound) {
		httpkit.HandleError(c, apperr.NotFound("lead not found"))
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func atoiDefault(raw string, fallback int) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
