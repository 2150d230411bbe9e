package scheduling

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	leaddomain "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/domain"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/apperr"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/httpkit"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/phone"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// PropertyRef accepts a property id sent as a JSON number or string.
type PropertyRef int

func (p *PropertyRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*p = 0
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*p = PropertyRef(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil {
		return err
	}
	*p = PropertyRef(n)
	return nil
}

// ScheduleVisitRequest is the body of POST /scheduling/visits.
type ScheduleVisitRequest struct {
	CustomerPhone string      `json:"customerPhone" validate:"required,phonedigits"`
	CustomerName  string      `json:"customerName" validate:"required,max=120"`
	CustomerEmail string      `json:"customerEmail" validate:"omitempty,email"`
	PropertyID    PropertyRef `json:"propertyId" validate:"required,gt=0"`
	PropertyTitle string      `json:"propertyTitle" validate:"max=200"`
}

// RemindersResponse is the body of GET /scheduling/reminders.
type RemindersResponse struct {
	Count     int        `json:"count"`
	Reminders []Reminder `json:"reminders"`
}

// Handler serves the manual scheduling trigger and reminder listing.
type Handler struct {
	orch      *Orchestrator
	reminders ReminderStore
	phone     phone.Normalizer
	val       *validator.Validator
	log       *logger.Logger
}

func NewHandler(orch *Orchestrator, reminders ReminderStore, normalizer phone.Normalizer, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{orch: orch, reminders: reminders, phone: normalizer, val: val, log: log}
}

// ScheduleVisit creates a booking link for a customer.
// POST /api/v1/scheduling/visits
func (h *Handler) ScheduleVisit(c *gin.Context) {
	var req ScheduleVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.orch.RequestVisit(c.Request.Context(), VisitRequest{
		PhoneNumber:   h.phone.Canonical(req.CustomerPhone),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		PropertyID:    int(req.PropertyID),
		PropertyTitle: strings.TrimSpace(req.PropertyTitle),
		Source:        leaddomain.SourceManual,
	})
	if err != nil {
		h.log.WithContext(c.Request.Context()).Error("manual scheduling failed", "error", err)
		httpkit.HandleError(c, apperr.Internal("scheduling failed"))
		return
	}

	switch result.Outcome {
	case OutcomePropertyNotFound:
		httpkit.Error(c, http.StatusNotFound, "property not found", nil)
	case OutcomeLinkFailed:
		c.JSON(http.StatusInternalServerError, result)
	case OutcomeAlreadyBooked:
		c.JSON(http.StatusConflict, result)
	default:
		httpkit.OK(c, result)
	}
}

// ListReminders returns reminders that have not been sent yet.
// GET /api/v1/scheduling/reminders
func (h *Handler) ListReminders(c *gin.Context) {
	if h.reminders == nil {
		httpkit.OK(c, RemindersResponse{Reminders: []Reminder{}})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 500 {
		httpkit.Error(c, http.StatusBadRequest, "limit must be between 1 and 500", nil)
		return
	}
	items, err := h.reminders.ListPending(c.Request.Context(), limit)
	if err != nil {
		h.log.WithContext(c.Request.Context()).DatabaseError("list reminders", err)
		httpkit.HandleError(c, err)
		return
	}
	if items == nil {
		items = []Reminder{}
	}
	httpkit.OK(c, RemindersResponse{Count: len(items), Reminders: items})
}
