package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/httpkit"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

// Handler exposes the provider webhooks.
type Handler struct {
	svc *Service
	log *logger.Logger
}

func NewHandler(svc *Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log.WithComponent("webhook")}
}

// TypebotResponse is the lead-capture reply body.
type TypebotResponse struct {
	Success     bool   `json:"success"`
	PhoneNumber string `json:"phoneNumber"`
	Duplicate   bool   `json:"duplicate,omitempty"`
}

// HandleWhatsApp acknowledges every delivery with 200.
// POST /api/v1/webhooks/whatsapp
func (h *Handler) HandleWhatsApp(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Warn("whatsapp webhook body unreadable", "error", err)
		httpkit.Ack(c)
		return
	}
	h.svc.ReceiveWhatsApp(c.Request.Context(), body)
	httpkit.Ack(c)
}

// HandleTypebot validates the capture synchronously.
// POST /api/v1/webhooks/typebot
func (h *Handler) HandleTypebot(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, MissingPhoneMessage, nil)
		return
	}

	sig, disposition, err := h.svc.CaptureLead(c.Request.Context(), body)
	if errors.Is(err, ErrMissingPhone) {
		h.log.WithContext(c.Request.Context()).Info("typebot capture without phone")
		httpkit.Error(c, http.StatusBadRequest, MissingPhoneMessage, nil)
		return
	}
	if err != nil {
		h.log.WithContext(c.Request.Context()).Error("typebot capture failed", "error", err)
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, TypebotResponse{
		Success:     true,
		PhoneNumber: sig.PhoneNumber,
		Duplicate:   disposition == Duplicate,
	})
}

// HandleCalendly acknowledges every delivery with 200.
// POST /api/v1/webhooks/calendly
func (h *Handler) HandleCalendly(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Warn("calendly webhook body unreadable", "error", err)
		httpkit.Ack(c)
		return
	}
	h.svc.ReceiveCalendly(c.Request.Context(), body)
	httpkit.Ack(c)
}

func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
}
