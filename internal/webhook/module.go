package webhook

import (
	"net/http"

	apphttp "github.com/JuhDomingues/BS-Consultoria-sub001/internal/http"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

// Module mounts the provider webhooks.
type Module struct {
	handler *Handler
	cfg     config.WebhookConfig
	log     *logger.Logger
}

func NewModule(svc *Service, cfg config.WebhookConfig, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(svc, log), cfg: cfg, log: log.WithComponent("webhook")}
}

func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the webhooks on the rate-limited webhook group.
// WhatsApp and Calendly rejections are acknowledged with 200.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	token := m.cfg.GetWebhookToken()
	ctx.Webhooks.POST("/whatsapp", RequireToken(token, http.StatusOK, m.log), m.handler.HandleWhatsApp)
	ctx.Webhooks.POST("/typebot", RequireToken(token, http.StatusUnauthorized, m.log), m.handler.HandleTypebot)
	ctx.Webhooks.POST("/calendly", VerifyCalendlySignature(m.cfg.GetCalendlySigningKey(), m.log), m.handler.HandleCalendly)
}

var _ apphttp.Module = (*Module)(nil)
