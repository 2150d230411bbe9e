// Package leads is the Lead Store bounded context module.
package leads

import (
	apphttp "github.com/JuhDomingues/BS-Consultoria-sub001/internal/http"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/service"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/phone"
)

// Module exposes lead reads to operators.
type Module struct {
	handler *Handler
	svc     *service.Service
}

// NewModule wires the lead handler around an existing service.
func NewModule(svc *service.Service, normalizer phone.Normalizer) *Module {
	return &Module{handler: NewHandler(svc, normalizer), svc: svc}
}

// Service returns the lead write path shared with other modules.
func (m *Module) Service() *service.Service {
	return m.svc
}

func (m *Module) Name() string {
	return "leads"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Admin.Group("/leads")
	group.GET("", m.handler.HandleList)
	group.GET("/:phone", m.handler.HandleGet)
}
