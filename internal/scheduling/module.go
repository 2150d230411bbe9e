package scheduling

import (
	apphttp "github.com/JuhDomingues/BS-Consultoria-sub001/internal/http"
)

// Module exposes the scheduling endpoints.
type Module struct {
	handler *Handler
	orch    *Orchestrator
}

func NewModule(orch *Orchestrator, handler *Handler) *Module {
	return &Module{handler: handler, orch: orch}
}

// Orchestrator returns the scheduling state machine shared with the dialogue and webhooks.
func (m *Module) Orchestrator() *Orchestrator {
	return m.orch
}

func (m *Module) Name() string {
	return "scheduling"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Operator.Group("/scheduling")
	group.POST("/visits", m.handler.ScheduleVisit)
	group.GET("/reminders", m.handler.ListReminders)
}

var _ apphttp.Module = (*Module)(nil)
