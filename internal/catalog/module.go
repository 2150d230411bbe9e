// Package catalog provides the property catalog module.
package catalog

import (
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/handler"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/repository"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/service"
	apphttp "github.com/JuhDomingues/BS-Consultoria-sub001/internal/http"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
)

// Module is the catalog module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the cache and resolver around source. signer may be nil.
func NewModule(source repository.Source, signer repository.MediaSigner, cfg config.CatalogConfig, log *logger.Logger) *Module {
	cache := service.NewCache(source, cfg.GetCatalogCacheTTL(), log)
	svc := service.New(cache, source, signer, log)
	return &Module{handler: handler.New(svc), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "catalog"
}

// Service returns the property resolver.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts catalog routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Admin.Group("/catalog")
	group.GET("/properties", m.handler.ListProperties)
	group.GET("/properties/:id", m.handler.GetProperty)
	group.POST("/invalidate", m.handler.Invalidate)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
