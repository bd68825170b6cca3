package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-platform/internal/service"
	"github.com/noah-isme/lms-platform/pkg/response"
)

// RouterHandler exposes the router's provisioning, registry and inspection
// endpoints.
type RouterHandler struct {
	provisioning *service.ProvisioningService
	registry     *service.RegistryService
	templates    *service.TemplateService
	inspection   *service.InspectionService
}

// NewRouterHandler constructs handler.
func NewRouterHandler(provisioning *service.ProvisioningService, registry *service.RegistryService, templates *service.TemplateService, inspection *service.InspectionService) *RouterHandler {
	return &RouterHandler{provisioning: provisioning, registry: registry, templates: templates, inspection: inspection}
}

// RegisterUniversity godoc
// @Summary Provision a university
// @Description Creates an instance, installs the template code and registers the tenant under its subdomain.
// @Tags Router
// @Accept json
// @Produce json
// @Param payload body service.RegisterUniversityRequest true "University payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /universities [post]
func (h *RouterHandler) RegisterUniversity(c *gin.Context) {
	var req service.RegisterUniversityRequest
	if !bindJSON(c, &req) {
		return
	}
	tenant, err := h.provisioning.RegisterUniversity(c.Request.Context(), callerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tenant)
}

// RegisterTenant godoc
// @Summary Register an existing instance as a tenant
// @Tags Router
// @Accept json
// @Produce json
// @Param payload body service.RegisterTenantRequest true "Tenant payload"
// @Success 201 {object} response.Envelope
// @Router /tenants [post]
func (h *RouterHandler) RegisterTenant(c *gin.Context) {
	var req service.RegisterTenantRequest
	if !bindJSON(c, &req) {
		return
	}
	tenant, err := h.registry.RegisterTenant(c.Request.Context(), callerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tenant)
}

// ListTenants godoc
// @Summary List tenants
// @Tags Router
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tenants [get]
func (h *RouterHandler) ListTenants(c *gin.Context) {
	tenants, err := h.registry.ListTenants(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, tenants, len(tenants))
}

// GetTenant godoc
// @Summary Get tenant
// @Tags Router
// @Produce json
// @Param id path string true "Tenant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tenants/{id} [get]
func (h *RouterHandler) GetTenant(c *gin.Context) {
	tenant, err := h.registry.GetTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tenant)
}

// UpdateTenant godoc
// @Summary Rename or (de)activate a tenant
// @Tags Router
// @Accept json
// @Produce json
// @Param id path string true "Tenant ID"
// @Param payload body service.UpdateTenantRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /tenants/{id} [patch]
func (h *RouterHandler) UpdateTenant(c *gin.Context) {
	var req service.UpdateTenantRequest
	if !bindJSON(c, &req) {
		return
	}
	tenant, err := h.registry.UpdateTenant(c.Request.Context(), callerFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tenant)
}

// RemoveTenant godoc
// @Summary Remove tenant and its route
// @Tags Router
// @Param id path string true "Tenant ID"
// @Success 204
// @Router /tenants/{id} [delete]
func (h *RouterHandler) RemoveTenant(c *gin.Context) {
	if err := h.registry.RemoveTenant(c.Request.Context(), callerFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ClearTenants godoc
// @Summary Remove every tenant and route
// @Tags Router
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tenants [delete]
func (h *RouterHandler) ClearTenants(c *gin.Context) {
	result, err := h.registry.ClearAllTenants(c.Request.Context(), callerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// RoutingTable godoc
// @Summary List routing entries
// @Tags Router
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /routes [get]
func (h *RouterHandler) RoutingTable(c *gin.Context) {
	routes, err := h.registry.GetRoutingTable(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, routes, len(routes))
}

// ResolveRoute godoc
// @Summary Resolve a subdomain to its instance
// @Tags Router
// @Produce json
// @Param subdomain path string true "Subdomain"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /routes/{subdomain} [get]
func (h *RouterHandler) ResolveRoute(c *gin.Context) {
	route, err := h.registry.GetTenantInstance(c.Request.Context(), c.Param("subdomain"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, route)
}

// GetTemplate godoc
// @Summary Current template configuration
// @Tags Router
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /template [get]
func (h *RouterHandler) GetTemplate(c *gin.Context) {
	cfg, err := h.templates.GetTemplateConfig(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cfg)
}

// ConfigureTemplate godoc
// @Summary Point provisioning at a template instance
// @Tags Router
// @Accept json
// @Produce json
// @Param payload body service.ConfigureTemplateRequest true "Template payload"
// @Success 200 {object} response.Envelope
// @Router /template [put]
func (h *RouterHandler) ConfigureTemplate(c *gin.Context) {
	var req service.ConfigureTemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	cfg, err := h.templates.ConfigureTemplate(c.Request.Context(), callerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cfg)
}

// Stats godoc
// @Summary Router statistics
// @Tags Router
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stats [get]
func (h *RouterHandler) Stats(c *gin.Context) {
	stats, err := h.registry.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// InspectRegistry godoc
// @Summary Inspect the tenant registry
// @Tags Inspection
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /inspect/registry [get]
func (h *RouterHandler) InspectRegistry(c *gin.Context) {
	report, err := h.inspection.InspectTenantRegistry(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// InspectRouting godoc
// @Summary Inspect the routing table
// @Tags Inspection
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /inspect/routing [get]
func (h *RouterHandler) InspectRouting(c *gin.Context) {
	report, err := h.inspection.InspectRoutingTable(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// InspectSystem godoc
// @Summary Cross-check registry and routing table
// @Tags Inspection
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /inspect/system [get]
func (h *RouterHandler) InspectSystem(c *gin.Context) {
	report, err := h.inspection.InspectFullSystem(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if !report.DataConsistency {
		c.Header("X-Data-Consistency", "false")
	}
	response.OK(c, report)
}
