package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-platform/internal/models"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

func (f *routerFixture) registry() *RegistryService {
	return NewRegistryService(f.tenants, f.templates, f.access, nil, nil, f.clock, nil)
}

func TestRegistryRegisterTenantLegacy(t *testing.T) {
	f := newRouterFixture(t, routerAdmin)
	svc := f.registry()

	tenant, err := svc.RegisterTenant(f.ctx, routerAdmin, RegisterTenantRequest{ID: "t1", Name: "One", Domain: "one.lms.example", InstanceID: "inst-1"})
	require.NoError(t, err)
	assert.Equal(t, "one", tenant.Subdomain)
	assert.Equal(t, []string{routerAdmin}, tenant.AdminIDs)

	_, err = svc.RegisterTenant(f.ctx, routerAdmin, RegisterTenantRequest{ID: "t2", Name: "Two", Domain: "one.other.example", InstanceID: "inst-2"})
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyExists))

	_, err = svc.RegisterTenant(f.ctx, routerAdmin, RegisterTenantRequest{ID: "t1", Name: "Again", Domain: "again.lms.example", InstanceID: "inst-3"})
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyExists))

	_, err = svc.RegisterTenant(f.ctx, routerAdmin, RegisterTenantRequest{ID: "t4", Name: "Bad", Domain: "-bad.example", InstanceID: "inst-4"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.RegisterTenant(f.ctx, routerAdmin, RegisterTenantRequest{ID: "t5"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.RegisterTenant(f.ctx, "someone", RegisterTenantRequest{ID: "t6", Name: "Six", Domain: "six.example", InstanceID: "inst-6"})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestRegistryLookupsAndRemoval(t *testing.T) {
	f := newRouterFixture(t)
	svc := f.registry()
	for _, req := range []RegisterTenantRequest{
		{ID: "t1", Name: "One", Domain: "one.lms.example", InstanceID: "inst-1"},
		{ID: "t2", Name: "Two", Domain: "two.lms.example", InstanceID: "inst-2"},
	} {
		_, err := svc.RegisterTenant(f.ctx, routerAdmin, req)
		require.NoError(t, err)
	}

	route, err := svc.GetTenantInstance(f.ctx, "two")
	require.NoError(t, err)
	assert.Equal(t, "inst-2", route.InstanceID)

	_, err = svc.GetTenantInstance(f.ctx, "three")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.GetTenant(f.ctx, "t9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant 't9' not found")

	inactive := false
	name := "Renamed"
	updated, err := svc.UpdateTenant(f.ctx, routerAdmin, "t1", UpdateTenantRequest{Name: &name, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.False(t, updated.IsActive)

	stats, err := svc.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.RouterStats{TenantCount: 2, RoutingEntries: 2, ActiveTenants: 1, TemplateVersion: "1.0.0"}, stats)

	require.NoError(t, svc.RemoveTenant(f.ctx, routerAdmin, "t1"))
	_, err = svc.GetTenantInstance(f.ctx, "one")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.True(t, appErrors.Is(svc.RemoveTenant(f.ctx, routerAdmin, "t1"), appErrors.ErrNotFound))

	cleared, err := svc.ClearAllTenants(f.ctx, routerAdmin)
	require.NoError(t, err)
	assert.Equal(t, &models.ClearResult{TenantsRemoved: 1, RoutesRemoved: 1}, cleared)

	tenants, err := svc.ListTenants(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, tenants)
	assert.Equal(t, "router is healthy", svc.HealthCheck())
}

func TestRegistryRegisterTenantRejectsSharedInstance(t *testing.T) {
	f := newRouterFixture(t, routerAdmin)
	svc := f.registry()
	inspection := NewInspectionService(f.tenants, nil, f.clock, nil)

	_, err := svc.RegisterTenant(f.ctx, routerAdmin, RegisterTenantRequest{ID: "t1", Name: "One", Domain: "one.lms.example", InstanceID: "inst-1"})
	require.NoError(t, err)
	_, err = svc.RegisterTenant(f.ctx, routerAdmin, RegisterTenantRequest{ID: "t2", Name: "Two", Domain: "two.lms.example", InstanceID: "inst-1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyExists))

	_, err = svc.RegisterTenant(f.ctx, routerAdmin, RegisterTenantRequest{ID: "t3", Name: "Three", Domain: "three.lms.example", InstanceID: "inst-3"})
	require.NoError(t, err)
	require.NoError(t, svc.RemoveTenant(f.ctx, routerAdmin, "t1"))

	report, err := inspection.InspectFullSystem(f.ctx)
	require.NoError(t, err)
	assert.True(t, report.DataConsistency)
	assert.Equal(t, 1, report.Registry.TotalTenants)
	assert.Equal(t, 1, report.Routing.TotalRoutes)
}

func TestRegistryStatsIgnoresEmptyTemplateID(t *testing.T) {
	f := newRouterFixture(t)
	svc := f.registry()

	empty := ""
	require.NoError(t, f.templates.Save(f.ctx, models.TemplateConfig{TemplateInstanceID: &empty, TemplateVersion: "1.0.0"}))
	stats, err := svc.Stats(f.ctx)
	require.NoError(t, err)
	assert.False(t, stats.HasTemplate)

	_, err = f.provisioning().RegisterUniversity(f.ctx, routerAdmin, universityReq("mit"))
	assert.True(t, appErrors.Is(err, appErrors.ErrInitialization))

	id := f.substrate.SeedTemplate("1.0.0")
	require.NoError(t, f.templates.Save(f.ctx, models.TemplateConfig{TemplateInstanceID: &id, TemplateVersion: "1.0.0"}))
	stats, err = svc.Stats(f.ctx)
	require.NoError(t, err)
	assert.True(t, stats.HasTemplate)
}

func TestTemplateServiceConfigure(t *testing.T) {
	f := newRouterFixture(t, routerAdmin)
	svc := NewTemplateService(f.templates, f.access, f.clock, nil)

	cfg, err := svc.GetTemplateConfig(f.ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg.TemplateInstanceID)
	assert.Equal(t, "1.0.0", cfg.TemplateVersion)

	off := false
	cfg, err = svc.ConfigureTemplate(f.ctx, routerAdmin, ConfigureTemplateRequest{InstanceID: "inst-tpl", AutoUpdate: &off})
	require.NoError(t, err)
	require.NotNil(t, cfg.TemplateInstanceID)
	assert.Equal(t, "inst-tpl", *cfg.TemplateInstanceID)
	assert.Equal(t, "1.0.0", cfg.TemplateVersion)
	assert.False(t, cfg.AutoUpdate)
	assert.Equal(t, f.clock.Now().UTC(), cfg.LastUpdated)

	_, err = svc.ConfigureTemplate(f.ctx, routerAdmin, ConfigureTemplateRequest{InstanceID: "  "})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.ConfigureTemplate(f.ctx, "visitor", ConfigureTemplateRequest{InstanceID: "inst-x"})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestInspectionDetectsOrphans(t *testing.T) {
	f := newRouterFixture(t)
	f.seedTemplate(t)
	provisioning := f.provisioning()
	inspection := NewInspectionService(f.tenants, f.metrics, f.clock, nil)

	for _, sub := range []string{"alpha", "beta"} {
		_, err := provisioning.RegisterUniversity(f.ctx, routerAdmin, universityReq(sub))
		require.NoError(t, err)
	}

	report, err := inspection.InspectFullSystem(f.ctx)
	require.NoError(t, err)
	assert.True(t, report.DataConsistency)
	assert.Empty(t, report.OrphanedRoutes)
	assert.NotNil(t, report.OrphanedRoutes)
	assert.Equal(t, 2, report.Registry.TotalTenants)
	assert.Equal(t, 2, report.Routing.TotalRoutes)

	require.NoError(t, f.tenants.PutRoute(f.ctx, models.RoutingEntry{Subdomain: "ghost", InstanceID: "inst-ghost"}))
	beta, err := f.tenants.FindRoute(f.ctx, "beta")
	require.NoError(t, err)
	require.NoError(t, f.tenants.DeleteRoute(f.ctx, "beta"))

	report, err = inspection.InspectFullSystem(f.ctx)
	require.NoError(t, err)
	assert.False(t, report.DataConsistency)
	require.Len(t, report.OrphanedRoutes, 1)
	assert.Equal(t, "ghost", report.OrphanedRoutes[0].Subdomain)
	require.Len(t, report.OrphanedTenants, 1)
	assert.Equal(t, beta.InstanceID, report.OrphanedTenants[0].InstanceID)

	registry, err := inspection.InspectTenantRegistry(f.ctx)
	require.NoError(t, err)
	assert.Len(t, registry.ActiveTenants, 2)

	routing, err := inspection.InspectRoutingTable(f.ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "ghost"}, routing.Subdomains)

	require.NoError(t, inspection.Sweep(f.ctx))
}

func TestInspectionEmptyRegistry(t *testing.T) {
	f := newRouterFixture(t)
	report, err := NewInspectionService(f.tenants, nil, f.clock, nil).InspectFullSystem(f.ctx)
	require.NoError(t, err)
	assert.True(t, report.DataConsistency)
	assert.NotNil(t, report.Registry.Tenants)
	assert.NotNil(t, report.Routing.Routes)
	assert.Equal(t, f.clock.Now().UTC(), report.InspectedAt)
}
