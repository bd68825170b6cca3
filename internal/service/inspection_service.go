package service

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/models"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

type registrySnapshotter interface {
	Snapshot(ctx context.Context) ([]models.TenantRecord, []models.RoutingEntry, error)
}

// InspectionService cross references the tenant registry and routing table.
type InspectionService struct {
	tenants registrySnapshotter
	metrics *MetricsService
	clock   clock.Clock
	logger  *zap.Logger
}

// NewInspectionService constructs InspectionService.
func NewInspectionService(tenants registrySnapshotter, metrics *MetricsService, clk clock.Clock, logger *zap.Logger) *InspectionService {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InspectionService{tenants: tenants, metrics: metrics, clock: clk, logger: logger}
}

// InspectTenantRegistry describes the registry.
func (s *InspectionService) InspectTenantRegistry(ctx context.Context) (*models.RegistryInspection, error) {
	tenants, _, err := s.tenants.Snapshot(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to read registry")
	}
	inspection := registryInspection(tenants)
	return &inspection, nil
}

// InspectRoutingTable describes the routing table.
func (s *InspectionService) InspectRoutingTable(ctx context.Context) (*models.RoutingInspection, error) {
	_, routes, err := s.tenants.Snapshot(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to read routing table")
	}
	inspection := routingInspection(routes)
	return &inspection, nil
}

// InspectFullSystem reports routes whose instance no tenant owns and tenants
// whose instance no route reaches. Both maps are read in one transaction.
func (s *InspectionService) InspectFullSystem(ctx context.Context) (*models.SystemInspection, error) {
	tenants, routes, err := s.tenants.Snapshot(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to read registry")
	}

	result := &models.SystemInspection{
		Registry:        registryInspection(tenants),
		Routing:         routingInspection(routes),
		OrphanedRoutes:  []models.RoutingEntry{},
		OrphanedTenants: []models.TenantRecord{},
		InspectedAt:     s.clock.Now().UTC(),
	}
	for _, route := range routes {
		owned := false
		for _, tenant := range tenants {
			if tenant.InstanceID == route.InstanceID {
				owned = true
				break
			}
		}
		if !owned {
			result.OrphanedRoutes = append(result.OrphanedRoutes, route)
		}
	}
	for _, tenant := range tenants {
		routed := false
		for _, route := range routes {
			if route.InstanceID == tenant.InstanceID {
				routed = true
				break
			}
		}
		if !routed {
			result.OrphanedTenants = append(result.OrphanedTenants, tenant)
		}
	}
	result.DataConsistency = len(result.OrphanedRoutes) == 0 && len(result.OrphanedTenants) == 0
	return result, nil
}

// Sweep runs a full inspection, publishes it as metrics and logs any
// inconsistency. It is scheduled periodically.
func (s *InspectionService) Sweep(ctx context.Context) error {
	inspection, err := s.InspectFullSystem(ctx)
	if err != nil {
		return err
	}
	s.metrics.RecordInspection(inspection)
	if inspection.DataConsistency {
		s.logger.Debug("registry consistent", zap.Int("tenants", inspection.Registry.TotalTenants))
		return nil
	}
	for _, route := range inspection.OrphanedRoutes {
		s.logger.Warn("orphaned route", zap.String("subdomain", route.Subdomain), zap.String("instance_id", route.InstanceID))
	}
	for _, tenant := range inspection.OrphanedTenants {
		s.logger.Warn("orphaned tenant", zap.String("tenant_id", tenant.TenantID), zap.String("instance_id", tenant.InstanceID))
	}
	return nil
}

func registryInspection(tenants []models.TenantRecord) models.RegistryInspection {
	out := models.RegistryInspection{
		TotalTenants:    len(tenants),
		Tenants:         tenants,
		TenantIDs:       make([]string, 0, len(tenants)),
		ActiveTenants:   []string{},
		InactiveTenants: []string{},
	}
	if out.Tenants == nil {
		out.Tenants = []models.TenantRecord{}
	}
	for _, t := range tenants {
		out.TenantIDs = append(out.TenantIDs, t.TenantID)
		if t.IsActive {
			out.ActiveTenants = append(out.ActiveTenants, t.TenantID)
		} else {
			out.InactiveTenants = append(out.InactiveTenants, t.TenantID)
		}
	}
	return out
}

func routingInspection(routes []models.RoutingEntry) models.RoutingInspection {
	out := models.RoutingInspection{
		TotalRoutes: len(routes),
		Routes:      routes,
		Subdomains:  make([]string, 0, len(routes)),
		InstanceIDs: make([]string, 0, len(routes)),
	}
	if out.Routes == nil {
		out.Routes = []models.RoutingEntry{}
	}
	for _, r := range routes {
		out.Subdomains = append(out.Subdomains, r.Subdomain)
		out.InstanceIDs = append(out.InstanceIDs, r.InstanceID)
	}
	return out
}
