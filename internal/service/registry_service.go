package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/repository"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

type tenantRegistry interface {
	Register(ctx context.Context, tenant *models.TenantRecord) error
	FindByID(ctx context.Context, id string) (*models.TenantRecord, error)
	List(ctx context.Context) ([]models.TenantRecord, error)
	Update(ctx context.Context, tenant *models.TenantRecord) error
	Remove(ctx context.Context, id string) (*models.TenantRecord, []string, error)
	ClearAll(ctx context.Context) (models.ClearResult, error)
	FindRoute(ctx context.Context, subdomain string) (*models.RoutingEntry, error)
	ListRoutes(ctx context.Context) ([]models.RoutingEntry, error)
	MigrateRecords(ctx context.Context) (int, error)
}

// RegisterTenantRequest registers an instance that is already running.
type RegisterTenantRequest struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Domain     string `json:"domain" validate:"required"`
	InstanceID string `json:"instance_id" validate:"required"`
}

// UpdateTenantRequest renames or (de)activates a tenant.
type UpdateTenantRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// RegistryService serves the tenant registry and routing table.
type RegistryService struct {
	tenants   tenantRegistry
	templates templateReader
	access    *RouterAccess
	audit     *AuditService
	validator *validator.Validate
	clock     clock.Clock
	logger    *zap.Logger
}

// NewRegistryService constructs RegistryService.
func NewRegistryService(tenants tenantRegistry, templates templateReader, access *RouterAccess, audit *AuditService, validate *validator.Validate, clk clock.Clock, logger *zap.Logger) *RegistryService {
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryService{tenants: tenants, templates: templates, access: access, audit: audit, validator: validate, clock: clk, logger: logger}
}

// RegisterTenant records an existing instance. The routing key is the first
// label of domain.
func (s *RegistryService) RegisterTenant(ctx context.Context, caller string, req RegisterTenantRequest) (*models.TenantRecord, error) {
	if err := s.access.Authorize(caller); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "all fields are required")
	}
	subdomain, _, _ := strings.Cut(req.Domain, ".")
	if !IsValidSubdomain(subdomain) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid subdomain format")
	}

	now := s.clock.Now().UTC()
	record := &models.TenantRecord{
		TenantID:   req.ID,
		Name:       req.Name,
		Subdomain:  subdomain,
		InstanceID: req.InstanceID,
		AdminIDs:   []string{caller},
		CreatedAt:  now,
		UpdatedAt:  now,
		IsActive:   true,
		Settings:   models.DefaultTenantSettings(),
	}
	if err := s.tenants.Register(ctx, record); err != nil {
		switch {
		case errors.Is(err, repository.ErrSubdomainTaken):
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "domain already in use")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "tenant already exists")
		case errors.Is(err, repository.ErrInstanceTaken):
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "instance already registered to another tenant")
		}
		return nil, appErrors.Internal(err, "failed to register tenant")
	}
	s.logger.Info("tenant registered", zap.String("tenant_id", record.TenantID), zap.String("subdomain", subdomain))
	return record, nil
}

// GetTenantInstance resolves a subdomain to the instance serving it.
func (s *RegistryService) GetTenantInstance(ctx context.Context, subdomain string) (*models.RoutingEntry, error) {
	entry, err := s.tenants.FindRoute(ctx, subdomain)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subdomain not found")
		}
		return nil, appErrors.Internal(err, "failed to resolve subdomain")
	}
	return entry, nil
}

// GetTenant returns one tenant record.
func (s *RegistryService) GetTenant(ctx context.Context, tenantID string) (*models.TenantRecord, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("tenant '%s' not found", tenantID))
		}
		return nil, appErrors.Internal(err, "failed to load tenant")
	}
	return tenant, nil
}

// ListTenants returns every tenant.
func (s *RegistryService) ListTenants(ctx context.Context) ([]models.TenantRecord, error) {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list tenants")
	}
	return tenants, nil
}

// GetRoutingTable returns every routing entry.
func (s *RegistryService) GetRoutingTable(ctx context.Context) ([]models.RoutingEntry, error) {
	routes, err := s.tenants.ListRoutes(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list routes")
	}
	return routes, nil
}

// UpdateTenant renames or (de)activates a tenant.
func (s *RegistryService) UpdateTenant(ctx context.Context, caller, tenantID string, req UpdateTenantRequest) (*models.TenantRecord, error) {
	if err := s.access.Authorize(caller); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tenant payload")
	}
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		tenant.Name = *req.Name
	}
	if req.IsActive != nil {
		tenant.IsActive = *req.IsActive
	}
	tenant.UpdatedAt = s.clock.Now().UTC()
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("tenant '%s' not found", tenantID), "failed to update tenant")
	}
	return tenant, nil
}

// RemoveTenant deletes a tenant together with every route to its instance.
func (s *RegistryService) RemoveTenant(ctx context.Context, caller, tenantID string) error {
	if err := s.access.Authorize(caller); err != nil {
		return err
	}
	tenant, unrouted, err := s.tenants.Remove(ctx, tenantID)
	if err != nil {
		return notFoundOr(err, fmt.Sprintf("tenant '%s' not found", tenantID), "failed to remove tenant")
	}
	s.audit.Record(ctx, AuditEntry{
		Caller:     caller,
		Action:     models.AuditActionTenantRemove,
		Resource:   "tenant",
		ResourceID: tenantID,
		Success:    true,
		OldValues:  tenant,
	})
	s.logger.Info("tenant removed",
		zap.String("tenant_id", tenantID),
		zap.String("instance_id", tenant.InstanceID),
		zap.Strings("unrouted", unrouted),
	)
	return nil
}

// ClearAllTenants empties the registry and routing table.
func (s *RegistryService) ClearAllTenants(ctx context.Context, caller string) (*models.ClearResult, error) {
	if err := s.access.Authorize(caller); err != nil {
		return nil, err
	}
	result, err := s.tenants.ClearAll(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to clear tenants")
	}
	s.audit.Record(ctx, AuditEntry{
		Caller:    caller,
		Action:    models.AuditActionTenantClear,
		Resource:  "tenant",
		Success:   true,
		OldValues: result,
	})
	s.logger.Warn("cleared all tenant data",
		zap.Int("tenants_removed", result.TenantsRemoved),
		zap.Int("routes_removed", result.RoutesRemoved),
	)
	return &result, nil
}

// MigrateTenantRecords upgrades tenant records stored at older schema versions.
func (s *RegistryService) MigrateTenantRecords(ctx context.Context) (int, error) {
	n, err := s.tenants.MigrateRecords(ctx)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to migrate tenant records")
	}
	if n > 0 {
		s.logger.Info("migrated tenant records", zap.Int("count", n))
	}
	return n, nil
}

// Stats summarises the registry and template configuration.
func (s *RegistryService) Stats(ctx context.Context) (*models.RouterStats, error) {
	tenants, err := s.ListTenants(ctx)
	if err != nil {
		return nil, err
	}
	routes, err := s.GetRoutingTable(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := s.templates.Get(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load template config")
	}

	stats := &models.RouterStats{
		TenantCount:     len(tenants),
		RoutingEntries:  len(routes),
		HasTemplate:     cfg.HasTemplate(),
		TemplateVersion: cfg.TemplateVersion,
	}
	for _, t := range tenants {
		if t.IsActive {
			stats.ActiveTenants++
		}
	}
	return stats, nil
}

// HealthCheck reports liveness.
func (s *RegistryService) HealthCheck() string {
	return "router is healthy"
}
