package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/repository"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

type tenantStateStore interface {
	Get(ctx context.Context) (*models.TenantState, error)
	Initialize(ctx context.Context, state models.TenantState, admin models.User) (*models.TenantState, bool, error)
}

// TenantService owns the initialization of a tenant instance.
type TenantService struct {
	state  tenantStateStore
	clock  clock.Clock
	logger *zap.Logger
}

// NewTenantService constructs TenantService.
func NewTenantService(state tenantStateStore, clk clock.Clock, logger *zap.Logger) *TenantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &TenantService{state: state, clock: clk, logger: logger}
}

// Initialize binds the instance to tenantID and registers adminPrincipal as
// its TenantAdmin. Repeating it with the same tenant id is a no-op; a
// different tenant id is an InitializationError the caller must treat as fatal.
func (s *TenantService) Initialize(ctx context.Context, tenantID, adminPrincipal string) (*models.TenantState, error) {
	tenantID = strings.TrimSpace(tenantID)
	adminPrincipal = strings.TrimSpace(adminPrincipal)
	if tenantID == "" || adminPrincipal == "" {
		return nil, appErrors.Clone(appErrors.ErrInitialization, "tenant id and admin principal are required")
	}

	now := s.clock.Now().UTC()
	admin := models.User{
		ID:        adminPrincipal,
		Name:      "TenantAdmin",
		Email:     fmt.Sprintf("admin@%s.edu", tenantID),
		Role:      models.RoleTenantAdmin,
		TenantID:  tenantID,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
	state, created, err := s.state.Initialize(ctx, models.TenantState{
		TenantID:       tenantID,
		AdminPrincipal: adminPrincipal,
		InitializedAt:  now,
	}, admin)
	if err != nil {
		if errors.Is(err, repository.ErrTenantMismatch) {
			return nil, appErrors.Wrap(err, appErrors.ErrInitialization.Code, appErrors.ErrInitialization.Status, "instance already initialized for another tenant")
		}
		return nil, appErrors.Internal(err, "failed to initialize tenant")
	}

	if created {
		s.logger.Info("tenant initialized", zap.String("tenant_id", tenantID), zap.String("admin_principal", adminPrincipal))
	} else {
		s.logger.Info("tenant already initialized", zap.String("tenant_id", state.TenantID))
	}
	return state, nil
}

// State returns the initialization cell.
func (s *TenantService) State(ctx context.Context) (*models.TenantState, error) {
	state, err := s.state.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrInitialization, "tenant not initialized")
		}
		return nil, appErrors.Internal(err, "failed to load tenant state")
	}
	return state, nil
}
