package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/instance"
	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/repository"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
	"github.com/noah-isme/lms-platform/pkg/jobs"
)

// JobDeleteInstance is the compensation job type queued when a rollback
// delete fails.
const JobDeleteInstance = "delete_instance"

// Provisioning outcomes reported to metrics.
const (
	OutcomeSucceeded      = "succeeded"
	OutcomeRejected       = "rejected"
	OutcomeCreateFailed   = "create_failed"
	OutcomeInstallFailed  = "install_failed"
	OutcomeRegisterFailed = "register_failed"
)

type tenantRegistrar interface {
	Register(ctx context.Context, tenant *models.TenantRecord) error
	SubdomainTaken(ctx context.Context, subdomain string) (bool, error)
	Oldest(ctx context.Context) (*models.TenantRecord, error)
}

type templateReader interface {
	Get(ctx context.Context) (models.TemplateConfig, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// RegisterUniversityRequest is the payload for provisioning a university.
type RegisterUniversityRequest struct {
	Subdomain      string `json:"subdomain" validate:"required"`
	UniversityName string `json:"university_name" validate:"required"`
	AdminIdentity  string `json:"admin_identity" validate:"required"`
}

// ProvisioningConfig tunes the orchestrator.
type ProvisioningConfig struct {
	RouterIdentity string
	InstanceBudget uint64
}

// IsValidSubdomain accepts non-empty labels of letters, digits and '-' that
// neither start nor end with '-'.
func IsValidSubdomain(subdomain string) bool {
	if subdomain == "" || strings.HasPrefix(subdomain, "-") || strings.HasSuffix(subdomain, "-") {
		return false
	}
	for _, r := range subdomain {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}

// RouterAccess decides who may call mutating router operations. With no
// configured admins every authenticated caller is allowed.
type RouterAccess struct {
	admins map[string]struct{}
}

// NewRouterAccess builds RouterAccess from the configured admin identities.
func NewRouterAccess(admins []string) *RouterAccess {
	set := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		if a = strings.TrimSpace(a); a != "" {
			set[a] = struct{}{}
		}
	}
	return &RouterAccess{admins: set}
}

// Authorize rejects anonymous callers and, when admins are configured, callers outside that set.
func (a *RouterAccess) Authorize(caller string) error {
	caller = strings.TrimSpace(caller)
	if caller == "" || caller == models.AnonymousIdentity {
		return appErrors.Clone(appErrors.ErrUserNotAuthenticated, "anonymous access not allowed")
	}
	if a == nil || len(a.admins) == 0 {
		return nil
	}
	if _, ok := a.admins[caller]; !ok {
		return appErrors.Clone(appErrors.ErrUnauthorized, "router admin required")
	}
	return nil
}

// ProvisioningService runs the university provisioning saga: create an
// instance, install tenant code, register the tenant, and delete the instance
// again when a later step fails.
type ProvisioningService struct {
	tenants      tenantRegistrar
	templates    templateReader
	substrate    instance.Client
	access       *RouterAccess
	audit        *AuditService
	metrics      *MetricsService
	validator    *validator.Validate
	clock        clock.Clock
	logger       *zap.Logger
	cfg          ProvisioningConfig
	compensation jobEnqueuer

	mu       sync.Mutex
	reserved map[string]struct{}
}

// NewProvisioningService constructs ProvisioningService.
func NewProvisioningService(tenants tenantRegistrar, templates templateReader, substrate instance.Client, access *RouterAccess, audit *AuditService, metrics *MetricsService, cfg ProvisioningConfig, validate *validator.Validate, clk clock.Clock, logger *zap.Logger) *ProvisioningService {
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvisioningService{
		tenants:   tenants,
		templates: templates,
		substrate: substrate,
		access:    access,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		clock:     clk,
		logger:    logger,
		cfg:       cfg,
		reserved:  make(map[string]struct{}),
	}
}

// SetCompensationQueue routes failed rollback deletes to q for retrying.
func (s *ProvisioningService) SetCompensationQueue(q jobEnqueuer) {
	s.compensation = q
}

// RegisterUniversity provisions a tenant instance for a university and routes
// subdomain to it. Any failure after the instance exists deletes it again.
func (s *ProvisioningService) RegisterUniversity(ctx context.Context, caller string, req RegisterUniversityRequest) (*models.TenantRecord, error) {
	if err := s.access.Authorize(caller); err != nil {
		s.metrics.RecordProvisioning(OutcomeRejected)
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordProvisioning(OutcomeRejected)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "all fields are required")
	}
	subdomain := req.Subdomain
	if !IsValidSubdomain(subdomain) {
		s.metrics.RecordProvisioning(OutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid subdomain format")
	}

	if !s.reserve(subdomain) {
		s.metrics.RecordProvisioning(OutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "subdomain already registered")
	}
	defer s.release(subdomain)

	taken, err := s.tenants.SubdomainTaken(ctx, subdomain)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check subdomain")
	}
	if taken {
		s.metrics.RecordProvisioning(OutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "subdomain already registered")
	}

	pkg, err := s.resolveTemplate(ctx)
	if err != nil {
		s.metrics.RecordProvisioning(OutcomeRejected)
		return nil, err
	}

	controllers := dedupe([]string{s.cfg.RouterIdentity, caller, req.AdminIdentity})
	instanceID, err := s.substrate.CreateInstance(ctx, controllers, s.cfg.InstanceBudget)
	if err != nil {
		s.metrics.RecordProvisioning(OutcomeCreateFailed)
		s.logger.Error("instance creation failed", zap.String("subdomain", subdomain), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create instance")
	}

	tenantID := "tenant_" + uuid.NewString()
	args := instance.InitArgs{TenantID: tenantID, AdminPrincipal: req.AdminIdentity}
	if err := s.substrate.InstallCode(ctx, instanceID, pkg, args); err != nil {
		s.metrics.RecordProvisioning(OutcomeInstallFailed)
		s.logger.Error("template install failed",
			zap.String("subdomain", subdomain),
			zap.String("instance_id", instanceID),
			zap.Error(err),
		)
		s.compensate(ctx, instanceID)
		return nil, appErrors.Internal(err, "failed to install template")
	}

	now := s.clock.Now().UTC()
	record := &models.TenantRecord{
		TenantID:   tenantID,
		Name:       req.UniversityName,
		Subdomain:  subdomain,
		InstanceID: instanceID,
		AdminIDs:   []string{req.AdminIdentity},
		CreatedAt:  now,
		UpdatedAt:  now,
		IsActive:   true,
		Settings:   models.DefaultTenantSettings(),
	}
	if err := s.tenants.Register(ctx, record); err != nil {
		s.metrics.RecordProvisioning(OutcomeRegisterFailed)
		s.logger.Error("tenant registration failed",
			zap.String("tenant_id", tenantID),
			zap.String("instance_id", instanceID),
			zap.Error(err),
		)
		s.compensate(ctx, instanceID)
		if errors.Is(err, repository.ErrSubdomainTaken) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "subdomain already registered")
		}
		return nil, appErrors.Internal(err, "failed to register tenant")
	}

	s.metrics.RecordProvisioning(OutcomeSucceeded)
	s.audit.Record(ctx, AuditEntry{
		Caller:     caller,
		Action:     models.AuditActionTenantProvision,
		Resource:   "tenant",
		ResourceID: tenantID,
		Success:    true,
		NewValues:  record,
	})
	s.logger.Info("university provisioned",
		zap.String("tenant_id", tenantID),
		zap.String("subdomain", subdomain),
		zap.String("instance_id", instanceID),
	)
	return record, nil
}

// HandleCompensation is the job handler for queued rollback deletes. An
// instance that is already gone counts as compensated.
func (s *ProvisioningService) HandleCompensation(ctx context.Context, job jobs.Job) error {
	instanceID, ok := job.Payload.(string)
	if !ok || instanceID == "" {
		return fmt.Errorf("compensation job %s: unexpected payload %T", job.ID, job.Payload)
	}
	err := s.substrate.DeleteInstance(ctx, instanceID)
	if err != nil && !errors.Is(err, instance.ErrInstanceNotFound) {
		s.metrics.RecordCompensation("retry_failed")
		return err
	}
	s.metrics.RecordCompensation("retry_succeeded")
	s.logger.Info("compensation retry deleted instance", zap.String("instance_id", instanceID), zap.Int("attempt", job.Attempt))
	return nil
}

// CompensationAbandoned is the give-up hook of the compensation queue.
func (s *ProvisioningService) CompensationAbandoned(job jobs.Job, err error) {
	s.metrics.RecordCompensation("abandoned")
	s.logger.Error("instance left behind after failed provisioning",
		zap.Any("instance_id", job.Payload),
		zap.Int("attempts", job.Attempt),
		zap.Error(err),
	)
}

// compensate deletes instanceID best effort. Failures are logged apart from
// the forward failure and queued for retry.
func (s *ProvisioningService) compensate(ctx context.Context, instanceID string) {
	err := s.substrate.DeleteInstance(context.WithoutCancel(ctx), instanceID)
	if err == nil {
		s.metrics.RecordCompensation("succeeded")
		s.logger.Warn("rolled back instance", zap.String("instance_id", instanceID))
		return
	}

	s.metrics.RecordCompensation("failed")
	s.logger.Error("compensation delete failed", zap.String("instance_id", instanceID), zap.Error(err))
	if s.compensation == nil {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: JobDeleteInstance, Payload: instanceID}
	if err := s.compensation.Enqueue(job); err != nil {
		s.logger.Error("failed to queue compensation retry", zap.String("instance_id", instanceID), zap.Error(err))
	}
}

// resolveTemplate prefers the configured template instance and falls back to
// the oldest registered tenant's instance.
func (s *ProvisioningService) resolveTemplate(ctx context.Context) (instance.CodePackage, error) {
	cfg, err := s.templates.Get(ctx)
	if err != nil {
		return instance.CodePackage{}, appErrors.Internal(err, "failed to load template config")
	}
	if cfg.HasTemplate() {
		return instance.CodePackage{SourceInstanceID: *cfg.TemplateInstanceID, Version: cfg.TemplateVersion}, nil
	}

	oldest, err := s.tenants.Oldest(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return instance.CodePackage{}, appErrors.Clone(appErrors.ErrInitialization, "no template configured and no deployed tenant found")
		}
		return instance.CodePackage{}, appErrors.Internal(err, "failed to load tenants")
	}
	s.logger.Info("no template configured, using deployed tenant instance", zap.String("instance_id", oldest.InstanceID))
	return instance.CodePackage{SourceInstanceID: oldest.InstanceID, Version: cfg.TemplateVersion}, nil
}

func (s *ProvisioningService) reserve(subdomain string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reserved[subdomain]; ok {
		return false
	}
	s.reserved[subdomain] = struct{}{}
	return true
}

func (s *ProvisioningService) release(subdomain string) {
	s.mu.Lock()
	delete(s.reserved, subdomain)
	s.mu.Unlock()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
