package service

import (
	"context"
	"errors"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/repository"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Mutate(ctx context.Context, id string, fn func(*models.User) error) (*models.User, error)
}

// RegisterUserRequest represents payload for registering a tenant user.
type RegisterUserRequest struct {
	ID       string      `json:"id" validate:"required"`
	Name     string      `json:"name" validate:"required"`
	Email    string      `json:"email" validate:"required,email"`
	Role     models.Role `json:"role" validate:"required"`
	TenantID string      `json:"tenant_id" validate:"required"`
}

// UpdateUserRequest payload for updating users. Nil fields are left untouched.
type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	state     tenantStateReader
	authz     *AuthzService
	audit     *AuditService
	validator *validator.Validate
	clock     clock.Clock
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, state tenantStateReader, authz *AuthzService, audit *AuditService, validate *validator.Validate, clk clock.Clock, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &UserService{repo: repo, state: state, authz: authz, audit: audit, validator: validate, clock: clk, logger: logger}
}

// RegisterUser creates a user in this tenant.
func (s *UserService) RegisterUser(ctx context.Context, caller string, req RegisterUserRequest) (*models.User, error) {
	if err := s.authz.CanPerformAction(ctx, caller, ActionCreateUser); err != nil {
		return nil, err
	}
	if err := s.authz.CanAssignRole(ctx, caller, req.Role); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	state, err := s.state.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrInitialization, "tenant not initialized")
		}
		return nil, appErrors.Internal(err, "failed to load tenant state")
	}
	if req.TenantID != state.TenantID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tenant ID mismatch")
	}

	now := s.clock.Now().UTC()
	user := &models.User{
		ID:        strings.TrimSpace(req.ID),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Role:      req.Role,
		TenantID:  req.TenantID,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "user already exists")
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}

	s.audit.Record(ctx, AuditEntry{
		Caller:     caller,
		Action:     models.AuditActionUserCreate,
		Resource:   "user",
		ResourceID: user.ID,
		Success:    true,
		NewValues:  user,
	})
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// ListUsers returns every user to instructors and above. Other callers see
// only themselves; anonymous callers see nothing.
func (s *UserService) ListUsers(ctx context.Context, caller string) ([]models.User, error) {
	if err := s.authz.CanPerformAction(ctx, caller, ActionViewAllUsers); err != nil {
		self, resolveErr := s.authz.Resolve(ctx, caller)
		if resolveErr != nil {
			return []models.User{}, nil
		}
		return []models.User{*self}, nil
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list users")
	}
	return users, nil
}

// GetUser returns a user the caller may see.
func (s *UserService) GetUser(ctx context.Context, caller, id string) (*models.User, error) {
	if err := s.authz.CanAccessUserData(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

// PublicUserNames maps ids to display names for any authenticated caller.
// Unknown ids are skipped.
func (s *UserService) PublicUserNames(ctx context.Context, caller string, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if _, err := s.authz.RequireAuthenticated(ctx, caller); err != nil {
		return names, nil
	}
	for _, id := range ids {
		user, err := s.repo.FindByID(ctx, id)
		if err != nil {
			continue
		}
		names[id] = user.Name
	}
	return names, nil
}

// UpdateUser changes name, email or active flag.
func (s *UserService) UpdateUser(ctx context.Context, caller, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.authz.CanModifyUser(ctx, caller, id); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid email format")
	}

	var before models.User
	user, err := s.mutate(ctx, id, func(u *models.User) {
		before = *u
		if req.Name != nil {
			u.Name = strings.TrimSpace(*req.Name)
		}
		if req.Email != nil {
			u.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Caller:     caller,
		Action:     models.AuditActionUserUpdate,
		Resource:   "user",
		ResourceID: id,
		Success:    true,
		OldValues:  before,
		NewValues:  user,
	})
	return user, nil
}

// UpdateUserRole assigns a new role within the caller's assignment rights.
func (s *UserService) UpdateUserRole(ctx context.Context, caller, id string, role models.Role) (*models.User, error) {
	if err := s.authz.CanModifyUser(ctx, caller, id); err != nil {
		return nil, err
	}
	if err := s.authz.CanAssignRole(ctx, caller, role); err != nil {
		return nil, err
	}

	var previous models.Role
	user, err := s.mutate(ctx, id, func(u *models.User) {
		previous = u.Role
		u.Role = role
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Caller:     caller,
		Action:     models.AuditActionUserRole,
		Resource:   "user",
		ResourceID: id,
		Success:    true,
		OldValues:  map[string]any{"role": previous},
		NewValues:  map[string]any{"role": role},
	})
	s.logger.Info("user role updated",
		zap.String("user_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(role)),
	)
	return user, nil
}

// DeactivateUser blocks a user from passing any guard.
func (s *UserService) DeactivateUser(ctx context.Context, caller, id string) (*models.User, error) {
	return s.setActive(ctx, caller, id, false)
}

// ReactivateUser reverses DeactivateUser.
func (s *UserService) ReactivateUser(ctx context.Context, caller, id string) (*models.User, error) {
	return s.setActive(ctx, caller, id, true)
}

func (s *UserService) setActive(ctx context.Context, caller, id string, active bool) (*models.User, error) {
	if err := s.authz.CanModifyUser(ctx, caller, id); err != nil {
		return nil, err
	}
	user, err := s.mutate(ctx, id, func(u *models.User) { u.IsActive = active })
	if err != nil {
		return nil, err
	}
	action := models.AuditActionUserDeactivate
	if active {
		action = models.AuditActionUserReactivate
	}
	s.audit.Record(ctx, AuditEntry{Caller: caller, Action: action, Resource: "user", ResourceID: id, Success: true})
	return user, nil
}

func (s *UserService) mutate(ctx context.Context, id string, apply func(*models.User)) (*models.User, error) {
	now := s.clock.Now().UTC()
	user, err := s.repo.Mutate(ctx, id, func(u *models.User) error {
		apply(u)
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to update user")
	}
	return user, nil
}

func (s *UserService) find(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}
