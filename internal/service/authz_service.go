package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/repository"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

// Actions understood by CanPerformAction.
const (
	ActionCreateUser           = "create_user"
	ActionUpdateUser           = "update_user"
	ActionDeleteUser           = "delete_user"
	ActionViewAllUsers         = "view_all_users"
	ActionCreateCourse         = "create_course"
	ActionAssignGrade          = "assign_grade"
	ActionUpdateGrade          = "update_grade"
	ActionViewAllGrades        = "view_all_grades"
	ActionManageTenantSettings = "manage_tenant_settings"
)

var actionRequirements = map[string]models.Role{
	ActionCreateUser:           models.RoleAdmin,
	ActionUpdateUser:           models.RoleAdmin,
	ActionDeleteUser:           models.RoleAdmin,
	ActionViewAllUsers:         models.RoleInstructor,
	ActionCreateCourse:         models.RoleInstructor,
	ActionAssignGrade:          models.RoleInstructor,
	ActionUpdateGrade:          models.RoleInstructor,
	ActionViewAllGrades:        models.RoleAdmin,
	ActionManageTenantSettings: models.RoleTenantAdmin,
}

type authzUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type tenantStateReader interface {
	Get(ctx context.Context) (*models.TenantState, error)
}

// AuthzService is the single authorization authority of a tenant. Every
// guard resolves the caller from the user store and records its decision.
type AuthzService struct {
	users   authzUserReader
	state   tenantStateReader
	audit   *AuditService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuthzService constructs an AuthzService.
func NewAuthzService(users authzUserReader, state tenantStateReader, audit *AuditService, metrics *MetricsService, logger *zap.Logger) *AuthzService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthzService{users: users, state: state, audit: audit, metrics: metrics, logger: logger}
}

// Resolve returns the active user behind caller. The tenant's bootstrap
// admin principal always resolves as an active TenantAdmin.
func (s *AuthzService) Resolve(ctx context.Context, caller string) (*models.User, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" || caller == models.AnonymousIdentity {
		return nil, appErrors.Clone(appErrors.ErrUserNotAuthenticated, "anonymous access not allowed")
	}

	if admin, err := s.bootstrapAdmin(ctx, caller); err != nil || admin != nil {
		return admin, err
	}

	user, err := s.users.FindByID(ctx, caller)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrUserNotAuthenticated, "user not found: "+caller)
		}
		return nil, appErrors.Internal(err, "failed to load caller")
	}
	if !user.IsActive {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user account is deactivated")
	}
	return user, nil
}

func (s *AuthzService) bootstrapAdmin(ctx context.Context, caller string) (*models.User, error) {
	if s.state == nil {
		return nil, nil
	}
	state, err := s.state.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, appErrors.Internal(err, "failed to load tenant state")
	}
	if state.AdminPrincipal != caller {
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, caller)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, appErrors.Internal(err, "failed to load caller")
	}
	if user == nil {
		user = &models.User{
			ID:        caller,
			Name:      "TenantAdmin",
			Email:     fmt.Sprintf("admin@%s.edu", state.TenantID),
			TenantID:  state.TenantID,
			CreatedAt: state.InitializedAt,
			UpdatedAt: state.InitializedAt,
		}
	}
	user.Role = models.RoleTenantAdmin
	user.IsActive = true
	return user, nil
}

// RequireAuthenticated admits any active user.
func (s *AuthzService) RequireAuthenticated(ctx context.Context, caller string) (*models.User, error) {
	user, err := s.Resolve(ctx, caller)
	s.record(ctx, "require_authenticated", caller, "", err)
	return user, err
}

// RequireStudent admits any active user at Student level or above.
func (s *AuthzService) RequireStudent(ctx context.Context, caller string) (*models.User, error) {
	return s.requireLevel(ctx, "require_student", caller, models.RoleStudent)
}

// RequireTeacher admits Instructor and above.
func (s *AuthzService) RequireTeacher(ctx context.Context, caller string) (*models.User, error) {
	return s.requireLevel(ctx, "require_teacher", caller, models.RoleInstructor)
}

// RequireAdmin admits Admin and above.
func (s *AuthzService) RequireAdmin(ctx context.Context, caller string) (*models.User, error) {
	return s.requireLevel(ctx, "require_admin", caller, models.RoleAdmin)
}

func (s *AuthzService) requireLevel(ctx context.Context, action, caller string, required models.Role) (*models.User, error) {
	user, err := s.Resolve(ctx, caller)
	if err == nil && !user.Role.HasPermissionLevel(required) {
		err = insufficientLevel(action, required)
	}
	s.record(ctx, action, caller, "", err)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CanAccessUserData allows admins everything, instructors student records and
// everyone their own record.
func (s *AuthzService) CanAccessUserData(ctx context.Context, caller, target string) error {
	err := s.canAccessUserData(ctx, caller, target)
	s.record(ctx, "access_user_data", caller, target, err)
	return err
}

func (s *AuthzService) canAccessUserData(ctx context.Context, caller, target string) error {
	user, err := s.Resolve(ctx, caller)
	if err != nil {
		return err
	}
	if user.Role.HasPermissionLevel(models.RoleAdmin) {
		return nil
	}
	if user.ID == target {
		return nil
	}
	if user.Role == models.RoleInstructor {
		targetUser, err := s.findTarget(ctx, target)
		if err != nil {
			return err
		}
		if targetUser.Role == models.RoleStudent {
			return nil
		}
		return appErrors.Clone(appErrors.ErrAccessDenied, "instructors can only access student data")
	}
	return appErrors.Clone(appErrors.ErrAccessDenied, "can only access your own user data")
}

// CanModifyUser requires Admin or above; only a TenantAdmin may modify a TenantAdmin.
func (s *AuthzService) CanModifyUser(ctx context.Context, caller, target string) error {
	err := s.canModifyUser(ctx, caller, target)
	s.record(ctx, "modify_user", caller, target, err)
	return err
}

func (s *AuthzService) canModifyUser(ctx context.Context, caller, target string) error {
	user, err := s.Resolve(ctx, caller)
	if err != nil {
		return err
	}
	if !user.Role.HasPermissionLevel(models.RoleAdmin) {
		return insufficientLevel("modify user", models.RoleAdmin)
	}
	targetUser, err := s.findTarget(ctx, target)
	if err != nil {
		return err
	}
	if user.Role != models.RoleTenantAdmin && targetUser.Role == models.RoleTenantAdmin {
		return appErrors.Clone(appErrors.ErrInsufficientPermissions, "cannot modify TenantAdmin accounts")
	}
	return nil
}

// CanAssignRole lets a TenantAdmin assign any role and an Admin any role but TenantAdmin.
func (s *AuthzService) CanAssignRole(ctx context.Context, caller string, role models.Role) error {
	err := s.canAssignRole(ctx, caller, role)
	s.record(ctx, "assign_role:"+string(role), caller, "", err)
	return err
}

func (s *AuthzService) canAssignRole(ctx context.Context, caller string, role models.Role) error {
	user, err := s.Resolve(ctx, caller)
	if err != nil {
		return err
	}
	if !role.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidRole, "invalid role: "+string(role))
	}
	switch user.Role {
	case models.RoleTenantAdmin:
		return nil
	case models.RoleAdmin:
		if role != models.RoleTenantAdmin {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrInvalidRoleAssignment, fmt.Sprintf("cannot assign role '%s' with current permissions", role))
}

// CanModifyCourse admits the course's instructors and admins.
func (s *AuthzService) CanModifyCourse(ctx context.Context, caller string, course *models.Course) error {
	err := s.canModifyCourse(ctx, caller, course)
	target := ""
	if course != nil {
		target = course.ID
	}
	s.record(ctx, "modify_course", caller, target, err)
	return err
}

func (s *AuthzService) canModifyCourse(ctx context.Context, caller string, course *models.Course) error {
	user, err := s.Resolve(ctx, caller)
	if err != nil {
		return err
	}
	if course == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if user.Role.HasPermissionLevel(models.RoleAdmin) || course.HasInstructor(user.ID) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrUnauthorized, "not an instructor of course "+course.ID)
}

// CanPerformAction checks a named action against the minimum role it requires.
func (s *AuthzService) CanPerformAction(ctx context.Context, caller, action string) error {
	err := s.canPerformAction(ctx, caller, action)
	s.record(ctx, action, caller, "", err)
	return err
}

func (s *AuthzService) canPerformAction(ctx context.Context, caller, action string) error {
	required, known := actionRequirements[action]
	if !known {
		return appErrors.Clone(appErrors.ErrValidation, "unknown action: "+action)
	}
	user, err := s.Resolve(ctx, caller)
	if err != nil {
		return err
	}
	if !user.Role.HasPermissionLevel(required) {
		return insufficientLevel(action, required)
	}
	return nil
}

// WhoAmI returns the resolved caller.
func (s *AuthzService) WhoAmI(ctx context.Context, caller string) (*models.User, error) {
	return s.Resolve(ctx, caller)
}

// HasRole reports whether caller resolves to an active user at or above role.
func (s *AuthzService) HasRole(ctx context.Context, caller string, role models.Role) bool {
	user, err := s.Resolve(ctx, caller)
	return err == nil && user.Role.HasPermissionLevel(role)
}

// IsAdmin reports Admin or TenantAdmin.
func (s *AuthzService) IsAdmin(ctx context.Context, caller string) bool {
	return s.HasRole(ctx, caller, models.RoleAdmin)
}

// IsTeacher reports Instructor or above.
func (s *AuthzService) IsTeacher(ctx context.Context, caller string) bool {
	return s.HasRole(ctx, caller, models.RoleInstructor)
}

// IsStudent reports any active user.
func (s *AuthzService) IsStudent(ctx context.Context, caller string) bool {
	return s.HasRole(ctx, caller, models.RoleStudent)
}

// Summary resolves caller once and reports every introspection flag.
func (s *AuthzService) Summary(ctx context.Context, caller string) (*models.AuthzSummary, error) {
	user, err := s.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	return &models.AuthzSummary{
		UserID:    user.ID,
		Role:      user.Role,
		IsAdmin:   user.Role.HasPermissionLevel(models.RoleAdmin),
		IsTeacher: user.Role.HasPermissionLevel(models.RoleInstructor),
		IsStudent: user.Role.HasPermissionLevel(models.RoleStudent),
	}, nil
}

func (s *AuthzService) findTarget(ctx context.Context, target string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found: "+target)
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

func (s *AuthzService) record(ctx context.Context, action, caller, target string, err error) {
	s.metrics.RecordAuthzDecision(action, err == nil)
	s.audit.Record(ctx, AuditEntry{
		Caller:     caller,
		Action:     "RBAC:" + action,
		Resource:   "authz",
		ResourceID: target,
		Success:    err == nil,
	})
}

func insufficientLevel(action string, required models.Role) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrUnauthorized, fmt.Sprintf("%s requires %s role", action, required))
}
