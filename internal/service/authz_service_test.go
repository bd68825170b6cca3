package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-platform/internal/models"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

func TestRoleLevelsAreMonotonic(t *testing.T) {
	roles := models.Roles()
	for i, held := range roles {
		for j, required := range roles {
			assert.Equal(t, i >= j, held.HasPermissionLevel(required), "%s vs %s", held, required)
		}
	}
	assert.False(t, models.Role("GHOST").HasPermissionLevel(models.RoleStudent))
}

func TestAuthzResolve(t *testing.T) {
	f := newTenantFixture(t)
	f.addUser(t, "alice", models.RoleStudent, true)
	f.addUser(t, "dormant", models.RoleInstructor, false)

	_, err := f.authz.Resolve(f.ctx, models.AnonymousIdentity)
	assert.True(t, appErrors.Is(err, appErrors.ErrUserNotAuthenticated))

	_, err = f.authz.Resolve(f.ctx, "")
	assert.True(t, appErrors.Is(err, appErrors.ErrUserNotAuthenticated))

	_, err = f.authz.Resolve(f.ctx, "stranger")
	assert.True(t, appErrors.Is(err, appErrors.ErrUserNotAuthenticated))

	_, err = f.authz.Resolve(f.ctx, "dormant")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	user, err := f.authz.Resolve(f.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
}

func TestAuthzBootstrapAdminAlwaysResolves(t *testing.T) {
	f := newTenantFixture(t)

	_, err := f.users.Mutate(f.ctx, testRoot, func(u *models.User) error {
		u.IsActive = false
		u.Role = models.RoleStudent
		return nil
	})
	require.NoError(t, err)

	user, err := f.authz.Resolve(f.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTenantAdmin, user.Role)
	assert.True(t, user.IsActive)
	assert.True(t, f.authz.IsAdmin(f.ctx, testRoot))
}

func TestAuthzLevelGuards(t *testing.T) {
	f := newTenantFixture(t)
	f.addUser(t, "stu", models.RoleStudent, true)
	f.addUser(t, "ins", models.RoleInstructor, true)
	f.addUser(t, "adm", models.RoleAdmin, true)

	_, err := f.authz.RequireTeacher(f.ctx, "stu")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	_, err = f.authz.RequireTeacher(f.ctx, "ins")
	assert.NoError(t, err)

	_, err = f.authz.RequireAdmin(f.ctx, "ins")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	_, err = f.authz.RequireAdmin(f.ctx, "adm")
	assert.NoError(t, err)

	_, err = f.authz.RequireStudent(f.ctx, "stu")
	assert.NoError(t, err)

	snapshot := f.metrics.Snapshot()
	assert.Equal(t, uint64(3), snapshot.AuthzAllowed)
	assert.Equal(t, uint64(2), snapshot.AuthzDenied)
}

func TestAuthzCanAccessUserData(t *testing.T) {
	f := newTenantFixture(t)
	f.addUser(t, "stu", models.RoleStudent, true)
	f.addUser(t, "stu2", models.RoleStudent, true)
	f.addUser(t, "ins", models.RoleInstructor, true)
	f.addUser(t, "ins2", models.RoleInstructor, true)
	f.addUser(t, "adm", models.RoleAdmin, true)

	cases := []struct {
		name   string
		caller string
		target string
		kind   *appErrors.Error
	}{
		{"admin reads anyone", "adm", "ins", nil},
		{"self", "stu", "stu", nil},
		{"student reads other student", "stu", "stu2", appErrors.ErrAccessDenied},
		{"instructor reads student", "ins", "stu", nil},
		{"instructor reads instructor", "ins", "ins2", appErrors.ErrAccessDenied},
		{"instructor reads unknown", "ins", "nobody", appErrors.ErrNotFound},
		{"anonymous", models.AnonymousIdentity, "stu", appErrors.ErrUserNotAuthenticated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.authz.CanAccessUserData(f.ctx, tc.caller, tc.target)
			if tc.kind == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, appErrors.Is(err, tc.kind), "got %v", err)
		})
	}
}

func TestAuthzCanModifyUser(t *testing.T) {
	f := newTenantFixture(t)
	f.addUser(t, "stu", models.RoleStudent, true)
	f.addUser(t, "ins", models.RoleInstructor, true)
	f.addUser(t, "adm", models.RoleAdmin, true)

	assert.NoError(t, f.authz.CanModifyUser(f.ctx, "adm", "stu"))
	assert.True(t, appErrors.Is(f.authz.CanModifyUser(f.ctx, "ins", "stu"), appErrors.ErrUnauthorized))
	assert.True(t, appErrors.Is(f.authz.CanModifyUser(f.ctx, "adm", testRoot), appErrors.ErrInsufficientPermissions))
	assert.True(t, appErrors.Is(f.authz.CanModifyUser(f.ctx, "adm", "ghost"), appErrors.ErrNotFound))
	assert.NoError(t, f.authz.CanModifyUser(f.ctx, testRoot, "adm"))
}

func TestAuthzCanAssignRole(t *testing.T) {
	f := newTenantFixture(t)
	f.addUser(t, "ins", models.RoleInstructor, true)
	f.addUser(t, "adm", models.RoleAdmin, true)

	for _, role := range models.Roles() {
		assert.NoError(t, f.authz.CanAssignRole(f.ctx, testRoot, role), role)
	}
	assert.NoError(t, f.authz.CanAssignRole(f.ctx, "adm", models.RoleAdmin))
	assert.True(t, appErrors.Is(f.authz.CanAssignRole(f.ctx, "adm", models.RoleTenantAdmin), appErrors.ErrInvalidRoleAssignment))
	assert.True(t, appErrors.Is(f.authz.CanAssignRole(f.ctx, "ins", models.RoleStudent), appErrors.ErrInvalidRoleAssignment))
	assert.True(t, appErrors.Is(f.authz.CanAssignRole(f.ctx, testRoot, models.Role("OWNER")), appErrors.ErrInvalidRole))
}

func TestAuthzCanModifyCourse(t *testing.T) {
	f := newTenantFixture(t)
	f.addUser(t, "ins", models.RoleInstructor, true)
	f.addUser(t, "ins2", models.RoleInstructor, true)
	f.addUser(t, "adm", models.RoleAdmin, true)
	course := f.addCourse(t, "cs101", "ins")

	assert.NoError(t, f.authz.CanModifyCourse(f.ctx, "ins", &course))
	assert.NoError(t, f.authz.CanModifyCourse(f.ctx, "adm", &course))
	assert.True(t, appErrors.Is(f.authz.CanModifyCourse(f.ctx, "ins2", &course), appErrors.ErrUnauthorized))
}

func TestAuthzCanPerformAction(t *testing.T) {
	f := newTenantFixture(t)
	f.addUser(t, "ins", models.RoleInstructor, true)
	f.addUser(t, "adm", models.RoleAdmin, true)

	assert.NoError(t, f.authz.CanPerformAction(f.ctx, "ins", ActionCreateCourse))
	assert.NoError(t, f.authz.CanPerformAction(f.ctx, "ins", ActionViewAllUsers))
	assert.True(t, appErrors.Is(f.authz.CanPerformAction(f.ctx, "ins", ActionViewAllGrades), appErrors.ErrUnauthorized))
	assert.True(t, appErrors.Is(f.authz.CanPerformAction(f.ctx, "adm", ActionManageTenantSettings), appErrors.ErrUnauthorized))
	assert.NoError(t, f.authz.CanPerformAction(f.ctx, testRoot, ActionManageTenantSettings))
	assert.True(t, appErrors.Is(f.authz.CanPerformAction(f.ctx, "adm", "launch_rockets"), appErrors.ErrValidation))
}

func TestAuthzSummary(t *testing.T) {
	f := newTenantFixture(t)
	f.addUser(t, "ins", models.RoleInstructor, true)

	summary, err := f.authz.Summary(f.ctx, "ins")
	require.NoError(t, err)
	assert.Equal(t, &models.AuthzSummary{UserID: "ins", Role: models.RoleInstructor, IsTeacher: true, IsStudent: true}, summary)

	assert.False(t, f.authz.IsStudent(f.ctx, models.AnonymousIdentity))
}
