package models

import (
	"strings"

	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

// Role is a position in the tenant role hierarchy.
type Role string

const (
	RoleStudent     Role = "STUDENT"
	RoleInstructor  Role = "INSTRUCTOR"
	RoleAdmin       Role = "ADMIN"
	RoleTenantAdmin Role = "TENANT_ADMIN"
)

// roleLevels is the single source of truth for role ordering.
var roleLevels = map[Role]int{
	RoleStudent:     1,
	RoleInstructor:  2,
	RoleAdmin:       3,
	RoleTenantAdmin: 4,
}

// Roles lists every role from lowest to highest.
func Roles() []Role {
	return []Role{RoleStudent, RoleInstructor, RoleAdmin, RoleTenantAdmin}
}

// Level returns the numeric level of r, 0 for unknown roles.
func (r Role) Level() int {
	return roleLevels[r]
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// HasPermissionLevel reports whether r is at or above required.
func (r Role) HasPermissionLevel(required Role) bool {
	return r.Valid() && r.Level() >= required.Level()
}

// ParseRole accepts the role names used by university import files and the API.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "student":
		return RoleStudent, nil
	case "instructor", "faculty", "teacher":
		return RoleInstructor, nil
	case "admin", "administrator":
		return RoleAdmin, nil
	case "tenant_admin", "tenantadmin":
		return RoleTenantAdmin, nil
	}
	return "", appErrors.Clone(appErrors.ErrInvalidRole, "invalid role: "+raw)
}
