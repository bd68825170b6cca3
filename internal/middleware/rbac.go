package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/service"
	"github.com/noah-isme/lms-platform/pkg/response"
)

// RequireRole guards a route group with the tenant's role hierarchy. Services
// repeat the finer-grained checks; this only stops callers below the floor.
func RequireRole(authz *service.AuthzService, role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CallerFromContext(c)
		var err error
		switch role {
		case models.RoleStudent:
			_, err = authz.RequireStudent(c.Request.Context(), caller)
		case models.RoleInstructor:
			_, err = authz.RequireTeacher(c.Request.Context(), caller)
		case models.RoleAdmin, models.RoleTenantAdmin:
			_, err = authz.RequireAdmin(c.Request.Context(), caller)
		default:
			_, err = authz.RequireAuthenticated(c.Request.Context(), caller)
		}
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Next()
	}
}

// RequireRouterAccess guards router mutations with the router admin list.
func RequireRouterAccess(access *service.RouterAccess) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := access.Authorize(CallerFromContext(c)); err != nil {
			response.Error(c, err)
			return
		}
		c.Next()
	}
}
