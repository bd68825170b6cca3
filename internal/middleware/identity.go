package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/service"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
	"github.com/noah-isme/lms-platform/pkg/logger"
	"github.com/noah-isme/lms-platform/pkg/response"
)

// ContextCallerKey is the gin context key storing the caller identity.
const ContextCallerKey = logger.CallerKey

// ContextClaimsKey stores the validated token claims when a token was sent.
const ContextClaimsKey = "callerClaims"

// Identity resolves the caller from a bearer token. Requests without a token
// continue as the anonymous identity and authorization decides what they may
// do; a token that is present but malformed or invalid is rejected.
func Identity(identities *service.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Set(ContextCallerKey, models.AnonymousIdentity)
			c.Next()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUserNotAuthenticated, "invalid authorization header"))
			return
		}

		claims, err := identities.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextCallerKey, claims.Subject)
		c.Next()
	}
}

// RequireIdentity rejects anonymous callers before the handler runs.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerFromContext(c) == models.AnonymousIdentity {
			response.Error(c, appErrors.ErrUserNotAuthenticated)
			return
		}
		c.Next()
	}
}

// CallerFromContext returns the identity set by Identity, or the anonymous
// identity when none was resolved.
func CallerFromContext(c *gin.Context) string {
	value, ok := c.Get(ContextCallerKey)
	if !ok {
		return models.AnonymousIdentity
	}
	caller, ok := value.(string)
	if !ok || caller == "" {
		return models.AnonymousIdentity
	}
	return caller
}
