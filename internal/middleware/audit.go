package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-platform/internal/service"
)

// Audit records successful mutations handled by the wrapped route.
func Audit(audit *service.AuditService, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		status := c.Writer.Status()
		if status >= 400 {
			return
		}

		audit.Record(c.Request.Context(), service.AuditEntry{
			Caller:     CallerFromContext(c),
			Action:     action,
			Resource:   resource,
			ResourceID: c.Param("id"),
			Success:    true,
			NewValues: map[string]interface{}{
				"path":    c.FullPath(),
				"method":  c.Request.Method,
				"status":  status,
				"latency": time.Since(start).Milliseconds(),
			},
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
	}
}
