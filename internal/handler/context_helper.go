package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-platform/internal/middleware"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
	"github.com/noah-isme/lms-platform/pkg/response"
)

func callerFromContext(c *gin.Context) string {
	return middleware.CallerFromContext(c)
}

// bindJSON decodes the body into dest and answers 400 on failure.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func queryBool(c *gin.Context, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, appErrors.Clone(appErrors.ErrValidation, "invalid "+key)
	}
	return v, nil
}
