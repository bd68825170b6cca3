package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/service"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
	"github.com/noah-isme/lms-platform/pkg/response"
)

// UserHandler manages tenant users and authorization introspection.
type UserHandler struct {
	users *service.UserService
	authz *service.AuthzService
}

// NewUserHandler constructs handler.
func NewUserHandler(users *service.UserService, authz *service.AuthzService) *UserHandler {
	return &UserHandler{users: users, authz: authz}
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// Register godoc
// @Summary Register user
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body service.RegisterUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.RegisterUser(c.Request.Context(), callerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// List godoc
// @Summary List users visible to the caller
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context(), callerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, users, len(users))
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// Names godoc
// @Summary Display names for a set of user ids
// @Tags Users
// @Produce json
// @Param ids query string true "Comma separated user ids"
// @Success 200 {object} response.Envelope
// @Router /users/names [get]
func (h *UserHandler) Names(c *gin.Context) {
	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	names, err := h.users.PublicUserNames(c.Request.Context(), callerFromContext(c), ids)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, names)
}

// Update godoc
// @Summary Update user
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body service.UpdateUserRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /users/{id} [patch]
func (h *UserHandler) Update(c *gin.Context) {
	var req service.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.UpdateUser(c.Request.Context(), callerFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// UpdateRole godoc
// @Summary Change a user's role
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body updateRoleRequest true "Role payload"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/role [put]
func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req updateRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	user, err := h.users.UpdateUserRole(c.Request.Context(), callerFromContext(c), c.Param("id"), role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// Deactivate godoc
// @Summary Deactivate user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/deactivate [post]
func (h *UserHandler) Deactivate(c *gin.Context) {
	user, err := h.users.DeactivateUser(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// Reactivate godoc
// @Summary Reactivate user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/reactivate [post]
func (h *UserHandler) Reactivate(c *gin.Context) {
	user, err := h.users.ReactivateUser(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// Me godoc
// @Summary Current caller's account
// @Tags Authz
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me [get]
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.authz.WhoAmI(c.Request.Context(), callerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// Summary godoc
// @Summary Caller's role flags
// @Tags Authz
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /authz/summary [get]
func (h *UserHandler) Summary(c *gin.Context) {
	summary, err := h.authz.Summary(c.Request.Context(), callerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// CanPerform godoc
// @Summary Whether the caller may perform a named action
// @Tags Authz
// @Produce json
// @Param action path string true "Action name"
// @Success 200 {object} response.Envelope
// @Router /authz/actions/{action} [get]
func (h *UserHandler) CanPerform(c *gin.Context) {
	action := c.Param("action")
	err := h.authz.CanPerformAction(c.Request.Context(), callerFromContext(c), action)
	if appErrors.Is(err, appErrors.ErrValidation) {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"action": action, "allowed": err == nil})
}

// CanAccessUser godoc
// @Summary Whether the caller may read a user's data
// @Tags Authz
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /authz/users/{id} [get]
func (h *UserHandler) CanAccessUser(c *gin.Context) {
	ctx := c.Request.Context()
	caller := callerFromContext(c)
	target := c.Param("id")
	response.OK(c, gin.H{
		"user_id":    target,
		"can_access": h.authz.CanAccessUserData(ctx, caller, target) == nil,
		"can_modify": h.authz.CanModifyUser(ctx, caller, target) == nil,
	})
}
