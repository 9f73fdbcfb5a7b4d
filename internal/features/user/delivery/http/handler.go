package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"viralsafe-backend/internal/common/middleware"
	"viralsafe-backend/internal/common/validation"
	"viralsafe-backend/internal/features/user/models"
	"viralsafe-backend/internal/features/user/service"
)

type UserHandler struct {
	service service.UserService
	auth    middleware.Authenticator
}

func NewUserHandler(service service.UserService, auth middleware.Authenticator) *UserHandler {
	return &UserHandler{
		service: service,
		auth:    auth,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	{
		users.GET("/:username", h.GetProfile)
		users.PUT("/me", middleware.RequireAuth(h.auth), h.UpdateMe)
	}

	// Staff routes
	staff := router.Group("/users")
	staff.Use(middleware.RequireAuth(h.auth))
	{
		staff.PUT("/:id/status", middleware.RequireRole(models.RoleModerator, models.RoleAdmin), h.UpdateUserStatus)
		staff.PUT("/:id/role", middleware.RequireRole(models.RoleAdmin), h.UpdateUserRole)
	}
}

// @Summary Get public profile
// @Description Get the public profile of a user by username
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} models.PublicProfile
// @Failure 404 {object} middleware.ErrorResponse "User not found"
// @Failure 500 {object} middleware.ErrorResponse "Internal server error"
// @Router /users/{username} [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	profile, err := h.service.GetPublicProfile(c.Request.Context(), c.Param("username"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// @Summary Update current user
// @Description Update the authenticated user's profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profile body models.ProfileUpdate true "Profile fields to change"
// @Success 200 {object} models.UserResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid request"
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Router /users/me [put]
func (h *UserHandler) UpdateMe(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var input models.ProfileUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBindError(err, "Invalid request body"))
		return
	}

	resp, err := h.service.UpdateProfile(c.Request.Context(), user.ID, &input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Update user status
// @Description Update user status (moderator or admin)
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param status body models.StatusUpdate true "New status"
// @Success 200 {object} models.UserResponse "Updated user data"
// @Failure 400 {object} middleware.ErrorResponse "Invalid request"
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Failure 403 {object} middleware.ErrorResponse "Forbidden"
// @Failure 404 {object} middleware.ErrorResponse "User not found"
// @Router /users/{id}/status [put]
func (h *UserHandler) UpdateUserStatus(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)

	var input models.StatusUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBindError(err, "Invalid request body"))
		return
	}

	resp, err := h.service.UpdateUserStatus(c.Request.Context(), actor, c.Param("id"), input.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Update user role
// @Description Update user role (admin only)
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param role body models.RoleUpdate true "New role"
// @Success 200 {object} models.UserResponse "Updated user data"
// @Failure 400 {object} middleware.ErrorResponse "Invalid request"
// @Failure 403 {object} middleware.ErrorResponse "Forbidden - not an admin"
// @Failure 404 {object} middleware.ErrorResponse "User not found"
// @Router /users/{id}/role [put]
func (h *UserHandler) UpdateUserRole(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)

	var input models.RoleUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBindError(err, "Invalid request body"))
		return
	}

	resp, err := h.service.UpdateUserRole(c.Request.Context(), actor, c.Param("id"), input.Role)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
