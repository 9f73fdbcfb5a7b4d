package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"viralsafe-backend/internal/common/errors"
	"viralsafe-backend/internal/common/middleware"
	"viralsafe-backend/internal/common/validation"
	"viralsafe-backend/internal/features/auth/models"
	"viralsafe-backend/internal/features/auth/service"
	usermapper "viralsafe-backend/internal/features/user/mapper"
	usermodels "viralsafe-backend/internal/features/user/models"
)

type Handler struct {
	service service.AuthService
}

func NewHandler(service service.AuthService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/request-nonce", h.RequestNonce)
		auth.POST("/verify-signature", h.VerifySignature)
		auth.POST("/refresh", h.Refresh)
		auth.GET("/status", h.Status)

		protected := auth.Group("")
		protected.Use(middleware.RequireAuth(h.service))
		protected.POST("/logout", h.Logout)
		protected.GET("/me", h.Me)
	}
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(validation.FromBindError(err, "Invalid request body"))
		return false
	}
	return true
}

// @Summary Request sign-in nonce
// @Description Issue a one-time challenge for the wallet to sign. Valid for 5 minutes.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.NonceRequest true "Wallet address"
// @Success 200 {object} models.NonceResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid wallet address"
// @Failure 500 {object} middleware.ErrorResponse "Internal server error"
// @Router /auth/request-nonce [post]
func (h *Handler) RequestNonce(c *gin.Context) {
	var req models.NonceRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.service.RequestNonce(c.Request.Context(), req.WalletAddress)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Verify signed nonce
// @Description Verify the wallet signature and sign in. New wallets must send user_data.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.VerifyRequest true "Signed challenge"
// @Success 200 {object} models.TokenResponse
// @Failure 400 {object} middleware.ErrorResponse "Expired or mismatched nonce, missing registration data"
// @Failure 401 {object} middleware.ErrorResponse "Invalid signature"
// @Failure 404 {object} middleware.ErrorResponse "Nonce not found"
// @Failure 409 {object} middleware.ErrorResponse "Username already taken"
// @Router /auth/verify-signature [post]
func (h *Handler) VerifySignature(c *gin.Context) {
	var req models.VerifyRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.service.VerifySignature(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Refresh tokens
// @Description Exchange a refresh token for a new token pair. The old refresh token stops working.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RefreshRequest true "Refresh token"
// @Success 200 {object} models.TokenResponse
// @Failure 401 {object} middleware.ErrorResponse "Invalid refresh token"
// @Router /auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Logout
// @Description Revoke the current refresh token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.MessageResponse
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Router /auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "Successfully logged out"})
}

// @Summary Current user
// @Description Get the authenticated user's profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} usermodels.UserResponse
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Router /auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(errors.NewUnauthenticatedError("user not loaded"))
		return
	}
	var resp *usermodels.UserResponse = usermapper.ToUserResponse(user)
	c.JSON(http.StatusOK, resp)
}

// @Summary Auth service status
// @Tags auth
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Router /auth/status [get]
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Status())
}
