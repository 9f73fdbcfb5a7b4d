package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"viralsafe-backend/internal/common/middleware"
	"viralsafe-backend/internal/common/validation"
	"viralsafe-backend/internal/features/post/models"
	"viralsafe-backend/internal/features/post/service"
	usermodels "viralsafe-backend/internal/features/user/models"
)

type PostHandler struct {
	service service.PostService
	auth    middleware.Authenticator
}

func NewPostHandler(service service.PostService, auth middleware.Authenticator) *PostHandler {
	return &PostHandler{
		service: service,
		auth:    auth,
	}
}

func (h *PostHandler) RegisterRoutes(router *gin.RouterGroup) {
	posts := router.Group("/posts")
	{
		posts.GET("", h.Feed)
		posts.GET("/:id", middleware.OptionalAuth(h.auth), h.GetPost)
	}

	authed := router.Group("/posts")
	authed.Use(middleware.RequireAuth(h.auth))
	{
		authed.POST("", h.CreatePost)
		authed.PUT("/:id", h.UpdatePost)
		authed.PUT("/:id/status", h.ChangeStatus)
		authed.POST("/:id/vote", h.Vote)
		authed.GET("/:id/vote", h.MyVote)
		authed.POST("/:id/nft/mint", h.RequestMint)

		// Minter callbacks
		authed.PUT("/:id/nft", middleware.RequireRole(usermodels.RoleAdmin), h.RecordMint)
		authed.POST("/:id/nft/transfer", middleware.RequireRole(usermodels.RoleAdmin), h.RecordTransfer)
	}
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(validation.FromBindError(err, "Invalid request body"))
		return false
	}
	return true
}

// @Summary Get feed
// @Description List visible posts. trending sorts by viral score, viral lists viral posts only.
// @Tags posts
// @Produce json
// @Param feed query string false "latest, trending or viral" default(latest)
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size (max 100)" default(20)
// @Param category query string false "Category"
// @Param hashtag query string false "Hashtag"
// @Param author query string false "Author user ID"
// @Param min_viral_score query int false "Minimum viral score"
// @Success 200 {object} models.FeedResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid query"
// @Router /posts [get]
func (h *PostHandler) Feed(c *gin.Context) {
	var q models.FeedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(validation.FromBindError(err, "Invalid query parameters"))
		return
	}

	resp, err := h.service.Feed(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get post
// @Description Get a post by ID and count a view
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} models.PostResponse
// @Failure 404 {object} middleware.ErrorResponse "Post not found"
// @Router /posts/{id} [get]
func (h *PostHandler) GetPost(c *gin.Context) {
	viewer, _ := middleware.CurrentUser(c)

	resp, err := h.service.GetPost(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Create post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param post body models.CreatePostRequest true "Post"
// @Success 201 {object} models.PostResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid request"
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Router /posts [post]
func (h *PostHandler) CreatePost(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req models.CreatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.service.CreatePost(c.Request.Context(), user, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Update post
// @Description Edit title, content, category or hashtags (author only)
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param post body models.UpdatePostRequest true "Fields to change"
// @Success 200 {object} models.PostResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid request"
// @Failure 403 {object} middleware.ErrorResponse "Not the author"
// @Failure 404 {object} middleware.ErrorResponse "Post not found"
// @Router /posts/{id} [put]
func (h *PostHandler) UpdatePost(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req models.UpdatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.service.UpdatePost(c.Request.Context(), user, c.Param("id"), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Change post status
// @Description Authors publish drafts, submit for review or remove. Moderators review, approve, reject or remove.
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param status body models.StatusChangeRequest true "Target status"
// @Success 200 {object} models.PostResponse
// @Failure 403 {object} middleware.ErrorResponse "Not permitted"
// @Failure 409 {object} middleware.ErrorResponse "Invalid status transition"
// @Router /posts/{id}/status [put]
func (h *PostHandler) ChangeStatus(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req models.StatusChangeRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.service.ChangeStatus(c.Request.Context(), user, c.Param("id"), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Vote on post
// @Description Spend tokens to vote once on a post. Crossing the viral threshold flags an NFT mint.
// @Tags votes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param vote body models.VoteRequest true "Vote type: up, down or viral"
// @Success 200 {object} models.VoteResponse
// @Failure 400 {object} middleware.ErrorResponse "Insufficient tokens or post not open for voting"
// @Failure 404 {object} middleware.ErrorResponse "Post not found"
// @Failure 409 {object} middleware.ErrorResponse "Already voted"
// @Router /posts/{id}/vote [post]
func (h *PostHandler) Vote(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req models.VoteRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.service.CastVote(c.Request.Context(), user, c.Param("id"), req.VoteType)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get my vote
// @Tags votes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} models.MyVoteResponse
// @Failure 404 {object} middleware.ErrorResponse "Post not found"
// @Router /posts/{id}/vote [get]
func (h *PostHandler) MyVote(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	resp, err := h.service.GetMyVote(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Request NFT mint
// @Description Author of an approved or viral post asks for it to be minted
// @Tags nft
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 202 {object} models.MintRequestResponse
// @Failure 403 {object} middleware.ErrorResponse "Not the author"
// @Failure 409 {object} middleware.ErrorResponse "Already requested or post not mintable"
// @Router /posts/{id}/nft/mint [post]
func (h *PostHandler) RequestMint(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	resp, err := h.service.RequestMint(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// @Summary Record minted NFT
// @Description Store the result of a completed mint (admin only)
// @Tags nft
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param mint body models.RecordMintRequest true "Mint result"
// @Success 200 {object} models.PostResponse
// @Failure 403 {object} middleware.ErrorResponse "Forbidden - not an admin"
// @Failure 409 {object} middleware.ErrorResponse "No pending mint request"
// @Router /posts/{id}/nft [put]
func (h *PostHandler) RecordMint(c *gin.Context) {
	var req models.RecordMintRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.service.RecordMint(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Record NFT transfer
// @Description Record a sale or transfer of a minted post NFT (admin only)
// @Tags nft
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param transfer body models.TransferRequest true "New owner and price"
// @Success 200 {object} models.PostResponse
// @Failure 403 {object} middleware.ErrorResponse "Forbidden - not an admin"
// @Failure 409 {object} middleware.ErrorResponse "Token not minted"
// @Router /posts/{id}/nft/transfer [post]
func (h *PostHandler) RecordTransfer(c *gin.Context) {
	var req models.TransferRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.service.RecordTransfer(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
