package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"viralsafe-backend/internal/common/errors"
	"viralsafe-backend/internal/features/user/models"
)

const (
	UserKey          = "user"
	UserIDKey        = "user_id"
	WalletAddressKey = "wallet_address"
)

// Authenticator resolves a bearer access token to the active user it was issued for.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// RequireAuth rejects requests without a valid bearer access token.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			_ = c.Error(errors.NewUnauthenticatedError("missing bearer token"))
			c.Abort()
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid bearer token is present and ignores it otherwise.
func OptionalAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if user, err := auth.Authenticate(c.Request.Context(), token); err == nil {
				setUser(c, user)
			}
		}
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			_ = c.Error(errors.NewUnauthenticatedError("authentication required"))
			c.Abort()
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		_ = c.Error(errors.NewForbiddenError("insufficient role").WithUserID(user.ID))
		c.Abort()
	}
}

// CurrentUser returns the user attached by RequireAuth or OptionalAuth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(UserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// GetUserID returns the authenticated user's id, or "".
func GetUserID(c *gin.Context) string {
	if id, ok := c.Get(UserIDKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

func setUser(c *gin.Context, user *models.User) {
	c.Set(UserKey, user)
	c.Set(UserIDKey, user.ID)
	c.Set(WalletAddressKey, user.WalletAddress)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireBackends answers 503 while ready reports false.
func RequireBackends(ready func() bool, component string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ready() {
			_ = c.Error(errors.NewServiceUnavailableError(component))
			c.Abort()
			return
		}
		c.Next()
	}
}
