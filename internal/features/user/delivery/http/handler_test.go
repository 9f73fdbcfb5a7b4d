package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viralsafe-backend/internal/common/errors"
	"viralsafe-backend/internal/common/middleware"
	"viralsafe-backend/internal/features/user/models"
	"viralsafe-backend/internal/features/user/repository/memory"
	"viralsafe-backend/internal/features/user/service"
)

type tokenAuth map[string]*models.User

func (a tokenAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	if u, ok := a[token]; ok {
		return u, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidToken, "Invalid token")
}

type fixture struct {
	router *gin.Engine
	users  map[string]*models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewRepository()
	auth := tokenAuth{}
	for _, u := range []*models.User{
		{WalletAddress: "0x01", Username: "alice", Role: models.RoleUser},
		{WalletAddress: "0x02", Username: "mod", Role: models.RoleModerator},
		{WalletAddress: "0x03", Username: "root", Role: models.RoleAdmin},
	} {
		u.Status = models.StatusActive
		u.Preferences = models.DefaultPreferences()
		require.NoError(t, repo.Create(context.Background(), u))
		auth[u.Username] = u
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(), middleware.ErrorHandler())
	NewUserHandler(service.NewUserService(repo, nil), auth).RegisterRoutes(r.Group("/api/v1"))
	return &fixture{router: r, users: auth}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestGetProfile(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/users/alice", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var profile models.PublicProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, "alice", profile.Username)
	assert.NotContains(t, w.Body.String(), "wallet_address")

	w = f.do(t, http.MethodGet, "/api/v1/users/nobody", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateMe(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPut, "/api/v1/users/me", map[string]string{"bio": "hello"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/users/me", map[string]string{"bio": "hello", "display_name": "Alice"}, "alice")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "hello", resp.Bio)
	assert.Equal(t, "Alice", resp.DisplayName)

	w = f.do(t, http.MethodPut, "/api/v1/users/me", map[string]string{"email": "nope"}, "alice")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStaffRoutes(t *testing.T) {
	f := newFixture(t)
	alice := f.users["alice"].ID

	w := f.do(t, http.MethodPut, "/api/v1/users/"+alice+"/status", models.StatusUpdate{Status: models.StatusSuspended}, "alice")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/users/"+alice+"/status", models.StatusUpdate{Status: models.StatusSuspended}, "mod")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusSuspended, resp.Status)

	w = f.do(t, http.MethodPut, "/api/v1/users/"+alice+"/role", models.RoleUpdate{Role: models.RoleCreator}, "mod")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/users/"+alice+"/role", models.RoleUpdate{Role: models.RoleCreator}, "root")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.RoleCreator, resp.Role)
	assert.True(t, resp.IsCreator)

	w = f.do(t, http.MethodPut, "/api/v1/users/"+alice+"/role", map[string]string{}, "root")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/users/alice/status", models.StatusUpdate{Status: models.StatusActive}, "mod")
	assert.Equal(t, http.StatusNotFound, w.Code, "staff routes address users by id")
}
