package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viralsafe-backend/internal/common/cache"
	"viralsafe-backend/internal/common/errors"
	"viralsafe-backend/internal/features/user/models"
	"viralsafe-backend/internal/features/user/repository/memory"
)

func strPtr(s string) *string { return &s }

func seedUser(t *testing.T, repo *memory.Repository, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		WalletAddress: "0x" + username,
		Username:      username,
		Role:          role,
		Status:        models.StatusActive,
		Preferences:   models.DefaultPreferences(),
		TokenBalance:  decimal.NewFromInt(100),
		CreatedAt:     time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func newCache(t *testing.T) *cache.CacheService {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewCacheService(rdb, time.Minute)
}

func TestGetPublicProfile(t *testing.T) {
	repo := memory.NewRepository()
	svc := NewUserService(repo, newCache(t))
	ctx := context.Background()

	u := seedUser(t, repo, "alice", models.RoleUser)

	profile, err := svc.GetPublicProfile(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, profile.ID)
	assert.Equal(t, "alice", profile.Username)

	_, err = svc.GetPublicProfile(ctx, "nobody")
	assert.Equal(t, errors.ErrCodeUserNotFound, errors.CodeOf(err))
}

func TestGetPublicProfile_ServedFromCache(t *testing.T) {
	repo := memory.NewRepository()
	svc := NewUserService(repo, newCache(t))
	ctx := context.Background()

	u := seedUser(t, repo, "carol", models.RoleUser)
	_, err := svc.GetPublicProfile(ctx, "carol")
	require.NoError(t, err)

	_, err = repo.UpdateProfile(ctx, u.ID, &models.ProfileUpdate{DisplayName: strPtr("Changed")}, time.Now())
	require.NoError(t, err)

	profile, err := svc.GetPublicProfile(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, profile.DisplayName, "second read hits the cache")

	require.NoError(t, repo.UpdateStatus(ctx, u.ID, models.StatusBanned, time.Now()))
	_, err = NewUserService(repo, nil).GetPublicProfile(ctx, "carol")
	assert.Equal(t, errors.ErrCodeUserNotFound, errors.CodeOf(err))
}

func TestUpdateProfile_InvalidatesCache(t *testing.T) {
	repo := memory.NewRepository()
	svc := NewUserService(repo, newCache(t))
	ctx := context.Background()

	u := seedUser(t, repo, "bob", models.RoleUser)

	_, err := svc.GetPublicProfile(ctx, "bob")
	require.NoError(t, err)

	resp, err := svc.UpdateProfile(ctx, u.ID, &models.ProfileUpdate{
		DisplayName: strPtr("  Bob the Builder "),
		Bio:         strPtr("builds things"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob the Builder", resp.DisplayName)

	profile, err := svc.GetPublicProfile(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob the Builder", profile.DisplayName)
	assert.Equal(t, "builds things", profile.Bio)
}

func TestUpdateProfile_Validation(t *testing.T) {
	repo := memory.NewRepository()
	svc := NewUserService(repo, nil)
	u := seedUser(t, repo, "carol", models.RoleUser)

	tests := []struct {
		name string
		upd  *models.ProfileUpdate
	}{
		{"email", &models.ProfileUpdate{Email: strPtr("not-an-email")}},
		{"avatar", &models.ProfileUpdate{AvatarURL: strPtr("ftp://x")}},
		{"bio", &models.ProfileUpdate{Bio: strPtr(string(make([]rune, 501)))}},
		{"theme", &models.ProfileUpdate{Preferences: &models.Preferences{Theme: "neon"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfile(context.Background(), u.ID, tt.upd)
			assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
		})
	}
}

func TestUpdateUserStatus(t *testing.T) {
	repo := memory.NewRepository()
	svc := NewUserService(repo, nil)
	ctx := context.Background()

	admin := seedUser(t, repo, "admin", models.RoleAdmin)
	mod := seedUser(t, repo, "mod", models.RoleModerator)
	user := seedUser(t, repo, "dave", models.RoleUser)
	require.NoError(t, repo.SetRefreshToken(ctx, user.ID, "refresh"))

	resp, err := svc.UpdateUserStatus(ctx, mod, user.ID, models.StatusBanned)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBanned, resp.Status)

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RefreshToken)

	_, err = svc.UpdateUserStatus(ctx, mod, admin.ID, models.StatusSuspended)
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))

	_, err = svc.UpdateUserStatus(ctx, admin, admin.ID, models.StatusSuspended)
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))

	_, err = svc.UpdateUserStatus(ctx, admin, user.ID, models.Status("frozen"))
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))

	_, err = svc.UpdateUserStatus(ctx, admin, "missing", models.StatusActive)
	assert.Equal(t, errors.ErrCodeUserNotFound, errors.CodeOf(err))
}

func TestUpdateUserRole(t *testing.T) {
	repo := memory.NewRepository()
	svc := NewUserService(repo, nil)
	ctx := context.Background()

	admin := seedUser(t, repo, "root", models.RoleAdmin)
	user := seedUser(t, repo, "erin", models.RoleUser)

	resp, err := svc.UpdateUserRole(ctx, admin, user.ID, models.RoleCreator)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCreator, resp.Role)
	assert.True(t, resp.IsCreator)

	_, err = svc.UpdateUserRole(ctx, admin, user.ID, models.Role("king"))
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
}
