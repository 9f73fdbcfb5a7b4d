package service

import (
	"context"

	"viralsafe-backend/internal/features/user/models"
)

type UserService interface {
	GetUser(ctx context.Context, id string) (*models.UserResponse, error)
	GetPublicProfile(ctx context.Context, username string) (*models.PublicProfile, error)
	UpdateProfile(ctx context.Context, userID string, upd *models.ProfileUpdate) (*models.UserResponse, error)
	UpdateUserStatus(ctx context.Context, actor *models.User, id string, status models.Status) (*models.UserResponse, error)
	UpdateUserRole(ctx context.Context, actor *models.User, id string, role models.Role) (*models.UserResponse, error)
}
