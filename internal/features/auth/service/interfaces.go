package service

import (
	"context"

	"viralsafe-backend/internal/features/auth/models"
	usermodels "viralsafe-backend/internal/features/user/models"
)

type AuthService interface {
	RequestNonce(ctx context.Context, wallet string) (*models.NonceResponse, error)
	VerifySignature(ctx context.Context, req *models.VerifyRequest) (*models.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error)
	Logout(ctx context.Context, userID string) error
	Authenticate(ctx context.Context, accessToken string) (*usermodels.User, error)
	Status() *models.StatusResponse
}
