package repository

import (
	"context"
	"errors"

	"viralsafe-backend/internal/features/auth/models"
)

var ErrNonceNotFound = errors.New("nonce not found")

type NonceRepository interface {
	// Upsert stores the nonce for its wallet, replacing any previous one.
	Upsert(ctx context.Context, nonce *models.Nonce) error

	// Get returns the stored nonce, expired or not, or ErrNonceNotFound.
	Get(ctx context.Context, wallet string) (*models.Nonce, error)

	// Consume deletes the wallet's nonce only if it still equals nonce.
	// Returns ErrNonceNotFound when nothing matched.
	Consume(ctx context.Context, wallet, nonce string) error
}
