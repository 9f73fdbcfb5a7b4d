package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"viralsafe-backend/internal/features/user/models"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrDuplicate           = errors.New("wallet address or username already registered")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrTokenMismatch       = errors.New("refresh token does not match")
)

type UserRepository interface {
	// Create assigns user.ID. Returns ErrDuplicate when the wallet or username is taken.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByWallet(ctx context.Context, wallet string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)

	UpdateProfile(ctx context.Context, id string, upd *models.ProfileUpdate, now time.Time) (*models.User, error)
	UpdateStatus(ctx context.Context, id string, status models.Status, now time.Time) error
	UpdateRole(ctx context.Context, id string, role models.Role, now time.Time) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	// SetRefreshToken replaces the stored refresh token; "" clears it.
	SetRefreshToken(ctx context.Context, id, token string) error
	// SwapRefreshToken replaces the stored token only if it still equals old.
	SwapRefreshToken(ctx context.Context, id, old, next string) error

	// DebitTokens subtracts amount only if the balance covers it.
	DebitTokens(ctx context.Context, id string, amount decimal.Decimal) error
	CreditTokens(ctx context.Context, id string, amount decimal.Decimal) error

	IncrementStat(ctx context.Context, id string, stat models.Stat, delta int64) error
	IncrementNFTCount(ctx context.Context, id string, delta int64) error
}
