package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"viralsafe-backend/internal/features/user/models"
	"viralsafe-backend/internal/features/user/repository"
)

// Repository keeps users in process memory. Used by tests and STORE_BACKEND=memory.
type Repository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewRepository() *Repository {
	return &Repository{users: make(map[string]*models.User)}
}

var _ repository.UserRepository = (*Repository)(nil)

func clone(u *models.User) *models.User {
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func (r *Repository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.WalletAddress == user.WalletAddress || u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	user.ID = uuid.New().String()
	r.users[user.ID] = clone(user)
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return clone(u), nil
}

func (r *Repository) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *Repository) GetByWallet(_ context.Context, wallet string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.WalletAddress == wallet })
}

func (r *Repository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r *Repository) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	if err == repository.ErrUserNotFound {
		return false, nil
	}
	return err == nil, err
}

// update runs fn on the stored user under the write lock.
func (r *Repository) update(id string, fn func(u *models.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	return fn(u)
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, upd *models.ProfileUpdate, now time.Time) (*models.User, error) {
	err := r.update(id, func(u *models.User) error {
		if upd.DisplayName != nil {
			u.DisplayName = *upd.DisplayName
		}
		if upd.Bio != nil {
			u.Bio = *upd.Bio
		}
		if upd.Email != nil {
			u.Email = *upd.Email
		}
		if upd.AvatarURL != nil {
			u.AvatarURL = *upd.AvatarURL
		}
		if upd.BannerURL != nil {
			u.BannerURL = *upd.BannerURL
		}
		if upd.SocialLinks != nil {
			u.SocialLinks = *upd.SocialLinks
		}
		if upd.Preferences != nil {
			u.Preferences = *upd.Preferences
		}
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *Repository) UpdateStatus(_ context.Context, id string, status models.Status, now time.Time) error {
	return r.update(id, func(u *models.User) error {
		u.Status = status
		u.UpdatedAt = now
		return nil
	})
}

func (r *Repository) UpdateRole(_ context.Context, id string, role models.Role, now time.Time) error {
	return r.update(id, func(u *models.User) error {
		u.Role = role
		u.IsCreator = role == models.RoleCreator || u.IsCreator
		u.UpdatedAt = now
		return nil
	})
}

func (r *Repository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *models.User) error {
		u.LastLogin = &at
		return nil
	})
}

func (r *Repository) SetRefreshToken(_ context.Context, id, token string) error {
	return r.update(id, func(u *models.User) error {
		u.RefreshToken = token
		return nil
	})
}

func (r *Repository) SwapRefreshToken(_ context.Context, id, old, next string) error {
	return r.update(id, func(u *models.User) error {
		if old == "" || u.RefreshToken != old {
			return repository.ErrTokenMismatch
		}
		u.RefreshToken = next
		return nil
	})
}

func (r *Repository) DebitTokens(_ context.Context, id string, amount decimal.Decimal) error {
	return r.update(id, func(u *models.User) error {
		if u.TokenBalance.LessThan(amount) {
			return repository.ErrInsufficientBalance
		}
		u.TokenBalance = u.TokenBalance.Sub(amount)
		return nil
	})
}

func (r *Repository) CreditTokens(_ context.Context, id string, amount decimal.Decimal) error {
	return r.update(id, func(u *models.User) error {
		u.TokenBalance = u.TokenBalance.Add(amount)
		return nil
	})
}

func (r *Repository) IncrementStat(_ context.Context, id string, stat models.Stat, delta int64) error {
	return r.update(id, func(u *models.User) error {
		switch stat {
		case models.StatTotalPosts:
			u.Stats.TotalPosts += delta
		case models.StatTotalVotesReceived:
			u.Stats.TotalVotesReceived += delta
		case models.StatTotalVotesGiven:
			u.Stats.TotalVotesGiven += delta
		case models.StatTotalNFTsMinted:
			u.Stats.TotalNFTsMinted += delta
		case models.StatViralPosts:
			u.Stats.ViralPosts += delta
		}
		return nil
	})
}

func (r *Repository) IncrementNFTCount(_ context.Context, id string, delta int64) error {
	return r.update(id, func(u *models.User) error {
		u.NFTCount += delta
		return nil
	})
}
