package memory

import (
	"context"
	"sync"

	"viralsafe-backend/internal/features/auth/models"
	"viralsafe-backend/internal/features/auth/repository"
)

type Repository struct {
	mu     sync.Mutex
	nonces map[string]models.Nonce
}

func NewRepository() *Repository {
	return &Repository{nonces: make(map[string]models.Nonce)}
}

var _ repository.NonceRepository = (*Repository)(nil)

func (r *Repository) Upsert(_ context.Context, nonce *models.Nonce) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nonces[nonce.WalletAddress] = *nonce
	return nil
}

func (r *Repository) Get(_ context.Context, wallet string) (*models.Nonce, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nonces[wallet]
	if !ok {
		return nil, repository.ErrNonceNotFound
	}
	return &n, nil
}

func (r *Repository) Consume(_ context.Context, wallet, nonce string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nonces[wallet]
	if !ok || n.Nonce != nonce {
		return repository.ErrNonceNotFound
	}
	delete(r.nonces, wallet)
	return nil
}
