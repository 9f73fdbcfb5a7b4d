package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"viralsafe-backend/internal/features/auth/models"
	"viralsafe-backend/internal/features/auth/repository"
)

const (
	keyPrefixNonce = "auth:nonce:"
	// expiredGrace keeps an expired nonce readable so it reports as expired rather than missing.
	expiredGrace = 10 * time.Minute
)

// consumeScript deletes the key only when its nonce field matches ARGV[1].
var consumeScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'nonce') == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type Repository struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRepository(client redis.UniversalClient) *Repository {
	return &Repository{client: client, now: time.Now}
}

var _ repository.NonceRepository = (*Repository)(nil)

func nonceKey(wallet string) string {
	return keyPrefixNonce + wallet
}

func (r *Repository) Upsert(ctx context.Context, nonce *models.Nonce) error {
	key := nonceKey(nonce.WalletAddress)
	ttl := nonce.ExpiresAt.Sub(r.now()) + expiredGrace
	if ttl <= 0 {
		ttl = expiredGrace
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"nonce", nonce.Nonce,
			"message", nonce.Message,
			"created_at", nonce.CreatedAt.UTC().Format(time.RFC3339Nano),
			"expires_at", nonce.ExpiresAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save nonce: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, wallet string) (*models.Nonce, error) {
	fields, err := r.client.HGetAll(ctx, nonceKey(wallet)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	if len(fields) == 0 || fields["nonce"] == "" {
		return nil, repository.ErrNonceNotFound
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse nonce created_at: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse nonce expires_at: %w", err)
	}

	return &models.Nonce{
		WalletAddress: wallet,
		Nonce:         fields["nonce"],
		Message:       fields["message"],
		CreatedAt:     createdAt,
		ExpiresAt:     expiresAt,
	}, nil
}

func (r *Repository) Consume(ctx context.Context, wallet, nonce string) error {
	deleted, err := consumeScript.Run(ctx, r.client, []string{nonceKey(wallet)}, nonce).Int64()
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNonceNotFound
	}
	return nil
}
