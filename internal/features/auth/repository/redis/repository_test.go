package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viralsafe-backend/internal/features/auth/models"
	"viralsafe-backend/internal/features/auth/repository"
)

func newRepo(t *testing.T) (*Repository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRepository(rdb), mr
}

func TestNonceRoundTrip(t *testing.T) {
	repo, mr := newRepo(t)
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	n := &models.Nonce{
		WalletAddress: "0xabc",
		Nonce:         "deadbeef",
		Message:       "sign me\nplease",
		CreatedAt:     now,
		ExpiresAt:     now.Add(5 * time.Minute),
	}
	require.NoError(t, repo.Upsert(ctx, n))

	got, err := repo.Get(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, n.Nonce, got.Nonce)
	assert.Equal(t, n.Message, got.Message)
	assert.True(t, n.ExpiresAt.Equal(got.ExpiresAt))

	assert.Equal(t, 5*time.Minute+expiredGrace, mr.TTL(nonceKey("0xabc")))
}

func TestNonceUpsertReplaces(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Upsert(ctx, &models.Nonce{WalletAddress: "0xabc", Nonce: "one", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, repo.Upsert(ctx, &models.Nonce{WalletAddress: "0xabc", Nonce: "two", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))

	got, err := repo.Get(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "two", got.Nonce)
}

func TestNonceConsumeIsCompareAndDelete(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Upsert(ctx, &models.Nonce{WalletAddress: "0xabc", Nonce: "n1", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))

	assert.ErrorIs(t, repo.Consume(ctx, "0xabc", "other"), repository.ErrNonceNotFound)
	require.NoError(t, repo.Consume(ctx, "0xabc", "n1"))
	assert.ErrorIs(t, repo.Consume(ctx, "0xabc", "n1"), repository.ErrNonceNotFound)

	_, err := repo.Get(ctx, "0xabc")
	assert.ErrorIs(t, err, repository.ErrNonceNotFound)
}
