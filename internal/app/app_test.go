package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viralsafe-backend/internal/common/config"
	"viralsafe-backend/internal/platform/events"
)

func testConfig(redisURL string) *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "ViralSafe"
	cfg.Store = "memory"
	cfg.Redis.URL = redisURL
	cfg.Redis.CacheTTL = time.Minute
	cfg.Auth.SecretKey = "test-secret"
	cfg.Auth.Algorithm = "HS256"
	cfg.Auth.AccessTokenExpireMinutes = 30
	cfg.Auth.RefreshTokenExpireDays = 30
	cfg.Auth.NonceTTL = 5 * time.Minute
	cfg.Auth.NonceStore = "mongo"
	cfg.Auth.SignupTokenGrant = decimal.NewFromInt(100)
	cfg.Voting.ViralThreshold = 1000
	cfg.Voting.UpVoteCost = decimal.NewFromInt(1)
	cfg.Voting.DownVoteCost = decimal.NewFromInt(1)
	cfg.Voting.ViralVoteCost = decimal.NewFromInt(10)
	cfg.Events.Backend = "redis"
	cfg.Events.Stream = "nft:mint_requests"
	cfg.Events.ResultStream = "nft:mint_results"
	cfg.Events.ConsumerGroup = "viralsafe_api"
	return cfg
}

func TestNew_MemoryStoreWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	a, err := New(ctx, testConfig("redis://"+mr.Addr()+"/0"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })

	assert.True(t, a.StoreReady())
	assert.NotNil(t, a.Auth)
	assert.NotNil(t, a.Users)
	assert.NotNil(t, a.Posts)
	assert.NotNil(t, a.Cache)
	assert.IsType(t, &events.StreamPublisher{}, a.Publisher)
	assert.NotNil(t, a.mintWorker)

	assert.Nil(t, a.DatabaseBackend().Check, "memory store has no database to ping")
	cacheBackend := a.CacheBackend()
	require.NotNil(t, cacheBackend.Check)
	_, err = cacheBackend.Check(ctx)
	assert.NoError(t, err)
}

func TestNew_WithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	a, err := New(context.Background(), testConfig("redis://"+addr+"/0"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })

	assert.True(t, a.StoreReady())
	assert.Nil(t, a.Cache)
	assert.Nil(t, a.mintWorker)
	assert.IsType(t, &events.LogPublisher{}, a.Publisher)
	assert.Nil(t, a.CacheBackend().Check)
}

func TestNew_UnreachableMongoDegrades(t *testing.T) {
	cfg := testConfig("redis://127.0.0.1:1/0")
	cfg.Store = "mongo"
	cfg.Mongo.URL = "mongodb://127.0.0.1:1"
	cfg.Mongo.Database = "viralsafe_test"
	cfg.Mongo.ConnectTimeout = 300 * time.Millisecond

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })

	assert.False(t, a.StoreReady())
	assert.Nil(t, a.Mongo)
	assert.Nil(t, a.Posts)
	assert.Nil(t, a.DatabaseBackend().Check, "a store that never came up reports not_configured")
	assert.IsType(t, &events.LogPublisher{}, a.Publisher)
}

func TestNew_BadSigningAlgorithm(t *testing.T) {
	cfg := testConfig("redis://127.0.0.1:1/0")
	cfg.Auth.Algorithm = "RS256"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
