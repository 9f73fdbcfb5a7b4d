package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string `json:"name"`
	Score int64  `json:"score"`
}

func newCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheService(client, time.Minute), mr
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "post:p1", PostKey("p1"))
	assert.Equal(t, "profile:alice", ProfileKey("alice"))
	assert.Equal(t, "feed:trending:2:20", FeedKey("trending", 2, 20))
	assert.Equal(t, "feed:*", FeedKey("*"))
}

func TestGetSet(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	var got item
	assert.True(t, errors.Is(c.Get(ctx, "post:1", &got), ErrMiss))

	require.NoError(t, c.Set(ctx, "post:1", item{Name: "a", Score: 10}, 0))
	require.NoError(t, c.Get(ctx, "post:1", &got))
	assert.Equal(t, item{Name: "a", Score: 10}, got)
	assert.Equal(t, time.Minute, mr.TTL("post:1"))

	require.NoError(t, c.Set(ctx, "post:2", item{}, 5*time.Second))
	assert.Equal(t, 5*time.Second, mr.TTL("post:2"))

	ok, err := c.Exists(ctx, "post:2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetOrSet(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	calls := 0
	loader := func() (interface{}, error) {
		calls++
		return item{Name: "loaded"}, nil
	}

	var got item
	require.NoError(t, c.GetOrSet(ctx, "k", &got, 0, loader))
	require.NoError(t, c.GetOrSet(ctx, "k", &got, 0, loader))
	assert.Equal(t, "loaded", got.Name)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	err := c.GetOrSet(ctx, "other", &got, 0, func() (interface{}, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestInvalidatePost(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, PostKey("p1"), item{}, 0))
	require.NoError(t, c.Set(ctx, PostKey("p2"), item{}, 0))
	for i := 0; i < 150; i++ {
		require.NoError(t, c.Set(ctx, FeedKey("latest", i, 20), item{}, 0))
	}

	require.NoError(t, c.InvalidatePost(ctx, "p1"))
	assert.False(t, mr.Exists(PostKey("p1")))
	assert.True(t, mr.Exists(PostKey("p2")))
	assert.Equal(t, []string{PostKey("p2")}, mr.Keys())
}
