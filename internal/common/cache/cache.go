package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

const (
	postKeyPrefix    = "post:"
	feedKeyPrefix    = "feed:"
	profileKeyPrefix = "profile:"
)

func PostKey(postID string) string     { return postKeyPrefix + postID }
func ProfileKey(username string) string { return profileKeyPrefix + username }

func FeedKey(parts ...interface{}) string {
	key := feedKeyPrefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += fmt.Sprint(p)
	}
	return key
}

type CacheService struct {
	client     redis.UniversalClient
	defaultTTL time.Duration
}

func NewCacheService(client redis.UniversalClient, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client:     client,
		defaultTTL: defaultTTL,
	}
}

// Get decodes the cached JSON value at key into dest.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Set stores value as JSON; ttl <= 0 uses the service default.
func (c *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *CacheService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// DeletePattern removes every key matching pattern, scanning instead of KEYS.
func (c *CacheService) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return c.Delete(ctx, batch...)
}

func (c *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetOrSet reads key into dest, or calls loader, stores its result and decodes it into dest.
// Cache failures are not fatal: the loader result is still returned.
func (c *CacheService) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func() (interface{}, error)) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	}

	value, err := loader()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	_ = c.client.Set(ctx, key, data, ttl).Err()

	return json.Unmarshal(data, dest)
}

// InvalidatePost drops the cached post and every cached feed page.
func (c *CacheService) InvalidatePost(ctx context.Context, postID string) error {
	if err := c.Delete(ctx, PostKey(postID)); err != nil {
		return fmt.Errorf("failed to delete post %s: %w", postID, err)
	}
	if err := c.DeletePattern(ctx, feedKeyPrefix+"*"); err != nil {
		return fmt.Errorf("failed to delete feeds: %w", err)
	}
	return nil
}

func (c *CacheService) InvalidateProfile(ctx context.Context, username string) error {
	return c.Delete(ctx, ProfileKey(username))
}
