package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"viralsafe-backend/internal/common/logger"
)

const (
	CollectionUsers  = "users"
	CollectionPosts  = "posts"
	CollectionVotes  = "votes"
	CollectionNonces = "auth_nonces"
)

// nonceGrace keeps expired nonces around long enough to be reported as expired.
const nonceGrace = time.Hour

type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewClient(ctx context.Context, uri, database string, timeout time.Duration) (*Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetAppName("viralsafe-api").
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info().
		Str("database", database).
		Msg("MongoDB client initialized")

	return &Client{client: client, db: client.Database(database)}, nil
}

// Database возвращает экземпляр базы данных
func (c *Client) Database() *mongo.Database {
	return c.db
}

func (c *Client) Collection(name string) *mongo.Collection {
	return c.db.Collection(name)
}

// HealthCheck проверяет здоровье базы данных
func (c *Client) HealthCheck(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Close закрывает соединение с базой данных
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique and TTL indexes the repositories rely on.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		CollectionUsers: {
			{Keys: bson.D{{Key: "wallet_address", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollectionPosts: {
			{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "metrics.viral_score", Value: -1}}},
			{Keys: bson.D{{Key: "tags.hashtags", Value: 1}}},
			{Keys: bson.D{{Key: "tags.category", Value: 1}}},
		},
		CollectionVotes: {
			{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		CollectionNonces: {
			{Keys: bson.D{{Key: "wallet_address", Value: 1}}, Options: options.Index().SetUnique(true)},
			{
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(int32(nonceGrace.Seconds())),
			},
		},
	}

	for collection, models := range indexes {
		if _, err := c.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}

	logger.Info().Msg("MongoDB indexes ensured")
	return nil
}

// IsDuplicateKey reports whether err is a unique index violation.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
