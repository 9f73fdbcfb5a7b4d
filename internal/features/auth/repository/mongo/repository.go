package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"viralsafe-backend/internal/features/auth/models"
	"viralsafe-backend/internal/features/auth/repository"
	mongoplatform "viralsafe-backend/internal/platform/mongo"
)

type Repository struct {
	nonces *mongo.Collection
}

// NewRepository stores nonces in auth_nonces; the TTL index on expires_at removes stale ones.
func NewRepository(db *mongo.Database) repository.NonceRepository {
	return &Repository{nonces: db.Collection(mongoplatform.CollectionNonces)}
}

func (r *Repository) Upsert(ctx context.Context, nonce *models.Nonce) error {
	_, err := r.nonces.ReplaceOne(ctx,
		bson.M{"wallet_address": nonce.WalletAddress},
		nonce,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save nonce: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, wallet string) (*models.Nonce, error) {
	var nonce models.Nonce
	if err := r.nonces.FindOne(ctx, bson.M{"wallet_address": wallet}).Decode(&nonce); err != nil {
		if mongoplatform.IsNoDocuments(err) {
			return nil, repository.ErrNonceNotFound
		}
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	return &nonce, nil
}

func (r *Repository) Consume(ctx context.Context, wallet, nonce string) error {
	res, err := r.nonces.DeleteOne(ctx, bson.M{"wallet_address": wallet, "nonce": nonce})
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNonceNotFound
	}
	return nil
}
