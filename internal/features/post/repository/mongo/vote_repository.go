package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"viralsafe-backend/internal/features/post/models"
	"viralsafe-backend/internal/features/post/repository"
	mongoplatform "viralsafe-backend/internal/platform/mongo"
)

type voteRepository struct {
	votes *mongo.Collection
}

// NewVoteRepository relies on the unique (post_id, user_id) index created by EnsureIndexes.
func NewVoteRepository(db *mongo.Database) repository.VoteRepository {
	return &voteRepository{votes: db.Collection(mongoplatform.CollectionVotes)}
}

func (r *voteRepository) Create(ctx context.Context, vote *models.Vote) error {
	doc := voteDocument{
		ID:          primitive.NewObjectID(),
		UserID:      vote.UserID,
		UserWallet:  vote.UserWallet,
		PostID:      vote.PostID,
		VoteType:    string(vote.VoteType),
		TokensSpent: mongoplatform.ToDecimal128(vote.TokensSpent),
		CreatedAt:   vote.CreatedAt,
	}
	if _, err := r.votes.InsertOne(ctx, doc); err != nil {
		if mongoplatform.IsDuplicateKey(err) {
			return repository.ErrDuplicateVote
		}
		return fmt.Errorf("failed to create vote: %w", err)
	}
	vote.ID = doc.ID.Hex()
	return nil
}

func (r *voteRepository) Get(ctx context.Context, postID, userID string) (*models.Vote, error) {
	var doc voteDocument
	err := r.votes.FindOne(ctx, bson.M{"post_id": postID, "user_id": userID}).Decode(&doc)
	if err != nil {
		if mongoplatform.IsNoDocuments(err) {
			return nil, repository.ErrVoteNotFound
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return doc.toModel(), nil
}

func (r *voteRepository) Delete(ctx context.Context, id string) error {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok {
		return repository.ErrVoteNotFound
	}
	res, err := r.votes.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrVoteNotFound
	}
	return nil
}
