package service

import (
	"context"

	"github.com/shopspring/decimal"

	"viralsafe-backend/internal/features/post/models"
	usermodels "viralsafe-backend/internal/features/user/models"
)

// TokenLedger moves voting tokens. The user repository satisfies it.
type TokenLedger interface {
	DebitTokens(ctx context.Context, userID string, amount decimal.Decimal) error
	CreditTokens(ctx context.Context, userID string, amount decimal.Decimal) error
}

// StatsRecorder bumps denormalised user counters. The user repository satisfies it.
type StatsRecorder interface {
	IncrementStat(ctx context.Context, userID string, stat usermodels.Stat, delta int64) error
	IncrementNFTCount(ctx context.Context, userID string, delta int64) error
}

type PostService interface {
	CreatePost(ctx context.Context, author *usermodels.User, req *models.CreatePostRequest) (*models.PostResponse, error)
	// GetPost counts a view for visible posts. viewer may be nil.
	GetPost(ctx context.Context, viewer *usermodels.User, id string) (*models.PostResponse, error)
	Feed(ctx context.Context, q models.FeedQuery) (*models.FeedResponse, error)
	UpdatePost(ctx context.Context, actor *usermodels.User, id string, req *models.UpdatePostRequest) (*models.PostResponse, error)
	ChangeStatus(ctx context.Context, actor *usermodels.User, id string, req *models.StatusChangeRequest) (*models.PostResponse, error)

	CastVote(ctx context.Context, voter *usermodels.User, postID string, voteType models.VoteType) (*models.VoteResponse, error)
	GetMyVote(ctx context.Context, voter *usermodels.User, postID string) (*models.MyVoteResponse, error)

	RequestMint(ctx context.Context, actor *usermodels.User, postID string) (*models.MintRequestResponse, error)
	RecordMint(ctx context.Context, postID string, req *models.RecordMintRequest) (*models.PostResponse, error)
	RecordTransfer(ctx context.Context, postID string, req *models.TransferRequest) (*models.PostResponse, error)
}
