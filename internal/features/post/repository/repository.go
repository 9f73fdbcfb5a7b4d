package repository

import (
	"context"
	"errors"
	"time"

	"viralsafe-backend/internal/features/post/models"
)

var (
	ErrPostNotFound         = errors.New("post not found")
	ErrVoteNotFound         = errors.New("vote not found")
	ErrDuplicateVote        = errors.New("vote already exists")
	ErrStatusConflict       = errors.New("post status changed concurrently")
	ErrMintAlreadyRequested = errors.New("mint already requested")
	ErrMintNotPending       = errors.New("no pending mint request")
	ErrOwnerChanged         = errors.New("nft owner changed concurrently")
)

// PostRepository persists posts. Counter updates are applied atomically by the store.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	// List returns up to q.Size+1 visible posts so callers can detect a further page.
	List(ctx context.Context, q models.FeedQuery) ([]*models.Post, error)
	Update(ctx context.Context, id string, changes models.PostChanges, now time.Time) (*models.Post, error)
	// IncrementViews adds one view and returns the new count.
	IncrementViews(ctx context.Context, id string) (int64, error)

	// ApplyVote adds delta votes of type vt and returns the metrics after the change.
	ApplyVote(ctx context.Context, id string, vt models.VoteType, delta int64, now time.Time) (*models.Metrics, error)

	// TransitionStatus moves the post from exactly `from` to `to`; ErrStatusConflict when it is no longer in `from`.
	TransitionStatus(ctx context.Context, id string, from, to models.Status, mod *models.Moderation, now time.Time) (*models.Post, error)

	// MarkViral turns a published or approved post with score >= threshold viral and flags an
	// automatic mint request. It returns the post as it was before the change, or nil when
	// another caller already won or the conditions do not hold.
	MarkViral(ctx context.Context, id string, threshold int64, now time.Time) (*models.Post, error)

	RequestMint(ctx context.Context, id string, allowed []models.Status, now time.Time) (*models.Post, error)
	RecordMint(ctx context.Context, id string, rec models.MintRecord) (*models.Post, error)
	RecordTransfer(ctx context.Context, id string, sale models.SaleRecord) (*models.Post, error)
}

type VoteRepository interface {
	// Create fails with ErrDuplicateVote when the user already voted on the post.
	Create(ctx context.Context, vote *models.Vote) error
	Get(ctx context.Context, postID, userID string) (*models.Vote, error)
	Delete(ctx context.Context, id string) error
}

// Page normalises paging parameters.
func Page(q models.FeedQuery) (page, size int) {
	page, size = q.Page, q.Size
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = models.DefaultPageSize
	}
	if size > models.MaxPageSize {
		size = models.MaxPageSize
	}
	return page, size
}
