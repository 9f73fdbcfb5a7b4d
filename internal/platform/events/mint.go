package events

import (
	"context"
	"time"

	"viralsafe-backend/internal/common/logger"
)

const TypeMintRequested = "nft_mint_requested"

// Mint request origins.
const (
	OriginAuto   = "auto"
	OriginManual = "manual"
)

// MintRequest asks the external minter to mint an NFT for a post.
type MintRequest struct {
	PostID       string    `json:"post_id"`
	AuthorID     string    `json:"author_id"`
	AuthorWallet string    `json:"author_wallet"`
	ViralScore   int64     `json:"viral_score"`
	Origin       string    `json:"origin"`
	RequestedAt  time.Time `json:"requested_at"`
}

// Publisher delivers mint requests to whatever performs the minting.
type Publisher interface {
	PublishMintRequest(ctx context.Context, req MintRequest) error
	Close() error
}

// LogPublisher only logs mint requests. Used when no broker is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (LogPublisher) PublishMintRequest(_ context.Context, req MintRequest) error {
	logger.Info().
		Str("post_id", req.PostID).
		Str("author_wallet", req.AuthorWallet).
		Int64("viral_score", req.ViralScore).
		Str("origin", req.Origin).
		Msg("NFT mint requested")
	return nil
}

func (LogPublisher) Close() error { return nil }
