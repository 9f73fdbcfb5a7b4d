package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// @Description New post
type CreatePostRequest struct {
	Title       string      `json:"title,omitempty" example:"My first viral post"`
	Content     string      `json:"content" binding:"required" example:"Hello Web3"`
	ContentType ContentType `json:"content_type,omitempty" example:"text"`
	Category    string      `json:"category,omitempty" example:"memes"`
	Hashtags    []string    `json:"hashtags,omitempty" example:"web3,viral"`
	Mentions    []string    `json:"mentions,omitempty"`
	Draft       bool        `json:"draft,omitempty"`
}

type UpdatePostRequest struct {
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Category *string   `json:"category,omitempty"`
	Hashtags *[]string `json:"hashtags,omitempty"`
}

type StatusChangeRequest struct {
	Status         Status `json:"status" binding:"required" example:"under_review"`
	ModeratorNotes string `json:"moderator_notes,omitempty"`
}

type VoteRequest struct {
	VoteType VoteType `json:"vote_type" binding:"required" example:"up"`
}

type RecordMintRequest struct {
	TokenID          string `json:"token_id" binding:"required"`
	ContractAddress  string `json:"contract_address" binding:"required"`
	TokenURI         string `json:"token_uri" binding:"required"`
	MetadataIPFSHash string `json:"metadata_ipfs_hash,omitempty"`
	TxHash           string `json:"tx_hash" binding:"required"`
	Owner            string `json:"owner" binding:"required"`
}

type TransferRequest struct {
	To    string          `json:"to" binding:"required"`
	Price decimal.Decimal `json:"price"`
}

// FeedQuery selects a page of visible posts.
type FeedQuery struct {
	Feed          string `form:"feed"`
	Page          int    `form:"page"`
	Size          int    `form:"size"`
	Category      string `form:"category"`
	Hashtag       string `form:"hashtag"`
	AuthorID      string `form:"author"`
	MinViralScore int64  `form:"min_viral_score"`
}

const (
	FeedLatest   = "latest"
	FeedTrending = "trending"
	FeedViral    = "viral"

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// @Description Post
type PostResponse struct {
	ID             string       `json:"id"`
	AuthorID       string       `json:"author_id"`
	AuthorWallet   string       `json:"author_wallet"`
	Title          string       `json:"title,omitempty"`
	Content        string       `json:"content"`
	ContentType    ContentType  `json:"content_type"`
	Status         Status       `json:"status"`
	Tags           Tags         `json:"tags"`
	Metrics        Metrics      `json:"metrics"`
	NFTMetadata    *NFTMetadata `json:"nft_metadata,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	PublishedAt    *time.Time   `json:"published_at,omitempty"`
	ViralAt        *time.Time   `json:"viral_at,omitempty"`
	ModeratorNotes string       `json:"moderator_notes,omitempty"`
	ModeratedAt    *time.Time   `json:"moderated_at,omitempty"`
}

type FeedResponse struct {
	Posts   []*PostResponse `json:"posts"`
	Feed    string          `json:"feed"`
	Page    int             `json:"page"`
	Size    int             `json:"size"`
	HasMore bool            `json:"has_more"`
}

// @Description Vote outcome
type VoteResponse struct {
	Success               bool            `json:"success"`
	Message               string          `json:"message"`
	NewMetrics            Metrics         `json:"new_metrics"`
	TokensSpent           decimal.Decimal `json:"tokens_spent"`
	ViralThresholdReached bool            `json:"viral_threshold_reached"`
	NFTAutoMinted         bool            `json:"nft_auto_minted"`
}

type VoteView struct {
	ID          string          `json:"id"`
	PostID      string          `json:"post_id"`
	VoteType    VoteType        `json:"vote_type"`
	TokensSpent decimal.Decimal `json:"tokens_spent"`
	CreatedAt   time.Time       `json:"created_at"`
}

type MyVoteResponse struct {
	HasVoted bool      `json:"has_voted"`
	Vote     *VoteView `json:"vote,omitempty"`
}

type MintRequestResponse struct {
	PostID          string    `json:"post_id"`
	MintRequested   bool      `json:"mint_requested"`
	MintRequestedAt time.Time `json:"mint_requested_at"`
}
