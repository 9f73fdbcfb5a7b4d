package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
	ContentTypeAudio ContentType = "audio"
	ContentTypeGIF   ContentType = "gif"
	ContentTypeMeme  ContentType = "meme"
)

func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeText, ContentTypeImage, ContentTypeVideo, ContentTypeAudio, ContentTypeGIF, ContentTypeMeme:
		return true
	}
	return false
}

type Status string

const (
	StatusDraft       Status = "draft"
	StatusPublished   Status = "published"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusRemoved     Status = "removed"
	StatusViral       Status = "viral"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusUnderReview, StatusApproved, StatusRejected, StatusRemoved, StatusViral:
		return true
	}
	return false
}

// Visible reports whether the post is shown in feeds and open to votes.
func (s Status) Visible() bool {
	return s == StatusPublished || s == StatusApproved || s == StatusViral
}

// VisibleStatuses lists the statuses Visible accepts.
var VisibleStatuses = []Status{StatusPublished, StatusApproved, StatusViral}

// ViralSourceStatuses are the statuses a post may turn viral from.
var ViralSourceStatuses = []Status{StatusPublished, StatusApproved}

// CanTransition reports whether from -> to is an edge of the moderation state machine.
func CanTransition(from, to Status) bool {
	if from == StatusRemoved {
		return false
	}
	switch to {
	case StatusRemoved:
		return true
	case StatusPublished:
		return from == StatusDraft
	case StatusUnderReview:
		return from == StatusPublished
	case StatusApproved, StatusRejected:
		return from == StatusUnderReview
	case StatusViral:
		return from == StatusPublished || from == StatusApproved
	}
	return false
}

type VoteType string

const (
	VoteUp    VoteType = "up"
	VoteDown  VoteType = "down"
	VoteViral VoteType = "viral"
)

func (v VoteType) Valid() bool {
	return v == VoteUp || v == VoteDown || v == VoteViral
}

// ScoreDelta is the change one vote of this type makes to the viral score.
func (v VoteType) ScoreDelta() int64 {
	switch v {
	case VoteUp:
		return 10
	case VoteViral:
		return 50
	case VoteDown:
		return -5
	}
	return 0
}

// MetricField is the metrics counter a vote of this type increments.
func (v VoteType) MetricField() string {
	switch v {
	case VoteUp:
		return "up_votes"
	case VoteDown:
		return "down_votes"
	case VoteViral:
		return "viral_votes"
	}
	return ""
}

type Tags struct {
	Category string   `json:"category,omitempty" bson:"category,omitempty"`
	Hashtags []string `json:"hashtags" bson:"hashtags"`
	Mentions []string `json:"mentions" bson:"mentions"`
}

type Metrics struct {
	UpVotes        int64   `json:"up_votes" bson:"up_votes"`
	DownVotes      int64   `json:"down_votes" bson:"down_votes"`
	ViralVotes     int64   `json:"viral_votes" bson:"viral_votes"`
	TotalVotes     int64   `json:"total_votes" bson:"total_votes"`
	ViralScore     int64   `json:"viral_score" bson:"viral_score"`
	Views          int64   `json:"views" bson:"views"`
	EngagementRate float64 `json:"engagement_rate" bson:"-"`
}

// WithEngagement returns m with EngagementRate derived from votes and views.
func (m Metrics) WithEngagement() Metrics {
	if m.Views > 0 {
		m.EngagementRate = float64(m.TotalVotes) / float64(m.Views) * 100
	} else {
		m.EngagementRate = 0
	}
	return m
}

// Apply adds delta votes of type vt to the counters and the score.
func (m *Metrics) Apply(vt VoteType, delta int64) {
	switch vt {
	case VoteUp:
		m.UpVotes += delta
	case VoteDown:
		m.DownVotes += delta
	case VoteViral:
		m.ViralVotes += delta
	}
	m.TotalVotes += delta
	m.ViralScore += vt.ScoreDelta() * delta
}

const DefaultRoyaltyPercentage = 5.0

type SaleRecord struct {
	From  string          `json:"from"`
	To    string          `json:"to"`
	Price decimal.Decimal `json:"price"`
	Date  time.Time       `json:"date"`
}

type NFTMetadata struct {
	TokenID           string           `json:"token_id,omitempty"`
	ContractAddress   string           `json:"contract_address,omitempty"`
	TokenURI          string           `json:"token_uri,omitempty"`
	MetadataIPFSHash  string           `json:"metadata_ipfs_hash,omitempty"`
	MintedAt          *time.Time       `json:"minted_at,omitempty"`
	MintedTxHash      string           `json:"minted_tx_hash,omitempty"`
	IsMinted          bool             `json:"is_minted"`
	AutoMinted        bool             `json:"auto_minted"`
	MintRequested     bool             `json:"mint_requested"`
	MintRequestedAt   *time.Time       `json:"mint_requested_at,omitempty"`
	RoyaltyPercentage float64          `json:"royalty_percentage"`
	CurrentOwner      string           `json:"current_owner,omitempty"`
	LastSalePrice     *decimal.Decimal `json:"last_sale_price,omitempty"`
	LastSaleDate      *time.Time       `json:"last_sale_date,omitempty"`
	SaleHistory       []SaleRecord     `json:"sale_history"`
}

type Post struct {
	ID           string
	AuthorID     string
	AuthorWallet string
	Title        string
	Content      string
	ContentType  ContentType
	Status       Status
	Tags         Tags
	Metrics      Metrics
	NFT          *NFTMetadata

	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublishedAt *time.Time
	ViralAt     *time.Time

	ModeratorNotes string
	ModeratedBy    string
	ModeratedAt    *time.Time
}

type Vote struct {
	ID          string
	UserID      string
	UserWallet  string
	PostID      string
	VoteType    VoteType
	TokensSpent decimal.Decimal
	CreatedAt   time.Time
}

// PostChanges carries author edits; nil means unchanged.
type PostChanges struct {
	Title    *string
	Content  *string
	Category *string
	Hashtags *[]string
}

// Moderation is stored alongside a status change made by staff.
type Moderation struct {
	Notes string
	By    string
}

// MintRecord is the result of a completed mint reported by the minter.
type MintRecord struct {
	TokenID          string
	ContractAddress  string
	TokenURI         string
	MetadataIPFSHash string
	TxHash           string
	Owner            string
	MintedAt         time.Time
}
