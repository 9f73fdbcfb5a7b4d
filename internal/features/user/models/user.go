package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleCreator   Role = "creator"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleCreator, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// CanModerate reports whether the role may moderate content and users.
func (r Role) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusBanned    Status = "banned"
	StatusPending   Status = "pending"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusBanned, StatusPending:
		return true
	}
	return false
}

// Blocked reports whether the account may not sign in or act.
func (s Status) Blocked() bool {
	return s == StatusSuspended || s == StatusBanned
}

// Stat names a counter under User.Stats.
type Stat string

const (
	StatTotalPosts         Stat = "total_posts"
	StatTotalVotesReceived Stat = "total_votes_received"
	StatTotalVotesGiven    Stat = "total_votes_given"
	StatTotalNFTsMinted    Stat = "total_nfts_minted"
	StatViralPosts         Stat = "viral_posts"
)

type SocialLinks struct {
	TikTok    string `json:"tiktok,omitempty" bson:"tiktok,omitempty" validate:"omitempty,max=200"`
	Twitter   string `json:"twitter,omitempty" bson:"twitter,omitempty" validate:"omitempty,max=200"`
	Instagram string `json:"instagram,omitempty" bson:"instagram,omitempty" validate:"omitempty,max=200"`
	YouTube   string `json:"youtube,omitempty" bson:"youtube,omitempty" validate:"omitempty,max=200"`
	Discord   string `json:"discord,omitempty" bson:"discord,omitempty" validate:"omitempty,max=200"`
}

type Stats struct {
	TotalPosts         int64 `json:"total_posts" bson:"total_posts"`
	TotalVotesReceived int64 `json:"total_votes_received" bson:"total_votes_received"`
	TotalVotesGiven    int64 `json:"total_votes_given" bson:"total_votes_given"`
	TotalNFTsMinted    int64 `json:"total_nfts_minted" bson:"total_nfts_minted"`
	ViralPosts         int64 `json:"viral_posts" bson:"viral_posts"`
}

type Preferences struct {
	EmailNotifications bool   `json:"email_notifications" bson:"email_notifications"`
	PushNotifications  bool   `json:"push_notifications" bson:"push_notifications"`
	PrivacyLevel       string `json:"privacy_level" bson:"privacy_level" validate:"omitempty,oneof=public friends private"`
	AutoStakeRewards   bool   `json:"auto_stake_rewards" bson:"auto_stake_rewards"`
	PreferredLanguage  string `json:"preferred_language" bson:"preferred_language" validate:"omitempty,max=10"`
	Theme              string `json:"theme" bson:"theme" validate:"omitempty,oneof=dark light auto"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		EmailNotifications: true,
		PushNotifications:  true,
		PrivacyLevel:       "public",
		PreferredLanguage:  "en",
		Theme:              "dark",
	}
}

// User is the full account record.
type User struct {
	ID            string
	WalletAddress string
	Username      string
	Email         string
	DisplayName   string
	Bio           string
	AvatarURL     string
	BannerURL     string

	Role       Role
	Status     Status
	IsVerified bool
	IsCreator  bool

	SocialLinks SocialLinks
	Stats       Stats
	Preferences Preferences

	TokenBalance  decimal.Decimal
	StakedBalance decimal.Decimal
	NFTCount      int64

	CreatedAt time.Time
	UpdatedAt time.Time
	LastLogin *time.Time

	// RefreshToken is the only refresh token currently accepted for this user.
	RefreshToken string
}

// RegistrationData is supplied with the first signature verification of a new wallet.
// @Description Registration data for a new wallet
type RegistrationData struct {
	Username    string `json:"username" example:"viralcreator"`
	Email       string `json:"email,omitempty" example:"creator@example.com"`
	DisplayName string `json:"display_name,omitempty" example:"Viral Creator"`
	Bio         string `json:"bio,omitempty" example:"Creating viral content on Web3"`
}

// ProfileUpdate carries the editable profile fields; nil means unchanged.
type ProfileUpdate struct {
	DisplayName *string      `json:"display_name,omitempty"`
	Bio         *string      `json:"bio,omitempty"`
	Email       *string      `json:"email,omitempty"`
	AvatarURL   *string      `json:"avatar_url,omitempty"`
	BannerURL   *string      `json:"banner_url,omitempty"`
	SocialLinks *SocialLinks `json:"social_links,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

type StatusUpdate struct {
	Status Status `json:"status" binding:"required" example:"suspended"`
}

type RoleUpdate struct {
	Role Role `json:"role" binding:"required" example:"moderator"`
}

// UserResponse is the authenticated owner's view of the account.
// @Description Full user profile
type UserResponse struct {
	ID            string          `json:"id"`
	WalletAddress string          `json:"wallet_address"`
	Username      string          `json:"username"`
	Email         string          `json:"email,omitempty"`
	DisplayName   string          `json:"display_name,omitempty"`
	Bio           string          `json:"bio,omitempty"`
	AvatarURL     string          `json:"avatar_url,omitempty"`
	BannerURL     string          `json:"banner_url,omitempty"`
	Role          Role            `json:"role"`
	Status        Status          `json:"status"`
	IsVerified    bool            `json:"is_verified"`
	IsCreator     bool            `json:"is_creator"`
	SocialLinks   SocialLinks     `json:"social_links"`
	Stats         Stats           `json:"stats"`
	Preferences   Preferences     `json:"preferences"`
	TokenBalance  decimal.Decimal `json:"token_balance"`
	StakedBalance decimal.Decimal `json:"staked_balance"`
	NFTCount      int64           `json:"nft_count"`
	CreatedAt     time.Time       `json:"created_at"`
	LastLogin     *time.Time      `json:"last_login,omitempty"`
}

// PublicProfile is what other users may see.
// @Description Public user profile
type PublicProfile struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	DisplayName string      `json:"display_name,omitempty"`
	Bio         string      `json:"bio,omitempty"`
	AvatarURL   string      `json:"avatar_url,omitempty"`
	BannerURL   string      `json:"banner_url,omitempty"`
	IsVerified  bool        `json:"is_verified"`
	IsCreator   bool        `json:"is_creator"`
	SocialLinks SocialLinks `json:"social_links"`
	Stats       Stats       `json:"stats"`
	CreatedAt   time.Time   `json:"created_at"`
}
