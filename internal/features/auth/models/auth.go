package models

import (
	"time"

	usermodels "viralsafe-backend/internal/features/user/models"
)

// Nonce is the pending sign-in challenge for one wallet.
type Nonce struct {
	WalletAddress string    `json:"wallet_address" bson:"wallet_address"`
	Nonce         string    `json:"nonce" bson:"nonce"`
	Message       string    `json:"message" bson:"message"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt     time.Time `json:"expires_at" bson:"expires_at"`
}

// Expired reports whether the nonce can no longer be used at now.
func (n *Nonce) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// @Description Nonce request
type NonceRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required" example:"0x742d35cc6634c0532925a3b844bc454e4438f44e"`
}

// @Description Challenge to sign with the wallet
type NonceResponse struct {
	Nonce         string `json:"nonce"`
	Message       string `json:"message"`
	WalletAddress string `json:"wallet_address"`
}

// @Description Signed challenge
type VerifyRequest struct {
	WalletAddress string                       `json:"wallet_address" binding:"required"`
	Signature     string                       `json:"signature" binding:"required"`
	Nonce         string                       `json:"nonce" binding:"required"`
	UserData      *usermodels.RegistrationData `json:"user_data,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// @Description Issued token pair
type TokenResponse struct {
	AccessToken      string                   `json:"access_token"`
	RefreshToken     string                   `json:"refresh_token"`
	TokenType        string                   `json:"token_type"`
	ExpiresIn        int64                    `json:"expires_in"`
	RefreshExpiresAt time.Time                `json:"refresh_expires_at"`
	User             *usermodels.UserResponse `json:"user"`
	IsNewUser        bool                     `json:"is_new_user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// @Description Authentication capabilities
type StatusResponse struct {
	Service          string   `json:"service"`
	Status           string   `json:"status"`
	Features         []string `json:"features"`
	SupportedWallets []string `json:"supported_wallets"`
}
