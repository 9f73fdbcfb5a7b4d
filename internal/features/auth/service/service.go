package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"viralsafe-backend/internal/common/errors"
	"viralsafe-backend/internal/common/logger"
	"viralsafe-backend/internal/common/metrics"
	"viralsafe-backend/internal/common/validation"
	"viralsafe-backend/internal/features/auth/models"
	"viralsafe-backend/internal/features/auth/repository"
	usermapper "viralsafe-backend/internal/features/user/mapper"
	usermodels "viralsafe-backend/internal/features/user/models"
	userrepo "viralsafe-backend/internal/features/user/repository"
	userservice "viralsafe-backend/internal/features/user/service"
)

const nonceBytes = 16

type Config struct {
	AppName     string
	NonceTTL    time.Duration
	SignupGrant decimal.Decimal
}

type Service struct {
	users  userrepo.UserRepository
	nonces repository.NonceRepository
	tokens *TokenManager
	cfg    Config
	now    func() time.Time
}

func NewService(users userrepo.UserRepository, nonces repository.NonceRepository, tokens *TokenManager, cfg Config) *Service {
	if cfg.NonceTTL <= 0 {
		cfg.NonceTTL = 5 * time.Minute
	}
	return &Service{
		users:  users,
		nonces: nonces,
		tokens: tokens,
		cfg:    cfg,
		now:    time.Now,
	}
}

var _ AuthService = (*Service)(nil)

// WithClock replaces the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func generateNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// BuildAuthMessage is the exact text the wallet is asked to sign.
func BuildAuthMessage(appName, wallet, nonce string, issuedAt time.Time) string {
	return fmt.Sprintf(`🚀 %s Authentication

Wallet: %s
Nonce: %s
Timestamp: %s

Sign this message to authenticate with %s.
This request will not trigger any blockchain transaction or cost any gas fees.

Security: This signature proves you own this wallet address.`,
		appName, wallet, nonce, issuedAt.UTC().Format(time.RFC3339), appName)
}

func normalizeWallet(wallet string) (string, error) {
	normalized, err := validation.NormalizeWalletAddress(wallet)
	if err != nil {
		return "", errors.NewValidationError("wallet_address", err.Error())
	}
	return normalized, nil
}

func (s *Service) RequestNonce(ctx context.Context, wallet string) (*models.NonceResponse, error) {
	wallet, err := normalizeWallet(wallet)
	if err != nil {
		return nil, err
	}

	value, err := generateNonce()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "Failed to generate nonce")
	}

	now := s.now().UTC()
	nonce := &models.Nonce{
		WalletAddress: wallet,
		Nonce:         value,
		Message:       BuildAuthMessage(s.cfg.AppName, wallet, value, now),
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.NonceTTL),
	}
	if err := s.nonces.Upsert(ctx, nonce); err != nil {
		return nil, errors.NewDatabaseError("save nonce", err)
	}

	logger.Debug().Str("wallet_address", wallet).Msg("Auth nonce issued")

	return &models.NonceResponse{
		Nonce:         nonce.Nonce,
		Message:       nonce.Message,
		WalletAddress: wallet,
	}, nil
}

// validateRegistration normalizes data in place.
func validateRegistration(data *usermodels.RegistrationData) error {
	res := &validation.Result{}

	username, err := validation.NormalizeUsername(data.Username)
	res.Check("user_data.username", err)
	data.Username = username

	data.Email = strings.ToLower(strings.TrimSpace(data.Email))
	res.Check("user_data.email", validation.ValidateEmail(data.Email))

	data.DisplayName = strings.TrimSpace(data.DisplayName)
	res.Check("user_data.display_name", validation.ValidateMaxLength(data.DisplayName, validation.MaxDisplayNameLength))
	res.Check("user_data.bio", validation.ValidateMaxLength(data.Bio, validation.MaxBioLength))

	return res.Err()
}

func (s *Service) VerifySignature(ctx context.Context, req *models.VerifyRequest) (*models.TokenResponse, error) {
	wallet, err := normalizeWallet(req.WalletAddress)
	if err != nil {
		return nil, err
	}

	stored, err := s.nonces.Get(ctx, wallet)
	if err != nil {
		if stderrors.Is(err, repository.ErrNonceNotFound) {
			return nil, nonceNotFound(wallet)
		}
		return nil, errors.NewDatabaseError("get nonce", err)
	}

	now := s.now().UTC()
	if stored.Expired(now) {
		metrics.AuthAttemptsTotal.WithLabelValues("nonce_expired").Inc()
		return nil, errors.New(errors.ErrCodeNonceExpired, "Nonce has expired, request a new one").
			WithDetail("expired_at", stored.ExpiresAt)
	}
	if subtle.ConstantTimeCompare([]byte(stored.Nonce), []byte(req.Nonce)) != 1 {
		metrics.AuthAttemptsTotal.WithLabelValues("nonce_mismatch").Inc()
		return nil, errors.New(errors.ErrCodeNonceMismatch, "Nonce does not match")
	}
	if !VerifySignature(stored.Message, req.Signature, wallet) {
		metrics.AuthAttemptsTotal.WithLabelValues("invalid_signature").Inc()
		return nil, errors.New(errors.ErrCodeInvalidSignature, "Invalid signature").
			WithDetail("wallet_address", wallet)
	}

	user, err := s.users.GetByWallet(ctx, wallet)
	isNew := false
	switch {
	case err == nil:
		if user.Status.Blocked() {
			metrics.AuthAttemptsTotal.WithLabelValues("blocked").Inc()
			return nil, errors.New(errors.ErrCodeUserBanned, "Account is "+string(user.Status)).WithUserID(user.ID)
		}
	case stderrors.Is(err, userrepo.ErrUserNotFound):
		isNew = true
		if req.UserData == nil {
			return nil, errors.New(errors.ErrCodeMissingRegistrationData, "User data required for new registration")
		}
		if err := validateRegistration(req.UserData); err != nil {
			return nil, err
		}
		taken, err := s.users.UsernameExists(ctx, req.UserData.Username)
		if err != nil {
			return nil, errors.NewDatabaseError("check username", err)
		}
		if taken {
			return nil, usernameTaken(req.UserData.Username)
		}
	default:
		return nil, errors.NewDatabaseError("get user", err)
	}

	// A concurrent verification that already consumed this nonce wins.
	if err := s.nonces.Consume(ctx, wallet, stored.Nonce); err != nil {
		if stderrors.Is(err, repository.ErrNonceNotFound) {
			return nil, nonceNotFound(wallet)
		}
		return nil, errors.NewDatabaseError("consume nonce", err)
	}

	if isNew {
		user = &usermodels.User{
			WalletAddress: wallet,
			Username:      req.UserData.Username,
			Email:         req.UserData.Email,
			DisplayName:   req.UserData.DisplayName,
			Bio:           req.UserData.Bio,
			Role:          usermodels.RoleUser,
			Status:        usermodels.StatusActive,
			Preferences:   usermodels.DefaultPreferences(),
			TokenBalance:  s.cfg.SignupGrant,
			StakedBalance: decimal.Zero,
			CreatedAt:     now,
			UpdatedAt:     now,
			LastLogin:     &now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			if stderrors.Is(err, userrepo.ErrDuplicate) {
				return nil, usernameTaken(user.Username)
			}
			return nil, errors.NewDatabaseError("create user", err)
		}
		logger.Info().
			Str("user_id", user.ID).
			Str("wallet_address", wallet).
			Str("username", user.Username).
			Msg("New user registered")
	} else {
		if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
			return nil, userservice.MapRepositoryError(err, user.ID)
		}
		user.LastLogin = &now
	}

	resp, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	resp.IsNewUser = isNew

	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	return resp, nil
}

func (s *Service) issueTokens(ctx context.Context, user *usermodels.User) (*models.TokenResponse, error) {
	pair, err := s.tokens.IssuePair(user.WalletAddress)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "Failed to issue tokens")
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, userservice.MapRepositoryError(err, user.ID)
	}
	return tokenResponse(pair, user), nil
}

func tokenResponse(pair *TokenPair, user *usermodels.User) *models.TokenResponse {
	return &models.TokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "bearer",
		ExpiresIn:        int64(pair.AccessExpiresIn.Seconds()),
		RefreshExpiresAt: pair.RefreshExpiresAt,
		User:             usermapper.ToUserResponse(user),
	}
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	claims, err := s.tokens.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, invalidRefresh()
	}

	user, err := s.users.GetByWallet(ctx, claims.Subject)
	if err != nil {
		if stderrors.Is(err, userrepo.ErrUserNotFound) {
			return nil, invalidRefresh()
		}
		return nil, errors.NewDatabaseError("get user", err)
	}
	if user.Status.Blocked() {
		return nil, errors.New(errors.ErrCodeUserBanned, "Account is "+string(user.Status)).WithUserID(user.ID)
	}
	if user.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(refreshToken)) != 1 {
		return nil, invalidRefresh()
	}

	pair, err := s.tokens.IssuePair(user.WalletAddress)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "Failed to issue tokens")
	}
	if err := s.users.SwapRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken); err != nil {
		if stderrors.Is(err, userrepo.ErrTokenMismatch) {
			return nil, invalidRefresh()
		}
		return nil, userservice.MapRepositoryError(err, user.ID)
	}

	return tokenResponse(pair, user), nil
}

func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.users.SetRefreshToken(ctx, userID, ""); err != nil {
		return userservice.MapRepositoryError(err, userID)
	}
	logger.Debug().Str("user_id", userID).Msg("User logged out")
	return nil
}

// Authenticate resolves an access token to an active user and stamps last_login.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*usermodels.User, error) {
	claims, err := s.tokens.Parse(accessToken, TokenTypeAccess)
	if err != nil {
		if stderrors.Is(err, ErrTokenExpired) {
			return nil, errors.New(errors.ErrCodeExpiredToken, "Token has expired")
		}
		return nil, errors.New(errors.ErrCodeInvalidToken, "Invalid authentication token")
	}

	user, err := s.users.GetByWallet(ctx, claims.Subject)
	if err != nil {
		if stderrors.Is(err, userrepo.ErrUserNotFound) {
			return nil, errors.NewUnauthenticatedError("user not found")
		}
		return nil, errors.NewDatabaseError("get user", err)
	}
	if user.Status.Blocked() {
		return nil, errors.New(errors.ErrCodeUserBanned, "Account is "+string(user.Status)).WithUserID(user.ID)
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		logger.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to update last login")
	} else {
		user.LastLogin = &now
	}
	return user, nil
}

func (s *Service) Status() *models.StatusResponse {
	return &models.StatusResponse{
		Service: "authentication",
		Status:  "healthy",
		Features: []string{
			"web3_wallet_auth",
			"jwt_tokens",
			"signature_verification",
			"nonce_based_auth",
		},
		SupportedWallets: []string{
			"MetaMask",
			"WalletConnect",
			"Coinbase Wallet",
			"Trust Wallet",
		},
	}
}

func nonceNotFound(wallet string) error {
	return errors.New(errors.ErrCodeNonceNotFound, "Nonce not found, request a new one").
		WithDetail("wallet_address", wallet)
}

func usernameTaken(username string) error {
	return errors.New(errors.ErrCodeUsernameTaken, "Username already taken").
		WithDetail("username", username)
}

func invalidRefresh() error {
	return errors.New(errors.ErrCodeInvalidRefreshToken, "Invalid refresh token")
}
