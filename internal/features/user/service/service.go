package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"viralsafe-backend/internal/common/cache"
	"viralsafe-backend/internal/common/errors"
	"viralsafe-backend/internal/common/logger"
	"viralsafe-backend/internal/common/validation"
	"viralsafe-backend/internal/features/user/mapper"
	"viralsafe-backend/internal/features/user/models"
	"viralsafe-backend/internal/features/user/repository"
)

const profileCacheTTL = 10 * time.Minute

type userService struct {
	repo  repository.UserRepository
	cache *cache.CacheService
	now   func() time.Time
}

// NewUserService creates the profile service. cache may be nil.
func NewUserService(repo repository.UserRepository, cache *cache.CacheService) UserService {
	return &userService{
		repo:  repo,
		cache: cache,
		now:   time.Now,
	}
}

// MapRepositoryError converts user repository errors into application errors.
func MapRepositoryError(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, repository.ErrUserNotFound):
		return errors.NewUserNotFoundError(id)
	case stderrors.Is(err, repository.ErrDuplicate):
		return errors.New(errors.ErrCodeUsernameTaken, "Username already taken")
	case stderrors.Is(err, repository.ErrInsufficientBalance):
		return errors.New(errors.ErrCodeInsufficientTokens, "Insufficient token balance")
	case stderrors.Is(err, repository.ErrTokenMismatch):
		return errors.New(errors.ErrCodeInvalidRefreshToken, "Invalid refresh token")
	default:
		return errors.NewDatabaseError("user", err)
	}
}

func (s *userService) GetUser(ctx context.Context, id string) (*models.UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, MapRepositoryError(err, id)
	}
	return mapper.ToUserResponse(user), nil
}

func (s *userService) GetPublicProfile(ctx context.Context, username string) (*models.PublicProfile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, errors.NewValidationError("username", "is required")
	}

	load := func() (interface{}, error) {
		user, err := s.repo.GetByUsername(ctx, username)
		if err != nil {
			return nil, MapRepositoryError(err, username)
		}
		if user.Status == models.StatusBanned {
			return nil, errors.NewUserNotFoundError(username)
		}
		return mapper.ToPublicProfile(user), nil
	}

	if s.cache == nil {
		profile, err := load()
		if err != nil {
			return nil, err
		}
		return profile.(*models.PublicProfile), nil
	}

	var profile models.PublicProfile
	if err := s.cache.GetOrSet(ctx, cache.ProfileKey(username), &profile, profileCacheTTL, load); err != nil {
		return nil, err
	}
	return &profile, nil
}

func validateProfileUpdate(upd *models.ProfileUpdate) error {
	res := &validation.Result{}
	if upd.DisplayName != nil {
		res.Check("display_name", validation.ValidateMaxLength(strings.TrimSpace(*upd.DisplayName), validation.MaxDisplayNameLength))
	}
	if upd.Bio != nil {
		res.Check("bio", validation.ValidateMaxLength(*upd.Bio, validation.MaxBioLength))
	}
	if upd.Email != nil {
		res.Check("email", validation.ValidateEmail(*upd.Email))
	}
	if upd.AvatarURL != nil {
		res.Check("avatar_url", validation.ValidateURL(*upd.AvatarURL))
	}
	if upd.BannerURL != nil {
		res.Check("banner_url", validation.ValidateURL(*upd.BannerURL))
	}
	if upd.SocialLinks != nil {
		res.Errors = append(res.Errors, prefixed("social_links", validation.Struct(upd.SocialLinks))...)
	}
	if upd.Preferences != nil {
		res.Errors = append(res.Errors, prefixed("preferences", validation.Struct(upd.Preferences))...)
	}
	return res.Err()
}

func prefixed(prefix string, res *validation.Result) []validation.FieldError {
	out := make([]validation.FieldError, 0, len(res.Errors))
	for _, fe := range res.Errors {
		out = append(out, validation.FieldError{Field: prefix + "." + fe.Field, Reason: fe.Reason})
	}
	return out
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, upd *models.ProfileUpdate) (*models.UserResponse, error) {
	if upd == nil {
		return nil, errors.New(errors.ErrCodeBadRequest, "Empty profile update")
	}
	if upd.DisplayName != nil {
		trimmed := strings.TrimSpace(*upd.DisplayName)
		upd.DisplayName = &trimmed
	}
	if upd.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*upd.Email))
		upd.Email = &email
	}
	if err := validateProfileUpdate(upd); err != nil {
		return nil, err
	}

	user, err := s.repo.UpdateProfile(ctx, userID, upd, s.now().UTC())
	if err != nil {
		return nil, MapRepositoryError(err, userID)
	}

	s.invalidate(ctx, user.Username)
	return mapper.ToUserResponse(user), nil
}

func (s *userService) UpdateUserStatus(ctx context.Context, actor *models.User, id string, status models.Status) (*models.UserResponse, error) {
	if !status.Valid() {
		return nil, errors.NewValidationError("status", "must be one of: active, suspended, banned, pending")
	}
	if actor.ID == id {
		return nil, errors.NewForbiddenError("cannot change your own status")
	}

	target, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, MapRepositoryError(err, id)
	}
	if target.Role.CanModerate() && actor.Role != models.RoleAdmin {
		return nil, errors.NewForbiddenError("only admins can change the status of staff accounts")
	}

	if err := s.repo.UpdateStatus(ctx, id, status, s.now().UTC()); err != nil {
		return nil, MapRepositoryError(err, id)
	}
	if status.Blocked() {
		// Blocked users lose their refresh token; access tokens are refused on use.
		if err := s.repo.SetRefreshToken(ctx, id, ""); err != nil {
			return nil, MapRepositoryError(err, id)
		}
	}

	logger.Info().
		Str("actor_id", actor.ID).
		Str("user_id", id).
		Str("status", string(status)).
		Msg("User status updated")

	s.invalidate(ctx, target.Username)
	return s.GetUser(ctx, id)
}

func (s *userService) UpdateUserRole(ctx context.Context, actor *models.User, id string, role models.Role) (*models.UserResponse, error) {
	if !role.Valid() {
		return nil, errors.NewValidationError("role", "must be one of: user, creator, moderator, admin")
	}
	if actor.ID == id {
		return nil, errors.NewForbiddenError("cannot change your own role")
	}

	if err := s.repo.UpdateRole(ctx, id, role, s.now().UTC()); err != nil {
		return nil, MapRepositoryError(err, id)
	}

	logger.Info().
		Str("actor_id", actor.ID).
		Str("user_id", id).
		Str("role", string(role)).
		Msg("User role updated")

	resp, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, resp.Username)
	return resp, nil
}

func (s *userService) invalidate(ctx context.Context, username string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProfile(ctx, username); err != nil {
		logger.Warn().Err(err).Str("username", username).Msg("Failed to invalidate profile cache")
	}
}
