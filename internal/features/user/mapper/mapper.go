package mapper

import "viralsafe-backend/internal/features/user/models"

// ToUserResponse maps User model to UserResponse DTO
func ToUserResponse(user *models.User) *models.UserResponse {
	return &models.UserResponse{
		ID:            user.ID,
		WalletAddress: user.WalletAddress,
		Username:      user.Username,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		Bio:           user.Bio,
		AvatarURL:     user.AvatarURL,
		BannerURL:     user.BannerURL,
		Role:          user.Role,
		Status:        user.Status,
		IsVerified:    user.IsVerified,
		IsCreator:     user.IsCreator,
		SocialLinks:   user.SocialLinks,
		Stats:         user.Stats,
		Preferences:   user.Preferences,
		TokenBalance:  user.TokenBalance,
		StakedBalance: user.StakedBalance,
		NFTCount:      user.NFTCount,
		CreatedAt:     user.CreatedAt,
		LastLogin:     user.LastLogin,
	}
}

// ToPublicProfile maps User model to the public profile DTO
func ToPublicProfile(user *models.User) *models.PublicProfile {
	return &models.PublicProfile{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Bio:         user.Bio,
		AvatarURL:   user.AvatarURL,
		BannerURL:   user.BannerURL,
		IsVerified:  user.IsVerified,
		IsCreator:   user.IsCreator,
		SocialLinks: user.SocialLinks,
		Stats:       user.Stats,
		CreatedAt:   user.CreatedAt,
	}
}
