package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"viralsafe-backend/internal/features/user/models"
	"viralsafe-backend/internal/features/user/repository"
	mongoplatform "viralsafe-backend/internal/platform/mongo"
)

type userDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	WalletAddress string             `bson:"wallet_address"`
	Username      string             `bson:"username"`
	Email         string             `bson:"email,omitempty"`
	DisplayName   string             `bson:"display_name,omitempty"`
	Bio           string             `bson:"bio,omitempty"`
	AvatarURL     string             `bson:"avatar_url,omitempty"`
	BannerURL     string             `bson:"banner_url,omitempty"`

	Role       string `bson:"role"`
	Status     string `bson:"status"`
	IsVerified bool   `bson:"is_verified"`
	IsCreator  bool   `bson:"is_creator"`

	SocialLinks models.SocialLinks `bson:"social_links"`
	Stats       models.Stats       `bson:"stats"`
	Preferences models.Preferences `bson:"preferences"`

	TokenBalance  primitive.Decimal128 `bson:"token_balance"`
	StakedBalance primitive.Decimal128 `bson:"staked_balance"`
	NFTCount      int64                `bson:"nft_count"`

	CreatedAt time.Time  `bson:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at"`
	LastLogin *time.Time `bson:"last_login,omitempty"`

	RefreshToken string `bson:"refresh_token,omitempty"`
}

func toDocument(u *models.User) *userDocument {
	return &userDocument{
		WalletAddress: u.WalletAddress,
		Username:      u.Username,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		Bio:           u.Bio,
		AvatarURL:     u.AvatarURL,
		BannerURL:     u.BannerURL,
		Role:          string(u.Role),
		Status:        string(u.Status),
		IsVerified:    u.IsVerified,
		IsCreator:     u.IsCreator,
		SocialLinks:   u.SocialLinks,
		Stats:         u.Stats,
		Preferences:   u.Preferences,
		TokenBalance:  mongoplatform.ToDecimal128(u.TokenBalance),
		StakedBalance: mongoplatform.ToDecimal128(u.StakedBalance),
		NFTCount:      u.NFTCount,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
		LastLogin:     u.LastLogin,
		RefreshToken:  u.RefreshToken,
	}
}

func (d *userDocument) toModel() *models.User {
	return &models.User{
		ID:            d.ID.Hex(),
		WalletAddress: d.WalletAddress,
		Username:      d.Username,
		Email:         d.Email,
		DisplayName:   d.DisplayName,
		Bio:           d.Bio,
		AvatarURL:     d.AvatarURL,
		BannerURL:     d.BannerURL,
		Role:          models.Role(d.Role),
		Status:        models.Status(d.Status),
		IsVerified:    d.IsVerified,
		IsCreator:     d.IsCreator,
		SocialLinks:   d.SocialLinks,
		Stats:         d.Stats,
		Preferences:   d.Preferences,
		TokenBalance:  mongoplatform.FromDecimal128(d.TokenBalance),
		StakedBalance: mongoplatform.FromDecimal128(d.StakedBalance),
		NFTCount:      d.NFTCount,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		LastLogin:     d.LastLogin,
		RefreshToken:  d.RefreshToken,
	}
}

type mongoRepository struct {
	users *mongo.Collection
}

func NewRepository(db *mongo.Database) repository.UserRepository {
	return &mongoRepository{users: db.Collection(mongoplatform.CollectionUsers)}
}

// Create создает нового пользователя
func (r *mongoRepository) Create(ctx context.Context, user *models.User) error {
	doc := toDocument(user)
	doc.ID = primitive.NewObjectID()

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongoplatform.IsDuplicateKey(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.ID = doc.ID.Hex()
	return nil
}

func (r *mongoRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if mongoplatform.IsNoDocuments(err) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return doc.toModel(), nil
}

// GetByID получает пользователя по ID
func (r *mongoRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoRepository) GetByWallet(ctx context.Context, wallet string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"wallet_address": wallet})
}

// GetByUsername получает пользователя по username
func (r *mongoRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *mongoRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	n, err := r.users.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return n > 0, nil
}

// updateByID applies update to one user and maps "matched nothing" to ErrUserNotFound.
func (r *mongoRepository) updateByID(ctx context.Context, id string, update bson.M) error {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok {
		return repository.ErrUserNotFound
	}
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *mongoRepository) UpdateProfile(ctx context.Context, id string, upd *models.ProfileUpdate, now time.Time) (*models.User, error) {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	set := bson.M{"updated_at": now}
	if upd.DisplayName != nil {
		set["display_name"] = *upd.DisplayName
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.AvatarURL != nil {
		set["avatar_url"] = *upd.AvatarURL
	}
	if upd.BannerURL != nil {
		set["banner_url"] = *upd.BannerURL
	}
	if upd.SocialLinks != nil {
		set["social_links"] = *upd.SocialLinks
	}
	if upd.Preferences != nil {
		set["preferences"] = *upd.Preferences
	}

	var doc userDocument
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if mongoplatform.IsNoDocuments(err) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return doc.toModel(), nil
}

func (r *mongoRepository) UpdateStatus(ctx context.Context, id string, status models.Status, now time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"status": string(status), "updated_at": now}})
}

func (r *mongoRepository) UpdateRole(ctx context.Context, id string, role models.Role, now time.Time) error {
	set := bson.M{"role": string(role), "updated_at": now}
	if role == models.RoleCreator {
		set["is_creator"] = true
	}
	return r.updateByID(ctx, id, bson.M{"$set": set})
}

func (r *mongoRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"last_login": at}})
}

func (r *mongoRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	if token == "" {
		return r.updateByID(ctx, id, bson.M{"$unset": bson.M{"refresh_token": ""}})
	}
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"refresh_token": token}})
}

func (r *mongoRepository) SwapRefreshToken(ctx context.Context, id, old, next string) error {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok || old == "" {
		return repository.ErrTokenMismatch
	}
	res, err := r.users.UpdateOne(ctx,
		bson.M{"_id": oid, "refresh_token": old},
		bson.M{"$set": bson.M{"refresh_token": next}},
	)
	if err != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrTokenMismatch
	}
	return nil
}

func (r *mongoRepository) DebitTokens(ctx context.Context, id string, amount decimal.Decimal) error {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok {
		return repository.ErrUserNotFound
	}
	res, err := r.users.UpdateOne(ctx,
		bson.M{"_id": oid, "token_balance": bson.M{"$gte": mongoplatform.ToDecimal128(amount)}},
		bson.M{"$inc": bson.M{"token_balance": mongoplatform.ToDecimal128(amount.Neg())}},
	)
	if err != nil {
		return fmt.Errorf("failed to debit tokens: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return repository.ErrInsufficientBalance
	}
	return nil
}

func (r *mongoRepository) CreditTokens(ctx context.Context, id string, amount decimal.Decimal) error {
	return r.updateByID(ctx, id, bson.M{"$inc": bson.M{"token_balance": mongoplatform.ToDecimal128(amount)}})
}

func (r *mongoRepository) IncrementStat(ctx context.Context, id string, stat models.Stat, delta int64) error {
	return r.updateByID(ctx, id, bson.M{"$inc": bson.M{"stats." + string(stat): delta}})
}

func (r *mongoRepository) IncrementNFTCount(ctx context.Context, id string, delta int64) error {
	return r.updateByID(ctx, id, bson.M{"$inc": bson.M{"nft_count": delta}})
}
