package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"viralsafe-backend/internal/features/post/models"
	"viralsafe-backend/internal/features/post/repository"
	mongoplatform "viralsafe-backend/internal/platform/mongo"
)

type postRepository struct {
	posts *mongo.Collection
}

func NewPostRepository(db *mongo.Database) repository.PostRepository {
	return &postRepository{posts: db.Collection(mongoplatform.CollectionPosts)}
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	doc := toPostDocument(post)
	doc.ID = primitive.NewObjectID()
	if _, err := r.posts.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	post.ID = doc.ID.Hex()
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	var doc postDocument
	if err := r.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if mongoplatform.IsNoDocuments(err) {
			return nil, repository.ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return doc.toModel(), nil
}

func (r *postRepository) List(ctx context.Context, q models.FeedQuery) ([]*models.Post, error) {
	page, size := repository.Page(q)

	filter := bson.M{"status": bson.M{"$in": statusStrings(models.VisibleStatuses)}}
	sort := bson.D{{Key: "created_at", Value: -1}}
	switch q.Feed {
	case models.FeedTrending:
		sort = bson.D{{Key: "metrics.viral_score", Value: -1}, {Key: "created_at", Value: -1}}
	case models.FeedViral:
		filter["status"] = string(models.StatusViral)
		sort = bson.D{{Key: "viral_at", Value: -1}, {Key: "created_at", Value: -1}}
	}
	if q.Category != "" {
		filter["tags.category"] = q.Category
	}
	if q.Hashtag != "" {
		filter["tags.hashtags"] = q.Hashtag
	}
	if q.AuthorID != "" {
		filter["author_id"] = q.AuthorID
	}
	if q.MinViralScore > 0 {
		filter["metrics.viral_score"] = bson.M{"$gte": q.MinViralScore}
	}

	opts := options.Find().
		SetSort(sort).
		SetSkip(int64((page - 1) * size)).
		SetLimit(int64(size + 1))

	cur, err := r.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer cur.Close(ctx)

	var docs []postDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	out := make([]*models.Post, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

// findAndUpdate returns the updated document, or nil when filter matched nothing.
func (r *postRepository) findAndUpdate(ctx context.Context, filter bson.M, update interface{}, when options.ReturnDocument) (*models.Post, error) {
	var doc postDocument
	err := r.posts.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(when),
	).Decode(&doc)
	if err != nil {
		if mongoplatform.IsNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return doc.toModel(), nil
}

// explain distinguishes a missing post from a failed precondition after a conditional update matched nothing.
func (r *postRepository) explain(ctx context.Context, id string, conflict error) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return conflict
}

func (r *postRepository) Update(ctx context.Context, id string, changes models.PostChanges, now time.Time) (*models.Post, error) {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok {
		return nil, repository.ErrPostNotFound
	}

	set := bson.M{"updated_at": now}
	if changes.Title != nil {
		set["title"] = *changes.Title
	}
	if changes.Content != nil {
		set["content"] = *changes.Content
	}
	if changes.Category != nil {
		set["tags.category"] = *changes.Category
	}
	if changes.Hashtags != nil {
		set["tags.hashtags"] = *changes.Hashtags
	}

	post, err := r.findAndUpdate(ctx,
		bson.M{"_id": oid, "status": bson.M{"$ne": string(models.StatusRemoved)}},
		bson.M{"$set": set},
		options.After,
	)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, r.explain(ctx, id, repository.ErrStatusConflict)
	}
	return post, nil
}

func (r *postRepository) IncrementViews(ctx context.Context, id string) (int64, error) {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok {
		return 0, repository.ErrPostNotFound
	}
	post, err := r.findAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$inc": bson.M{"metrics.views": 1}},
		options.After,
	)
	if err != nil {
		return 0, err
	}
	if post == nil {
		return 0, repository.ErrPostNotFound
	}
	return post.Metrics.Views, nil
}

func (r *postRepository) ApplyVote(ctx context.Context, id string, vt models.VoteType, delta int64, now time.Time) (*models.Metrics, error) {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	post, err := r.findAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$inc": bson.M{
				"metrics." + vt.MetricField(): delta,
				"metrics.total_votes":         delta,
				"metrics.viral_score":         vt.ScoreDelta() * delta,
			},
			"$set": bson.M{"updated_at": now},
		},
		options.After,
	)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, repository.ErrPostNotFound
	}
	return &post.Metrics, nil
}

func (r *postRepository) TransitionStatus(ctx context.Context, id string, from, to models.Status, mod *models.Moderation, now time.Time) (*models.Post, error) {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok {
		return nil, repository.ErrPostNotFound
	}

	set := bson.M{"status": string(to), "updated_at": now}
	if to == models.StatusPublished {
		set["published_at"] = now
	}
	if mod != nil {
		set["moderator_notes"] = mod.Notes
		set["moderated_by"] = mod.By
		set["moderated_at"] = now
	}

	post, err := r.findAndUpdate(ctx,
		bson.M{"_id": oid, "status": string(from)},
		bson.M{"$set": set},
		options.After,
	)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, r.explain(ctx, id, repository.ErrStatusConflict)
	}
	return post, nil
}

func (r *postRepository) MarkViral(ctx context.Context, id string, threshold int64, now time.Time) (*models.Post, error) {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	// A pipeline update keeps an existing mint request (manual or recorded) intact.
	autoMint := bson.M{"$mergeObjects": bson.A{
		bson.M{"$ifNull": bson.A{"$nft_metadata", bson.M{}}},
		bson.M{
			"mint_requested":     true,
			"mint_requested_at":  now,
			"auto_minted":        true,
			"royalty_percentage": models.DefaultRoyaltyPercentage,
		},
	}}
	return r.findAndUpdate(ctx,
		bson.M{
			"_id":                 oid,
			"status":              bson.M{"$in": statusStrings(models.ViralSourceStatuses)},
			"metrics.viral_score": bson.M{"$gte": threshold},
		},
		mongo.Pipeline{{{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(models.StatusViral)},
			{Key: "viral_at", Value: now},
			{Key: "updated_at", Value: now},
			{Key: "nft_metadata", Value: bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$nft_metadata.mint_requested", true}},
				"$nft_metadata",
				autoMint,
			}}},
		}}}},
		options.Before,
	)
}

func (r *postRepository) RequestMint(ctx context.Context, id string, allowed []models.Status, now time.Time) (*models.Post, error) {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	post, err := r.findAndUpdate(ctx,
		bson.M{
			"_id":                         oid,
			"status":                      bson.M{"$in": statusStrings(allowed)},
			"nft_metadata.mint_requested": bson.M{"$ne": true},
		},
		bson.M{"$set": bson.M{
			"updated_at":                      now,
			"nft_metadata.mint_requested":     true,
			"nft_metadata.mint_requested_at":  now,
			"nft_metadata.auto_minted":        false,
			"nft_metadata.royalty_percentage": models.DefaultRoyaltyPercentage,
		}},
		options.After,
	)
	if err != nil {
		return nil, err
	}
	if post != nil {
		return post, nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.NFT != nil && current.NFT.MintRequested {
		return nil, repository.ErrMintAlreadyRequested
	}
	return nil, repository.ErrStatusConflict
}

func (r *postRepository) RecordMint(ctx context.Context, id string, rec models.MintRecord) (*models.Post, error) {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	post, err := r.findAndUpdate(ctx,
		bson.M{
			"_id":                         oid,
			"nft_metadata.mint_requested": true,
			"nft_metadata.is_minted":      bson.M{"$ne": true},
		},
		bson.M{"$set": bson.M{
			"updated_at":                      rec.MintedAt,
			"nft_metadata.token_id":           rec.TokenID,
			"nft_metadata.contract_address":   rec.ContractAddress,
			"nft_metadata.token_uri":          rec.TokenURI,
			"nft_metadata.metadata_ipfs_hash": rec.MetadataIPFSHash,
			"nft_metadata.minted_tx_hash":     rec.TxHash,
			"nft_metadata.minted_at":          rec.MintedAt,
			"nft_metadata.current_owner":      rec.Owner,
			"nft_metadata.is_minted":          true,
		}},
		options.After,
	)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, r.explain(ctx, id, repository.ErrMintNotPending)
	}
	return post, nil
}

func (r *postRepository) RecordTransfer(ctx context.Context, id string, sale models.SaleRecord) (*models.Post, error) {
	oid, ok := mongoplatform.ObjectID(id)
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	price := mongoplatform.ToDecimal128(sale.Price)
	post, err := r.findAndUpdate(ctx,
		bson.M{
			"_id":                        oid,
			"nft_metadata.is_minted":     true,
			"nft_metadata.current_owner": sale.From,
		},
		bson.M{
			"$set": bson.M{
				"updated_at":                   sale.Date,
				"nft_metadata.current_owner":   sale.To,
				"nft_metadata.last_sale_price": price,
				"nft_metadata.last_sale_date":  sale.Date,
			},
			"$push": bson.M{"nft_metadata.sale_history": saleDocument{
				From:  sale.From,
				To:    sale.To,
				Price: price,
				Date:  sale.Date,
			}},
		},
		options.After,
	)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, r.explain(ctx, id, repository.ErrOwnerChanged)
	}
	return post, nil
}
