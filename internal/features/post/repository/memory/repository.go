package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"viralsafe-backend/internal/features/post/models"
	"viralsafe-backend/internal/features/post/repository"
)

// PostRepository keeps posts in process memory. Used by tests and STORE_BACKEND=memory.
type PostRepository struct {
	mu    sync.RWMutex
	posts map[string]*models.Post
}

func NewPostRepository() *PostRepository {
	return &PostRepository{posts: make(map[string]*models.Post)}
}

var _ repository.PostRepository = (*PostRepository)(nil)

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Tags.Hashtags = append([]string(nil), p.Tags.Hashtags...)
	c.Tags.Mentions = append([]string(nil), p.Tags.Mentions...)
	c.PublishedAt = copyTime(p.PublishedAt)
	c.ViralAt = copyTime(p.ViralAt)
	c.ModeratedAt = copyTime(p.ModeratedAt)
	if p.NFT != nil {
		n := *p.NFT
		n.MintedAt = copyTime(p.NFT.MintedAt)
		n.MintRequestedAt = copyTime(p.NFT.MintRequestedAt)
		n.LastSaleDate = copyTime(p.NFT.LastSaleDate)
		if p.NFT.LastSalePrice != nil {
			price := *p.NFT.LastSalePrice
			n.LastSalePrice = &price
		}
		n.SaleHistory = append([]models.SaleRecord(nil), p.NFT.SaleHistory...)
		c.NFT = &n
	}
	return &c
}

func (r *PostRepository) Create(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post.ID = uuid.New().String()
	r.posts[post.ID] = clonePost(post)
	return nil
}

func (r *PostRepository) GetByID(_ context.Context, id string) (*models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	return clonePost(p), nil
}

func hasStatus(s models.Status, set []models.Status) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (r *PostRepository) List(_ context.Context, q models.FeedQuery) ([]*models.Post, error) {
	page, size := repository.Page(q)

	r.mu.RLock()
	matched := make([]*models.Post, 0, len(r.posts))
	for _, p := range r.posts {
		if q.Feed == models.FeedViral {
			if p.Status != models.StatusViral {
				continue
			}
		} else if !p.Status.Visible() {
			continue
		}
		if q.Category != "" && p.Tags.Category != q.Category {
			continue
		}
		if q.Hashtag != "" && !hasTag(p.Tags.Hashtags, q.Hashtag) {
			continue
		}
		if q.AuthorID != "" && p.AuthorID != q.AuthorID {
			continue
		}
		if q.MinViralScore > 0 && p.Metrics.ViralScore < q.MinViralScore {
			continue
		}
		matched = append(matched, clonePost(p))
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.Feed {
		case models.FeedTrending:
			if a.Metrics.ViralScore != b.Metrics.ViralScore {
				return a.Metrics.ViralScore > b.Metrics.ViralScore
			}
		case models.FeedViral:
			if a.ViralAt != nil && b.ViralAt != nil && !a.ViralAt.Equal(*b.ViralAt) {
				return a.ViralAt.After(*b.ViralAt)
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	start := (page - 1) * size
	if start >= len(matched) {
		return []*models.Post{}, nil
	}
	end := start + size + 1
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

// mutate runs fn on the stored post under the write lock and returns a copy of the result.
func (r *PostRepository) mutate(id string, fn func(p *models.Post) error) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	return clonePost(p), nil
}

func (r *PostRepository) Update(_ context.Context, id string, changes models.PostChanges, now time.Time) (*models.Post, error) {
	return r.mutate(id, func(p *models.Post) error {
		if p.Status == models.StatusRemoved {
			return repository.ErrStatusConflict
		}
		if changes.Title != nil {
			p.Title = *changes.Title
		}
		if changes.Content != nil {
			p.Content = *changes.Content
		}
		if changes.Category != nil {
			p.Tags.Category = *changes.Category
		}
		if changes.Hashtags != nil {
			p.Tags.Hashtags = append([]string(nil), (*changes.Hashtags)...)
		}
		p.UpdatedAt = now
		return nil
	})
}

func (r *PostRepository) IncrementViews(_ context.Context, id string) (int64, error) {
	p, err := r.mutate(id, func(p *models.Post) error {
		p.Metrics.Views++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return p.Metrics.Views, nil
}

func (r *PostRepository) ApplyVote(_ context.Context, id string, vt models.VoteType, delta int64, now time.Time) (*models.Metrics, error) {
	p, err := r.mutate(id, func(p *models.Post) error {
		p.Metrics.Apply(vt, delta)
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p.Metrics, nil
}

func (r *PostRepository) TransitionStatus(_ context.Context, id string, from, to models.Status, mod *models.Moderation, now time.Time) (*models.Post, error) {
	return r.mutate(id, func(p *models.Post) error {
		if p.Status != from {
			return repository.ErrStatusConflict
		}
		p.Status = to
		p.UpdatedAt = now
		if to == models.StatusPublished {
			p.PublishedAt = copyTime(&now)
		}
		if mod != nil {
			p.ModeratorNotes = mod.Notes
			p.ModeratedBy = mod.By
			p.ModeratedAt = copyTime(&now)
		}
		return nil
	})
}

func (r *PostRepository) MarkViral(_ context.Context, id string, threshold int64, now time.Time) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	if !hasStatus(p.Status, models.ViralSourceStatuses) || p.Metrics.ViralScore < threshold {
		return nil, nil
	}

	before := clonePost(p)
	p.Status = models.StatusViral
	p.ViralAt = copyTime(&now)
	p.UpdatedAt = now
	if p.NFT != nil && p.NFT.MintRequested {
		return before, nil
	}
	if p.NFT == nil {
		p.NFT = &models.NFTMetadata{}
	}
	p.NFT.MintRequested = true
	p.NFT.MintRequestedAt = copyTime(&now)
	p.NFT.AutoMinted = true
	p.NFT.RoyaltyPercentage = models.DefaultRoyaltyPercentage
	return before, nil
}

func (r *PostRepository) RequestMint(_ context.Context, id string, allowed []models.Status, now time.Time) (*models.Post, error) {
	return r.mutate(id, func(p *models.Post) error {
		if p.NFT != nil && p.NFT.MintRequested {
			return repository.ErrMintAlreadyRequested
		}
		if !hasStatus(p.Status, allowed) {
			return repository.ErrStatusConflict
		}
		if p.NFT == nil {
			p.NFT = &models.NFTMetadata{}
		}
		p.NFT.MintRequested = true
		p.NFT.MintRequestedAt = copyTime(&now)
		p.NFT.AutoMinted = false
		p.NFT.RoyaltyPercentage = models.DefaultRoyaltyPercentage
		p.UpdatedAt = now
		return nil
	})
}

func (r *PostRepository) RecordMint(_ context.Context, id string, rec models.MintRecord) (*models.Post, error) {
	return r.mutate(id, func(p *models.Post) error {
		if p.NFT == nil || !p.NFT.MintRequested || p.NFT.IsMinted {
			return repository.ErrMintNotPending
		}
		p.NFT.TokenID = rec.TokenID
		p.NFT.ContractAddress = rec.ContractAddress
		p.NFT.TokenURI = rec.TokenURI
		p.NFT.MetadataIPFSHash = rec.MetadataIPFSHash
		p.NFT.MintedTxHash = rec.TxHash
		p.NFT.MintedAt = copyTime(&rec.MintedAt)
		p.NFT.CurrentOwner = rec.Owner
		p.NFT.IsMinted = true
		p.UpdatedAt = rec.MintedAt
		return nil
	})
}

func (r *PostRepository) RecordTransfer(_ context.Context, id string, sale models.SaleRecord) (*models.Post, error) {
	return r.mutate(id, func(p *models.Post) error {
		if p.NFT == nil || !p.NFT.IsMinted || p.NFT.CurrentOwner != sale.From {
			return repository.ErrOwnerChanged
		}
		price := sale.Price
		p.NFT.CurrentOwner = sale.To
		p.NFT.LastSalePrice = &price
		p.NFT.LastSaleDate = copyTime(&sale.Date)
		p.NFT.SaleHistory = append(p.NFT.SaleHistory, sale)
		p.UpdatedAt = sale.Date
		return nil
	})
}

// VoteRepository enforces one vote per (post, user) like the unique index does in Mongo.
type VoteRepository struct {
	mu    sync.RWMutex
	votes map[string]*models.Vote
	byKey map[string]string
}

func NewVoteRepository() *VoteRepository {
	return &VoteRepository{
		votes: make(map[string]*models.Vote),
		byKey: make(map[string]string),
	}
}

var _ repository.VoteRepository = (*VoteRepository)(nil)

func voteKey(postID, userID string) string { return postID + "|" + userID }

func (r *VoteRepository) Create(_ context.Context, vote *models.Vote) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := voteKey(vote.PostID, vote.UserID)
	if _, exists := r.byKey[key]; exists {
		return repository.ErrDuplicateVote
	}
	vote.ID = uuid.New().String()
	v := *vote
	r.votes[vote.ID] = &v
	r.byKey[key] = vote.ID
	return nil
}

func (r *VoteRepository) Get(_ context.Context, postID, userID string) (*models.Vote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[voteKey(postID, userID)]
	if !ok {
		return nil, repository.ErrVoteNotFound
	}
	v := *r.votes[id]
	return &v, nil
}

func (r *VoteRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.votes[id]
	if !ok {
		return repository.ErrVoteNotFound
	}
	delete(r.byKey, voteKey(v.PostID, v.UserID))
	delete(r.votes, id)
	return nil
}
