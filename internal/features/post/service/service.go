package service

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"viralsafe-backend/internal/common/cache"
	"viralsafe-backend/internal/common/errors"
	"viralsafe-backend/internal/common/logger"
	"viralsafe-backend/internal/common/metrics"
	"viralsafe-backend/internal/common/validation"
	"viralsafe-backend/internal/features/post/mapper"
	"viralsafe-backend/internal/features/post/models"
	"viralsafe-backend/internal/features/post/repository"
	usermodels "viralsafe-backend/internal/features/user/models"
	userservice "viralsafe-backend/internal/features/user/service"
	"viralsafe-backend/internal/platform/events"
)

const (
	postCacheTTL = time.Minute
	feedCacheTTL = 30 * time.Second

	maxCategoryLength = 50
	maxMentions       = 20
)

var txHashRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Config carries the voting economy.
type Config struct {
	ViralThreshold int64
	UpVoteCost     decimal.Decimal
	DownVoteCost   decimal.Decimal
	ViralVoteCost  decimal.Decimal
}

func (c Config) cost(vt models.VoteType) decimal.Decimal {
	switch vt {
	case models.VoteUp:
		return c.UpVoteCost
	case models.VoteDown:
		return c.DownVoteCost
	case models.VoteViral:
		return c.ViralVoteCost
	}
	return decimal.Zero
}

type Service struct {
	posts     repository.PostRepository
	votes     repository.VoteRepository
	ledger    TokenLedger
	stats     StatsRecorder
	publisher events.Publisher
	cache     *cache.CacheService
	cfg       Config
	now       func() time.Time
}

// NewPostService wires the content and voting service. cache may be nil.
func NewPostService(
	posts repository.PostRepository,
	votes repository.VoteRepository,
	ledger TokenLedger,
	stats StatsRecorder,
	publisher events.Publisher,
	cache *cache.CacheService,
	cfg Config,
) *Service {
	if publisher == nil {
		publisher = events.NewLogPublisher()
	}
	return &Service{
		posts:     posts,
		votes:     votes,
		ledger:    ledger,
		stats:     stats,
		publisher: publisher,
		cache:     cache,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var _ PostService = (*Service)(nil)

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func mapError(err error, postID string) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, repository.ErrPostNotFound):
		return errors.NewPostNotFoundError(postID)
	case stderrors.Is(err, repository.ErrDuplicateVote):
		return alreadyVoted(postID)
	case stderrors.Is(err, repository.ErrStatusConflict):
		return errors.New(errors.ErrCodeInvalidStatusTransition, "Post status does not allow this change").
			WithDetail("post_id", postID)
	case stderrors.Is(err, repository.ErrMintAlreadyRequested):
		return errors.New(errors.ErrCodeMintAlreadyRequested, "NFT mint already requested").
			WithDetail("post_id", postID)
	case stderrors.Is(err, repository.ErrMintNotPending):
		return errors.NewConflictError("nft", "no pending mint request")
	case stderrors.Is(err, repository.ErrOwnerChanged):
		return errors.NewConflictError("nft", "token is not minted or owner changed")
	default:
		return errors.NewDatabaseError("post", err)
	}
}

func alreadyVoted(postID string) *errors.AppError {
	return errors.New(errors.ErrCodeAlreadyVoted, "You have already voted on this post").
		WithDetail("post_id", postID)
}

func canSeeHidden(viewer *usermodels.User, post *models.Post) bool {
	return viewer != nil && (viewer.ID == post.AuthorID || viewer.Role.CanModerate())
}

func normalizeMentions(mentions []string) ([]string, error) {
	out := make([]string, 0, len(mentions))
	seen := make(map[string]struct{}, len(mentions))
	for _, m := range mentions {
		m = strings.TrimPrefix(strings.TrimSpace(m), "@")
		if m == "" {
			continue
		}
		name, err := validation.NormalizeUsername(m)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if len(out) > maxMentions {
		return nil, stderrors.New("too many mentions")
	}
	return out, nil
}

func (s *Service) CreatePost(ctx context.Context, author *usermodels.User, req *models.CreatePostRequest) (*models.PostResponse, error) {
	res := &validation.Result{}
	content := strings.TrimSpace(req.Content)
	title := strings.TrimSpace(req.Title)
	res.Check("content", validation.ValidateContent(content))
	res.Check("title", validation.ValidateTitle(title))
	res.Check("category", validation.ValidateMaxLength(req.Category, maxCategoryLength))

	contentType := req.ContentType
	if contentType == "" {
		contentType = models.ContentTypeText
	}
	if !contentType.Valid() {
		res.Add("content_type", "unsupported content type")
	}
	hashtags, err := validation.NormalizeHashtags(req.Hashtags)
	res.Check("hashtags", err)
	mentions, err := normalizeMentions(req.Mentions)
	res.Check("mentions", err)
	if err := res.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	post := &models.Post{
		AuthorID:     author.ID,
		AuthorWallet: author.WalletAddress,
		Title:        title,
		Content:      content,
		ContentType:  contentType,
		Status:       models.StatusPublished,
		Tags: models.Tags{
			Category: strings.ToLower(strings.TrimSpace(req.Category)),
			Hashtags: hashtags,
			Mentions: mentions,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Draft {
		post.Status = models.StatusDraft
	} else {
		post.PublishedAt = &now
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, mapError(err, "")
	}
	if err := s.stats.IncrementStat(ctx, author.ID, usermodels.StatTotalPosts, 1); err != nil {
		logger.Warn().Err(err).Str("user_id", author.ID).Msg("Failed to update post count")
	}
	s.invalidateFeeds(ctx)

	logger.Info().
		Str("post_id", post.ID).
		Str("author_id", author.ID).
		Str("status", string(post.Status)).
		Msg("Post created")
	return mapper.ToPostResponse(post), nil
}

func (s *Service) GetPost(ctx context.Context, viewer *usermodels.User, id string) (*models.PostResponse, error) {
	if s.cache != nil {
		var cached models.PostResponse
		if err := s.cache.Get(ctx, cache.PostKey(id), &cached); err == nil {
			views, err := s.posts.IncrementViews(ctx, id)
			if err != nil {
				return nil, mapError(err, id)
			}
			cached.Metrics.Views = views
			cached.Metrics = cached.Metrics.WithEngagement()
			s.cachePost(ctx, &cached)
			return &cached, nil
		}
	}

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, mapError(err, id)
	}
	if !post.Status.Visible() {
		if !canSeeHidden(viewer, post) {
			return nil, errors.NewPostNotFoundError(id)
		}
		return mapper.ToPostResponse(post), nil
	}

	views, err := s.posts.IncrementViews(ctx, id)
	if err != nil {
		return nil, mapError(err, id)
	}
	post.Metrics.Views = views

	resp := mapper.ToPostResponse(post)
	s.cachePost(ctx, resp)
	return resp, nil
}

func (s *Service) cachePost(ctx context.Context, resp *models.PostResponse) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cache.PostKey(resp.ID), resp, postCacheTTL); err != nil {
		logger.Warn().Err(err).Str("post_id", resp.ID).Msg("Failed to cache post")
	}
}

func (s *Service) Feed(ctx context.Context, q models.FeedQuery) (*models.FeedResponse, error) {
	switch q.Feed {
	case "":
		q.Feed = models.FeedLatest
	case models.FeedLatest, models.FeedTrending, models.FeedViral:
	default:
		return nil, errors.NewValidationError("feed", "must be one of latest, trending, viral")
	}
	if q.MinViralScore < 0 {
		return nil, errors.NewValidationError("min_viral_score", "cannot be negative")
	}
	q.Page, q.Size = repository.Page(q)
	q.Category = strings.ToLower(strings.TrimSpace(q.Category))
	q.Hashtag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(q.Hashtag, "#")))

	key := cache.FeedKey(q.Feed, q.Page, q.Size, q.Category, q.Hashtag, q.AuthorID, q.MinViralScore)
	if s.cache != nil {
		var cached models.FeedResponse
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	posts, err := s.posts.List(ctx, q)
	if err != nil {
		return nil, mapError(err, "")
	}
	hasMore := len(posts) > q.Size
	if hasMore {
		posts = posts[:q.Size]
	}

	resp := &models.FeedResponse{
		Posts:   mapper.ToPostResponses(posts),
		Feed:    q.Feed,
		Page:    q.Page,
		Size:    q.Size,
		HasMore: hasMore,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp, feedCacheTTL); err != nil {
			logger.Warn().Err(err).Str("feed", q.Feed).Msg("Failed to cache feed")
		}
	}
	return resp, nil
}

func (s *Service) UpdatePost(ctx context.Context, actor *usermodels.User, id string, req *models.UpdatePostRequest) (*models.PostResponse, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, mapError(err, id)
	}
	if post.AuthorID != actor.ID {
		return nil, errors.New(errors.ErrCodeNotOwner, "Only the author can edit this post").
			WithDetail("post_id", id)
	}
	if post.Status == models.StatusRemoved {
		return nil, errors.NewPostNotFoundError(id)
	}

	res := &validation.Result{}
	changes := models.PostChanges{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		res.Check("title", validation.ValidateTitle(title))
		changes.Title = &title
	}
	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		res.Check("content", validation.ValidateContent(content))
		changes.Content = &content
	}
	if req.Category != nil {
		category := strings.ToLower(strings.TrimSpace(*req.Category))
		res.Check("category", validation.ValidateMaxLength(category, maxCategoryLength))
		changes.Category = &category
	}
	if req.Hashtags != nil {
		hashtags, err := validation.NormalizeHashtags(*req.Hashtags)
		res.Check("hashtags", err)
		changes.Hashtags = &hashtags
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	updated, err := s.posts.Update(ctx, id, changes, s.now())
	if err != nil {
		return nil, mapError(err, id)
	}
	s.invalidatePost(ctx, id)
	return mapper.ToPostResponse(updated), nil
}

var (
	authorTargets = map[models.Status]bool{
		models.StatusPublished:   true,
		models.StatusUnderReview: true,
		models.StatusRemoved:     true,
	}
	staffTargets = map[models.Status]bool{
		models.StatusUnderReview: true,
		models.StatusApproved:    true,
		models.StatusRejected:    true,
		models.StatusRemoved:     true,
	}
)

func (s *Service) ChangeStatus(ctx context.Context, actor *usermodels.User, id string, req *models.StatusChangeRequest) (*models.PostResponse, error) {
	target := req.Status
	if !target.Valid() {
		return nil, errors.NewValidationError("status", "unknown status")
	}
	if target == models.StatusViral {
		return nil, errors.New(errors.ErrCodeInvalidStatusTransition, "Viral status is assigned by votes only")
	}
	if err := validation.ValidateMaxLength(req.ModeratorNotes, validation.MaxModeratorNotes); err != nil {
		return nil, errors.NewValidationError("moderator_notes", err.Error())
	}

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, mapError(err, id)
	}

	isAuthor := post.AuthorID == actor.ID
	isStaff := actor.Role.CanModerate()
	if !isAuthor && !isStaff {
		return nil, errors.New(errors.ErrCodeNotOwner, "Only the author or a moderator can change this post").
			WithDetail("post_id", id)
	}
	if !(isAuthor && authorTargets[target]) && !(isStaff && staffTargets[target]) {
		return nil, errors.NewForbiddenError("status change not permitted for your role").
			WithDetail("status", string(target))
	}
	if !models.CanTransition(post.Status, target) {
		return nil, errors.New(errors.ErrCodeInvalidStatusTransition, "Invalid status transition").
			WithDetail("from", string(post.Status)).
			WithDetail("to", string(target))
	}

	var mod *models.Moderation
	if isStaff && (!isAuthor || !authorTargets[target]) {
		mod = &models.Moderation{Notes: strings.TrimSpace(req.ModeratorNotes), By: actor.ID}
	}

	updated, err := s.posts.TransitionStatus(ctx, id, post.Status, target, mod, s.now())
	if err != nil {
		return nil, mapError(err, id)
	}
	s.invalidatePost(ctx, id)

	logger.Info().
		Str("post_id", id).
		Str("actor_id", actor.ID).
		Str("from", string(post.Status)).
		Str("to", string(target)).
		Msg("Post status changed")
	return mapper.ToPostResponse(updated), nil
}

func (s *Service) CastVote(ctx context.Context, voter *usermodels.User, postID string, voteType models.VoteType) (*models.VoteResponse, error) {
	if !voteType.Valid() {
		return nil, errors.NewValidationError("vote_type", "must be one of up, down, viral")
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, mapError(err, postID)
	}
	if !post.Status.Visible() {
		return nil, errors.New(errors.ErrCodeBadRequest, "Post is not open for voting").
			WithDetail("post_id", postID).
			WithDetail("status", string(post.Status))
	}
	if post.AuthorID == voter.ID {
		return nil, errors.NewForbiddenError("cannot vote on your own post")
	}

	if _, err := s.votes.Get(ctx, postID, voter.ID); err == nil {
		return nil, alreadyVoted(postID)
	} else if !stderrors.Is(err, repository.ErrVoteNotFound) {
		return nil, mapError(err, postID)
	}

	cost := s.cfg.cost(voteType)
	if cost.IsPositive() {
		if err := s.ledger.DebitTokens(ctx, voter.ID, cost); err != nil {
			return nil, userservice.MapRepositoryError(err, voter.ID)
		}
	}

	now := s.now()
	vote := &models.Vote{
		UserID:      voter.ID,
		UserWallet:  voter.WalletAddress,
		PostID:      postID,
		VoteType:    voteType,
		TokensSpent: cost,
		CreatedAt:   now,
	}
	if err := s.votes.Create(ctx, vote); err != nil {
		s.refund(ctx, voter.ID, cost)
		return nil, mapError(err, postID)
	}

	newMetrics, err := s.posts.ApplyVote(ctx, postID, voteType, 1, now)
	if err != nil {
		if delErr := s.votes.Delete(ctx, vote.ID); delErr != nil {
			logger.Error().Err(delErr).Str("vote_id", vote.ID).Msg("Failed to roll back vote")
		}
		s.refund(ctx, voter.ID, cost)
		return nil, mapError(err, postID)
	}

	reached, autoMinted := false, false
	if newMetrics.ViralScore >= s.cfg.ViralThreshold && post.Status != models.StatusViral {
		before, err := s.posts.MarkViral(ctx, postID, s.cfg.ViralThreshold, now)
		if err != nil {
			logger.Error().Err(err).Str("post_id", postID).Msg("Failed to mark post viral")
		} else if before != nil {
			reached = true
			autoMinted = s.onViral(ctx, before, newMetrics.ViralScore, now)
		}
	}

	s.bumpStat(ctx, voter.ID, usermodels.StatTotalVotesGiven)
	s.bumpStat(ctx, post.AuthorID, usermodels.StatTotalVotesReceived)
	s.invalidatePost(ctx, postID)
	metrics.VotesTotal.WithLabelValues(string(voteType)).Inc()

	message := "Vote recorded"
	if reached {
		message = "Vote recorded, post went viral"
	}
	return &models.VoteResponse{
		Success:               true,
		Message:               message,
		NewMetrics:            newMetrics.WithEngagement(),
		TokensSpent:           cost,
		ViralThresholdReached: reached,
		NFTAutoMinted:         autoMinted,
	}, nil
}

// onViral runs once per post, for the caller that won the viral transition.
// It reports whether an automatic mint was requested.
func (s *Service) onViral(ctx context.Context, before *models.Post, score int64, now time.Time) bool {
	metrics.ViralTransitionsTotal.Inc()
	s.bumpStat(ctx, before.AuthorID, usermodels.StatViralPosts)

	logger.Info().
		Str("post_id", before.ID).
		Int64("viral_score", score).
		Msg("Post went viral")

	if before.NFT != nil && before.NFT.MintRequested {
		return false
	}
	s.publishMint(ctx, events.MintRequest{
		PostID:       before.ID,
		AuthorID:     before.AuthorID,
		AuthorWallet: before.AuthorWallet,
		ViralScore:   score,
		Origin:       events.OriginAuto,
		RequestedAt:  now,
	})
	return true
}

// publishMint never fails the caller: the post already records the request.
func (s *Service) publishMint(ctx context.Context, req events.MintRequest) {
	outcome := "published"
	if err := s.publisher.PublishMintRequest(ctx, req); err != nil {
		outcome = "failed"
		logger.Error().Err(err).
			Str("post_id", req.PostID).
			Str("origin", req.Origin).
			Msg("Failed to publish mint request")
	}
	metrics.MintRequestsTotal.WithLabelValues(req.Origin, outcome).Inc()
}

func (s *Service) refund(ctx context.Context, userID string, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	if err := s.ledger.CreditTokens(ctx, userID, amount); err != nil {
		logger.Error().Err(err).
			Str("user_id", userID).
			Str("amount", amount.String()).
			Msg("Failed to refund vote tokens")
	}
}

func (s *Service) bumpStat(ctx context.Context, userID string, stat usermodels.Stat) {
	if err := s.stats.IncrementStat(ctx, userID, stat, 1); err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Str("stat", string(stat)).Msg("Failed to update user stats")
	}
}

func (s *Service) GetMyVote(ctx context.Context, voter *usermodels.User, postID string) (*models.MyVoteResponse, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, mapError(err, postID)
	}
	vote, err := s.votes.Get(ctx, postID, voter.ID)
	if stderrors.Is(err, repository.ErrVoteNotFound) {
		return &models.MyVoteResponse{HasVoted: false}, nil
	}
	if err != nil {
		return nil, mapError(err, postID)
	}
	return &models.MyVoteResponse{HasVoted: true, Vote: mapper.ToVoteView(vote)}, nil
}

var mintableStatuses = []models.Status{models.StatusApproved, models.StatusViral}

func (s *Service) RequestMint(ctx context.Context, actor *usermodels.User, postID string) (*models.MintRequestResponse, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, mapError(err, postID)
	}
	if post.AuthorID != actor.ID {
		return nil, errors.New(errors.ErrCodeNotOwner, "Only the author can request a mint").
			WithDetail("post_id", postID)
	}

	now := s.now()
	updated, err := s.posts.RequestMint(ctx, postID, mintableStatuses, now)
	if err != nil {
		if stderrors.Is(err, repository.ErrStatusConflict) {
			return nil, errors.New(errors.ErrCodeInvalidStatusTransition, "Only approved or viral posts can be minted").
				WithDetail("post_id", postID).
				WithDetail("status", string(post.Status))
		}
		return nil, mapError(err, postID)
	}
	s.invalidatePost(ctx, postID)

	s.publishMint(ctx, events.MintRequest{
		PostID:       updated.ID,
		AuthorID:     updated.AuthorID,
		AuthorWallet: updated.AuthorWallet,
		ViralScore:   updated.Metrics.ViralScore,
		Origin:       events.OriginManual,
		RequestedAt:  now,
	})
	return &models.MintRequestResponse{
		PostID:          postID,
		MintRequested:   true,
		MintRequestedAt: now,
	}, nil
}

func (s *Service) RecordMint(ctx context.Context, postID string, req *models.RecordMintRequest) (*models.PostResponse, error) {
	res := &validation.Result{}
	if strings.TrimSpace(req.TokenID) == "" {
		res.Add("token_id", "is required")
	}
	contract, err := validation.NormalizeWalletAddress(req.ContractAddress)
	res.Check("contract_address", err)
	owner, err := validation.NormalizeWalletAddress(req.Owner)
	res.Check("owner", err)
	switch {
	case strings.TrimSpace(req.TokenURI) == "":
		res.Add("token_uri", "is required")
	case !strings.HasPrefix(req.TokenURI, "ipfs://"):
		res.Check("token_uri", validation.ValidateURL(req.TokenURI))
	}
	if !txHashRegex.MatchString(req.TxHash) {
		res.Add("tx_hash", "must be a 0x-prefixed 32-byte hex hash")
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	updated, err := s.posts.RecordMint(ctx, postID, models.MintRecord{
		TokenID:          strings.TrimSpace(req.TokenID),
		ContractAddress:  contract,
		TokenURI:         req.TokenURI,
		MetadataIPFSHash: strings.TrimSpace(req.MetadataIPFSHash),
		TxHash:           strings.ToLower(req.TxHash),
		Owner:            owner,
		MintedAt:         s.now(),
	})
	if err != nil {
		return nil, mapError(err, postID)
	}

	s.bumpStat(ctx, updated.AuthorID, usermodels.StatTotalNFTsMinted)
	if err := s.stats.IncrementNFTCount(ctx, updated.AuthorID, 1); err != nil {
		logger.Warn().Err(err).Str("user_id", updated.AuthorID).Msg("Failed to update NFT count")
	}
	s.invalidatePost(ctx, postID)

	logger.Info().
		Str("post_id", postID).
		Str("token_id", updated.NFT.TokenID).
		Str("tx_hash", updated.NFT.MintedTxHash).
		Msg("NFT mint recorded")
	return mapper.ToPostResponse(updated), nil
}

func (s *Service) RecordTransfer(ctx context.Context, postID string, req *models.TransferRequest) (*models.PostResponse, error) {
	to, err := validation.NormalizeWalletAddress(req.To)
	if err != nil {
		return nil, errors.NewValidationError("to", err.Error())
	}
	if req.Price.IsNegative() {
		return nil, errors.NewValidationError("price", "cannot be negative")
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, mapError(err, postID)
	}
	if post.NFT == nil || !post.NFT.IsMinted {
		return nil, errors.NewConflictError("nft", "token is not minted")
	}

	updated, err := s.posts.RecordTransfer(ctx, postID, models.SaleRecord{
		From:  post.NFT.CurrentOwner,
		To:    to,
		Price: req.Price,
		Date:  s.now(),
	})
	if err != nil {
		return nil, mapError(err, postID)
	}
	s.invalidatePost(ctx, postID)
	return mapper.ToPostResponse(updated), nil
}

func (s *Service) invalidatePost(ctx context.Context, postID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePost(ctx, postID); err != nil {
		logger.Warn().Err(err).Str("post_id", postID).Msg("Failed to invalidate post cache")
	}
}

func (s *Service) invalidateFeeds(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, cache.FeedKey("*")); err != nil {
		logger.Warn().Err(err).Msg("Failed to invalidate feed cache")
	}
}
