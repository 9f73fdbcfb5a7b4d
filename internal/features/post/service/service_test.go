package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viralsafe-backend/internal/common/cache"
	"viralsafe-backend/internal/common/errors"
	"viralsafe-backend/internal/features/post/models"
	postmemory "viralsafe-backend/internal/features/post/repository/memory"
	usermodels "viralsafe-backend/internal/features/user/models"
	usermemory "viralsafe-backend/internal/features/user/repository/memory"
	"viralsafe-backend/internal/platform/events"
)

type recordingPublisher struct {
	mu       sync.Mutex
	requests []events.MintRequest
	err      error
}

func (p *recordingPublisher) PublishMintRequest(_ context.Context, req events.MintRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type fixture struct {
	svc       *Service
	posts     *postmemory.PostRepository
	votes     *postmemory.VoteRepository
	users     *usermemory.Repository
	publisher *recordingPublisher
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		posts:     postmemory.NewPostRepository(),
		votes:     postmemory.NewVoteRepository(),
		users:     usermemory.NewRepository(),
		publisher: &recordingPublisher{},
		now:       time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewPostService(f.posts, f.votes, f.users, f.users, f.publisher, nil, Config{
		ViralThreshold: 1000,
		UpVoteCost:     decimal.NewFromInt(1),
		DownVoteCost:   decimal.NewFromInt(1),
		ViralVoteCost:  decimal.NewFromInt(10),
	}).WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) user(t *testing.T, name string, role usermodels.Role, balance int64) *usermodels.User {
	t.Helper()
	u := &usermodels.User{
		WalletAddress: "0x" + name,
		Username:      name,
		Role:          role,
		Status:        usermodels.StatusActive,
		TokenBalance:  decimal.NewFromInt(balance),
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) reload(t *testing.T, u *usermodels.User) *usermodels.User {
	t.Helper()
	fresh, err := f.users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	return fresh
}

func (f *fixture) post(t *testing.T, author *usermodels.User, draft bool) *models.PostResponse {
	t.Helper()
	resp, err := f.svc.CreatePost(context.Background(), author, &models.CreatePostRequest{
		Title:    "Hello",
		Content:  "First post",
		Hashtags: []string{"#Web3", "viral"},
		Draft:    draft,
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) setScore(t *testing.T, postID string, upVotes int64) {
	t.Helper()
	_, err := f.posts.ApplyVote(context.Background(), postID, models.VoteUp, upVotes, f.now)
	require.NoError(t, err)
}

func assertCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, errors.CodeOf(err))
}

func TestCreatePost(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "alice", usermodels.RoleUser, 0)

	resp := f.post(t, author, false)
	assert.Equal(t, models.StatusPublished, resp.Status)
	assert.Equal(t, models.ContentTypeText, resp.ContentType)
	assert.Equal(t, []string{"web3", "viral"}, resp.Tags.Hashtags)
	require.NotNil(t, resp.PublishedAt)
	assert.Equal(t, int64(1), f.reload(t, author).Stats.TotalPosts)

	draft := f.post(t, author, true)
	assert.Equal(t, models.StatusDraft, draft.Status)
	assert.Nil(t, draft.PublishedAt)
}

func TestCreatePost_Validation(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	ctx := context.Background()

	_, err := f.svc.CreatePost(ctx, author, &models.CreatePostRequest{Content: "   "})
	assertCode(t, err, errors.ErrCodeValidation)

	_, err = f.svc.CreatePost(ctx, author, &models.CreatePostRequest{Content: "x", ContentType: "hologram"})
	assertCode(t, err, errors.ErrCodeValidation)

	_, err = f.svc.CreatePost(ctx, author, &models.CreatePostRequest{Content: "x", Hashtags: []string{"no spaces allowed"}})
	assertCode(t, err, errors.ErrCodeValidation)
}

func TestCastVote_CrossesThresholdExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	voter := f.user(t, "bob", usermodels.RoleUser, 100)
	late := f.user(t, "carol", usermodels.RoleUser, 100)

	post := f.post(t, author, false)
	f.setScore(t, post.ID, 99)

	resp, err := f.svc.CastVote(ctx, voter, post.ID, models.VoteUp)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.True(t, resp.ViralThresholdReached)
	assert.True(t, resp.NFTAutoMinted)
	assert.Equal(t, int64(1000), resp.NewMetrics.ViralScore)
	assert.True(t, resp.TokensSpent.Equal(decimal.NewFromInt(1)))

	stored, err := f.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusViral, stored.Status)
	require.NotNil(t, stored.ViralAt)
	require.NotNil(t, stored.NFT)
	assert.True(t, stored.NFT.MintRequested)
	assert.True(t, stored.NFT.AutoMinted)

	require.Equal(t, 1, f.publisher.count())
	assert.Equal(t, events.OriginAuto, f.publisher.requests[0].Origin)
	assert.Equal(t, post.ID, f.publisher.requests[0].PostID)
	assert.Equal(t, int64(1000), f.publisher.requests[0].ViralScore)

	again, err := f.svc.CastVote(ctx, late, post.ID, models.VoteUp)
	require.NoError(t, err)
	assert.False(t, again.ViralThresholdReached)
	assert.Equal(t, int64(1010), again.NewMetrics.ViralScore)
	assert.Equal(t, 1, f.publisher.count())

	assert.Equal(t, int64(1), f.reload(t, author).Stats.ViralPosts)
	assert.Equal(t, int64(2), f.reload(t, author).Stats.TotalVotesReceived)
	assert.Equal(t, int64(1), f.reload(t, voter).Stats.TotalVotesGiven)
}

func TestCastVote_BelowThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	voter := f.user(t, "bob", usermodels.RoleUser, 100)

	post := f.post(t, author, false)
	f.setScore(t, post.ID, 98)

	resp, err := f.svc.CastVote(ctx, voter, post.ID, models.VoteUp)
	require.NoError(t, err)
	assert.False(t, resp.ViralThresholdReached)
	assert.Equal(t, int64(990), resp.NewMetrics.ViralScore)
	assert.Zero(t, f.publisher.count())
}

func TestCastVote_MetricsStayConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	post := f.post(t, author, false)

	types := []models.VoteType{models.VoteUp, models.VoteDown, models.VoteViral, models.VoteUp, models.VoteDown}
	for i, vt := range types {
		voter := f.user(t, string(rune('b'+i))+"voter", usermodels.RoleUser, 50)
		_, err := f.svc.CastVote(ctx, voter, post.ID, vt)
		require.NoError(t, err)
	}

	stored, err := f.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	m := stored.Metrics
	assert.Equal(t, int64(2), m.UpVotes)
	assert.Equal(t, int64(2), m.DownVotes)
	assert.Equal(t, int64(1), m.ViralVotes)
	assert.Equal(t, m.UpVotes+m.DownVotes+m.ViralVotes, m.TotalVotes)
	assert.Equal(t, int64(2*10-2*5+50), m.ViralScore)
}

func TestCastVote_Duplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	voter := f.user(t, "bob", usermodels.RoleUser, 100)
	post := f.post(t, author, false)

	_, err := f.svc.CastVote(ctx, voter, post.ID, models.VoteViral)
	require.NoError(t, err)

	_, err = f.svc.CastVote(ctx, voter, post.ID, models.VoteUp)
	assertCode(t, err, errors.ErrCodeAlreadyVoted)

	assert.True(t, f.reload(t, voter).TokenBalance.Equal(decimal.NewFromInt(90)))
	stored, err := f.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Metrics.TotalVotes)
}

func TestCastVote_InsufficientTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	voter := f.user(t, "bob", usermodels.RoleUser, 5)
	post := f.post(t, author, false)

	_, err := f.svc.CastVote(ctx, voter, post.ID, models.VoteViral)
	assertCode(t, err, errors.ErrCodeInsufficientTokens)

	my, err := f.svc.GetMyVote(ctx, voter, post.ID)
	require.NoError(t, err)
	assert.False(t, my.HasVoted)
	assert.True(t, f.reload(t, voter).TokenBalance.Equal(decimal.NewFromInt(5)))
}

func TestCastVote_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 100)
	voter := f.user(t, "bob", usermodels.RoleUser, 100)
	post := f.post(t, author, false)
	draft := f.post(t, author, true)

	_, err := f.svc.CastVote(ctx, voter, "missing", models.VoteUp)
	assertCode(t, err, errors.ErrCodePostNotFound)

	_, err = f.svc.CastVote(ctx, voter, post.ID, models.VoteType("sideways"))
	assertCode(t, err, errors.ErrCodeValidation)

	_, err = f.svc.CastVote(ctx, voter, draft.ID, models.VoteUp)
	assertCode(t, err, errors.ErrCodeBadRequest)

	_, err = f.svc.CastVote(ctx, author, post.ID, models.VoteUp)
	assertCode(t, err, errors.ErrCodeForbidden)
}

func TestCastVote_PublishFailureKeepsVote(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = stderrors.New("broker down")
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	voter := f.user(t, "bob", usermodels.RoleUser, 100)

	post := f.post(t, author, false)
	f.setScore(t, post.ID, 99)

	resp, err := f.svc.CastVote(ctx, voter, post.ID, models.VoteUp)
	require.NoError(t, err)
	assert.True(t, resp.ViralThresholdReached)
	assert.Equal(t, 1, f.publisher.count())
}

func TestGetMyVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	voter := f.user(t, "bob", usermodels.RoleUser, 100)
	post := f.post(t, author, false)

	_, err := f.svc.CastVote(ctx, voter, post.ID, models.VoteDown)
	require.NoError(t, err)

	my, err := f.svc.GetMyVote(ctx, voter, post.ID)
	require.NoError(t, err)
	require.True(t, my.HasVoted)
	assert.Equal(t, models.VoteDown, my.Vote.VoteType)

	_, err = f.svc.GetMyVote(ctx, voter, "missing")
	assertCode(t, err, errors.ErrCodePostNotFound)
}

func TestChangeStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	stranger := f.user(t, "bob", usermodels.RoleUser, 0)
	mod := f.user(t, "mod", usermodels.RoleModerator, 0)

	draft := f.post(t, author, true)
	change := func(actor *usermodels.User, id string, to models.Status) (*models.PostResponse, error) {
		return f.svc.ChangeStatus(ctx, actor, id, &models.StatusChangeRequest{Status: to, ModeratorNotes: "checked"})
	}

	_, err := change(stranger, draft.ID, models.StatusPublished)
	assertCode(t, err, errors.ErrCodeNotOwner)

	published, err := change(author, draft.ID, models.StatusPublished)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)

	_, err = change(author, draft.ID, models.StatusApproved)
	assertCode(t, err, errors.ErrCodeForbidden)

	_, err = change(mod, draft.ID, models.StatusApproved)
	assertCode(t, err, errors.ErrCodeInvalidStatusTransition)

	_, err = change(mod, draft.ID, models.StatusViral)
	assertCode(t, err, errors.ErrCodeInvalidStatusTransition)

	review, err := change(mod, draft.ID, models.StatusUnderReview)
	require.NoError(t, err)
	assert.Equal(t, "checked", review.ModeratorNotes)
	require.NotNil(t, review.ModeratedAt)

	approved, err := change(mod, draft.ID, models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)

	removed, err := change(author, draft.ID, models.StatusRemoved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRemoved, removed.Status)

	_, err = change(mod, draft.ID, models.StatusUnderReview)
	assertCode(t, err, errors.ErrCodeInvalidStatusTransition)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.Status
		want     bool
	}{
		{models.StatusDraft, models.StatusPublished, true},
		{models.StatusDraft, models.StatusApproved, false},
		{models.StatusPublished, models.StatusUnderReview, true},
		{models.StatusUnderReview, models.StatusApproved, true},
		{models.StatusUnderReview, models.StatusRejected, true},
		{models.StatusPublished, models.StatusViral, true},
		{models.StatusApproved, models.StatusViral, true},
		{models.StatusUnderReview, models.StatusViral, false},
		{models.StatusViral, models.StatusRemoved, true},
		{models.StatusRemoved, models.StatusPublished, false},
		{models.StatusRemoved, models.StatusRemoved, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, models.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestUpdatePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	other := f.user(t, "bob", usermodels.RoleUser, 0)
	post := f.post(t, author, false)

	title := "Edited"
	tags := []string{"#News"}
	updated, err := f.svc.UpdatePost(ctx, author, post.ID, &models.UpdatePostRequest{Title: &title, Hashtags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "Edited", updated.Title)
	assert.Equal(t, []string{"news"}, updated.Tags.Hashtags)
	assert.Equal(t, "First post", updated.Content)

	_, err = f.svc.UpdatePost(ctx, other, post.ID, &models.UpdatePostRequest{Title: &title})
	assertCode(t, err, errors.ErrCodeNotOwner)

	empty := " "
	_, err = f.svc.UpdatePost(ctx, author, post.ID, &models.UpdatePostRequest{Content: &empty})
	assertCode(t, err, errors.ErrCodeValidation)
}

func TestGetPost_ViewsAndVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	voter := f.user(t, "bob", usermodels.RoleUser, 10)
	post := f.post(t, author, false)
	draft := f.post(t, author, true)

	_, err := f.svc.CastVote(ctx, voter, post.ID, models.VoteUp)
	require.NoError(t, err)

	_, err = f.svc.GetPost(ctx, nil, post.ID)
	require.NoError(t, err)
	got, err := f.svc.GetPost(ctx, nil, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Metrics.Views)
	assert.InDelta(t, 50.0, got.Metrics.EngagementRate, 0.001)

	_, err = f.svc.GetPost(ctx, voter, draft.ID)
	assertCode(t, err, errors.ErrCodePostNotFound)

	own, err := f.svc.GetPost(ctx, author, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), own.Metrics.Views)
}

func TestGetPost_CacheInvalidatedByVote(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(t)
	f.svc.cache = cache.NewCacheService(rdb, time.Minute)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	voter := f.user(t, "bob", usermodels.RoleUser, 10)
	post := f.post(t, author, false)

	_, err := f.svc.GetPost(ctx, nil, post.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.PostKey(post.ID)))

	_, err = f.svc.CastVote(ctx, voter, post.ID, models.VoteUp)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.PostKey(post.ID)))

	got, err := f.svc.GetPost(ctx, nil, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Metrics.TotalVotes)
	assert.Equal(t, int64(2), got.Metrics.Views)
}

func TestGetPost_CachedViewsKeepCounting(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(t)
	f.svc.cache = cache.NewCacheService(rdb, time.Minute)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	post := f.post(t, author, false)

	for want := int64(1); want <= 3; want++ {
		got, err := f.svc.GetPost(ctx, nil, post.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got.Metrics.Views)
	}

	var cached models.PostResponse
	require.NoError(t, f.svc.cache.Get(ctx, cache.PostKey(post.ID), &cached))
	assert.Equal(t, int64(3), cached.Metrics.Views)

	stored, err := f.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Metrics.Views)
}

func TestFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, f.post(t, author, false).ID)
		f.now = f.now.Add(time.Minute)
	}
	f.post(t, author, true)
	f.setScore(t, ids[0], 30)
	f.setScore(t, ids[1], 5)

	latest, err := f.svc.Feed(ctx, models.FeedQuery{})
	require.NoError(t, err)
	assert.Equal(t, models.FeedLatest, latest.Feed)
	require.Len(t, latest.Posts, 3)
	assert.Equal(t, ids[2], latest.Posts[0].ID)
	assert.False(t, latest.HasMore)

	trending, err := f.svc.Feed(ctx, models.FeedQuery{Feed: models.FeedTrending, Size: 2})
	require.NoError(t, err)
	require.Len(t, trending.Posts, 2)
	assert.Equal(t, ids[0], trending.Posts[0].ID)
	assert.Equal(t, ids[1], trending.Posts[1].ID)
	assert.True(t, trending.HasMore)

	filtered, err := f.svc.Feed(ctx, models.FeedQuery{Hashtag: "#WEB3", MinViralScore: 100})
	require.NoError(t, err)
	require.Len(t, filtered.Posts, 1)
	assert.Equal(t, ids[0], filtered.Posts[0].ID)

	viral, err := f.svc.Feed(ctx, models.FeedQuery{Feed: models.FeedViral})
	require.NoError(t, err)
	assert.Empty(t, viral.Posts)

	_, err = f.svc.Feed(ctx, models.FeedQuery{Feed: "random"})
	assertCode(t, err, errors.ErrCodeValidation)
}

func approvedPost(t *testing.T, f *fixture, author, mod *usermodels.User) *models.PostResponse {
	t.Helper()
	ctx := context.Background()
	post := f.post(t, author, false)
	for _, to := range []models.Status{models.StatusUnderReview, models.StatusApproved} {
		_, err := f.svc.ChangeStatus(ctx, mod, post.ID, &models.StatusChangeRequest{Status: to})
		require.NoError(t, err)
	}
	return post
}

func TestRequestMint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	other := f.user(t, "bob", usermodels.RoleUser, 0)
	mod := f.user(t, "mod", usermodels.RoleModerator, 0)

	published := f.post(t, author, false)
	_, err := f.svc.RequestMint(ctx, author, published.ID)
	assertCode(t, err, errors.ErrCodeInvalidStatusTransition)

	post := approvedPost(t, f, author, mod)
	_, err = f.svc.RequestMint(ctx, other, post.ID)
	assertCode(t, err, errors.ErrCodeNotOwner)

	resp, err := f.svc.RequestMint(ctx, author, post.ID)
	require.NoError(t, err)
	assert.True(t, resp.MintRequested)
	require.Equal(t, 1, f.publisher.count())
	assert.Equal(t, events.OriginManual, f.publisher.requests[0].Origin)

	_, err = f.svc.RequestMint(ctx, author, post.ID)
	assertCode(t, err, errors.ErrCodeMintAlreadyRequested)
	assert.Equal(t, 1, f.publisher.count())
}

func TestRequestMint_AfterAutoMint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	voter := f.user(t, "bob", usermodels.RoleUser, 100)
	post := f.post(t, author, false)
	f.setScore(t, post.ID, 99)

	_, err := f.svc.CastVote(ctx, voter, post.ID, models.VoteUp)
	require.NoError(t, err)

	_, err = f.svc.RequestMint(ctx, author, post.ID)
	assertCode(t, err, errors.ErrCodeMintAlreadyRequested)
}

func TestCastVote_ViralAfterManualMintKeepsManualRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	voter := f.user(t, "bob", usermodels.RoleUser, 100)
	mod := f.user(t, "mod", usermodels.RoleModerator, 0)
	post := approvedPost(t, f, author, mod)

	_, err := f.svc.RequestMint(ctx, author, post.ID)
	require.NoError(t, err)
	requestedAt := f.now

	f.now = f.now.Add(time.Hour)
	f.setScore(t, post.ID, 99)

	resp, err := f.svc.CastVote(ctx, voter, post.ID, models.VoteUp)
	require.NoError(t, err)
	assert.True(t, resp.ViralThresholdReached)
	assert.False(t, resp.NFTAutoMinted)
	assert.Equal(t, 1, f.publisher.count())

	stored, err := f.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusViral, stored.Status)
	require.NotNil(t, stored.NFT)
	assert.True(t, stored.NFT.MintRequested)
	assert.False(t, stored.NFT.AutoMinted)
	require.NotNil(t, stored.NFT.MintRequestedAt)
	assert.True(t, requestedAt.Equal(*stored.NFT.MintRequestedAt))
}

func TestCastVote_ConcurrentVotesCrossOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	post := f.post(t, author, false)
	f.setScore(t, post.ID, 99)

	const n = 20
	voters := make([]*usermodels.User, n)
	for i := range voters {
		voters[i] = f.user(t, fmt.Sprintf("voter%02d", i), usermodels.RoleUser, 10)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		reached int
		failed  []error
	)
	for _, v := range voters {
		wg.Add(1)
		go func(v *usermodels.User) {
			defer wg.Done()
			resp, err := f.svc.CastVote(ctx, v, post.ID, models.VoteUp)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, err)
				return
			}
			if resp.ViralThresholdReached {
				reached++
			}
		}(v)
	}
	wg.Wait()

	require.Empty(t, failed)
	assert.Equal(t, 1, reached)
	assert.Equal(t, 1, f.publisher.count())

	stored, err := f.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusViral, stored.Status)
	assert.Equal(t, int64(99+n), stored.Metrics.UpVotes)
	assert.Equal(t, int64(99+n), stored.Metrics.TotalVotes)
	assert.Equal(t, int64((99+n)*10), stored.Metrics.ViralScore)
	assert.Equal(t, int64(1), f.reload(t, author).Stats.ViralPosts)
}

func TestCastVote_ConcurrentDuplicatesChargeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	voter := f.user(t, "bob", usermodels.RoleUser, 200)
	post := f.post(t, author, false)

	const n = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		codes     []errors.ErrorCode
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CastVote(ctx, voter, post.ID, models.VoteViral)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				codes = append(codes, errors.CodeOf(err))
				return
			}
			succeeded++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	require.Len(t, codes, n-1)
	for _, code := range codes {
		assert.Equal(t, errors.ErrCodeAlreadyVoted, code)
	}

	assert.True(t, f.reload(t, voter).TokenBalance.Equal(decimal.NewFromInt(190)))
	stored, err := f.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Metrics.TotalVotes)
	assert.Equal(t, int64(1), stored.Metrics.ViralVotes)
}

const (
	contract = "0x1111111111111111111111111111111111111111"
	owner    = "0x2222222222222222222222222222222222222222"
	buyer    = "0x3333333333333333333333333333333333333333"
	txHash   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

func TestRecordMintAndTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "alice", usermodels.RoleUser, 0)
	mod := f.user(t, "mod", usermodels.RoleModerator, 0)
	post := approvedPost(t, f, author, mod)

	mintReq := &models.RecordMintRequest{
		TokenID:         "42",
		ContractAddress: contract,
		TokenURI:        "ipfs://bafy/42.json",
		TxHash:          txHash,
		Owner:           owner,
	}

	_, err := f.svc.RecordMint(ctx, post.ID, mintReq)
	assertCode(t, err, errors.ErrCodeConflict)

	_, err = f.svc.RecordTransfer(ctx, post.ID, &models.TransferRequest{To: buyer})
	assertCode(t, err, errors.ErrCodeConflict)

	_, err = f.svc.RequestMint(ctx, author, post.ID)
	require.NoError(t, err)

	bad := *mintReq
	bad.TxHash = "0x12"
	_, err = f.svc.RecordMint(ctx, post.ID, &bad)
	assertCode(t, err, errors.ErrCodeValidation)

	minted, err := f.svc.RecordMint(ctx, post.ID, mintReq)
	require.NoError(t, err)
	require.NotNil(t, minted.NFTMetadata)
	assert.True(t, minted.NFTMetadata.IsMinted)
	assert.Equal(t, "42", minted.NFTMetadata.TokenID)
	assert.Equal(t, owner, minted.NFTMetadata.CurrentOwner)
	require.NotNil(t, minted.NFTMetadata.MintedAt)

	fresh := f.reload(t, author)
	assert.Equal(t, int64(1), fresh.Stats.TotalNFTsMinted)
	assert.Equal(t, int64(1), fresh.NFTCount)

	_, err = f.svc.RecordMint(ctx, post.ID, mintReq)
	assertCode(t, err, errors.ErrCodeConflict)

	sold, err := f.svc.RecordTransfer(ctx, post.ID, &models.TransferRequest{To: buyer, Price: decimal.RequireFromString("1.5")})
	require.NoError(t, err)
	assert.Equal(t, buyer, sold.NFTMetadata.CurrentOwner)
	require.Len(t, sold.NFTMetadata.SaleHistory, 1)
	assert.Equal(t, owner, sold.NFTMetadata.SaleHistory[0].From)
	require.NotNil(t, sold.NFTMetadata.LastSalePrice)
	assert.True(t, sold.NFTMetadata.LastSalePrice.Equal(decimal.RequireFromString("1.5")))

	_, err = f.svc.RecordTransfer(ctx, post.ID, &models.TransferRequest{To: "nope"})
	assertCode(t, err, errors.ErrCodeValidation)
}
