package app

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"viralsafe-backend/internal/common/cache"
	"viralsafe-backend/internal/common/config"
	"viralsafe-backend/internal/common/logger"
	noncerepo "viralsafe-backend/internal/features/auth/repository"
	noncememory "viralsafe-backend/internal/features/auth/repository/memory"
	noncemongo "viralsafe-backend/internal/features/auth/repository/mongo"
	nonceredis "viralsafe-backend/internal/features/auth/repository/redis"
	authservice "viralsafe-backend/internal/features/auth/service"
	healthhttp "viralsafe-backend/internal/features/health/delivery/http"
	postrepo "viralsafe-backend/internal/features/post/repository"
	postmemory "viralsafe-backend/internal/features/post/repository/memory"
	postmongo "viralsafe-backend/internal/features/post/repository/mongo"
	postservice "viralsafe-backend/internal/features/post/service"
	userrepo "viralsafe-backend/internal/features/user/repository"
	usermemory "viralsafe-backend/internal/features/user/repository/memory"
	usermongo "viralsafe-backend/internal/features/user/repository/mongo"
	userservice "viralsafe-backend/internal/features/user/service"
	"viralsafe-backend/internal/platform/events"
	mongoplatform "viralsafe-backend/internal/platform/mongo"
	redisplatform "viralsafe-backend/internal/platform/redis"
	"viralsafe-backend/internal/workers"
)

// App owns every process-wide dependency. Backends that fail to connect are left nil and
// the API answers 503 until the process is restarted with a working configuration.
type App struct {
	Config *config.Config

	Mongo     *mongoplatform.Client
	Redis     *goredis.Client
	Cache     *cache.CacheService
	Publisher events.Publisher

	Auth  *authservice.Service
	Users userservice.UserService
	Posts *postservice.Service

	mintWorker *workers.MintResultWorker
	storeReady bool
}

type repositories struct {
	users  userrepo.UserRepository
	posts  postrepo.PostRepository
	votes  postrepo.VoteRepository
	nonces noncerepo.NonceRepository
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	a.connectRedis(ctx)

	repos, err := a.openStore(ctx)
	if err != nil {
		logger.Error().Err(err).Str("store", cfg.Store).Msg("Store unavailable, starting in degraded mode")
		a.Publisher = events.NewLogPublisher()
		return a, nil
	}
	a.storeReady = true

	a.Publisher = a.newPublisher()

	tokens, err := authservice.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.Algorithm, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	if err != nil {
		return nil, err
	}
	a.Auth = authservice.NewService(repos.users, repos.nonces, tokens, authservice.Config{
		AppName:     cfg.App.Name,
		NonceTTL:    cfg.Auth.NonceTTL,
		SignupGrant: cfg.Auth.SignupTokenGrant,
	})
	a.Users = userservice.NewUserService(repos.users, a.Cache)
	a.Posts = postservice.NewPostService(repos.posts, repos.votes, repos.users, repos.users, a.Publisher, a.Cache, postservice.Config{
		ViralThreshold: cfg.Voting.ViralThreshold,
		UpVoteCost:     cfg.Voting.UpVoteCost,
		DownVoteCost:   cfg.Voting.DownVoteCost,
		ViralVoteCost:  cfg.Voting.ViralVoteCost,
	})

	if a.Redis != nil && cfg.Events.ResultStream != "" {
		a.mintWorker = workers.NewMintResultWorker(a.Redis, a.Posts, cfg.Events.ResultStream, cfg.Events.ConsumerGroup)
	}

	logger.Info().
		Str("store", cfg.Store).
		Str("nonce_store", cfg.Auth.NonceStore).
		Str("events", cfg.Events.Backend).
		Bool("cache", a.Cache != nil).
		Msg("Application initialized")
	return a, nil
}

func (a *App) connectRedis(ctx context.Context) {
	client, err := redisplatform.NewClient(ctx, a.Config.Redis.URL)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, running without cache")
		return
	}
	a.Redis = client
	a.Cache = cache.NewCacheService(client, a.Config.Redis.CacheTTL)
}

func (a *App) openStore(ctx context.Context) (*repositories, error) {
	if a.Config.Store == "memory" {
		logger.Warn().Msg("Using in-memory store, data is lost on restart")
		return &repositories{
			users:  usermemory.NewRepository(),
			posts:  postmemory.NewPostRepository(),
			votes:  postmemory.NewVoteRepository(),
			nonces: noncememory.NewRepository(),
		}, nil
	}

	client, err := mongoplatform.NewClient(ctx, a.Config.Mongo.URL, a.Config.Mongo.Database, a.Config.Mongo.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureIndexes(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	a.Mongo = client

	db := client.Database()
	repos := &repositories{
		users:  usermongo.NewRepository(db),
		posts:  postmongo.NewPostRepository(db),
		votes:  postmongo.NewVoteRepository(db),
		nonces: noncemongo.NewRepository(db),
	}
	if a.Config.Auth.NonceStore == "redis" {
		if a.Redis != nil {
			repos.nonces = nonceredis.NewRepository(a.Redis)
		} else {
			logger.Warn().Msg("NONCE_STORE=redis but Redis is unavailable, keeping nonces in MongoDB")
		}
	}
	return repos, nil
}

func (a *App) newPublisher() events.Publisher {
	switch a.Config.Events.Backend {
	case "redis":
		if a.Redis != nil {
			return events.NewStreamPublisher(a.Redis, a.Config.Events.Stream)
		}
		logger.Warn().Msg("EVENTS_BACKEND=redis but Redis is unavailable, mint requests will only be logged")
	case "nats":
		p, err := events.NewNATSPublisher(a.Config.Events.NATSURL, a.Config.Events.NATSSubject)
		if err == nil {
			return p
		}
		logger.Warn().Err(err).Msg("NATS unavailable, mint requests will only be logged")
	}
	return events.NewLogPublisher()
}

// StoreReady reports whether the persistence backend came up.
func (a *App) StoreReady() bool {
	return a.storeReady
}

// StartWorkers runs background consumers until ctx is cancelled.
func (a *App) StartWorkers(ctx context.Context) {
	if a.mintWorker != nil {
		go a.mintWorker.Start(ctx)
	}
}

// DatabaseBackend is not configured when the store is in memory or failed to come up;
// StoreReady gates readiness in the second case.
func (a *App) DatabaseBackend() healthhttp.Backend {
	p := healthhttp.Backend{Name: "database"}
	if a.Mongo != nil {
		p.Check = a.Mongo.HealthCheck
	}
	return p
}

func (a *App) CacheBackend() healthhttp.Backend {
	p := healthhttp.Backend{Name: "cache"}
	if a.Redis != nil {
		p.Check = func(ctx context.Context) (time.Duration, error) {
			return redisplatform.HealthCheck(ctx, a.Redis)
		}
	}
	return p
}

// Close releases resources in reverse order of creation.
func (a *App) Close(ctx context.Context) {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close event publisher")
		}
	}
	if a.Mongo != nil {
		if err := a.Mongo.Close(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to close MongoDB client")
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}
