package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const defaultSecretKey = "your-secret-key-change-in-production"

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	App struct {
		Name        string `env:"APP_NAME" envDefault:"ViralSafe API"`
		Version     string `env:"APP_VERSION" envDefault:"0.3.0"`
		Environment string `env:"ENVIRONMENT" envDefault:"development"`
	}

	Server struct {
		Port            int           `env:"PORT" envDefault:"8000"`
		AllowedOrigins  []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,https://viralsafe.io"`
		ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
		ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		SwaggerEnabled  bool          `env:"SWAGGER_ENABLED" envDefault:"false"`
	}

	// Store selects the persistence backend: mongo, or memory for local development.
	Store string `env:"STORE_BACKEND" envDefault:"mongo"`

	Mongo struct {
		URL            string        `env:"MONGODB_URL" envDefault:"mongodb://localhost:27017"`
		Database       string        `env:"DATABASE_NAME" envDefault:"viralsafe"`
		ConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	}

	Redis struct {
		URL      string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
		CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	}

	Auth struct {
		SecretKey                string          `env:"SECRET_KEY" envDefault:"your-secret-key-change-in-production"`
		Algorithm                string          `env:"ALGORITHM" envDefault:"HS256"`
		AccessTokenExpireMinutes int             `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
		RefreshTokenExpireDays   int             `env:"REFRESH_TOKEN_EXPIRE_DAYS" envDefault:"30"`
		NonceTTL                 time.Duration   `env:"NONCE_TTL" envDefault:"5m"`
		NonceStore               string          `env:"NONCE_STORE" envDefault:"mongo"`
		SignupTokenGrant         decimal.Decimal `env:"SIGNUP_TOKEN_GRANT" envDefault:"100"`
	}

	Voting struct {
		ViralThreshold int64           `env:"VIRAL_THRESHOLD" envDefault:"1000"`
		UpVoteCost     decimal.Decimal `env:"UP_VOTE_COST" envDefault:"1"`
		DownVoteCost   decimal.Decimal `env:"DOWN_VOTE_COST" envDefault:"1"`
		ViralVoteCost  decimal.Decimal `env:"VIRAL_VOTE_COST" envDefault:"10"`
	}

	RateLimit struct {
		Requests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
		Window   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h"`
	}

	Events struct {
		// Backend is one of redis, nats or none.
		Backend     string `env:"EVENTS_BACKEND" envDefault:"redis"`
		Stream      string `env:"MINT_STREAM" envDefault:"nft:mint_requests"`
		NATSURL     string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
		NATSSubject string `env:"MINT_SUBJECT" envDefault:"viralsafe.nft.mint_requested"`

		// ResultStream is the Redis stream the minter reports results to. Empty disables the consumer.
		ResultStream  string `env:"MINT_RESULT_STREAM" envDefault:"nft:mint_results"`
		ConsumerGroup string `env:"MINT_CONSUMER_GROUP" envDefault:"viralsafe_api"`
	}

	Log struct {
		Level      string `env:"LOG_LEVEL" envDefault:"info"`
		File       string `env:"LOG_FILE" envDefault:""`
		MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
		MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
		MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"30"`
	}
}

// Load reads .env (if present) and the process environment into Config.
func Load() (*Config, error) {
	// .env is optional; in production variables come from the environment.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch strings.ToUpper(c.Auth.Algorithm) {
	case "HS256", "HS384", "HS512":
		c.Auth.Algorithm = strings.ToUpper(c.Auth.Algorithm)
	default:
		return fmt.Errorf("unsupported ALGORITHM %q", c.Auth.Algorithm)
	}
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY must not be empty")
	}
	if c.IsProduction() && c.Auth.SecretKey == defaultSecretKey {
		return fmt.Errorf("SECRET_KEY must be set in production")
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.Auth.RefreshTokenExpireDays <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_EXPIRE_DAYS must be positive")
	}
	if c.Auth.NonceTTL <= 0 {
		return fmt.Errorf("NONCE_TTL must be positive")
	}
	if c.Auth.SignupTokenGrant.IsNegative() {
		return fmt.Errorf("SIGNUP_TOKEN_GRANT cannot be negative")
	}
	switch c.Auth.NonceStore {
	case "mongo", "redis":
	default:
		return fmt.Errorf("unsupported NONCE_STORE %q", c.Auth.NonceStore)
	}
	switch c.Store {
	case "mongo", "memory":
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.Store)
	}
	switch c.Events.Backend {
	case "redis", "nats", "none":
	default:
		return fmt.Errorf("unsupported EVENTS_BACKEND %q", c.Events.Backend)
	}
	if c.Voting.ViralThreshold <= 0 {
		return fmt.Errorf("VIRAL_THRESHOLD must be positive")
	}
	for name, cost := range map[string]decimal.Decimal{
		"UP_VOTE_COST":    c.Voting.UpVoteCost,
		"DOWN_VOTE_COST":  c.Voting.DownVoteCost,
		"VIRAL_VOTE_COST": c.Voting.ViralVoteCost,
	} {
		if cost.IsNegative() {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit requests and window must be positive")
	}
	return nil
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Auth.AccessTokenExpireMinutes) * time.Minute
}

func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.Auth.RefreshTokenExpireDays) * 24 * time.Hour
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.App.Environment, "development")
}
