package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "HS256", cfg.Auth.Algorithm)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL())
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTokenTTL())
	assert.Equal(t, 5*time.Minute, cfg.Auth.NonceTTL)
	assert.Equal(t, int64(1000), cfg.Voting.ViralThreshold)
	assert.True(t, cfg.Voting.ViralVoteCost.Equal(decimal.NewFromInt(10)))
	assert.True(t, cfg.Auth.SignupTokenGrant.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, []string{"http://localhost:3000", "https://viralsafe.io"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "nft:mint_results", cfg.Events.ResultStream)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALGORITHM", "hs512")
	t.Setenv("VIRAL_THRESHOLD", "250")
	t.Setenv("UP_VOTE_COST", "0.5")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "HS512", cfg.Auth.Algorithm)
	assert.Equal(t, int64(250), cfg.Voting.ViralThreshold)
	assert.Equal(t, "0.5", cfg.Voting.UpVoteCost.String())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "memory", cfg.Store)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"algorithm", "ALGORITHM", "RS256"},
		{"empty secret", "SECRET_KEY", ""},
		{"store", "STORE_BACKEND", "postgres"},
		{"nonce store", "NONCE_STORE", "memcached"},
		{"events", "EVENTS_BACKEND", "kafka"},
		{"threshold", "VIRAL_THRESHOLD", "0"},
		{"negative cost", "DOWN_VOTE_COST", "-1"},
		{"rate limit", "RATE_LIMIT_REQUESTS", "0"},
		{"access ttl", "ACCESS_TOKEN_EXPIRE_MINUTES", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate_ProductionNeedsSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECRET_KEY")

	t.Setenv("SECRET_KEY", "a-real-production-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
