package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamPublisher_PublishMintRequest(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	pub := NewStreamPublisher(rdb, "nft:mint_requests")
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	req := MintRequest{
		PostID:       "p1",
		AuthorID:     "u1",
		AuthorWallet: "0xabc",
		ViralScore:   1000,
		Origin:       OriginAuto,
		RequestedAt:  at,
	}
	require.NoError(t, pub.PublishMintRequest(context.Background(), req))

	msgs, err := rdb.XRange(context.Background(), "nft:mint_requests", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	got, err := ParseMintRequest(msgs[0].Values)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestParseMintRequest_Rejects(t *testing.T) {
	_, err := ParseMintRequest(map[string]interface{}{"type": "bot_removed"})
	assert.Error(t, err)

	_, err = ParseMintRequest(map[string]interface{}{"type": TypeMintRequested})
	assert.Error(t, err)

	_, err = ParseMintRequest(map[string]interface{}{
		"type":        TypeMintRequested,
		"post_id":     "p1",
		"viral_score": "lots",
	})
	assert.Error(t, err)
}

func TestLogPublisher(t *testing.T) {
	pub := NewLogPublisher()
	assert.NoError(t, pub.PublishMintRequest(context.Background(), MintRequest{PostID: "p1"}))
	assert.NoError(t, pub.Close())
}
