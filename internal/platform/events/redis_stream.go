package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultStreamMaxLen = 10000

// StreamPublisher appends mint requests to a Redis stream for a consumer group to pick up.
type StreamPublisher struct {
	rdb    redis.UniversalClient
	stream string
}

func NewStreamPublisher(rdb redis.UniversalClient, stream string) *StreamPublisher {
	return &StreamPublisher{
		rdb:    rdb,
		stream: stream,
	}
}

func (p *StreamPublisher) PublishMintRequest(ctx context.Context, req MintRequest) error {
	err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: defaultStreamMaxLen,
		Values: map[string]interface{}{
			"type":          TypeMintRequested,
			"post_id":       req.PostID,
			"author_id":     req.AuthorID,
			"author_wallet": req.AuthorWallet,
			"viral_score":   strconv.FormatInt(req.ViralScore, 10),
			"origin":        req.Origin,
			"requested_at":  req.RequestedAt.UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add mint request to stream %s: %w", p.stream, err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (p *StreamPublisher) Close() error { return nil }

// ParseMintRequest decodes a stream entry written by StreamPublisher.
func ParseMintRequest(values map[string]interface{}) (MintRequest, error) {
	if t, _ := values["type"].(string); t != TypeMintRequested {
		return MintRequest{}, fmt.Errorf("unexpected event type %q", t)
	}

	str := func(key string) string {
		s, _ := values[key].(string)
		return s
	}

	req := MintRequest{
		PostID:       str("post_id"),
		AuthorID:     str("author_id"),
		AuthorWallet: str("author_wallet"),
		Origin:       str("origin"),
	}
	if req.PostID == "" {
		return MintRequest{}, fmt.Errorf("missing post_id")
	}

	if s := str("viral_score"); s != "" {
		score, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return MintRequest{}, fmt.Errorf("invalid viral_score: %w", err)
		}
		req.ViralScore = score
	}
	if s := str("requested_at"); s != "" {
		at, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return MintRequest{}, fmt.Errorf("invalid requested_at: %w", err)
		}
		req.RequestedAt = at
	}
	return req, nil
}
