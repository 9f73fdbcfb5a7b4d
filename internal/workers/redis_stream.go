package workers

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"viralsafe-backend/internal/common/errors"
	"viralsafe-backend/internal/common/logger"
	"viralsafe-backend/internal/features/post/models"
)

// Event types the minter writes to the result stream.
const (
	TypeMinted     = "nft_minted"
	TypeMintFailed = "nft_mint_failed"
)

// MintRecorder stores a completed mint. The post service satisfies it.
type MintRecorder interface {
	RecordMint(ctx context.Context, postID string, req *models.RecordMintRequest) (*models.PostResponse, error)
}

// MintResultWorker consumes mint results from a Redis stream through a consumer group.
type MintResultWorker struct {
	rdb      redis.UniversalClient
	recorder MintRecorder
	stream   string
	group    string
	consumer string
	block    time.Duration
	batch    int64
}

func NewMintResultWorker(rdb redis.UniversalClient, recorder MintRecorder, stream, group string) *MintResultWorker {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "viralsafe"
	}
	return &MintResultWorker{
		rdb:      rdb,
		recorder: recorder,
		stream:   stream,
		group:    group,
		consumer: fmt.Sprintf("%s-%d", host, os.Getpid()),
		block:    5 * time.Second,
		batch:    10,
	}
}

// Start blocks until ctx is cancelled. Entries left pending by a previous run are retried first.
func (w *MintResultWorker) Start(ctx context.Context) {
	if err := w.ensureGroup(ctx); err != nil {
		logger.Error().Err(err).Str("stream", w.stream).Msg("Failed to create consumer group")
	}

	logger.Info().Str("stream", w.stream).Str("consumer", w.consumer).Msg("Starting mint result worker")

	if n, err := w.replayPending(ctx); err != nil && ctx.Err() == nil {
		logger.Warn().Err(err).Msg("Failed to replay pending mint results")
	} else if n > 0 {
		logger.Info().Int("acked", n).Msg("Replayed pending mint results")
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Stopping mint result worker")
			return
		default:
		}

		if _, err := w.poll(ctx, ">", w.block); err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Str("stream", w.stream).Msg("Error reading from stream")
			time.Sleep(time.Second)
		}
	}
}

func (w *MintResultWorker) ensureGroup(ctx context.Context) error {
	err := w.rdb.XGroupCreateMkStream(ctx, w.stream, w.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// replayPending walks this consumer's pending entries batch by batch, starting after the
// last entry of the previous batch so entries that fail again are not re-read.
func (w *MintResultWorker) replayPending(ctx context.Context) (int, error) {
	acked := 0
	id := "0"
	for {
		msgs, err := w.read(ctx, id, -1)
		if err != nil {
			return acked, err
		}
		if len(msgs) == 0 {
			return acked, nil
		}
		acked += w.handle(ctx, msgs)
		id = msgs[len(msgs)-1].ID
	}
}

// poll reads one batch starting at id (">" for new entries, an ID for this consumer's pending ones)
// and returns how many entries were acknowledged. block < 0 does not wait.
func (w *MintResultWorker) poll(ctx context.Context, id string, block time.Duration) (int, error) {
	msgs, err := w.read(ctx, id, block)
	if err != nil {
		return 0, err
	}
	return w.handle(ctx, msgs), nil
}

func (w *MintResultWorker) read(ctx context.Context, id string, block time.Duration) ([]redis.XMessage, error) {
	entries, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    w.group,
		Consumer: w.consumer,
		Streams:  []string{w.stream, id},
		Count:    w.batch,
		Block:    block,
	}).Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var msgs []redis.XMessage
	for _, stream := range entries {
		msgs = append(msgs, stream.Messages...)
	}
	return msgs, nil
}

func (w *MintResultWorker) handle(ctx context.Context, msgs []redis.XMessage) int {
	acked := 0
	for _, msg := range msgs {
		if !w.processMessage(ctx, msg.ID, msg.Values) {
			continue
		}
		if err := w.rdb.XAck(ctx, w.stream, w.group, msg.ID).Err(); err != nil {
			logger.Warn().Err(err).Str("message_id", msg.ID).Msg("Failed to ack mint result")
			continue
		}
		acked++
	}
	return acked
}

// processMessage reports whether the entry is done with. Storage failures leave it pending.
func (w *MintResultWorker) processMessage(ctx context.Context, id string, values map[string]interface{}) bool {
	str := func(key string) string {
		s, _ := values[key].(string)
		return s
	}

	postID := str("post_id")
	switch str("type") {
	case TypeMinted:
		_, err := w.recorder.RecordMint(ctx, postID, &models.RecordMintRequest{
			TokenID:          str("token_id"),
			ContractAddress:  str("contract_address"),
			TokenURI:         str("token_uri"),
			MetadataIPFSHash: str("metadata_ipfs_hash"),
			TxHash:           str("tx_hash"),
			Owner:            str("owner"),
		})
		if err == nil {
			logger.Info().Str("post_id", postID).Str("message_id", id).Msg("Mint result recorded")
			return true
		}
		if appErr, ok := errors.AsAppError(err); ok && !appErr.IsInternal() {
			logger.Warn().Err(err).Str("post_id", postID).Str("message_id", id).Msg("Discarding mint result")
			return true
		}
		logger.Error().Err(err).Str("post_id", postID).Str("message_id", id).Msg("Failed to record mint result")
		return false

	case TypeMintFailed:
		logger.Warn().
			Str("post_id", postID).
			Str("reason", str("error")).
			Str("message_id", id).
			Msg("Minter reported a failed mint")
		return true

	default:
		logger.Warn().Str("message_id", id).Interface("values", values).Msg("Unknown mint result event")
		return true
	}
}
