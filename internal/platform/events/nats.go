package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"viralsafe-backend/internal/common/logger"
)

// NATSPublisher publishes mint requests as JSON messages on a subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("viralsafe-api"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	logger.Info().Str("subject", subject).Msg("NATS publisher initialized")

	return &NATSPublisher{conn: conn, subject: subject}, nil
}

func (p *NATSPublisher) PublishMintRequest(ctx context.Context, req MintRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal mint request: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("Event-Type", TypeMintRequested)
	msg.Header.Set(nats.MsgIdHdr, req.PostID)

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish mint request: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
