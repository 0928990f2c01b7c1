package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// AlertBus implements domain.AlertBus using Redis Pub/Sub. The engine
// publishes each emitted alert; the HTTP server's websocket hub subscribes
// and fans the payloads out to connected clients.
type AlertBus struct {
	rdb *redis.Client
}

var _ domain.AlertBus = (*AlertBus)(nil)

// NewAlertBus creates an AlertBus backed by the given Client.
func NewAlertBus(c *Client) *AlertBus {
	return &AlertBus{rdb: c.Underlying()}
}

// Publish sends a raw byte payload to a Pub/Sub channel.
func (ab *AlertBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ab.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe creates a Pub/Sub subscription and returns a read-only channel
// of raw payloads. The subscription closes when the context is cancelled,
// at which point the returned channel is closed as well.
func (ab *AlertBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := ab.rdb.Subscribe(ctx, channel)

	// Wait for the subscription confirmation before handing the channel out.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
