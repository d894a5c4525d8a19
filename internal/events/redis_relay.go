package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type relayMessage struct {
	Topic  Topic  `json:"topic"`
	Origin string `json:"origin"`
}

// RedisRelay fans signals out over a Redis pub/sub channel. Each relay tags
// its messages with a random origin and ignores its own echo.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string

	mu     sync.Mutex
	pubsub *redis.PubSub
	closed bool
}

func NewRedisRelay(client *redis.Client, channel string) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
	}
}

func (r *RedisRelay) Announce(ctx context.Context, topic Topic) error {
	payload, err := json.Marshal(relayMessage{Topic: topic, Origin: r.origin})
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", r.channel, err)
	}
	return nil
}

func (r *RedisRelay) Listen(ctx context.Context, deliver func(ctx context.Context, topic Topic)) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	pubsub := r.client.Subscribe(ctx, r.channel)
	r.pubsub = pubsub
	r.mu.Unlock()
	defer pubsub.Close()

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	logger.Info("Listening for changes from other processes", map[string]interface{}{
		"channel": r.channel,
		"origin":  r.origin,
	})

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.dispatch(ctx, []byte(msg.Payload), deliver)
		}
	}
}

func (r *RedisRelay) dispatch(ctx context.Context, payload []byte, deliver func(ctx context.Context, topic Topic)) {
	var msg relayMessage
	if err := json.Unmarshal(payload, &msg); err != nil || !msg.Topic.Valid() {
		logger.Warn("Ignoring malformed relay message", map[string]interface{}{
			"channel": r.channel,
			"payload": string(payload),
		})
		return
	}
	if msg.Origin == r.origin {
		return
	}
	deliver(ctx, msg.Topic)
}

func (r *RedisRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.pubsub != nil {
		return r.pubsub.Close()
	}
	return nil
}
