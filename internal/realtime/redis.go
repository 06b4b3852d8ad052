package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroker is a Broker backed by redis pub/sub, for deployments where
// subscribers and publishers live in different server instances.
type RedisBroker struct {
	client *redis.Client
	log    *zerolog.Logger
}

// NewRedisBroker connects to redis and verifies the connection.
func NewRedisBroker(ctx context.Context, addr string, logger *zerolog.Logger) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisBroker{client: client, log: logger}, nil
}

// Close releases the underlying redis connection pool.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

// Publish sends a payload on the topic's redis channel.
func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe opens a redis subscription and pumps payloads until ctx is
// cancelled. Transient receive errors reconnect with exponential backoff;
// the channel is only closed once ctx ends.
func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	out := make(chan []byte, subscriberBuffer)

	go func() {
		defer close(out)

		backoff := time.Second
		for {
			if err := b.pump(ctx, topic, out); err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return
				}
				b.log.Warn().Err(err).Str("topic", topic).Dur("backoff", backoff).Msg("redis subscription dropped, reconnecting")
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > 30*time.Second {
					backoff = 30 * time.Second
				}
				continue
			}
			return
		}
	}()

	return out, nil
}

func (b *RedisBroker) pump(ctx context.Context, topic string, out chan<- []byte) error {
	pubsub := b.client.Subscribe(ctx, topic)
	defer pubsub.Close()

	// Fail fast if the subscription itself can't be established.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return fmt.Errorf("receive %s: %w", topic, err)
		}
		select {
		case out <- []byte(msg.Payload):
		default:
			// Drop if slow consumer.
		}
	}
}

var _ Broker = (*RedisBroker)(nil)
