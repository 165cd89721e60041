package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/warp/giftcert-engine/giftcert"
)

// DefaultStream is the Redis stream events are appended to.
const DefaultStream = "giftcert:events"

// ConnectRedis initializes a Redis client from URL or host:port input.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisPublisher appends events to a Redis stream. Consumers read with
// XREADGROUP, so each collaborator keeps its own cursor.
type RedisPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewRedisPublisher publishes to stream, trimming it to roughly maxLen
// entries (0 keeps everything).
func NewRedisPublisher(client redis.Cmdable, stream string, maxLen int64) *RedisPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, event giftcert.Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: map[string]any{
			"type":            string(event.Type),
			"organization_id": string(event.OrganizationID),
			"certificate_id":  string(event.CertificateID),
			"payload":         payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	if c, ok := p.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
