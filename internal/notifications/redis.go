package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"stemforge/internal/config"
)

// publisher is the subset of the redis client used by the sink.
type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

type redisSink struct {
	client  publisher
	channel string
}

func newRedis(cfg config.Notifications) *redisSink {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &redisSink{client: client, channel: cfg.RedisChannel}
}

// Publish writes the event as JSON to the configured channel.
func (r *redisSink) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *redisSink) Close() error {
	return r.client.Close()
}
