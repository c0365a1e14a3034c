package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReplayGuard remembers request signatures with SET NX, so every API
// replica sharing the Redis instance rejects the same replay.
type RedisReplayGuard struct {
	client *redis.Client
}

func NewRedisReplayGuard(client *redis.Client) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

func (g *RedisReplayGuard) Remember(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	fresh, err := g.client.SetNX(ctx, SignatureKey(key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record request signature: %w", err)
	}
	return fresh, nil
}

// SignatureKey is the redis key of a used request signature
func SignatureKey(key string) string {
	return "influnest:auth:sig:" + key
}
