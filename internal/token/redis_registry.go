package token

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "refresh:"

// RedisRegistry is the shared-store Registry for multi-instance deployments.
// Entry expiry rides on the key TTL.
type RedisRegistry struct {
	client *redis.Client
}

func NewRedisRegistry(addr string) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisRegistry{client: client}, nil
}

func (r *RedisRegistry) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.client.Set(ctx, redisKeyPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Remove(ctx context.Context, jti string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+jti).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, redisKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}
