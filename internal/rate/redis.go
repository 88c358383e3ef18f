package rate

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window limiter shared through Redis counters.
type Redis struct {
	redis  redis.UniversalClient
	cfg    Config
	prefix string
}

// NewRedis creates a limiter storing counters under prefix.
func NewRedis(client redis.UniversalClient, cfg Config, prefix string) *Redis {
	if prefix == "" {
		prefix = "afrl"
	}
	return &Redis{
		redis:  client,
		cfg:    cfg,
		prefix: prefix,
	}
}

func (r *Redis) key(k string) string {
	return r.prefix + ":" + k
}

// Allow implements [Limiter].
func (r *Redis) Allow(ctx context.Context, key string) error {
	count, err := r.incrementWithTTL(ctx, r.key(key))
	if err != nil {
		return err
	}
	if count > int64(r.cfg.Max) {
		return ErrRateLimited
	}
	return nil
}

// Reset implements [Limiter].
func (r *Redis) Reset(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (r *Redis) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// First hit opens the window.
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.cfg.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
