package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisHot is the hot tier backed by Redis via go-redis/v9. It satisfies
// Tier and never returns an error for a miss — only for connectivity
// failures, which MultiTier treats as a miss-and-log rather than a hard
// failure.
type RedisHot struct {
	client *redis.Client
}

// NewRedisHot parses redisURL (redis://[:password@]host:port/db) and
// returns a ready client. Connectivity is not verified here; callers
// should Ping during startup if they want a fail-fast check.
func NewRedisHot(redisURL string) (*RedisHot, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}
	return &RedisHot{client: redis.NewClient(opts)}, nil
}

func (r *RedisHot) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: redis get")
	}
	return val, true, nil
}

func (r *RedisHot) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return eris.Wrap(err, "cache: redis set")
	}
	return nil
}

func (r *RedisHot) Close() error {
	return r.client.Close()
}
