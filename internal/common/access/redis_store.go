package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one INCR counter per client under a key prefix.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a store writing to client. A positive ttl refreshes
// the key's expiry on every increment.
func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) key(ip string) string { return s.prefix + ip }

func (s *RedisStore) Increment(ctx context.Context, ip string) (int64, error) {
	key := s.key(ip)

	if s.ttl <= 0 {
		n, err := s.client.Incr(ctx, key).Result()
		if err != nil {
			return 0, fmt.Errorf("incr %s: %w", key, err)
		}
		return n, nil
	}

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Count returns the stored tally for ip, zero when absent.
func (s *RedisStore) Count(ctx context.Context, ip string) (int64, error) {
	n, err := s.client.Get(ctx, s.key(ip)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", s.key(ip), err)
	}
	return n, nil
}
