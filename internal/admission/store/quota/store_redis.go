package quota

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "dilldrill/internal/platform/redis"
	pkgerrors "dilldrill/pkg/errors"
)

// RedisStore is the primary quota backend. Counters survive process
// restarts and are shared across replicas.
type RedisStore struct {
	client *platformredis.Client
}

func NewRedisStore(client *platformredis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "redis client is required")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Peek(ctx context.Context, key string) (int, error) {
	val, err := s.client.Get(ctx, key).Int()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, pkgerrors.Wrap(err, pkgerrors.CodeUnavailable, "quota peek failed")
	}
	return val, nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, pkgerrors.Wrap(err, pkgerrors.CodeUnavailable, "quota increment failed")
	}
	return int(incr.Val()), nil
}

// Ping reports whether the backend is reachable. Used by the failover
// recovery probe.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Health(ctx)
}
