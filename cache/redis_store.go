package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ Store = (*RedisStore)(nil)

// RedisStore is the distributed Store. Every key is namespaced with prefix
// and every call runs under its own timeout.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

func NewRedisStore(client *redis.Client, prefix string, timeout time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
		logger:  logger.Named("redis_cache"),
	}
}

// DialRedis builds a RedisStore and checks the server answers. An
// unreachable server is only logged: the store then behaves as an
// always-miss cache until the client reconnects.
func DialRedis(ctx context.Context, opts *redis.Options, prefix string, timeout time.Duration, logger *zap.Logger) *RedisStore {
	store := NewRedisStore(redis.NewClient(opts), prefix, timeout, logger)
	if err := store.Ping(ctx); err != nil {
		store.logger.Warn("redis unreachable, cache degraded to miss", zap.String("addr", opts.Addr), zap.Error(err))
		return store
	}
	store.logger.Info("connected to Redis", zap.String("addr", opts.Addr))
	return store
}

func (s *RedisStore) k(key string) string {
	return s.prefix + key
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	val, err := s.client.Get(ctx, s.k(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("cache get failed, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return val, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, s.k(key), value, ttl).Err(); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.k(key)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		s.logger.Warn("cache delete failed", zap.Int("keys", len(keys)), zap.Error(err))
	}
}

// ResetTimeout bounds a whole Reset, which scans the keyspace in batches
// and cannot run under the per-operation timeout.
const ResetTimeout = 30 * time.Second

// Reset deletes every key under the store's prefix.
func (s *RedisStore) Reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	var deleted int
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("cache reset: delete after %d keys: %w", deleted, err)
			}
			deleted += len(batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache reset: scan after %d keys: %w", deleted, err)
	}
	if len(batch) > 0 {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("cache reset: delete after %d keys: %w", deleted, err)
		}
		deleted += len(batch)
	}
	s.logger.Info("cache reset", zap.Int("keys", deleted))
	return nil
}

func (s *RedisStore) AddToIndex(ctx context.Context, indexKey, member string, ttl time.Duration) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.k(indexKey), member)
		if ttl > 0 {
			pipe.Expire(ctx, s.k(indexKey), ttl)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("cache index add failed", zap.String("index", indexKey), zap.Error(err))
	}
}

func (s *RedisStore) PopIndex(ctx context.Context, indexKey string) []string {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var members *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		members = pipe.SMembers(ctx, s.k(indexKey))
		pipe.Del(ctx, s.k(indexKey))
		return nil
	})
	if err != nil {
		s.logger.Warn("cache index pop failed", zap.String("index", indexKey), zap.Error(err))
		return nil
	}
	return members.Val()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
