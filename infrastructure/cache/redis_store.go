package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"papertrail/application/ports"
)

// scanBatch is the SCAN page size and delete batch size used for
// namespace-wide operations, so a broad evict never blocks Redis the way
// KEYS + DEL would.
const scanBatch = 100

// RedisConfig configures the Redis-backed cache store.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns the local-development defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisStore implements ports.CacheStore on Redis. Entries live under
// "namespace::key" with an independent TTL each, so one namespace can be
// scanned and dropped without touching the others.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis cache store initialized", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))

	return &RedisStore{client: client, logger: logger}, nil
}

func entryKey(namespace, key string) string {
	return namespace + "::" + key
}

// Get retrieves a serialized value. Absent keys map to ErrCacheMiss.
func (s *RedisStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, entryKey(namespace, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", entryKey(namespace, key), err)
	}
	return data, nil
}

// Put stores a serialized value with a TTL.
func (s *RedisStore) Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, entryKey(namespace, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", entryKey(namespace, key), err)
	}
	return nil
}

// Evict removes a single entry. Deleting an absent key is a no-op.
func (s *RedisStore) Evict(ctx context.Context, namespace, key string) error {
	if err := s.client.Del(ctx, entryKey(namespace, key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", entryKey(namespace, key), err)
	}
	return nil
}

// EvictAll removes every entry in a namespace, scanning and deleting in
// batches.
func (s *RedisStore) EvictAll(ctx context.Context, namespace string) error {
	iter := s.client.Scan(ctx, 0, namespace+"::*", scanBatch).Iterator()

	keys := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= scanBatch {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis bulk del in %s: %w", namespace, err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", namespace, err)
	}
	if len(keys) > 0 {
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis bulk del in %s: %w", namespace, err)
		}
	}
	return nil
}

// Keys enumerates keys matching a glob pattern via SCAN.
func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	iter := s.client.Scan(ctx, 0, pattern, scanBatch).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return keys, nil
}

// Close closes the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ ports.CacheStore = (*RedisStore)(nil)
