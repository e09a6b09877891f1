package ports

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by CacheStore.Get when the key is absent or
// expired. Callers must treat any other error the same way (fall through
// to the data store) but should log it.
var ErrCacheMiss = errors.New("cache miss")

// CacheStore is a namespaced key/value store with per-entry TTL.
// Keys are laid out as "namespace::key" in the backing store so one
// namespace can be enumerated and dropped without touching the others.
type CacheStore interface {
	// Get returns the serialized value for (namespace, key) or ErrCacheMiss.
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// Put stores a serialized value with a TTL.
	Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error

	// Evict removes a single entry. Evicting an absent key is not an error.
	Evict(ctx context.Context, namespace, key string) error

	// EvictAll removes every entry in a namespace.
	EvictAll(ctx context.Context, namespace string) error

	// Keys enumerates keys matching a glob pattern, namespace prefix
	// included. Used by the admin surface for size stats only.
	Keys(ctx context.Context, pattern string) ([]string, error)
}
