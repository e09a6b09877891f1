package cache

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"

	"papertrail/application/ports"
)

// MemoryStore is an in-process ports.CacheStore used for local development
// and tests. Entries expire lazily on read and are swept by a janitor
// goroutine.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	stop  chan struct{}
	once  sync.Once
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory cache store with a background
// janitor sweeping expired entries every minute.
func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{
		items: make(map[string]memoryItem),
		stop:  make(chan struct{}),
	}
	go store.sweep()
	return store
}

// Get retrieves a value; expired or absent entries return ErrCacheMiss.
func (s *MemoryStore) Get(_ context.Context, namespace, key string) ([]byte, error) {
	s.mu.RLock()
	item, ok := s.items[entryKey(namespace, key)]
	s.mu.RUnlock()

	if !ok || time.Now().After(item.expiresAt) {
		return nil, ports.ErrCacheMiss
	}

	// Copy so callers cannot mutate the cached bytes.
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

// Put stores a value with a TTL.
func (s *MemoryStore) Put(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	s.items[entryKey(namespace, key)] = memoryItem{
		value:     stored,
		expiresAt: time.Now().Add(ttl),
	}
	s.mu.Unlock()
	return nil
}

// Evict removes a single entry.
func (s *MemoryStore) Evict(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	delete(s.items, entryKey(namespace, key))
	s.mu.Unlock()
	return nil
}

// EvictAll removes every entry in a namespace.
func (s *MemoryStore) EvictAll(_ context.Context, namespace string) error {
	prefix := namespace + "::"

	s.mu.Lock()
	for key := range s.items {
		if strings.HasPrefix(key, prefix) {
			delete(s.items, key)
		}
	}
	s.mu.Unlock()
	return nil
}

// Keys enumerates live keys matching a glob pattern.
func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key, item := range s.items {
		if now.After(item.expiresAt) {
			continue
		}
		if ok, err := path.Match(pattern, key); err != nil {
			return nil, err
		} else if ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close stops the janitor goroutine.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

// sweep periodically removes expired items.
func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, item := range s.items {
				if now.After(item.expiresAt) {
					delete(s.items, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

var _ ports.CacheStore = (*MemoryStore)(nil)
