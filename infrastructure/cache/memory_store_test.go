package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrail/application/ports"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "note", "n1", []byte(`{"id":"n1"}`), time.Minute))

	got, err := store.Get(ctx, "note", "n1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":"n1"}`), got)
}

func TestMemoryStoreMiss(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "note", "absent")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "note", "ephemeral", []byte("x"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := store.Get(ctx, "note", "ephemeral")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)

	keys, err := store.Keys(ctx, "note::*")
	require.NoError(t, err)
	assert.Empty(t, keys, "expired entries must not be enumerated")
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "note", "n1", []byte("abc"), time.Minute))

	got, err := store.Get(ctx, "note", "n1")
	require.NoError(t, err)
	got[0] = 'z'

	again, err := store.Get(ctx, "note", "n1")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryStoreEvict(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "note", "n1", []byte("x"), time.Minute))
	require.NoError(t, store.Evict(ctx, "note", "n1"))

	_, err := store.Get(ctx, "note", "n1")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)

	// Evicting an absent key is not an error.
	assert.NoError(t, store.Evict(ctx, "note", "n1"))
}

func TestMemoryStoreEvictAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "sharedNotes", "alice", []byte("a"), time.Minute))
	require.NoError(t, store.Put(ctx, "sharedNotes", "bob", []byte("b"), time.Minute))
	require.NoError(t, store.Put(ctx, "userNotes", "alice", []byte("c"), time.Minute))

	require.NoError(t, store.EvictAll(ctx, "sharedNotes"))

	_, err := store.Get(ctx, "sharedNotes", "alice")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)
	_, err = store.Get(ctx, "sharedNotes", "bob")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)

	got, err := store.Get(ctx, "userNotes", "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), got, "other namespaces survive")
}

func TestMemoryStoreKeysPattern(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "note", "n1", []byte("x"), time.Minute))
	require.NoError(t, store.Put(ctx, "note", "n2", []byte("y"), time.Minute))
	require.NoError(t, store.Put(ctx, "userNotes", "alice", []byte("z"), time.Minute))

	keys, err := store.Keys(ctx, "note::*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"note::n1", "note::n2"}, keys)
}
