package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"papertrail/application/ports"
	"papertrail/domain/notes"
)

// fakeCache is an in-memory ports.CacheStore with call recording and
// injectable failures.
type fakeCache struct {
	mu        sync.Mutex
	entries   map[string][]byte
	evicts    []string // "namespace::key"
	evictAlls []string // namespace
	failGet   error
	failPut   error
	failEvict error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) key(namespace, key string) string {
	return namespace + "::" + key
}

func (c *fakeCache) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet != nil {
		return nil, c.failGet
	}
	data, ok := c.entries[c.key(namespace, key)]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return data, nil
}

func (c *fakeCache) Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failPut != nil {
		return c.failPut
	}
	c.entries[c.key(namespace, key)] = value
	return nil
}

func (c *fakeCache) Evict(ctx context.Context, namespace, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evicts = append(c.evicts, c.key(namespace, key))
	if c.failEvict != nil {
		return c.failEvict
	}
	delete(c.entries, c.key(namespace, key))
	return nil
}

func (c *fakeCache) EvictAll(ctx context.Context, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictAlls = append(c.evictAlls, namespace)
	if c.failEvict != nil {
		return c.failEvict
	}
	prefix := namespace + "::"
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *fakeCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys, nil
}

func (c *fakeCache) has(namespace, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[c.key(namespace, key)]
	return ok
}

// fakeNoteRepo is an in-memory ports.NoteRepository counting reads.
type fakeNoteRepo struct {
	mu        sync.Mutex
	notes     map[string]*notes.Note
	findCalls int
	failFind  error
	failSave  error
}

func newFakeNoteRepo() *fakeNoteRepo {
	return &fakeNoteRepo{notes: make(map[string]*notes.Note)}
}

func (r *fakeNoteRepo) FindByID(ctx context.Context, noteID string) (*notes.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	if r.failFind != nil {
		return nil, r.failFind
	}
	return r.notes[noteID], nil
}

func (r *fakeNoteRepo) FindByOwner(ctx context.Context, ownerID string) ([]*notes.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	if r.failFind != nil {
		return nil, r.failFind
	}
	var result []*notes.Note
	for _, n := range r.notes {
		if n.OwnerID == ownerID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (r *fakeNoteRepo) Save(ctx context.Context, note *notes.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave != nil {
		return r.failSave
	}
	r.notes[note.ID] = note
	return nil
}

func (r *fakeNoteRepo) Delete(ctx context.Context, note *notes.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.notes, note.ID)
	return nil
}

// fakeGrantRepo is an in-memory ports.PermissionRepository.
type fakeGrantRepo struct {
	mu     sync.Mutex
	grants map[string]*notes.Permission // noteID/userID
}

func newFakeGrantRepo() *fakeGrantRepo {
	return &fakeGrantRepo{grants: make(map[string]*notes.Permission)}
}

func grantKey(noteID, userID string) string {
	return fmt.Sprintf("%s/%s", noteID, userID)
}

func (r *fakeGrantRepo) FindByGrantee(ctx context.Context, userID string, levels []notes.PermissionLevel) ([]*notes.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*notes.Permission
	for _, g := range r.grants {
		if g.UserID != userID {
			continue
		}
		for _, lvl := range levels {
			if g.Level == lvl {
				result = append(result, g)
				break
			}
		}
	}
	return result, nil
}

func (r *fakeGrantRepo) FindGrant(ctx context.Context, noteID, userID string) (*notes.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grants[grantKey(noteID, userID)], nil
}

func (r *fakeGrantRepo) Save(ctx context.Context, grant *notes.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[grantKey(grant.NoteID, grant.UserID)] = grant
	return nil
}

func (r *fakeGrantRepo) Delete(ctx context.Context, noteID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants, grantKey(noteID, userID))
	return nil
}

type serviceFixture struct {
	svc       *NoteService
	noteRepo  *fakeNoteRepo
	grantRepo *fakeGrantRepo
	cache     *fakeCache
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	noteRepo := newFakeNoteRepo()
	grantRepo := newFakeGrantRepo()
	cache := newFakeCache()
	metrics := NewCacheMetrics(DefaultHitThreshold, zap.NewNop())
	svc := NewNoteService(noteRepo, grantRepo, cache, metrics, zap.NewNop(), 0, 0)
	return &serviceFixture{svc: svc, noteRepo: noteRepo, grantRepo: grantRepo, cache: cache}
}

func mustCreateNote(t *testing.T, f *serviceFixture, title, ownerID string) *notes.Note {
	t.Helper()
	note, err := f.svc.CreateNote(context.Background(), title, map[string]interface{}{"body": title}, ownerID, ownerID)
	require.NoError(t, err)
	return note
}

func TestGetNote(t *testing.T) {
	ctx := context.Background()

	t.Run("caches the note after the first read", func(t *testing.T) {
		f := newServiceFixture(t)
		note := mustCreateNote(t, f, "first", "alice")
		callsBefore := f.noteRepo.findCalls

		got, err := f.svc.GetNote(ctx, note.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, note.ID, got.ID)
		assert.True(t, f.cache.has(NamespaceNote, note.ID))

		got, err = f.svc.GetNote(ctx, note.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, note.Title, got.Title)
		assert.Equal(t, callsBefore+1, f.noteRepo.findCalls, "second read should be served from cache")
	})

	t.Run("missing note returns nil and is not cached", func(t *testing.T) {
		f := newServiceFixture(t)

		got, err := f.svc.GetNote(ctx, "no-such-note")
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.False(t, f.cache.has(NamespaceNote, "no-such-note"))
	})

	t.Run("corrupt cache entry falls through to the store", func(t *testing.T) {
		f := newServiceFixture(t)
		note := mustCreateNote(t, f, "good", "alice")
		require.NoError(t, f.cache.Put(ctx, NamespaceNote, note.ID, []byte("{not json"), time.Minute))

		got, err := f.svc.GetNote(ctx, note.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "good", got.Title)
	})

	t.Run("cache read failure degrades to a store read", func(t *testing.T) {
		f := newServiceFixture(t)
		note := mustCreateNote(t, f, "resilient", "alice")
		f.cache.failGet = errors.New("connection refused")

		got, err := f.svc.GetNote(ctx, note.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "resilient", got.Title)
	})

	t.Run("store failure is returned", func(t *testing.T) {
		f := newServiceFixture(t)
		f.noteRepo.failFind = errors.New("table unavailable")

		_, err := f.svc.GetNote(ctx, "any")
		assert.Error(t, err)
	})
}

func TestGetUserNotes(t *testing.T) {
	ctx := context.Background()

	t.Run("empty result is cached", func(t *testing.T) {
		f := newServiceFixture(t)

		list, err := f.svc.GetUserNotes(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, list)
		assert.True(t, f.cache.has(NamespaceUserNotes, "nobody"))

		callsBefore := f.noteRepo.findCalls
		list, err = f.svc.GetUserNotes(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, list)
		assert.Equal(t, callsBefore, f.noteRepo.findCalls)
	})

	t.Run("list is cached per owner", func(t *testing.T) {
		f := newServiceFixture(t)
		mustCreateNote(t, f, "a", "alice")
		mustCreateNote(t, f, "b", "alice")
		mustCreateNote(t, f, "c", "bob")

		list, err := f.svc.GetUserNotes(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, list, 2)
		assert.True(t, f.cache.has(NamespaceUserNotes, "alice"))
		assert.False(t, f.cache.has(NamespaceUserNotes, "bob"))
	})
}

func TestGetSharedNotes(t *testing.T) {
	ctx := context.Background()

	t.Run("returns deduplicated granted notes and caches them", func(t *testing.T) {
		f := newServiceFixture(t)
		note := mustCreateNote(t, f, "shared", "alice")
		require.NoError(t, f.svc.ShareNote(ctx, note, "bob", notes.PermissionRead))
		// Re-sharing at a higher level must not duplicate the note.
		require.NoError(t, f.svc.ShareNote(ctx, note, "bob", notes.PermissionEdit))

		list, err := f.svc.GetSharedNotes(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, note.ID, list[0].ID)
		assert.True(t, f.cache.has(NamespaceSharedNotes, "bob"))
	})

	t.Run("skips grants whose note was deleted", func(t *testing.T) {
		f := newServiceFixture(t)
		note := mustCreateNote(t, f, "doomed", "alice")
		require.NoError(t, f.svc.ShareNote(ctx, note, "bob", notes.PermissionRead))
		require.NoError(t, f.svc.DeleteNote(ctx, note.ID, note))

		list, err := f.svc.GetSharedNotes(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestCreateNoteEviction(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	// Prime the owner's list cache, then create.
	_, err := f.svc.GetUserNotes(ctx, "alice")
	require.NoError(t, err)
	require.True(t, f.cache.has(NamespaceUserNotes, "alice"))

	note := mustCreateNote(t, f, "fresh", "alice")

	assert.False(t, f.cache.has(NamespaceUserNotes, "alice"), "owner list must be evicted")
	assert.Contains(t, f.cache.evicts, "userNotes::alice")

	// The new note is visible on the next list read.
	list, err := f.svc.GetUserNotes(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, note.ID, list[0].ID)
}

func TestUpdateNoteEviction(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	note := mustCreateNote(t, f, "v1", "alice")
	require.NoError(t, f.svc.ShareNote(ctx, note, "bob", notes.PermissionRead))

	// Prime all three namespaces.
	_, err := f.svc.GetNote(ctx, note.ID)
	require.NoError(t, err)
	_, err = f.svc.GetUserNotes(ctx, "alice")
	require.NoError(t, err)
	_, err = f.svc.GetSharedNotes(ctx, "bob")
	require.NoError(t, err)

	updated, err := f.svc.UpdateNote(ctx, note.ID, "v2", map[string]interface{}{"body": "v2"}, note)
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Title)

	// Single-note entry is refreshed in place, not evicted.
	got, err := f.svc.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)

	assert.False(t, f.cache.has(NamespaceUserNotes, "alice"))
	assert.Contains(t, f.cache.evictAlls, NamespaceSharedNotes)

	// Grantee reads the new title, not the cached stale list.
	shared, err := f.svc.GetSharedNotes(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, "v2", shared[0].Title)
}

func TestUpdateNoteEvictsEveryGranteeList(t *testing.T) {
	// The grantee set of a note is unknown at update time, so the whole
	// sharedNotes namespace goes, including lists the note is not in.
	ctx := context.Background()
	f := newServiceFixture(t)

	noteA := mustCreateNote(t, f, "a", "alice")
	noteB := mustCreateNote(t, f, "b", "bob")
	require.NoError(t, f.svc.ShareNote(ctx, noteB, "carol", notes.PermissionRead))

	_, err := f.svc.GetSharedNotes(ctx, "carol")
	require.NoError(t, err)
	require.True(t, f.cache.has(NamespaceSharedNotes, "carol"))

	_, err = f.svc.UpdateNote(ctx, noteA.ID, "a2", nil, noteA)
	require.NoError(t, err)

	assert.False(t, f.cache.has(NamespaceSharedNotes, "carol"))
}

func TestDeleteNoteEviction(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	note := mustCreateNote(t, f, "bye", "alice")
	_, err := f.svc.GetNote(ctx, note.ID)
	require.NoError(t, err)
	_, err = f.svc.GetUserNotes(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteNote(ctx, note.ID, note))

	assert.False(t, f.cache.has(NamespaceNote, note.ID))
	assert.False(t, f.cache.has(NamespaceUserNotes, "alice"))
	assert.Contains(t, f.cache.evictAlls, NamespaceSharedNotes)

	got, err := f.svc.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestShareNoteEvictsOnlyTargetGrantee(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	note := mustCreateNote(t, f, "selective", "alice")

	// Prime bob's and carol's shared lists.
	_, err := f.svc.GetSharedNotes(ctx, "bob")
	require.NoError(t, err)
	_, err = f.svc.GetSharedNotes(ctx, "carol")
	require.NoError(t, err)

	require.NoError(t, f.svc.ShareNote(ctx, note, "bob", notes.PermissionRead))

	assert.False(t, f.cache.has(NamespaceSharedNotes, "bob"), "target grantee list must be evicted")
	assert.True(t, f.cache.has(NamespaceSharedNotes, "carol"), "other grantee lists stay cached")
	assert.NotContains(t, f.cache.evictAlls, NamespaceSharedNotes)
}

func TestRevokePermissionEviction(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	note := mustCreateNote(t, f, "revocable", "alice")
	require.NoError(t, f.svc.ShareNote(ctx, note, "bob", notes.PermissionRead))
	_, err := f.svc.GetSharedNotes(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokePermission(ctx, note.ID, "bob"))

	assert.Contains(t, f.cache.evictAlls, NamespaceSharedNotes)

	list, err := f.svc.GetSharedNotes(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCacheFailuresNeverFailWrites(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	f.cache.failPut = errors.New("cache down")
	f.cache.failEvict = errors.New("cache down")

	note, err := f.svc.CreateNote(ctx, "durable", nil, "alice", "alice")
	require.NoError(t, err, "a committed write must not fail on cache errors")

	_, err = f.svc.UpdateNote(ctx, note.ID, "durable v2", nil, note)
	require.NoError(t, err)

	require.NoError(t, f.svc.ShareNote(ctx, note, "bob", notes.PermissionRead))
	require.NoError(t, f.svc.RevokePermission(ctx, note.ID, "bob"))
	require.NoError(t, f.svc.DeleteNote(ctx, note.ID, note))
}

func TestStoreFailureAbortsBeforeCacheMutation(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	note := mustCreateNote(t, f, "stable", "alice")
	_, err := f.svc.GetUserNotes(ctx, "alice")
	require.NoError(t, err)

	f.noteRepo.failSave = errors.New("conditional check failed")
	evictsBefore := len(f.cache.evicts)

	_, err = f.svc.UpdateNote(ctx, note.ID, "never lands", nil, note)
	assert.Error(t, err)
	assert.Len(t, f.cache.evicts, evictsBefore, "no evict may run when the store write fails")
	assert.True(t, f.cache.has(NamespaceUserNotes, "alice"))
}

func TestPermissionChecks(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	note := mustCreateNote(t, f, "private", "alice")
	require.NoError(t, f.svc.ShareNote(ctx, note, "bob", notes.PermissionRead))
	require.NoError(t, f.svc.ShareNote(ctx, note, "carol", notes.PermissionEdit))

	cases := []struct {
		name    string
		userID  string
		canRead bool
		canEdit bool
	}{
		{"owner", "alice", true, true},
		{"read grantee", "bob", true, false},
		{"edit grantee", "carol", true, true},
		{"stranger", "dave", false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			canRead, err := f.svc.CanRead(ctx, note, tc.userID)
			require.NoError(t, err)
			assert.Equal(t, tc.canRead, canRead)

			canEdit, err := f.svc.CanEdit(ctx, note, tc.userID)
			require.NoError(t, err)
			assert.Equal(t, tc.canEdit, canEdit)
		})
	}
}

func TestMutationsRequireLoadedNote(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	_, err := f.svc.UpdateNote(ctx, "id", "t", nil, nil)
	assert.Error(t, err)
	assert.Error(t, f.svc.DeleteNote(ctx, "id", nil))
	assert.Error(t, f.svc.ShareNote(ctx, nil, "bob", notes.PermissionRead))
}
