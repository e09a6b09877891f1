package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"papertrail/application/ports"
	"papertrail/domain/notes"
)

// Cache namespaces. Each one is an independent view over the notes table;
// the invalidation rules below are the only thing keeping them coherent.
const (
	NamespaceNote        = "note"        // noteID -> single note
	NamespaceUserNotes   = "userNotes"   // ownerID -> notes owned by that user
	NamespaceSharedNotes = "sharedNotes" // granteeID -> notes shared with that user
)

// Default TTLs per namespace. Single notes are read hot and invalidated
// precisely, so they keep a longer TTL than the list views.
const (
	DefaultNoteTTL = 15 * time.Minute
	DefaultListTTL = 10 * time.Minute
)

// Operation names used for metrics tracking.
const (
	opGetNote          = "NoteService.GetNote"
	opGetUserNotes     = "NoteService.GetUserNotes"
	opGetSharedNotes   = "NoteService.GetSharedNotes"
	opCreateNote       = "NoteService.CreateNote"
	opUpdateNote       = "NoteService.UpdateNote"
	opDeleteNote       = "NoteService.DeleteNote"
	opShareNote        = "NoteService.ShareNote"
	opRevokePermission = "NoteService.RevokePermission"
)

// NoteService enforces cache-aside semantics for the three note views.
// Every read goes through the cache; every mutation writes to the data
// store first and only then touches the cache entries that became stale.
// A cache failure never fails a request: reads fall through to the data
// store, evict failures are logged and swallowed (TTL bounds the
// resulting staleness).
type NoteService struct {
	noteRepo  ports.NoteRepository
	grantRepo ports.PermissionRepository
	cache     ports.CacheStore
	metrics   *CacheMetrics
	logger    *zap.Logger
	noteTTL   time.Duration
	listTTL   time.Duration
}

// NewNoteService creates the note service. Zero TTLs fall back to the
// namespace defaults.
func NewNoteService(
	noteRepo ports.NoteRepository,
	grantRepo ports.PermissionRepository,
	cache ports.CacheStore,
	metrics *CacheMetrics,
	logger *zap.Logger,
	noteTTL, listTTL time.Duration,
) *NoteService {
	if noteTTL <= 0 {
		noteTTL = DefaultNoteTTL
	}
	if listTTL <= 0 {
		listTTL = DefaultListTTL
	}
	return &NoteService{
		noteRepo:  noteRepo,
		grantRepo: grantRepo,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		noteTTL:   noteTTL,
		listTTL:   listTTL,
	}
}

// GetNote returns a single note by ID, read-through cached. A missing
// note returns (nil, nil); absence is never cached.
func (s *NoteService) GetNote(ctx context.Context, noteID string) (*notes.Note, error) {
	var note *notes.Note
	err := s.metrics.Track(opGetNote, func() error {
		var innerErr error
		note, innerErr = s.getNote(ctx, noteID)
		return innerErr
	})
	return note, err
}

func (s *NoteService) getNote(ctx context.Context, noteID string) (*notes.Note, error) {
	if data, err := s.cacheGet(ctx, NamespaceNote, noteID); err == nil {
		var cached notes.Note
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		s.logger.Warn("corrupt cache entry, falling through",
			zap.String("namespace", NamespaceNote),
			zap.String("key", noteID),
		)
	}

	note, err := s.noteRepo.FindByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, nil
	}

	s.cachePut(ctx, NamespaceNote, noteID, note, s.noteTTL)
	return note, nil
}

// GetUserNotes returns the notes owned by a user, read-through cached.
// Empty lists are cached: "no notes" is a real, cacheable answer.
func (s *NoteService) GetUserNotes(ctx context.Context, ownerID string) ([]*notes.Note, error) {
	var list []*notes.Note
	err := s.metrics.Track(opGetUserNotes, func() error {
		var innerErr error
		list, innerErr = s.getUserNotes(ctx, ownerID)
		return innerErr
	})
	return list, err
}

func (s *NoteService) getUserNotes(ctx context.Context, ownerID string) ([]*notes.Note, error) {
	if data, err := s.cacheGet(ctx, NamespaceUserNotes, ownerID); err == nil {
		var cached []*notes.Note
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		s.logger.Warn("corrupt cache entry, falling through",
			zap.String("namespace", NamespaceUserNotes),
			zap.String("key", ownerID),
		)
	}

	list, err := s.noteRepo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*notes.Note{}
	}

	s.cachePut(ctx, NamespaceUserNotes, ownerID, list, s.listTTL)
	return list, nil
}

// GetSharedNotes returns the deduplicated set of notes the user holds a
// READ or EDIT grant for, read-through cached.
func (s *NoteService) GetSharedNotes(ctx context.Context, granteeID string) ([]*notes.Note, error) {
	var list []*notes.Note
	err := s.metrics.Track(opGetSharedNotes, func() error {
		var innerErr error
		list, innerErr = s.getSharedNotes(ctx, granteeID)
		return innerErr
	})
	return list, err
}

func (s *NoteService) getSharedNotes(ctx context.Context, granteeID string) ([]*notes.Note, error) {
	if data, err := s.cacheGet(ctx, NamespaceSharedNotes, granteeID); err == nil {
		var cached []*notes.Note
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		s.logger.Warn("corrupt cache entry, falling through",
			zap.String("namespace", NamespaceSharedNotes),
			zap.String("key", granteeID),
		)
	}

	grants, err := s.grantRepo.FindByGrantee(ctx, granteeID, notes.AllPermissionLevels)
	if err != nil {
		return nil, err
	}

	list := []*notes.Note{}
	seen := make(map[string]bool, len(grants))
	for _, grant := range grants {
		if seen[grant.NoteID] {
			continue
		}
		seen[grant.NoteID] = true

		note, err := s.noteRepo.FindByID(ctx, grant.NoteID)
		if err != nil {
			return nil, err
		}
		if note == nil {
			// Dangling grant; the note was deleted.
			continue
		}
		list = append(list, note)
	}

	s.cachePut(ctx, NamespaceSharedNotes, granteeID, list, s.listTTL)
	return list, nil
}

// CreateNote writes a new note through to the data store, then evicts the
// owner's cached list. No note-namespace action is needed: no entry can
// exist yet for a fresh ID.
func (s *NoteService) CreateNote(ctx context.Context, title string, content map[string]interface{}, ownerID, createdBy string) (*notes.Note, error) {
	note, err := notes.NewNote(title, content, ownerID, createdBy)
	if err != nil {
		return nil, err
	}

	err = s.metrics.TrackEvict(opCreateNote, func() error {
		if err := s.noteRepo.Save(ctx, note); err != nil {
			return err
		}
		s.cacheEvict(ctx, NamespaceUserNotes, ownerID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// UpdateNote writes the mutation through to the data store, then refreshes
// the single-note entry in place (cache-update, not evict, so the next
// read is not a guaranteed miss), evicts the owner's list, and broadly
// evicts every sharedNotes entry since the affected grantee set is
// unknown without an extra lookup.
func (s *NoteService) UpdateNote(ctx context.Context, noteID, title string, content map[string]interface{}, existing *notes.Note) (*notes.Note, error) {
	if existing == nil {
		return nil, errNilNote
	}
	if err := existing.Update(title, content); err != nil {
		return nil, err
	}

	err := s.metrics.TrackEvict(opUpdateNote, func() error {
		if err := s.noteRepo.Save(ctx, existing); err != nil {
			return err
		}
		s.cachePut(ctx, NamespaceNote, noteID, existing, s.noteTTL)
		s.cacheEvict(ctx, NamespaceUserNotes, existing.OwnerID)
		s.cacheEvictAll(ctx, NamespaceSharedNotes)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteNote deletes from the data store, then evicts the single-note
// entry, the owner's list, and the whole sharedNotes namespace.
func (s *NoteService) DeleteNote(ctx context.Context, noteID string, existing *notes.Note) error {
	if existing == nil {
		return errNilNote
	}

	return s.metrics.TrackEvict(opDeleteNote, func() error {
		if err := s.noteRepo.Delete(ctx, existing); err != nil {
			return err
		}
		s.cacheEvict(ctx, NamespaceNote, noteID)
		s.cacheEvict(ctx, NamespaceUserNotes, existing.OwnerID)
		s.cacheEvictAll(ctx, NamespaceSharedNotes)
		return nil
	})
}

// ShareNote persists a grant (overwriting any prior level for the pair),
// then evicts only the target grantee's sharedNotes entry. This is the
// one mutation where the affected grantee is known precisely, so the
// invalidation is exact.
func (s *NoteService) ShareNote(ctx context.Context, note *notes.Note, targetUserID string, level notes.PermissionLevel) error {
	if note == nil {
		return errNilNote
	}

	grant, err := notes.NewPermission(note.ID, targetUserID, level)
	if err != nil {
		return err
	}

	return s.metrics.TrackEvict(opShareNote, func() error {
		if err := s.grantRepo.Save(ctx, grant); err != nil {
			return err
		}
		s.cacheEvict(ctx, NamespaceSharedNotes, targetUserID)
		return nil
	})
}

// RevokePermission removes a grant, then broadly evicts the sharedNotes
// namespace. The design does not track which cached grantee lists include
// the note, so it trades precision for simplicity here.
func (s *NoteService) RevokePermission(ctx context.Context, noteID, userID string) error {
	return s.metrics.TrackEvict(opRevokePermission, func() error {
		if err := s.grantRepo.Delete(ctx, noteID, userID); err != nil {
			return err
		}
		s.cacheEvictAll(ctx, NamespaceSharedNotes)
		return nil
	})
}

// CanRead reports whether the user may read the note: owner, or holder of
// any grant (EDIT implies READ).
func (s *NoteService) CanRead(ctx context.Context, note *notes.Note, userID string) (bool, error) {
	if note.IsOwnedBy(userID) {
		return true, nil
	}
	grant, err := s.grantRepo.FindGrant(ctx, note.ID, userID)
	if err != nil {
		return false, err
	}
	return grant != nil && grant.Allows(notes.PermissionRead), nil
}

// CanEdit reports whether the user may modify the note: owner, or holder
// of an EDIT grant.
func (s *NoteService) CanEdit(ctx context.Context, note *notes.Note, userID string) (bool, error) {
	if note.IsOwnedBy(userID) {
		return true, nil
	}
	grant, err := s.grantRepo.FindGrant(ctx, note.ID, userID)
	if err != nil {
		return false, err
	}
	return grant != nil && grant.Level == notes.PermissionEdit, nil
}

// Metrics exposes the estimator for the admin surface.
func (s *NoteService) Metrics() *CacheMetrics {
	return s.metrics
}

// cacheGet reads an entry, normalizing any store failure to a miss. Cache
// unavailability degrades latency, never availability.
func (s *NoteService) cacheGet(ctx context.Context, namespace, key string) ([]byte, error) {
	data, err := s.cache.Get(ctx, namespace, key)
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			s.logger.Warn("cache read failed, treating as miss",
				zap.String("namespace", namespace),
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return nil, ports.ErrCacheMiss
	}
	return data, nil
}

// cachePut serializes and stores a value. Failures (marshal or store) are
// logged and swallowed; the entry simply stays absent.
func (s *NoteService) cachePut(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache serialization failed",
			zap.String("namespace", namespace),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	if err := s.cache.Put(ctx, namespace, key, data, ttl); err != nil {
		s.logger.Warn("cache write failed",
			zap.String("namespace", namespace),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// cacheEvict removes one entry. A failed evict must never fail the
// mutation that triggered it; a transiently stale read is preferable to
// rejecting a committed write.
func (s *NoteService) cacheEvict(ctx context.Context, namespace, key string) {
	if err := s.cache.Evict(ctx, namespace, key); err != nil {
		s.logger.Warn("cache evict failed",
			zap.String("namespace", namespace),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// cacheEvictAll drops a whole namespace, same failure policy as cacheEvict.
func (s *NoteService) cacheEvictAll(ctx context.Context, namespace string) {
	if err := s.cache.EvictAll(ctx, namespace); err != nil {
		s.logger.Warn("cache namespace evict failed",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
	}
}

var errNilNote = errors.New("existing note is required")
