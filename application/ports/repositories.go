package ports

import (
	"context"

	"papertrail/domain/notes"
)

// NoteRepository defines the interface for note persistence.
// This is a port in hexagonal architecture - the application doesn't know
// about the implementation.
type NoteRepository interface {
	// FindByID retrieves a note by its ID. Returns (nil, nil) when absent:
	// a missing note is a valid outcome, not an error.
	FindByID(ctx context.Context, noteID string) (*notes.Note, error)

	// FindByOwner retrieves all notes owned by a user, newest first.
	FindByOwner(ctx context.Context, ownerID string) ([]*notes.Note, error)

	// Save persists a note (create or update).
	Save(ctx context.Context, note *notes.Note) error

	// Delete removes a note.
	Delete(ctx context.Context, note *notes.Note) error
}

// PermissionRepository defines the interface for grant persistence.
type PermissionRepository interface {
	// FindByGrantee retrieves all grants held by a user at any of the
	// given levels.
	FindByGrantee(ctx context.Context, userID string, levels []notes.PermissionLevel) ([]*notes.Permission, error)

	// FindGrant retrieves the grant for a (note, user) pair.
	// Returns (nil, nil) when no grant exists.
	FindGrant(ctx context.Context, noteID, userID string) (*notes.Permission, error)

	// Save persists a grant, overwriting any existing level for the pair.
	Save(ctx context.Context, grant *notes.Permission) error

	// Delete removes the grant for a (note, user) pair.
	Delete(ctx context.Context, noteID, userID string) error
}
