package notes

import (
	"time"

	"github.com/google/uuid"

	pkgerrors "papertrail/pkg/errors"
)

// Note is a user-owned document with an open-ended structured body.
// Content is intentionally schemaless: the editor stores arbitrary
// block structures and the backend round-trips them as-is.
type Note struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Content   map[string]interface{} `json:"content"`
	OwnerID   string                 `json:"ownerId"`
	CreatedBy string                 `json:"createdBy"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// NewNote creates a note with validated invariants.
func NewNote(title string, content map[string]interface{}, ownerID, createdBy string) (*Note, error) {
	if ownerID == "" {
		return nil, pkgerrors.NewValidationError("ownerID cannot be empty")
	}
	if title == "" {
		return nil, pkgerrors.NewValidationError("title cannot be empty")
	}
	if content == nil {
		content = map[string]interface{}{}
	}

	now := time.Now().UTC()
	return &Note{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		OwnerID:   ownerID,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Update replaces the title and content and bumps UpdatedAt.
func (n *Note) Update(title string, content map[string]interface{}) error {
	if title == "" {
		return pkgerrors.NewValidationError("title cannot be empty")
	}
	if content == nil {
		content = map[string]interface{}{}
	}

	n.Title = title
	n.Content = content
	n.UpdatedAt = time.Now().UTC()
	return nil
}

// IsOwnedBy reports whether userID owns this note.
func (n *Note) IsOwnedBy(userID string) bool {
	return n.OwnerID == userID
}
