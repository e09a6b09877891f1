package notes

import (
	"time"

	pkgerrors "papertrail/pkg/errors"
)

// PermissionLevel is the access level a grant confers.
type PermissionLevel string

const (
	PermissionRead PermissionLevel = "READ"
	PermissionEdit PermissionLevel = "EDIT"
)

// AllPermissionLevels lists every grant level, highest last.
var AllPermissionLevels = []PermissionLevel{PermissionRead, PermissionEdit}

// ParsePermissionLevel validates a level coming off the wire.
func ParsePermissionLevel(s string) (PermissionLevel, error) {
	switch PermissionLevel(s) {
	case PermissionRead:
		return PermissionRead, nil
	case PermissionEdit:
		return PermissionEdit, nil
	default:
		return "", pkgerrors.NewValidationError("permission must be READ or EDIT")
	}
}

// Permission is a grant of access to a note for a user who does not own it.
// One grant per (note, user) pair; re-sharing overwrites the level.
type Permission struct {
	NoteID    string          `json:"noteId"`
	UserID    string          `json:"userId"`
	Level     PermissionLevel `json:"level"`
	GrantedAt time.Time       `json:"grantedAt"`
}

// NewPermission creates a validated grant.
func NewPermission(noteID, userID string, level PermissionLevel) (*Permission, error) {
	if noteID == "" {
		return nil, pkgerrors.NewValidationError("noteID cannot be empty")
	}
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if level != PermissionRead && level != PermissionEdit {
		return nil, pkgerrors.NewValidationError("permission must be READ or EDIT")
	}

	return &Permission{
		NoteID:    noteID,
		UserID:    userID,
		Level:     level,
		GrantedAt: time.Now().UTC(),
	}, nil
}

// Allows reports whether this grant satisfies the required level.
// EDIT implies READ.
func (p *Permission) Allows(required PermissionLevel) bool {
	if p.Level == PermissionEdit {
		return true
	}
	return p.Level == required
}
