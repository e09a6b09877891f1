package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"papertrail/application/services"
	"papertrail/domain/notes"
	"papertrail/pkg/auth"
	pkgerrors "papertrail/pkg/errors"
	"papertrail/pkg/utils"
)

// NoteHandler handles note-related HTTP requests
type NoteHandler struct {
	notes  *services.NoteService
	logger *zap.Logger
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(notes *services.NoteService, logger *zap.Logger) *NoteHandler {
	return &NoteHandler{
		notes:  notes,
		logger: logger,
	}
}

// CreateNoteRequest represents the request body for creating a note
type CreateNoteRequest struct {
	Title   string                 `json:"title" validate:"required,min=1,max=200"`
	Content map[string]interface{} `json:"content" validate:"required"`
}

// UpdateNoteRequest represents the request body for updating a note
type UpdateNoteRequest struct {
	Title   string                 `json:"title" validate:"required,min=1,max=200"`
	Content map[string]interface{} `json:"content" validate:"required"`
}

// ShareNoteRequest represents the request body for sharing a note
type ShareNoteRequest struct {
	UserID string `json:"userId" validate:"required"`
	Level  string `json:"permissionLevel" validate:"required,oneof=READ EDIT"`
}

// CreateNote handles POST /notes
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	note, err := h.notes.CreateNote(r.Context(), req.Title, req.Content, userCtx.UserID, userCtx.UserID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, note)
}

// GetMyNotes handles GET /notes
func (h *NoteHandler) GetMyNotes(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := h.notes.GetUserNotes(r.Context(), userCtx.UserID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"notes": result,
		"count": len(result),
	})
}

// GetSharedNotes handles GET /notes/shared
func (h *NoteHandler) GetSharedNotes(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := h.notes.GetSharedNotes(r.Context(), userCtx.UserID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"notes": result,
		"count": len(result),
	})
}

// GetNote handles GET /notes/{noteID}
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "noteID")
	if noteID == "" {
		h.respondError(w, http.StatusBadRequest, "Note ID is required")
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	note, err := h.notes.GetNote(r.Context(), noteID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}
	if note == nil {
		h.respondError(w, http.StatusNotFound, "Note not found")
		return
	}

	allowed, err := h.notes.CanRead(r.Context(), note, userCtx.UserID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}
	if !allowed {
		h.respondError(w, http.StatusForbidden, "You do not have access to this note")
		return
	}

	h.respondJSON(w, http.StatusOK, note)
}

// UpdateNote handles PUT /notes/{noteID}
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "noteID")
	if noteID == "" {
		h.respondError(w, http.StatusBadRequest, "Note ID is required")
		return
	}

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	note, err := h.notes.GetNote(r.Context(), noteID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}
	if note == nil {
		h.respondError(w, http.StatusNotFound, "Note not found")
		return
	}

	allowed, err := h.notes.CanEdit(r.Context(), note, userCtx.UserID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}
	if !allowed {
		h.respondError(w, http.StatusForbidden, "You do not have edit access to this note")
		return
	}

	updated, err := h.notes.UpdateNote(r.Context(), noteID, req.Title, req.Content, note)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// DeleteNote handles DELETE /notes/{noteID}
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "noteID")
	if noteID == "" {
		h.respondError(w, http.StatusBadRequest, "Note ID is required")
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	note, err := h.notes.GetNote(r.Context(), noteID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}
	if note == nil {
		h.respondError(w, http.StatusNotFound, "Note not found")
		return
	}

	if !note.IsOwnedBy(userCtx.UserID) {
		h.respondError(w, http.StatusForbidden, "Only the owner can delete a note")
		return
	}

	if err := h.notes.DeleteNote(r.Context(), note.ID, note); err != nil {
		h.respondAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ShareNote handles POST /notes/{noteID}/share
func (h *NoteHandler) ShareNote(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "noteID")
	if noteID == "" {
		h.respondError(w, http.StatusBadRequest, "Note ID is required")
		return
	}

	var req ShareNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	note, err := h.notes.GetNote(r.Context(), noteID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}
	if note == nil {
		h.respondError(w, http.StatusNotFound, "Note not found")
		return
	}

	if !note.IsOwnedBy(userCtx.UserID) {
		h.respondError(w, http.StatusForbidden, "Only the owner can share a note")
		return
	}

	if req.UserID == userCtx.UserID {
		h.respondError(w, http.StatusBadRequest, "Cannot share a note with yourself")
		return
	}

	level, err := notes.ParsePermissionLevel(req.Level)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.notes.ShareNote(r.Context(), note, req.UserID, level); err != nil {
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"noteId":          noteID,
		"userId":          req.UserID,
		"permissionLevel": string(level),
	})
}

// RevokePermission handles DELETE /notes/{noteID}/share/{userID}
func (h *NoteHandler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "noteID")
	targetUserID := chi.URLParam(r, "userID")
	if noteID == "" || targetUserID == "" {
		h.respondError(w, http.StatusBadRequest, "Note ID and user ID are required")
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	note, err := h.notes.GetNote(r.Context(), noteID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}
	if note == nil {
		h.respondError(w, http.StatusNotFound, "Note not found")
		return
	}

	if !note.IsOwnedBy(userCtx.UserID) {
		h.respondError(w, http.StatusForbidden, "Only the owner can revoke access")
		return
	}

	if err := h.notes.RevokePermission(r.Context(), noteID, targetUserID); err != nil {
		h.respondAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *NoteHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *NoteHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}

// respondAppError maps service errors to HTTP responses.
func (h *NoteHandler) respondAppError(w http.ResponseWriter, err error) {
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		h.respondError(w, appErr.HTTPStatus, appErr.Message)
		return
	}
	h.logger.Error("Unhandled error", zap.Error(err))
	h.respondError(w, http.StatusInternalServerError, "Internal server error")
}
