package handlers

import (
	"net/http"

	"couple-notes-backend/internal/models"
	"couple-notes-backend/internal/services"
)

// NoteHandler handles note-related HTTP requests
type NoteHandler struct {
	noteService *services.NoteService
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(noteService *services.NoteService) *NoteHandler {
	return &NoteHandler{
		noteService: noteService,
	}
}

// ListNotes handles GET /notes?profileId=
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profileId")
	if err := checkOwner(r.Context(), profileID); err != nil {
		respondServiceError(w, r, err, "Rejected note listing")
		return
	}

	notes, err := h.noteService.ListNotes(r.Context(), profileID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to list notes")
		return
	}
	respondJSON(w, http.StatusOK, notes)
}

// ListPartnerNotes handles GET /notes/partner?profileId=
func (h *NoteHandler) ListPartnerNotes(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profileId")
	if err := checkOwner(r.Context(), profileID); err != nil {
		respondServiceError(w, r, err, "Rejected partner notes")
		return
	}

	notes, err := h.noteService.ListPartnerNotes(r.Context(), profileID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to list partner notes")
		return
	}
	respondJSON(w, http.StatusOK, notes)
}

// CreateNote handles POST /notes
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var note models.Note
	if err := decodeJSON(r, &note); err != nil {
		respondServiceError(w, r, err, "Invalid note request")
		return
	}
	if err := checkOwner(r.Context(), note.ProfileID); err != nil {
		respondServiceError(w, r, err, "Rejected note create")
		return
	}

	saved, err := h.noteService.CreateNote(r.Context(), &note)
	if err != nil {
		respondServiceError(w, r, err, "Failed to create note")
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

// UpdateNote handles PATCH /notes
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var patch models.NotePatch
	if err := decodeJSON(r, &patch); err != nil {
		respondServiceError(w, r, err, "Invalid note patch")
		return
	}
	if err := checkOwner(r.Context(), patch.ProfileID); err != nil {
		respondServiceError(w, r, err, "Rejected note update")
		return
	}

	note, err := h.noteService.UpdateNote(r.Context(), &patch)
	if err != nil {
		respondServiceError(w, r, err, "Failed to update note")
		return
	}
	respondJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /notes?id=&profileId=
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	profileID := q.Get("profileId")
	if err := checkOwner(r.Context(), profileID); err != nil {
		respondServiceError(w, r, err, "Rejected note delete")
		return
	}

	if err := h.noteService.DeleteNote(r.Context(), q.Get("id"), profileID); err != nil {
		respondServiceError(w, r, err, "Failed to delete note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
