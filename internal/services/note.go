package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"couple-notes-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NoteService handles note-related business logic
type NoteService struct {
	notes    NoteStore
	profiles ProfileStore
	notifier Notifier
}

// NewNoteService creates a new note service
func NewNoteService(notes NoteStore, profiles ProfileStore, notifier Notifier) *NoteService {
	return &NoteService{
		notes:    notes,
		profiles: profiles,
		notifier: notifierOrNop(notifier),
	}
}

// ListNotes returns the notes of a profile, newest first
func (s *NoteService) ListNotes(ctx context.Context, profileID string) ([]*models.Note, error) {
	if profileID == "" {
		return nil, models.ValidationError(errors.New("profileId: cannot be blank"))
	}
	if _, err := s.profiles.GetByID(ctx, profileID); err != nil {
		return nil, err
	}
	return s.notes.ListByProfile(ctx, profileID)
}

// ListPartnerNotes follows the partner link of a profile and returns the partner's notes
func (s *NoteService) ListPartnerNotes(ctx context.Context, profileID string) ([]*models.Note, error) {
	if profileID == "" {
		return nil, models.ValidationError(errors.New("profileId: cannot be blank"))
	}
	me, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if !me.HasPartner() {
		return nil, fmt.Errorf("partner %w", models.ErrNotFound)
	}
	return s.notes.ListByProfile(ctx, *me.PartnerID)
}

// CreateNote stores a note for its owner and tells the owner's partner about it.
// Saving a note with an existing ID of the same owner overwrites it.
func (s *NoteService) CreateNote(ctx context.Context, n *models.Note) (*models.Note, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Timestamp == 0 {
		n.Timestamp = time.Now().UnixMilli()
	}
	if err := n.Validate(); err != nil {
		return nil, models.ValidationError(err)
	}

	owner, err := s.profiles.GetByID(ctx, n.ProfileID)
	if err != nil {
		return nil, err
	}

	saved, err := s.notes.Save(ctx, n)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("profile_id", saved.ProfileID).
		Str("note_id", saved.ID).
		Str("type", string(saved.Type)).
		Msg("Note saved")

	if owner.HasPartner() {
		s.notifier.Notify(*owner.PartnerID, WSMessage{Type: EventNoteCreated, Data: saved})
	}

	return saved, nil
}

// UpdateNote applies a flag toggle or field patch to a note of its owner
func (s *NoteService) UpdateNote(ctx context.Context, patch *models.NotePatch) (*models.Note, error) {
	if err := patch.Validate(); err != nil {
		return nil, models.ValidationError(err)
	}
	return s.notes.Update(ctx, patch)
}

// DeleteNote deletes a note of its owner
func (s *NoteService) DeleteNote(ctx context.Context, id, profileID string) error {
	if id == "" {
		return models.ValidationError(errors.New("id: cannot be blank"))
	}
	if profileID == "" {
		return models.ValidationError(errors.New("profileId: cannot be blank"))
	}
	return s.notes.Delete(ctx, id, profileID)
}
