package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"couple-notes-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// WidgetService relays notes to the partner's display surface
type WidgetService struct {
	widgets  WidgetStore
	notes    NoteStore
	profiles ProfileStore
	notifier Notifier
}

// NewWidgetService creates a new widget service
func NewWidgetService(widgets WidgetStore, notes NoteStore, profiles ProfileStore, notifier Notifier) *WidgetService {
	return &WidgetService{
		widgets:  widgets,
		notes:    notes,
		profiles: profiles,
		notifier: notifierOrNop(notifier),
	}
}

// SendWidgetRequest names the sender and either a stored note or an inline one
type SendWidgetRequest struct {
	FromID string       `json:"fromId"`
	NoteID string       `json:"noteId,omitempty"`
	Note   *models.Note `json:"note,omitempty"`
}

// Send places a note of the sender into the partner's widget slot
func (s *WidgetService) Send(ctx context.Context, req SendWidgetRequest) (*models.WidgetEntry, error) {
	if req.FromID == "" {
		return nil, models.ValidationError(errors.New("fromId: cannot be blank"))
	}
	if req.NoteID == "" && req.Note == nil {
		return nil, models.ValidationError(errors.New("noteId or note is required"))
	}

	sender, err := s.profiles.GetByID(ctx, req.FromID)
	if err != nil {
		return nil, err
	}
	if !sender.HasPartner() {
		return nil, fmt.Errorf("partner %w", models.ErrNotFound)
	}

	var note models.Note
	if req.NoteID != "" {
		stored, err := s.notes.GetByID(ctx, req.NoteID)
		if err != nil {
			return nil, err
		}
		if stored.ProfileID != sender.ID {
			return nil, fmt.Errorf("note %w", models.ErrNotFound)
		}
		note = *stored
	} else {
		note = *req.Note
		note.ProfileID = sender.ID
		if note.Timestamp == 0 {
			note.Timestamp = time.Now().UnixMilli()
		}
		if err := note.Validate(); err != nil {
			return nil, models.ValidationError(err)
		}
	}

	entry := &models.WidgetEntry{
		ProfileID: *sender.PartnerID,
		FromID:    sender.ID,
		FromName:  sender.Name,
		Note:      note,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.widgets.Put(ctx, entry); err != nil {
		return nil, err
	}

	log.Info().
		Str("from_id", sender.ID).
		Str("profile_id", entry.ProfileID).
		Str("note_id", note.ID).
		Msg("Widget updated")

	s.notifier.Notify(entry.ProfileID, WSMessage{Type: EventWidgetUpdated, Data: entry})
	return entry, nil
}

// Get returns the widget slot of a profile
func (s *WidgetService) Get(ctx context.Context, profileID string) (*models.WidgetEntry, error) {
	if profileID == "" {
		return nil, models.ValidationError(errors.New("profileId: cannot be blank"))
	}
	return s.widgets.Get(ctx, profileID)
}
