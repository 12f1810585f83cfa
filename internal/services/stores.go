package services

import (
	"context"

	"couple-notes-backend/internal/models"
)

// ProfileStore persists profiles and partner links
type ProfileStore interface {
	Create(ctx context.Context, p *models.Profile) error
	Upsert(ctx context.Context, p *models.Profile) (*models.Profile, error)
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByCode(ctx context.Context, code string) (*models.Profile, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Link(ctx context.Context, me, partner *models.Profile) error
	Unlink(ctx context.Context, id string) (string, error)
}

// NoteStore persists notes
type NoteStore interface {
	Save(ctx context.Context, n *models.Note) (*models.Note, error)
	GetByID(ctx context.Context, id string) (*models.Note, error)
	ListByProfile(ctx context.Context, profileID string) ([]*models.Note, error)
	Update(ctx context.Context, patch *models.NotePatch) (*models.Note, error)
	Delete(ctx context.Context, id, profileID string) error
}

// TaskStore persists tasks
type TaskStore interface {
	Create(ctx context.Context, t *models.Task) error
	ListByProfile(ctx context.Context, profileID string) ([]*models.Task, error)
	ReplaceAll(ctx context.Context, profileID string, tasks []*models.Task) error
}

// WidgetStore persists the widget slot of each profile
type WidgetStore interface {
	Put(ctx context.Context, e *models.WidgetEntry) error
	Get(ctx context.Context, profileID string) (*models.WidgetEntry, error)
}

// Notifier pushes realtime events to a connected profile
type Notifier interface {
	Notify(profileID string, msg WSMessage)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, WSMessage) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
