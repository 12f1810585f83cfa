// Package memory provides in-process implementations of the repositories.
// They back the "memory" storage driver and the handler and client tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"couple-notes-backend/internal/models"
)

// Store holds every table behind one mutex so multi-row operations are atomic
type Store struct {
	mu       sync.RWMutex
	profiles map[string]models.Profile
	notes    map[string]models.Note
	tasks    map[string][]models.Task
	widgets  map[string]models.WidgetEntry
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		profiles: make(map[string]models.Profile),
		notes:    make(map[string]models.Note),
		tasks:    make(map[string][]models.Task),
		widgets:  make(map[string]models.WidgetEntry),
	}
}

// Profiles returns the profile repository view of the store
func (s *Store) Profiles() *ProfileRepository { return &ProfileRepository{s: s} }

// Notes returns the note repository view of the store
func (s *Store) Notes() *NoteRepository { return &NoteRepository{s: s} }

// Tasks returns the task repository view of the store
func (s *Store) Tasks() *TaskRepository { return &TaskRepository{s: s} }

// Widgets returns the widget repository view of the store
func (s *Store) Widgets() *WidgetRepository { return &WidgetRepository{s: s} }

func copyNote(n models.Note) *models.Note {
	if n.ImageURLs != nil {
		n.ImageURLs = append([]string(nil), n.ImageURLs...)
	}
	if n.Color != nil {
		c := *n.Color
		n.Color = &c
	}
	return &n
}

func strPtr(s string) *string { return &s }

// ProfileRepository is the in-memory profile store
type ProfileRepository struct{ s *Store }

// Create creates a new profile
func (r *ProfileRepository) Create(_ context.Context, p *models.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.profiles[p.ID]; ok {
		return fmt.Errorf("profile already exists: %w", models.ErrConflict)
	}
	for _, other := range r.s.profiles {
		if other.Code == p.Code {
			return fmt.Errorf("profile already exists: %w", models.ErrConflict)
		}
	}
	r.s.profiles[p.ID] = *p
	return nil
}

// Upsert inserts or updates the user-editable fields of a profile
func (r *ProfileRepository) Upsert(_ context.Context, p *models.Profile) (*models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, other := range r.s.profiles {
		if id != p.ID && other.Code == p.Code {
			return nil, fmt.Errorf("profile already exists: %w", models.ErrConflict)
		}
	}

	saved, ok := r.s.profiles[p.ID]
	if !ok {
		saved = models.Profile{ID: p.ID, CreatedAt: p.CreatedAt}
	}
	saved.Name = p.Name
	saved.Code = p.Code
	saved.Anniversary = p.Anniversary
	r.s.profiles[p.ID] = saved

	out := saved
	return &out, nil
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(_ context.Context, id string) (*models.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %w", models.ErrNotFound)
	}
	return &p, nil
}

// GetByCode retrieves a profile by its partner code
func (r *ProfileRepository) GetByCode(_ context.Context, code string) (*models.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.profiles {
		if p.Code == code {
			out := p
			return &out, nil
		}
	}
	return nil, fmt.Errorf("partner %w", models.ErrNotFound)
}

// CodeExists checks if a partner code is already taken
func (r *ProfileRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	_, err := r.GetByCode(ctx, code)
	return err == nil, nil
}

// Link sets both sides of a partnership atomically.
// Either side being linked to a third profile fails with a conflict.
func (r *ProfileRepository) Link(_ context.Context, me, partner *models.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.profiles[me.ID]
	if !ok {
		return fmt.Errorf("profile %w", models.ErrNotFound)
	}
	b, ok := r.s.profiles[partner.ID]
	if !ok {
		return fmt.Errorf("partner %w", models.ErrNotFound)
	}
	if a.HasPartner() && *a.PartnerID != b.ID {
		return fmt.Errorf("profile is already linked to another partner: %w", models.ErrConflict)
	}
	if b.HasPartner() && *b.PartnerID != a.ID {
		return fmt.Errorf("partner is already linked to another profile: %w", models.ErrConflict)
	}

	a.PartnerID, a.PartnerName = strPtr(b.ID), strPtr(b.Name)
	b.PartnerID, b.PartnerName = strPtr(a.ID), strPtr(a.Name)
	r.s.profiles[a.ID] = a
	r.s.profiles[b.ID] = b
	return nil
}

// Unlink clears both sides of a partnership and returns the former partner's ID
func (r *ProfileRepository) Unlink(_ context.Context, id string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.profiles[id]
	if !ok {
		return "", fmt.Errorf("profile %w", models.ErrNotFound)
	}
	if !p.HasPartner() {
		return "", fmt.Errorf("partner %w", models.ErrNotFound)
	}
	partnerID := *p.PartnerID

	p.PartnerID, p.PartnerName = nil, nil
	r.s.profiles[id] = p

	if other, ok := r.s.profiles[partnerID]; ok && other.PartnerID != nil && *other.PartnerID == id {
		other.PartnerID, other.PartnerName = nil, nil
		r.s.profiles[partnerID] = other
	}
	return partnerID, nil
}

// NoteRepository is the in-memory note store
type NoteRepository struct{ s *Store }

// Save inserts a note or overwrites the owner's note with the same ID
func (r *NoteRepository) Save(_ context.Context, n *models.Note) (*models.Note, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.profiles[n.ProfileID]; !ok {
		return nil, fmt.Errorf("profile %w", models.ErrNotFound)
	}
	if existing, ok := r.s.notes[n.ID]; ok && existing.ProfileID != n.ProfileID {
		return nil, fmt.Errorf("note %s belongs to another profile: %w", n.ID, models.ErrConflict)
	}
	r.s.notes[n.ID] = *copyNote(*n)
	return copyNote(*n), nil
}

// GetByID retrieves a note by ID
func (r *NoteRepository) GetByID(_ context.Context, id string) (*models.Note, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n, ok := r.s.notes[id]
	if !ok {
		return nil, fmt.Errorf("note %w", models.ErrNotFound)
	}
	return copyNote(n), nil
}

// ListByProfile retrieves all notes of a profile, newest first
func (r *NoteRepository) ListByProfile(_ context.Context, profileID string) ([]*models.Note, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	notes := []*models.Note{}
	for _, n := range r.s.notes {
		if n.ProfileID == profileID {
			notes = append(notes, copyNote(n))
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].Timestamp != notes[j].Timestamp {
			return notes[i].Timestamp > notes[j].Timestamp
		}
		return notes[i].ID < notes[j].ID
	})
	return notes, nil
}

// Update applies a partial update to a note owned by patch.ProfileID
func (r *NoteRepository) Update(_ context.Context, patch *models.NotePatch) (*models.Note, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notes[patch.ID]
	if !ok || n.ProfileID != patch.ProfileID {
		return nil, fmt.Errorf("note %w", models.ErrNotFound)
	}
	patch.Apply(&n)
	r.s.notes[n.ID] = n
	return copyNote(n), nil
}

// Delete deletes a note owned by profileID
func (r *NoteRepository) Delete(_ context.Context, id, profileID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notes[id]
	if !ok || n.ProfileID != profileID {
		return fmt.Errorf("note %w", models.ErrNotFound)
	}
	delete(r.s.notes, id)
	return nil
}

// TaskRepository is the in-memory task store
type TaskRepository struct{ s *Store }

// Create appends a task to the profile's list
func (r *TaskRepository) Create(_ context.Context, t *models.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.profiles[t.ProfileID]; !ok {
		return fmt.Errorf("profile %w", models.ErrNotFound)
	}
	for _, list := range r.s.tasks {
		for _, existing := range list {
			if existing.ID == t.ID {
				return fmt.Errorf("task already exists: %w", models.ErrConflict)
			}
		}
	}
	r.s.tasks[t.ProfileID] = append(r.s.tasks[t.ProfileID], *t)
	return nil
}

// ListByProfile retrieves the tasks of a profile in list order
func (r *TaskRepository) ListByProfile(_ context.Context, profileID string) ([]*models.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tasks := []*models.Task{}
	for _, t := range r.s.tasks[profileID] {
		t := t
		tasks = append(tasks, &t)
	}
	return tasks, nil
}

// ReplaceAll swaps the whole task list of a profile
func (r *TaskRepository) ReplaceAll(_ context.Context, profileID string, tasks []*models.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.profiles[profileID]; !ok {
		return fmt.Errorf("profile %w", models.ErrNotFound)
	}
	list := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		c := *t
		c.ProfileID = profileID
		list = append(list, c)
	}
	r.s.tasks[profileID] = list
	return nil
}

// WidgetRepository is the in-memory widget store
type WidgetRepository struct{ s *Store }

// Put replaces the widget slot of entry.ProfileID
func (r *WidgetRepository) Put(_ context.Context, e *models.WidgetEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.profiles[e.ProfileID]; !ok {
		return fmt.Errorf("profile %w", models.ErrNotFound)
	}
	c := *e
	c.Note = *copyNote(e.Note)
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	r.s.widgets[e.ProfileID] = c
	return nil
}

// Get retrieves the widget slot of a profile
func (r *WidgetRepository) Get(_ context.Context, profileID string) (*models.WidgetEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.widgets[profileID]
	if !ok {
		return nil, fmt.Errorf("widget entry %w", models.ErrNotFound)
	}
	e.Note = *copyNote(e.Note)
	return &e, nil
}
