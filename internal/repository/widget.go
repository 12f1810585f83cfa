package repository

import (
	"context"
	"fmt"

	"couple-notes-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WidgetRepository stores the latest relayed note per profile
type WidgetRepository struct {
	db *pgxpool.Pool
}

// NewWidgetRepository creates a new widget repository
func NewWidgetRepository(db *pgxpool.Pool) *WidgetRepository {
	return &WidgetRepository{db: db}
}

// Put replaces the widget slot of entry.ProfileID
func (r *WidgetRepository) Put(ctx context.Context, e *models.WidgetEntry) error {
	query := `
		INSERT INTO widget_entries
			(profile_id, from_id, from_name, note_id, type, content, color, image_urls, timestamp, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (profile_id) DO UPDATE
		SET from_id = EXCLUDED.from_id,
		    from_name = EXCLUDED.from_name,
		    note_id = EXCLUDED.note_id,
		    type = EXCLUDED.type,
		    content = EXCLUDED.content,
		    color = EXCLUDED.color,
		    image_urls = EXCLUDED.image_urls,
		    timestamp = EXCLUDED.timestamp,
		    updated_at = EXCLUDED.updated_at
	`
	n := e.Note
	_, err := r.db.Exec(ctx, query, e.ProfileID, e.FromID, e.FromName, n.ID, n.Type, n.Content,
		n.Color, nonNilURLs(n.ImageURLs), n.Timestamp, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put widget entry: %w", mapError(err, "widget entry"))
	}
	return nil
}

// Get retrieves the widget slot of a profile
func (r *WidgetRepository) Get(ctx context.Context, profileID string) (*models.WidgetEntry, error) {
	query := `
		SELECT profile_id, from_id, from_name, note_id, type, content, color, image_urls, timestamp, updated_at
		FROM widget_entries
		WHERE profile_id = $1
	`
	var e models.WidgetEntry
	err := r.db.QueryRow(ctx, query, profileID).Scan(
		&e.ProfileID, &e.FromID, &e.FromName, &e.Note.ID, &e.Note.Type, &e.Note.Content,
		&e.Note.Color, &e.Note.ImageURLs, &e.Note.Timestamp, &e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get widget entry: %w", mapError(err, "widget entry"))
	}
	e.Note.ProfileID = e.FromID
	return &e, nil
}
