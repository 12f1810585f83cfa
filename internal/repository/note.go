package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"couple-notes-backend/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var noteColumns = []string{
	"id", "profile_id", "type", "content", "color", "image_urls", "timestamp", "pinned", "bookmarked",
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// NoteRepository handles database operations for notes
type NoteRepository struct {
	db *pgxpool.Pool
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db *pgxpool.Pool) *NoteRepository {
	return &NoteRepository{db: db}
}

func scanNote(row pgx.Row) (*models.Note, error) {
	var n models.Note
	err := row.Scan(&n.ID, &n.ProfileID, &n.Type, &n.Content, &n.Color, &n.ImageURLs,
		&n.Timestamp, &n.Pinned, &n.Bookmarked)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func nonNilURLs(urls []string) []string {
	if urls == nil {
		return []string{}
	}
	return urls
}

// Save inserts a note or overwrites an existing note with the same ID.
// A note that belongs to another profile is never overwritten.
func (r *NoteRepository) Save(ctx context.Context, n *models.Note) (*models.Note, error) {
	query, args, err := psql.
		Insert("notes").
		Columns(noteColumns...).
		Values(n.ID, n.ProfileID, n.Type, n.Content, n.Color, nonNilURLs(n.ImageURLs),
			n.Timestamp, n.Pinned, n.Bookmarked).
		Suffix(`ON CONFLICT (id) DO UPDATE
			SET type = EXCLUDED.type,
			    content = EXCLUDED.content,
			    color = EXCLUDED.color,
			    image_urls = EXCLUDED.image_urls,
			    timestamp = EXCLUDED.timestamp,
			    pinned = EXCLUDED.pinned,
			    bookmarked = EXCLUDED.bookmarked
			WHERE notes.profile_id = EXCLUDED.profile_id`).
		Suffix("RETURNING " + strings.Join(noteColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	saved, err := scanNote(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("note %s belongs to another profile: %w", n.ID, models.ErrConflict)
		}
		return nil, fmt.Errorf("failed to save note: %w", mapError(err, "note"))
	}
	return saved, nil
}

// GetByID retrieves a note by ID
func (r *NoteRepository) GetByID(ctx context.Context, id string) (*models.Note, error) {
	query, args, err := psql.Select(noteColumns...).From("notes").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	n, err := scanNote(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", mapError(err, "note"))
	}
	return n, nil
}

// ListByProfile retrieves all notes of a profile, newest first
func (r *NoteRepository) ListByProfile(ctx context.Context, profileID string) ([]*models.Note, error) {
	query, args, err := psql.
		Select(noteColumns...).
		From("notes").
		Where(squirrel.Eq{"profile_id": profileID}).
		OrderBy("timestamp DESC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get notes: %w", err)
	}
	defer rows.Close()

	notes := []*models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}

	return notes, nil
}

// Update applies a partial update to a note owned by patch.ProfileID
func (r *NoteRepository) Update(ctx context.Context, patch *models.NotePatch) (*models.Note, error) {
	if patch.Empty() {
		n, err := r.GetByID(ctx, patch.ID)
		if err != nil {
			return nil, err
		}
		if n.ProfileID != patch.ProfileID {
			return nil, fmt.Errorf("note %w", models.ErrNotFound)
		}
		return n, nil
	}

	builder := psql.Update("notes").
		Where(squirrel.Eq{"id": patch.ID, "profile_id": patch.ProfileID}).
		Suffix("RETURNING " + strings.Join(noteColumns, ", "))

	if patch.Type != nil {
		builder = builder.Set("type", *patch.Type)
	}
	if patch.Content != nil {
		builder = builder.Set("content", *patch.Content)
	}
	if patch.Color != nil {
		builder = builder.Set("color", *patch.Color)
	}
	if patch.ImageURLs != nil {
		builder = builder.Set("image_urls", nonNilURLs(*patch.ImageURLs))
	}
	if patch.Timestamp != nil {
		builder = builder.Set("timestamp", *patch.Timestamp)
	}
	if patch.Pinned != nil {
		builder = builder.Set("pinned", *patch.Pinned)
	}
	if patch.Bookmarked != nil {
		builder = builder.Set("bookmarked", *patch.Bookmarked)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	n, err := scanNote(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", mapError(err, "note"))
	}
	return n, nil
}

// Delete deletes a note owned by profileID
func (r *NoteRepository) Delete(ctx context.Context, id, profileID string) error {
	query, args, err := psql.Delete("notes").Where(squirrel.Eq{"id": id, "profile_id": profileID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("note %w", models.ErrNotFound)
	}
	return nil
}
