package repository

import (
	"context"
	"fmt"

	"couple-notes-backend/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskRepository handles database operations for tasks
type TaskRepository struct {
	db *pgxpool.Pool
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create appends a task to the end of the profile's list
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	query := `
		INSERT INTO tasks (id, profile_id, text, completed, position)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM tasks WHERE profile_id = $2))
	`
	_, err := r.db.Exec(ctx, query, t.ID, t.ProfileID, t.Text, t.Completed)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", mapError(err, "task"))
	}
	return nil
}

// ListByProfile retrieves the tasks of a profile in list order
func (r *TaskRepository) ListByProfile(ctx context.Context, profileID string) ([]*models.Task, error) {
	query, args, err := psql.
		Select("id", "profile_id", "text", "completed").
		From("tasks").
		Where(squirrel.Eq{"profile_id": profileID}).
		OrderBy("position", "created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.ProfileID, &t.Text, &t.Completed); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// ReplaceAll deletes every task of the profile and inserts the given list in one transaction
func (r *TaskRepository) ReplaceAll(ctx context.Context, profileID string, tasks []*models.Task) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE profile_id = $1`, profileID); err != nil {
			return fmt.Errorf("failed to clear tasks: %w", err)
		}
		if len(tasks) == 0 {
			return nil
		}

		builder := psql.Insert("tasks").Columns("id", "profile_id", "text", "completed", "position")
		for i, t := range tasks {
			builder = builder.Values(t.ID, profileID, t.Text, t.Completed, i)
		}
		query, args, err := builder.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build query: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert tasks: %w", mapError(err, "task"))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace tasks: %w", err)
	}
	return nil
}
