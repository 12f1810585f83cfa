package services

import (
	"context"
	"errors"
	"fmt"

	"couple-notes-backend/internal/models"

	"github.com/google/uuid"
)

// TaskService handles task-related business logic
type TaskService struct {
	tasks TaskStore
}

// NewTaskService creates a new task service
func NewTaskService(tasks TaskStore) *TaskService {
	return &TaskService{tasks: tasks}
}

// ListTasks returns the task list of a profile
func (s *TaskService) ListTasks(ctx context.Context, profileID string) ([]*models.Task, error) {
	if profileID == "" {
		return nil, models.ValidationError(errors.New("profileId: cannot be blank"))
	}
	return s.tasks.ListByProfile(ctx, profileID)
}

// CreateTask appends a single task
func (s *TaskService) CreateTask(ctx context.Context, t *models.Task) (*models.Task, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if err := t.Validate(); err != nil {
		return nil, models.ValidationError(err)
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ReplaceTasks replaces the whole task list of a profile.
// Every task must belong to profileID or leave profileId empty.
func (s *TaskService) ReplaceTasks(ctx context.Context, profileID string, tasks []*models.Task) ([]*models.Task, error) {
	if profileID == "" {
		return nil, models.ValidationError(errors.New("profileId: cannot be blank"))
	}

	seen := make(map[string]bool, len(tasks))
	for i, t := range tasks {
		if t.ProfileID == "" {
			t.ProfileID = profileID
		}
		if t.ProfileID != profileID {
			return nil, models.ValidationError(fmt.Errorf("tasks[%d].profileId: must be %s", i, profileID))
		}
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		if seen[t.ID] {
			return nil, models.ValidationError(fmt.Errorf("tasks[%d].id: duplicate %s", i, t.ID))
		}
		seen[t.ID] = true
		if err := t.Validate(); err != nil {
			return nil, models.ValidationError(fmt.Errorf("tasks[%d]: %v", i, err))
		}
	}

	if err := s.tasks.ReplaceAll(ctx, profileID, tasks); err != nil {
		return nil, err
	}
	return s.tasks.ListByProfile(ctx, profileID)
}
