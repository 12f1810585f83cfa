package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"couple-notes-backend/internal/models"
	"couple-notes-backend/internal/services"
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// ListTasks handles GET /tasks?profileId=
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profileId")
	if err := checkOwner(r.Context(), profileID); err != nil {
		respondServiceError(w, r, err, "Rejected task listing")
		return
	}

	tasks, err := h.taskService.ListTasks(r.Context(), profileID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to list tasks")
		return
	}
	respondJSON(w, http.StatusOK, tasks)
}

// SaveTasks handles POST /tasks.
// A JSON object creates one task; a JSON array replaces the profile's whole list.
func (h *TaskHandler) SaveTasks(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		respondServiceError(w, r, err, "Invalid task request")
		return
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		h.replaceTasks(w, r, trimmed)
		return
	}

	var task models.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		respondServiceError(w, r, models.ValidationError(errors.New("invalid request body")), "Invalid task request")
		return
	}
	if err := checkOwner(r.Context(), task.ProfileID); err != nil {
		respondServiceError(w, r, err, "Rejected task create")
		return
	}

	created, err := h.taskService.CreateTask(r.Context(), &task)
	if err != nil {
		respondServiceError(w, r, err, "Failed to create task")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *TaskHandler) replaceTasks(w http.ResponseWriter, r *http.Request, body []byte) {
	var tasks []*models.Task
	if err := json.Unmarshal(body, &tasks); err != nil {
		respondServiceError(w, r, models.ValidationError(errors.New("invalid request body")), "Invalid task list")
		return
	}

	profileID := r.URL.Query().Get("profileId")
	if profileID == "" && len(tasks) > 0 {
		profileID = tasks[0].ProfileID
	}
	if err := checkOwner(r.Context(), profileID); err != nil {
		respondServiceError(w, r, err, "Rejected task replace")
		return
	}

	saved, err := h.taskService.ReplaceTasks(r.Context(), profileID, tasks)
	if err != nil {
		respondServiceError(w, r, err, "Failed to replace tasks")
		return
	}
	respondJSON(w, http.StatusOK, saved)
}
