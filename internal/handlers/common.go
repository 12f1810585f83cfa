package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"couple-notes-backend/internal/middleware"
	"couple-notes-backend/internal/models"

	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// statusFor maps the shared error kinds to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError logs err and sends the matching status.
// Unexpected errors are reported with a generic message.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	event := log.Warn()
	if status == http.StatusInternalServerError {
		event = log.Error()
	}
	event.
		Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg(msg)

	if status == http.StatusInternalServerError {
		respondError(w, "internal server error", status)
		return
	}
	respondError(w, err.Error(), status)
}

// decodeJSON reads a JSON body into v
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return models.ValidationError(fmt.Errorf("failed to read request body: %v", err))
	}
	if len(body) == 0 {
		return models.ValidationError(errors.New("request body is required"))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return models.ValidationError(errors.New("invalid request body"))
	}
	return nil
}

// checkOwner rejects requests whose token belongs to another profile.
// Without authentication every profile ID is accepted.
func checkOwner(ctx context.Context, profileID string) error {
	authed := middleware.GetProfileID(ctx)
	if authed == "" || authed == profileID {
		return nil
	}
	return fmt.Errorf("token does not belong to profile %s: %w", profileID, models.ErrForbidden)
}
