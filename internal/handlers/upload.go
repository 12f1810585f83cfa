package handlers

import (
	"net/http"

	"couple-notes-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UploadHandler handles image upload HTTP requests
type UploadHandler struct {
	uploadService *services.UploadService
}

// NewUploadHandler creates a new upload handler.
// A nil service answers every request with 503.
func NewUploadHandler(uploadService *services.UploadService) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
	}
}

// CreateUpload handles POST /uploads
func (h *UploadHandler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	if h.uploadService == nil {
		respondError(w, "uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	var req services.UploadRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid upload request")
		return
	}
	if err := checkOwner(r.Context(), req.ProfileID); err != nil {
		respondServiceError(w, r, err, "Rejected upload")
		return
	}

	response, err := h.uploadService.PresignImage(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, "Failed to generate pre-signed URL")
		return
	}

	log.Info().
		Str("profile_id", req.ProfileID).
		Str("key", response.Key).
		Str("filename", req.Filename).
		Msg("Pre-signed URL generated")

	respondJSON(w, http.StatusOK, response)
}
