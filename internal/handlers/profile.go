package handlers

import (
	"net/http"

	"couple-notes-backend/internal/models"
	"couple-notes-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// ProfileHandler handles profile-related HTTP requests
type ProfileHandler struct {
	profileService *services.ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
	}
}

// CreateProfile handles POST /profile
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req services.CreateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid create profile request")
		return
	}

	profile, err := h.profileService.CreateProfile(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, "Failed to create profile")
		return
	}

	log.Info().
		Str("profile_id", profile.ID).
		Str("code", profile.Code).
		Msg("Profile created")

	respondJSON(w, http.StatusCreated, profile)
}

// UpsertProfile handles PUT /profile
func (h *ProfileHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req models.Profile
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid upsert profile request")
		return
	}
	if err := checkOwner(r.Context(), req.ID); err != nil {
		respondServiceError(w, r, err, "Rejected profile upsert")
		return
	}

	requestedID := req.ID
	profile, err := h.profileService.UpsertProfile(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err, "Failed to upsert profile")
		return
	}

	log.Info().
		Str("profile_id", profile.ID).
		Str("requested_id", requestedID).
		Msg("Profile upserted")

	respondJSON(w, http.StatusOK, profile)
}

// GetProfile handles GET /profile?id=
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if err := checkOwner(r.Context(), id); err != nil {
		respondServiceError(w, r, err, "Rejected profile read")
		return
	}

	profile, err := h.profileService.GetProfile(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err, "Failed to get profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}
