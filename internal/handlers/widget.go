package handlers

import (
	"net/http"

	"couple-notes-backend/internal/services"
)

// WidgetHandler handles widget relay HTTP requests
type WidgetHandler struct {
	widgetService *services.WidgetService
}

// NewWidgetHandler creates a new widget handler
func NewWidgetHandler(widgetService *services.WidgetService) *WidgetHandler {
	return &WidgetHandler{
		widgetService: widgetService,
	}
}

// SendWidget handles POST /widget
func (h *WidgetHandler) SendWidget(w http.ResponseWriter, r *http.Request) {
	var req services.SendWidgetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid widget request")
		return
	}
	if err := checkOwner(r.Context(), req.FromID); err != nil {
		respondServiceError(w, r, err, "Rejected widget send")
		return
	}

	entry, err := h.widgetService.Send(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, "Failed to send widget")
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// GetWidget handles GET /widget?profileId=
func (h *WidgetHandler) GetWidget(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profileId")
	if err := checkOwner(r.Context(), profileID); err != nil {
		respondServiceError(w, r, err, "Rejected widget read")
		return
	}

	entry, err := h.widgetService.Get(r.Context(), profileID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to get widget")
		return
	}
	respondJSON(w, http.StatusOK, entry)
}
