package handlers

import (
	"net/http"

	"couple-notes-backend/internal/services"
)

// ConnectHandler handles partner-linking HTTP requests
type ConnectHandler struct {
	partnerService *services.PartnerService
}

// NewConnectHandler creates a new connect handler
func NewConnectHandler(partnerService *services.PartnerService) *ConnectHandler {
	return &ConnectHandler{
		partnerService: partnerService,
	}
}

// Connect handles POST /connect
func (h *ConnectHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req services.ConnectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err, "Invalid connect request")
		return
	}
	if err := checkOwner(r.Context(), req.MyID); err != nil {
		respondServiceError(w, r, err, "Rejected connect")
		return
	}

	resp, err := h.partnerService.Connect(r.Context(), req.MyID, req.PartnerCode)
	if err != nil {
		respondServiceError(w, r, err, "Failed to link profiles")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Disconnect handles DELETE /connect?myId=
func (h *ConnectHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	myID := r.URL.Query().Get("myId")
	if err := checkOwner(r.Context(), myID); err != nil {
		respondServiceError(w, r, err, "Rejected disconnect")
		return
	}

	if err := h.partnerService.Disconnect(r.Context(), myID); err != nil {
		respondServiceError(w, r, err, "Failed to unlink profiles")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
