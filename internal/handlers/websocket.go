package handlers

import (
	"encoding/json"
	"net/http"

	"couple-notes-backend/internal/metrics"
	"couple-notes-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // mobile clients send no stable Origin
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub            *services.WSHub
	profileService *services.ProfileService
	partnerService *services.PartnerService
	authEnabled    bool
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	profileService *services.ProfileService,
	partnerService *services.PartnerService,
	authEnabled bool,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		profileService: profileService,
		partnerService: partnerService,
		authEnabled:    authEnabled,
	}
}

// resolveProfile identifies the connecting profile from the query string
func (h *WebSocketHandler) resolveProfile(r *http.Request) (string, int, string) {
	q := r.URL.Query()
	if h.authEnabled {
		token := q.Get("token")
		if token == "" {
			return "", http.StatusUnauthorized, "token required"
		}
		profileID, err := h.profileService.ValidateJWT(token)
		if err != nil {
			return "", http.StatusUnauthorized, "invalid token"
		}
		return profileID, 0, ""
	}

	profileID := q.Get("profileId")
	if profileID == "" {
		return "", http.StatusBadRequest, "profileId required"
	}
	if _, err := h.profileService.GetProfile(r.Context(), profileID); err != nil {
		return "", statusFor(err), err.Error()
	}
	return profileID, 0, ""
}

// HandleWebSocket handles GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	profileID, status, msg := h.resolveProfile(r)
	if status != 0 {
		respondError(w, msg, status)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(profileID, conn)
	metrics.WSConnections.Inc()
	defer func() {
		h.hub.Unregister(profileID, conn)
		metrics.WSConnections.Dec()
	}()

	ctx := r.Context()
	partnerID := ""
	if partner, err := h.partnerService.GetPartner(ctx, profileID); err == nil {
		partnerID = partner.ID
		h.hub.NotifyPartnerStatus(partnerID, true)
		defer h.hub.NotifyPartnerStatus(partnerID, false)
	}

	online := h.hub.IsOnline(partnerID)
	if err := h.hub.SendToProfile(profileID, services.WSMessage{
		Type:   services.EventPartnerStatus,
		Online: &online,
		Data: map[string]interface{}{
			"has_partner": partnerID != "",
			"partner_id":  partnerID,
		},
	}); err != nil {
		log.Error().Err(err).Str("profile_id", profileID).Msg("Failed to send partner_status message")
	}

	log.Info().Str("profile_id", profileID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("profile_id", profileID).Msg("WebSocket error")
			}
			break
		}

		var in services.WSMessage
		if err := json.Unmarshal(messageBytes, &in); err != nil {
			h.sendError(profileID, "Invalid message format")
			continue
		}

		switch in.Type {
		case "ping":
			if err := h.hub.SendToProfile(profileID, services.WSMessage{Type: "pong"}); err != nil {
				log.Debug().Err(err).Str("profile_id", profileID).Msg("Failed to send pong")
			}
		default:
			h.sendError(profileID, "Unknown message type")
		}
	}
}

// sendError sends an error message to a profile
func (h *WebSocketHandler) sendError(profileID, message string) {
	if err := h.hub.SendToProfile(profileID, services.WSMessage{
		Type:    services.EventError,
		Message: message,
	}); err != nil {
		log.Debug().Err(err).Str("profile_id", profileID).Msg("Failed to send error message")
	}
}
