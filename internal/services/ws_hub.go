package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Realtime event types pushed to profiles
const (
	EventNoteCreated     = "note_created"
	EventWidgetUpdated   = "widget_updated"
	EventPartnerLinked   = "partner_linked"
	EventPartnerUnlinked = "partner_unlinked"
	EventPartnerStatus   = "partner_status"
	EventError           = "error"
)

const writeWait = 10 * time.Second

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
	Online    *bool       `json:"online,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections, one per profile
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsConn
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsConn),
	}
}

// Register registers a new WebSocket connection for a profile,
// replacing and closing any previous one.
func (h *WSHub) Register(profileID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.connections[profileID]; ok {
		existing.conn.Close()
	}
	h.connections[profileID] = &wsConn{conn: conn}

	log.Info().Str("profile_id", profileID).Msg("WebSocket connection registered")
}

// Unregister removes the connection of a profile if it is still the registered one
func (h *WSHub) Unregister(profileID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.connections[profileID]; ok && existing.conn == conn {
		existing.conn.Close()
		delete(h.connections, profileID)
		log.Info().Str("profile_id", profileID).Msg("WebSocket connection unregistered")
	}
}

// SendToProfile sends a message to a specific profile
func (h *WSHub) SendToProfile(profileID string, message WSMessage) error {
	h.mu.RLock()
	c, exists := h.connections[profileID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("profile %s is not connected", profileID)
	}

	if message.Timestamp == 0 {
		message.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := c.write(data); err != nil {
		h.Unregister(profileID, c.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// IsOnline checks if a profile is connected
func (h *WSHub) IsOnline(profileID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[profileID]
	return exists
}

// Notify delivers a message to a profile if it is online.
// Delivery is best-effort; failures are logged.
func (h *WSHub) Notify(profileID string, message WSMessage) {
	if profileID == "" || !h.IsOnline(profileID) {
		return
	}
	if err := h.SendToProfile(profileID, message); err != nil {
		log.Error().
			Err(err).
			Str("profile_id", profileID).
			Str("type", message.Type).
			Msg("Failed to push event")
	}
}

// NotifyPartnerStatus notifies the partner about online/offline status
func (h *WSHub) NotifyPartnerStatus(partnerID string, online bool) {
	h.Notify(partnerID, WSMessage{
		Type:   EventPartnerStatus,
		Online: &online,
	})
}
