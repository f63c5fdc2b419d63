package realtime

import (
	"sync"

	json "github.com/goccy/go-json"
)

// Client represents a single websocket client connection.
// The network conn itself is managed by the ws handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Event is the payload pushed to clients when a task changes.
type Event struct {
	Type    string `json:"type"`
	TaskID  string `json:"taskId"`
	UserID  string `json:"userId"`
	Version int    `json:"version"`
}

// Event types.
const (
	TaskCreated       = "task_created"
	TaskUpdated       = "task_updated"
	TaskStatusChanged = "task_status_changed"
	TaskDeleted       = "task_deleted"
)

// Hub maintains active user connections and broadcasts events to them.
type Hub struct {
	mu              sync.RWMutex
	userIDToClients map[string]map[Client]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		userIDToClients: make(map[string]map[Client]struct{}),
	}
}

// Register adds a client under a user ID.
func (h *Hub) Register(userID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.userIDToClients[userID]; !ok {
		h.userIDToClients[userID] = make(map[Client]struct{})
	}
	h.userIDToClients[userID][client] = struct{}{}
}

// Unregister removes a client; if user has no more clients, cleans up map.
func (h *Hub) Unregister(userID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.userIDToClients[userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.userIDToClients, userID)
		}
	}
}

// Broadcast sends a message to all clients of a user and returns how many accepted it.
// Failed clients are left for their handler to clean up.
func (h *Hub) Broadcast(userID string, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for c := range h.userIDToClients[userID] {
		if c.Send(message) {
			sent++
		}
	}
	return sent
}

// Publish encodes evt and broadcasts it to userID's clients.
func (h *Hub) Publish(userID string, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	h.Broadcast(userID, data)
	return nil
}

// ClientCount returns the number of connections registered for userID.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userIDToClients[userID])
}
