package hub

import (
	"github.com/sirsinexus/realtime-gateway/src/types"
)

// OnConnection registers a callback invoked after a user connects.
func (h *Hub) OnConnection(cb func(userID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnect = append(h.onConnect, cb)
}

// OnDisconnection registers a callback invoked after a user disconnects.
func (h *Hub) OnDisconnection(cb func(userID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDisconn = append(h.onDisconn, cb)
}

// UserCount returns the number of connected users.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of members in a room. An unknown room
// has zero members.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// IsConnected reports whether a user currently has a live connection.
func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// ConnectedUsers returns the IDs of all connected users.
func (h *Hub) ConnectedUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// Rooms returns room names with their member counts.
func (h *Hub) Rooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make(map[string]int, len(h.rooms))
	for room, members := range h.rooms {
		result[room] = len(members)
	}
	return result
}

// ClientInfo returns info for a connected user, or nil.
func (h *Hub) ClientInfo(userID string) *types.ClientInfo {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	info := c.Info()
	return &info
}
