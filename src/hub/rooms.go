package hub

import (
	"strings"

	"github.com/sirsinexus/realtime-gateway/src/types"
)

// Join adds a connected user to a room, implicitly creating the room.
// Returns false if the user is not connected.
func (h *Hub) Join(room, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[userID]
	if !ok {
		return false
	}
	h.joinLocked(room, c)
	return true
}

// Leave removes a user from a room, pruning the room when it empties.
// Returns false if the room did not exist.
func (h *Hub) Leave(room, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	if c, ok := h.clients[userID]; ok {
		c.removeRoom(room)
	}
	return true
}

// LeaveByPrefix removes a user from every room whose name starts with
// prefix, returning the rooms left. Used for bulk unsubscribes.
func (h *Hub) LeaveByPrefix(userID, prefix string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := h.clients[userID]
	var left []string
	for room, members := range h.rooms {
		if !strings.HasPrefix(room, prefix) || !members[userID] {
			continue
		}
		delete(members, userID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
		if c != nil {
			c.removeRoom(room)
		}
		left = append(left, room)
	}
	return left
}

// Publish queues an event for every member of a room. Publishing to an
// empty or unknown room is a no-op.
func (h *Hub) Publish(room string, ev types.Event) {
	h.broadcast <- broadcastMsg{room: room, event: ev}
}

// PublishExcept queues an event for every member of a room except one
// user, typically the initiator of a presence or typing event.
func (h *Hub) PublishExcept(room, exceptUserID string, ev types.Event) {
	h.broadcast <- broadcastMsg{room: room, except: exceptUserID, event: ev}
}

// PublishAll queues an event for every connected client.
func (h *Hub) PublishAll(ev types.Event) {
	h.broadcast <- broadcastMsg{event: ev}
}

// SendToUser delivers an event directly to one user's connection.
// Returns false if the user is not connected or their buffer is full.
func (h *Hub) SendToUser(userID string, ev types.Event) bool {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.Deliver(ev)
}

// fanOut delivers an event to the resolved target set. Room targets
// with no members deliver nowhere, which is never an error.
func (h *Hub) fanOut(bm broadcastMsg) {
	h.mu.RLock()
	var ids []string
	if bm.room == "" {
		ids = make([]string, 0, len(h.clients))
		for id := range h.clients {
			ids = append(ids, id)
		}
	} else {
		members := h.rooms[bm.room]
		ids = make([]string, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
	}
	h.mu.RUnlock()

	if h.metrics != nil {
		h.metrics.EventsPublished.WithLabelValues(bm.event.Name).Inc()
	}

	for _, id := range ids {
		if id == bm.except {
			continue
		}
		h.mu.RLock()
		c, ok := h.clients[id]
		h.mu.RUnlock()
		if !ok {
			continue
		}
		if !c.Deliver(bm.event) {
			if h.metrics != nil {
				h.metrics.DroppedSends.Inc()
			}
			h.logger.Warn().Str("user_id", id).Str("event", bm.event.Name).
				Msg("send buffer full, dropping")
		}
	}
}

// publishToBridge forwards a broadcast to the bridge if one is attached.
func (h *Hub) publishToBridge(bm broadcastMsg) {
	h.mu.RLock()
	b := h.bridge
	h.mu.RUnlock()

	if b == nil || !b.Available() {
		return
	}
	if err := b.Publish(bm.room, bm.except, bm.event); err != nil {
		h.logger.Error().Err(err).Msg("bridge publish failed")
	}
}
