package hub

import (
	"sync"
	"time"

	"github.com/sirsinexus/realtime-gateway/src/types"
)

// Client wraps one authenticated WebSocket connection. It exists only
// while the underlying transport is open.
type Client struct {
	UserID string
	Email  string

	conn        types.Conn
	hub         *Hub
	Send        chan types.Event
	connectedAt time.Time
	rooms       map[string]bool
	mu          sync.RWMutex
	done        chan struct{}
	closed      bool
}

// NewClient creates a client wrapper for a verified connection.
func NewClient(userID, email string, conn types.Conn, h *Hub) *Client {
	return &Client{
		UserID:      userID,
		Email:       email,
		conn:        conn,
		hub:         h,
		Send:        make(chan types.Event, h.sendQueue),
		connectedAt: time.Now(),
		rooms:       make(map[string]bool),
		done:        make(chan struct{}),
	}
}

// Info returns metadata about this client.
func (c *Client) Info() types.ClientInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	return types.ClientInfo{
		UserID:      c.UserID,
		Email:       c.Email,
		ConnectedAt: c.connectedAt,
		Rooms:       rooms,
	}
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = true
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

// Deliver queues an event for this client, dropping it if the client
// is closed or the send buffer is full.
func (c *Client) Deliver(ev types.Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- ev:
		return true
	default:
		return false
	}
}

// ReadPump reads frames from the WebSocket and routes them to the hub.
// It blocks until the transport closes.
func (c *Client) ReadPump() {
	defer func() {
		// The run loop is gone after shutdown; don't block on it.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	for {
		var frame types.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return
		}
		select {
		case c.hub.inbound <- inboundFrame{client: c, frame: frame}:
		case <-c.hub.done:
			return
		}
	}
}

// WritePump writes queued events to the WebSocket. Call in a goroutine.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		select {
		case ev := <-c.Send:
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close signals the client to stop its pumps. Safe to call more than
// once. Send stays open so concurrent deliveries can never panic; the
// buffer is simply abandoned once the pumps exit.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}
