package hub

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/sirsinexus/realtime-gateway/src/metrics"
	"github.com/sirsinexus/realtime-gateway/src/types"
)

// MessageBridge relays published events to other gateway instances.
// Defined here to avoid circular imports with the bridge package.
type MessageBridge interface {
	Publish(room, except string, ev types.Event) error
	Available() bool
}

// FrameHandler processes one inbound frame from a client. A returned
// error is logged; it never closes the connection.
type FrameHandler func(c *Client, f types.Frame) error

// Hub owns the connection registry and the room membership table.
// All mutation happens through its methods; no other component touches
// the maps directly.
type Hub struct {
	clients map[string]*Client         // userID -> connection
	rooms   map[string]map[string]bool // room -> set of userIDs

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	broadcast  chan broadcastMsg
	localCast  chan broadcastMsg // events from the bridge, no re-publish

	handler   FrameHandler
	onConnect []func(string)
	onDisconn []func(string)

	bridge    MessageBridge
	sendQueue int
	metrics   *metrics.Metrics
	mu        sync.RWMutex
	logger    zerolog.Logger
	done      chan struct{}
	stopOnce  sync.Once
}

type inboundFrame struct {
	client *Client
	frame  types.Frame
}

type broadcastMsg struct {
	room   string // empty means every connected client
	except string // userID to skip, if any
	event  types.Event
}

// New creates a hub. sendQueue bounds each client's outbound buffer.
func New(logger zerolog.Logger, m *metrics.Metrics, sendQueue int) *Hub {
	if sendQueue < 1 {
		sendQueue = 256
	}
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame, 256),
		broadcast:  make(chan broadcastMsg, 256),
		localCast:  make(chan broadcastMsg, 256),
		sendQueue:  sendQueue,
		metrics:    m,
		logger:     logger.With().Str("component", "hub").Logger(),
		done:       make(chan struct{}),
	}
}

// SetHandler installs the inbound frame dispatcher. Must be called
// before Run.
func (h *Hub) SetHandler(handler FrameHandler) {
	h.handler = handler
}

// SetBridge attaches a cross-instance message bridge. When set,
// published events are also forwarded to other instances.
func (h *Hub) SetBridge(b MessageBridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = b
}

// BroadcastLocal delivers an event from the bridge to local room members
// only. It does not re-publish, preventing relay loops.
func (h *Hub) BroadcastLocal(room, except string, ev types.Event) {
	h.localCast <- broadcastMsg{room: room, except: except, event: ev}
}

// Run starts the hub event loop. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case in := <-h.inbound:
			h.dispatch(in)
		case bm := <-h.broadcast:
			h.publishToBridge(bm)
			h.fanOut(bm)
		case bm := <-h.localCast:
			h.fanOut(bm)
		case <-h.done:
			return
		}
	}
}

// Register queues a client for registration.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister queues a client for removal.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Shutdown stops the event loop, closes every connection, and clears
// all in-memory state. Safe to call more than once.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		c.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
	if h.metrics != nil {
		h.metrics.ConnectedClients.Set(0)
	}
	h.logger.Info().Msg("hub shut down")
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	prev := h.clients[c.UserID]
	h.clients[c.UserID] = c
	if prev != nil {
		h.dropMembershipLocked(prev)
	}
	// Every connection starts in its private room and nothing else.
	h.joinLocked(types.UserRoom(c.UserID), c)
	h.mu.Unlock()

	if prev != nil {
		prev.Close()
		h.logger.Info().Str("user_id", c.UserID).Msg("replaced existing connection")
	}
	if h.metrics != nil {
		h.metrics.ConnectedClients.Set(float64(h.UserCount()))
	}
	h.logger.Info().Str("user_id", c.UserID).Msg("client connected")

	for _, cb := range h.onConnect {
		cb(c.UserID)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	// A stale unregister for a replaced connection must not evict the
	// replacement.
	if h.clients[c.UserID] != c {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.UserID)
	h.dropMembershipLocked(c)
	h.mu.Unlock()

	c.Close()
	if h.metrics != nil {
		h.metrics.ConnectedClients.Set(float64(h.UserCount()))
	}
	h.logger.Info().Str("user_id", c.UserID).Msg("client disconnected")

	for _, cb := range h.onDisconn {
		cb(c.UserID)
	}
}

// dropMembershipLocked removes a client from every room, pruning empty
// entries. Caller holds h.mu.
func (h *Hub) dropMembershipLocked(c *Client) {
	for room, members := range h.rooms {
		delete(members, c.UserID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// joinLocked adds a client to a room, creating it on first use.
// Caller holds h.mu.
func (h *Hub) joinLocked(room string, c *Client) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]bool)
	}
	h.rooms[room][c.UserID] = true
	c.addRoom(room)
}

func (h *Hub) dispatch(in inboundFrame) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().
				Str("user_id", in.client.UserID).
				Str("frame", in.frame.Type).
				Interface("panic", r).
				Msg("frame handler panicked")
		}
	}()

	if h.handler == nil {
		h.logger.Debug().Str("frame", in.frame.Type).Msg("no handler installed")
		return
	}
	if err := h.handler(in.client, in.frame); err != nil {
		h.logger.Error().Err(err).
			Str("user_id", in.client.UserID).
			Str("frame", in.frame.Type).
			Msg("frame handler error")
	}
}
