// Package gateway implements the realtime gateway's domain logic:
// inbound frame handling and the server-internal broadcast API.
package gateway

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/sirsinexus/realtime-gateway/src/auth"
	"github.com/sirsinexus/realtime-gateway/src/hub"
	"github.com/sirsinexus/realtime-gateway/src/types"
)

// Service is the high-level gateway API. Request handlers in other
// services hold a reference and call the Broadcast* methods after
// completing their own work.
type Service struct {
	hub    *hub.Hub
	logger zerolog.Logger

	// Per-user logical channel subscriptions, kept for bookkeeping only.
	mu   sync.Mutex
	subs map[string]map[string]bool
}

// New creates the gateway service and installs it as the hub's frame
// dispatcher.
func New(h *hub.Hub, logger zerolog.Logger) *Service {
	s := &Service{
		hub:    h,
		logger: logger.With().Str("component", "gateway").Logger(),
		subs:   make(map[string]map[string]bool),
	}
	h.SetHandler(s.handleFrame)
	h.OnDisconnection(s.dropSubscriptions)
	return s
}

// Hub returns the underlying hub.
func (s *Service) Hub() *hub.Hub { return s.hub }

// Attach promotes a verified connection to a registered client and
// acknowledges it. The caller runs the client's pumps.
func (s *Service) Attach(conn types.Conn, ident *auth.Identity) *hub.Client {
	client := hub.NewClient(ident.UserID, ident.Email, conn, s.hub)
	s.hub.Register(client)
	client.Deliver(types.NewEvent("connected", map[string]any{
		"message": "Connected to real-time updates",
	}))
	return client
}

func (s *Service) trackSubscription(userID, channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[userID] == nil {
		s.subs[userID] = make(map[string]bool)
	}
	s.subs[userID][channel] = true
}

func (s *Service) untrackSubscription(userID, channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.subs[userID]; ok {
		delete(set, channel)
		if len(set) == 0 {
			delete(s.subs, userID)
		}
	}
}

func (s *Service) dropSubscriptions(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, userID)
}

// Subscriptions returns the logical channels a user has subscribed to.
func (s *Service) Subscriptions(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.subs[userID]
	channels := make([]string, 0, len(set))
	for ch := range set {
		channels = append(channels, ch)
	}
	return channels
}

// ConnectedUserCount returns the number of connected users.
func (s *Service) ConnectedUserCount() int { return s.hub.UserCount() }

// RoomMemberCount returns the number of members in a room.
func (s *Service) RoomMemberCount(room string) int { return s.hub.RoomCount(room) }

// IsUserConnected reports whether a user has a live connection.
func (s *Service) IsUserConnected(userID string) bool { return s.hub.IsConnected(userID) }

// Rooms returns active rooms with member counts.
func (s *Service) Rooms() map[string]int { return s.hub.Rooms() }

// Shutdown closes all connections and clears gateway state.
func (s *Service) Shutdown() {
	s.hub.Shutdown()
	s.mu.Lock()
	s.subs = make(map[string]map[string]bool)
	s.mu.Unlock()
}
