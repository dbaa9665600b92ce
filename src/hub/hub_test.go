package hub

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sirsinexus/realtime-gateway/src/metrics"
	"github.com/sirsinexus/realtime-gateway/src/types"
)

// mockConn implements types.Conn for testing without a real WebSocket.
type mockConn struct {
	mu       sync.Mutex
	written  []types.Event
	readCh   chan types.Frame
	closed   bool
	closedCh chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		readCh:   make(chan types.Frame, 16),
		closedCh: make(chan struct{}),
	}
}

func (m *mockConn) WriteJSON(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := v.(types.Event); ok {
		m.written = append(m.written, ev)
	}
	return nil
}

func (m *mockConn) ReadJSON(v any) error {
	select {
	case f := <-m.readCh:
		if ptr, ok := v.(*types.Frame); ok {
			*ptr = f
		}
		return nil
	case <-m.closedCh:
		return &closeError{}
	}
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return nil
}

func (m *mockConn) getWritten() []types.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]types.Event, len(m.written))
	copy(cp, m.written)
	return cp
}

type closeError struct{}

func (e *closeError) Error() string { return "connection closed" }

// newTestHub creates a hub and starts its event loop in a goroutine.
func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := New(zerolog.Nop(), metrics.New(nil), 256)
	go h.Run()
	t.Cleanup(h.Shutdown)
	return h
}

// connectUser creates, registers, and starts a mock client.
func connectUser(t *testing.T, h *Hub, userID string) (*Client, *mockConn) {
	t.Helper()
	conn := newMockConn()
	client := NewClient(userID, userID+"@example.com", conn, h)
	h.Register(client)
	go client.WritePump()
	// Allow registration to process.
	time.Sleep(20 * time.Millisecond)
	return client, conn
}

func TestRegisterEnrollsPrivateRoomOnly(t *testing.T) {
	h := newTestHub(t)
	_, _ = connectUser(t, h, "alice")

	if h.UserCount() != 1 {
		t.Fatalf("expected 1 connected user, got %d", h.UserCount())
	}
	if h.RoomCount(types.UserRoom("alice")) != 1 {
		t.Error("expected alice in her private room")
	}

	info := h.ClientInfo("alice")
	if info == nil {
		t.Fatal("expected client info for alice")
	}
	if len(info.Rooms) != 1 || info.Rooms[0] != types.UserRoom("alice") {
		t.Errorf("expected only the private room, got %v", info.Rooms)
	}
}

func TestUnregisterCleansUpEverything(t *testing.T) {
	h := newTestHub(t)
	client, _ := connectUser(t, h, "alice")

	h.Join("infrastructure_updates", "alice")
	h.Join("team_t1", "alice")

	h.Unregister(client)
	time.Sleep(20 * time.Millisecond)

	if h.IsConnected("alice") {
		t.Error("alice should no longer be connected")
	}
	for room, count := range h.Rooms() {
		t.Errorf("unexpected surviving room %s with %d members", room, count)
	}
}

func TestReplaceExistingConnection(t *testing.T) {
	h := newTestHub(t)
	first, _ := connectUser(t, h, "alice")
	second, _ := connectUser(t, h, "alice")

	if h.UserCount() != 1 {
		t.Fatalf("expected a single connection for alice, got %d", h.UserCount())
	}
	if h.RoomCount(types.UserRoom("alice")) != 1 {
		t.Error("private room should have exactly one member after replacement")
	}

	// A late unregister from the replaced transport must not evict the
	// replacement.
	h.Unregister(first)
	time.Sleep(20 * time.Millisecond)
	if !h.IsConnected("alice") {
		t.Error("stale unregister evicted the live connection")
	}
	h.Unregister(second)
	time.Sleep(20 * time.Millisecond)
	if h.IsConnected("alice") {
		t.Error("expected alice to be disconnected")
	}
}

func TestJoinAndLeave(t *testing.T) {
	h := newTestHub(t)
	_, _ = connectUser(t, h, "alice")

	if !h.Join("notifications_updates", "alice") {
		t.Fatal("join should succeed for a connected user")
	}
	if h.Join("notifications_updates", "ghost") {
		t.Error("join should fail for an unknown user")
	}
	if h.RoomCount("notifications_updates") != 1 {
		t.Errorf("expected 1 member, got %d", h.RoomCount("notifications_updates"))
	}

	h.Leave("notifications_updates", "alice")
	if _, ok := h.Rooms()["notifications_updates"]; ok {
		t.Error("room should be pruned after last member leaves")
	}
}

func TestLeaveByPrefix(t *testing.T) {
	h := newTestHub(t)
	_, _ = connectUser(t, h, "alice")
	_, _ = connectUser(t, h, "bob")

	h.Join("team_t1", "alice")
	h.Join("team_t2", "alice")
	h.Join("team_t1", "bob")
	h.Join("infrastructure_updates", "alice")

	left := h.LeaveByPrefix("alice", "team_")
	if len(left) != 2 {
		t.Fatalf("expected to leave 2 team rooms, got %v", left)
	}
	if h.RoomCount("team_t1") != 1 {
		t.Error("bob should remain in team_t1")
	}
	if h.RoomCount("team_t2") != 0 {
		t.Error("team_t2 should be empty")
	}
	if h.RoomCount("infrastructure_updates") != 1 {
		t.Error("non-matching rooms must be untouched")
	}
}

func TestPublishToRoom(t *testing.T) {
	h := newTestHub(t)
	_, conn1 := connectUser(t, h, "alice")
	_, conn2 := connectUser(t, h, "bob")

	h.Join("updates", "alice")
	h.Join("updates", "bob")

	h.Publish("updates", types.NewEvent("test", map[string]any{"key": "value"}))
	time.Sleep(50 * time.Millisecond)

	if len(conn1.getWritten()) != 1 {
		t.Errorf("expected 1 event for alice, got %d", len(conn1.getWritten()))
	}
	if len(conn2.getWritten()) != 1 {
		t.Errorf("expected 1 event for bob, got %d", len(conn2.getWritten()))
	}
}

func TestPublishToEmptyRoomIsNoOp(t *testing.T) {
	h := newTestHub(t)
	_, conn := connectUser(t, h, "alice")

	h.Publish("nobody_here", types.NewEvent("test", nil))
	time.Sleep(50 * time.Millisecond)

	if len(conn.getWritten()) != 0 {
		t.Error("publishing to an empty room must deliver nothing")
	}
}

func TestPublishExceptSkipsInitiator(t *testing.T) {
	h := newTestHub(t)
	_, conn1 := connectUser(t, h, "alice")
	_, conn2 := connectUser(t, h, "bob")

	h.Join("team_t1", "alice")
	h.Join("team_t1", "bob")

	h.PublishExcept("team_t1", "alice", types.NewEvent("team_member_joined", nil))
	time.Sleep(50 * time.Millisecond)

	if len(conn1.getWritten()) != 0 {
		t.Error("initiator must not receive the event")
	}
	if len(conn2.getWritten()) != 1 {
		t.Errorf("expected 1 event for bob, got %d", len(conn2.getWritten()))
	}
}

func TestPublishAllReachesEveryClient(t *testing.T) {
	h := newTestHub(t)
	_, conn1 := connectUser(t, h, "alice")
	_, conn2 := connectUser(t, h, "bob")

	h.PublishAll(types.NewEvent("system_notification", map[string]any{"message": "maintenance"}))
	time.Sleep(50 * time.Millisecond)

	if len(conn1.getWritten()) != 1 || len(conn2.getWritten()) != 1 {
		t.Error("system broadcast must reach every connected client")
	}
}

func TestSendToUser(t *testing.T) {
	h := newTestHub(t)
	_, conn := connectUser(t, h, "alice")

	if !h.SendToUser("alice", types.NewEvent("notification", nil)) {
		t.Fatal("send to a connected user should succeed")
	}
	time.Sleep(20 * time.Millisecond)

	if len(conn.getWritten()) != 1 {
		t.Fatalf("expected 1 event, got %d", len(conn.getWritten()))
	}
	if h.SendToUser("ghost", types.NewEvent("notification", nil)) {
		t.Error("send to an unknown user should fail")
	}
}

func TestBroadcastLocalDoesNotRepublish(t *testing.T) {
	h := newTestHub(t)
	b := &recordingBridge{}
	h.SetBridge(b)

	_, conn := connectUser(t, h, "alice")
	h.Join("updates", "alice")

	h.BroadcastLocal("updates", "", types.NewEvent("infrastructure_update", nil))
	time.Sleep(50 * time.Millisecond)

	if len(conn.getWritten()) != 1 {
		t.Error("relayed event must reach local members")
	}
	if b.count() != 0 {
		t.Error("relayed event must not be re-published to the bridge")
	}
}

func TestPublishForwardsToBridge(t *testing.T) {
	h := newTestHub(t)
	b := &recordingBridge{}
	h.SetBridge(b)

	h.Publish("updates", types.NewEvent("test", nil))
	time.Sleep(50 * time.Millisecond)

	if b.count() != 1 {
		t.Errorf("expected 1 bridge publish, got %d", b.count())
	}
}

func TestConnectionCallbacks(t *testing.T) {
	h := newTestHub(t)

	var mu sync.Mutex
	var connected, disconnected string
	h.OnConnection(func(id string) { mu.Lock(); connected = id; mu.Unlock() })
	h.OnDisconnection(func(id string) { mu.Lock(); disconnected = id; mu.Unlock() })

	client, _ := connectUser(t, h, "alice")
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	if connected != "alice" {
		t.Errorf("expected connect callback for alice, got %q", connected)
	}
	mu.Unlock()

	h.Unregister(client)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	if disconnected != "alice" {
		t.Errorf("expected disconnect callback for alice, got %q", disconnected)
	}
	mu.Unlock()
}

func TestShutdownClearsState(t *testing.T) {
	h := New(zerolog.Nop(), metrics.New(nil), 256)
	go h.Run()

	conn := newMockConn()
	client := NewClient("alice", "alice@example.com", conn, h)
	h.Register(client)
	go client.WritePump()
	time.Sleep(20 * time.Millisecond)

	h.Shutdown()

	if h.UserCount() != 0 {
		t.Error("shutdown must clear the connection registry")
	}
	if len(h.Rooms()) != 0 {
		t.Error("shutdown must clear the room table")
	}
}

func TestShutdownDuringBroadcastStorm(t *testing.T) {
	// Small send queues so full-buffer drops happen alongside teardown.
	h := New(zerolog.Nop(), metrics.New(nil), 8)
	go h.Run()

	for i := 0; i < 5; i++ {
		conn := newMockConn()
		client := NewClient(fmt.Sprintf("user-%d", i), "", conn, h)
		h.Register(client)
		go client.WritePump()
	}
	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 5; i++ {
		h.Join("updates", fmt.Sprintf("user-%d", i))
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			h.Publish("updates", types.NewEvent("test", nil))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			h.PublishAll(types.NewEvent("system_notification", nil))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			h.SendToUser("user-0", types.NewEvent("notification", nil))
		}
	}()

	time.Sleep(time.Millisecond)
	h.Shutdown()
	wg.Wait()

	if h.UserCount() != 0 {
		t.Error("shutdown must clear the connection registry")
	}
}

func TestDeliverToClosedClientIsSafe(t *testing.T) {
	h := newTestHub(t)
	client, _ := connectUser(t, h, "alice")

	client.Close()
	if client.Deliver(types.NewEvent("test", nil)) {
		t.Error("deliver to a closed client should report failure")
	}
	// Direct sends race the same way; they must fail, never panic.
	if h.SendToUser("alice", types.NewEvent("test", nil)) {
		t.Error("send to a closed client should report failure")
	}
}

func TestReadPumpExitsAfterShutdown(t *testing.T) {
	h := New(zerolog.Nop(), metrics.New(nil), 256)
	go h.Run()

	conn := newMockConn()
	client := NewClient("alice", "alice@example.com", conn, h)
	h.Register(client)
	go client.WritePump()

	finished := make(chan struct{})
	go func() {
		client.ReadPump()
		close(finished)
	}()
	time.Sleep(20 * time.Millisecond)

	h.Shutdown()
	conn.Close()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("read pump leaked after shutdown")
	}
}

type recordingBridge struct {
	mu        sync.Mutex
	published []string
}

func (b *recordingBridge) Publish(room, except string, ev types.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, room)
	return nil
}

func (b *recordingBridge) Available() bool { return true }

func (b *recordingBridge) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}
