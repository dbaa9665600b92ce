package bridge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirsinexus/realtime-gateway/src/types"
)

// mockBroadcastTarget records broadcasts forwarded from the bridge.
type mockBroadcastTarget struct {
	rooms  []string
	events []types.Event
}

func (m *mockBroadcastTarget) BroadcastLocal(room, except string, ev types.Event) {
	m.rooms = append(m.rooms, room)
	m.events = append(m.events, ev)
}

func TestRedisEnvelopeSerialization(t *testing.T) {
	ev := types.Event{
		Name:      "infrastructure_update",
		Data:      map[string]any{"resourceId": "r1", "type": "scaled"},
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}

	env := redisEnvelope{
		InstanceID: "instance-abc",
		Room:       "infrastructure_updates",
		Event:      ev,
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded redisEnvelope
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, env.InstanceID, decoded.InstanceID)
	assert.Equal(t, env.Room, decoded.Room)
	assert.Equal(t, ev.Name, decoded.Event.Name)
	assert.Equal(t, "r1", decoded.Event.Data["resourceId"])
	assert.True(t, ev.Timestamp.Equal(decoded.Event.Timestamp))
}

func TestRedisEnvelopeExceptRoundTrip(t *testing.T) {
	env := redisEnvelope{
		InstanceID: "node-1",
		Room:       "team_t1",
		Except:     "u1",
		Event:      types.NewEvent("team_member_joined", map[string]any{"userId": "u1"}),
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var out redisEnvelope
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "u1", out.Except)
	assert.Equal(t, "team_t1", out.Room)
	assert.Equal(t, "u1", out.Event.Data["userId"])
}

func TestRedisEnvelopeEmptyRoomMeansAll(t *testing.T) {
	env := redisEnvelope{
		InstanceID: "node-1",
		Event:      types.NewEvent("system_notification", map[string]any{"message": "hi"}),
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var out redisEnvelope
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Empty(t, out.Room)
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, "sirsi:realtime:", cfg.Prefix)
}

func TestRedisConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.example.com:6380")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_WS_PREFIX", "test:ws:")

	cfg, err := RedisConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "redis.example.com:6380", cfg.Addr)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, "test:ws:", cfg.Prefix)
}

func TestRedisConfigFromEnvDefaults(t *testing.T) {
	// No env vars set, should return defaults.
	cfg, err := RedisConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, "sirsi:realtime:", cfg.Prefix)
}

func TestRedisBridgeAvailableFalseBeforeStart(t *testing.T) {
	target := &mockBroadcastTarget{}
	rb := NewRedisBridge(DefaultRedisConfig(), target, zerolog.Nop())
	assert.False(t, rb.Available())
}

func TestRedisBridgeInstanceIDUnique(t *testing.T) {
	target := &mockBroadcastTarget{}
	b1 := NewRedisBridge(DefaultRedisConfig(), target, zerolog.Nop())
	b2 := NewRedisBridge(DefaultRedisConfig(), target, zerolog.Nop())
	assert.NotEqual(t, b1.instanceID, b2.instanceID)
}

func TestHandleRedisMessageSkipsSelf(t *testing.T) {
	target := &mockBroadcastTarget{}
	rb := NewRedisBridge(DefaultRedisConfig(), target, zerolog.Nop())

	env := redisEnvelope{
		InstanceID: rb.instanceID,
		Room:       "updates",
		Event:      types.NewEvent("test", nil),
	}
	payload, err := json.Marshal(env)
	require.NoError(t, err)

	rb.handleRedisMessage(&redis.Message{Payload: string(payload)})
	assert.Empty(t, target.events)
}

func TestHandleRedisMessageForwardsOtherInstances(t *testing.T) {
	target := &mockBroadcastTarget{}
	rb := NewRedisBridge(DefaultRedisConfig(), target, zerolog.Nop())

	env := redisEnvelope{
		InstanceID: "some-other-node",
		Room:       "team_t1",
		Except:     "u1",
		Event:      types.NewEvent("team_activity", map[string]any{"action": "deploy"}),
	}
	payload, err := json.Marshal(env)
	require.NoError(t, err)

	rb.handleRedisMessage(&redis.Message{Payload: string(payload)})
	require.Len(t, target.events, 1)
	assert.Equal(t, "team_t1", target.rooms[0])
	assert.Equal(t, "team_activity", target.events[0].Name)
}
