package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sirsinexus/realtime-gateway/src/types"
)

// redisEnvelope wraps a broadcast with the originating instance ID so a
// node can skip its own published messages. An empty Room targets every
// connected client.
type redisEnvelope struct {
	InstanceID string      `json:"instance_id"`
	Room       string      `json:"room,omitempty"`
	Except     string      `json:"except,omitempty"`
	Event      types.Event `json:"event"`
}

// RedisBridge relays room broadcasts between gateway instances via
// Redis pub/sub.
type RedisBridge struct {
	client     *redis.Client
	prefix     string
	instanceID string
	hub        BroadcastTarget
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active bool
}

// NewRedisBridge creates a bridge using Redis pub/sub for
// cross-instance broadcasts.
func NewRedisBridge(cfg *RedisConfig, hub BroadcastTarget, logger zerolog.Logger) *RedisBridge {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBridge{
		client:     client,
		prefix:     cfg.Prefix,
		instanceID: uuid.New().String(),
		hub:        hub,
		logger:     logger.With().Str("component", "redis-bridge").Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the broadcast channel and begins relaying.
func (b *RedisBridge) Start() error {
	if err := b.client.Ping(b.ctx).Err(); err != nil {
		return err
	}

	channel := b.prefix + "broadcast"
	sub := b.client.Subscribe(b.ctx, channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(b.ctx); err != nil {
		return err
	}

	b.mu.Lock()
	b.active = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.listen(sub)

	b.logger.Info().
		Str("instance_id", b.instanceID).
		Str("channel", channel).
		Msg("redis bridge started")
	return nil
}

// Publish sends a broadcast to all other instances via Redis.
func (b *RedisBridge) Publish(room, except string, ev types.Event) error {
	env := redisEnvelope{
		InstanceID: b.instanceID,
		Room:       room,
		Except:     except,
		Event:      ev,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(b.ctx, b.prefix+"broadcast", data).Err()
}

// Stop unsubscribes and closes the Redis connection.
func (b *RedisBridge) Stop() error {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

// Available reports whether the bridge is connected.
func (b *RedisBridge) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

func (b *RedisBridge) listen(sub *redis.PubSub) {
	defer b.wg.Done()
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handleRedisMessage(msg)
		case <-b.ctx.Done():
			return
		}
	}
}

// handleRedisMessage decodes an envelope and fans out non-self
// broadcasts to local room members.
func (b *RedisBridge) handleRedisMessage(msg *redis.Message) {
	var env redisEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		b.logger.Error().Err(err).Msg("failed to decode redis message")
		return
	}

	// Skip broadcasts that originated from this instance.
	if env.InstanceID == b.instanceID {
		return
	}

	b.logger.Debug().
		Str("from_instance", env.InstanceID).
		Str("room", env.Room).
		Str("event", env.Event.Name).
		Msg("relaying broadcast from redis")

	b.hub.BroadcastLocal(env.Room, env.Except, env.Event)
}
