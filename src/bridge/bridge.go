// Package bridge relays broadcasts between gateway instances.
package bridge

import "github.com/sirsinexus/realtime-gateway/src/types"

// Bridge is the cross-instance fan-out backplane. A single-instance
// deployment runs without one; behavior is identical except that
// broadcasts reach only local connections.
type Bridge interface {
	// Publish sends a room broadcast to all other instances.
	Publish(room, except string, ev types.Event) error

	// Start begins listening for broadcasts from other instances.
	Start() error

	// Stop shuts down the bridge connection.
	Stop() error

	// Available reports whether the bridge is connected and operational.
	Available() bool
}

// BroadcastTarget is implemented by the hub to receive relayed broadcasts.
type BroadcastTarget interface {
	BroadcastLocal(room, except string, ev types.Event)
}
