package domain

import (
	"context"
	"time"
)

// LockManager provides distributed locks. The market service acquires one
// lock per universe around every mutating operation so cross-market state
// (fork pointers, window membership) is observed serially.
type LockManager interface {
	// Acquire obtains the lock for key with the given TTL and returns an
	// unlock function. Returns ErrLockHeld if another party holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// StreamMessage is one durable message read from a signal-bus stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus publishes lifecycle events (reports, disputes, migrations,
// finalizations, phase changes) to subscribers such as the websocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
