// Package db defines the storage facade the remote-state adapter is built
// on. Consumers depend on the narrow sub-interfaces, not on Store.
package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
type Store interface {
	Pinger
	HashStore
	KVStore
	StreamStore
	PubSub
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations. Room state lives in
// hashes: one hash per (room, event type), field per state key.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore provides simple key-value operations (account data, read markers).
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// StreamEntry is one entry of an append-only stream.
type StreamEntry struct {
	ID     string
	Fields map[string]string
}

// StreamStore provides append-only stream operations. Discussion timelines
// are streams: appends produce monotonic ids, ranges paginate.
type StreamStore interface {
	XAdd(ctx context.Context, key string, fields map[string]string) (string, error)
	XLen(ctx context.Context, key string) (int64, error)
	// XRevRange returns up to count entries from end down to start
	// (newest first). Use "+"/"-" for the open ends.
	XRevRange(ctx context.Context, key, end, start string, count int) ([]StreamEntry, error)
	// XRange returns up to count entries from start up to end (oldest first).
	XRange(ctx context.Context, key, start, end string, count int) ([]StreamEntry, error)
}

// PubSub provides update-notification fan-out between engine instances.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe delivers channel payloads to fn on a background goroutine
	// until the returned stop function is called.
	Subscribe(ctx context.Context, channel string, fn func(payload []byte)) (stop func(), err error)
}
