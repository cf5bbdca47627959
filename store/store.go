package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("store: key not found")
	// ErrUnavailable wraps timeouts and connection failures.
	ErrUnavailable = errors.New("store: unavailable")
	// ErrInvalidTTL is returned when a non-positive TTL or window is given.
	ErrInvalidTTL = errors.New("store: invalid ttl")
)

// KV is a string key-value store with per-key expiry.
type KV interface {
	// Put upserts value under key and resets its TTL.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) (string, error)
	// Delete reports whether a key was actually removed. Deleting an absent
	// key is not an error.
	Delete(ctx context.Context, key string) (bool, error)
}

// Counter is an atomically incremented counter that expires one window after
// its first increment.
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Store is the full capability handed to the engine.
type Store interface {
	KV
	Counter
	Ping(ctx context.Context) error
	Close() error
}
