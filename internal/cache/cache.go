// Package cache provides the shared TTL key-value store used for inter-node
// result handoff and request resumability. A Client is constructed once at
// process start and passed into every execution context; there is no global
// singleton lookup.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: key not found")

// Client is the capability set the engine needs from a shared TTL cache.
type Client interface {
	// Set stores value under key with the given time-to-live.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value for key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// GetByPrefix returns every live key-value pair whose key starts with prefix.
	GetByPrefix(ctx context.Context, prefix string) (map[string][]byte, error)
	// DeleteByPrefix removes every key starting with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error
	// Ping verifies the cache is reachable. A request must not start without
	// a functioning cache.
	Ping(ctx context.Context) error
	// Close releases the underlying connection.
	Close() error
}
