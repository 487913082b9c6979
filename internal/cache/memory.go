package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryClient is an ephemeral, thread-safe Client for single-process runs
// and tests. Entries expire lazily on read.
type MemoryClient struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// NewMemoryClient creates an empty in-memory cache.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{entries: make(map[string]memoryEntry)}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

func (c *MemoryClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expires = time.Now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

func (c *MemoryClient) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || entry.expired(time.Now()) {
		return nil, ErrMiss
	}
	return append([]byte(nil), entry.value...), nil
}

func (c *MemoryClient) GetByPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	now := time.Now()
	out := make(map[string][]byte)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for key, entry := range c.entries {
		if strings.HasPrefix(key, prefix) && !entry.expired(now) {
			out[key] = append([]byte(nil), entry.value...)
		}
	}
	return out, nil
}

func (c *MemoryClient) DeleteByPrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *MemoryClient) Ping(ctx context.Context) error { return nil }

func (c *MemoryClient) Close() error { return nil }
