package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vk/privgraph/internal/cache"
	"github.com/vk/privgraph/internal/connectors"
	"github.com/vk/privgraph/internal/connectors/querycfg"
	"github.com/vk/privgraph/internal/ctxlog"
	"github.com/vk/privgraph/internal/execlog"
	"github.com/vk/privgraph/internal/fieldref"
	"github.com/vk/privgraph/internal/policy"
)

// Resources is the shared environment for all nodes of one request: the
// policy, the cache handle, the execution-log sink and a per-connection-key
// connector cache built lazily on first use and reused for the remainder of
// the request.
type Resources struct {
	RequestID string
	Policy    policy.Policy
	Cache     cache.Client
	Log       execlog.Sink

	// Build constructs a connector from its config. Defaults to the closed
	// backend registry; tests substitute fakes here.
	Build func(connectors.Config) (connectors.Connector, error)

	configs map[string]connectors.Config

	mu    sync.Mutex
	conns map[string]connectors.Connector
}

// NewResources assembles the execution context for one request. Cache
// unavailability is fatal: no request may begin without a functioning cache,
// since all inter-node handoff and resumability depend on it.
func NewResources(ctx context.Context, requestID string, pol policy.Policy, cacheClient cache.Client, sink execlog.Sink, configs []connectors.Config) (*Resources, error) {
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	if err := cacheClient.Ping(ctx); err != nil {
		return nil, fmt.Errorf("cache unavailable, refusing to start request %s: %w", requestID, err)
	}
	byKey := make(map[string]connectors.Config, len(configs))
	for _, cfg := range configs {
		byKey[cfg.Key] = cfg
	}
	return &Resources{
		RequestID: requestID,
		Policy:    pol,
		Cache:     cacheClient,
		Log:       sink,
		Build:     connectors.New,
		configs:   byKey,
		conns:     make(map[string]connectors.Connector),
	}, nil
}

// Connector returns the connector for a connection key, building it on first
// use and caching it for the life of the request. The store's liveness is
// verified once, at build time.
func (r *Resources) Connector(ctx context.Context, key string) (connectors.Connector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[key]; ok {
		return conn, nil
	}
	cfg, ok := r.configs[key]
	if !ok {
		return nil, &connectors.NotFoundError{Key: key}
	}
	conn, err := r.Build(cfg)
	if err != nil {
		return nil, err
	}
	if err := conn.TestConnection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	r.conns[key] = conn
	return conn, nil
}

// Close releases every connector built during the request.
func (r *Resources) Close(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, conn := range r.conns {
		if err := conn.Close(); err != nil {
			logger.Warn("closing connector failed", "key", key, "error", err)
		}
	}
	r.conns = make(map[string]connectors.Connector)
}

// CacheIdentities stores the seed values so a resumed request can replay the
// traversal with the same snapshot.
func (r *Resources) CacheIdentities(ctx context.Context, identities map[string]any, ttl time.Duration) error {
	for attr, value := range identities {
		payload, err := cache.EncodeValue(value)
		if err != nil {
			return fmt.Errorf("encode identity %q: %w", attr, err)
		}
		if err := r.Cache.Set(ctx, cache.IdentityKey(r.RequestID, attr), payload, ttl); err != nil {
			return err
		}
	}
	return nil
}

// CacheNodeRows stores one node's retrieved rows under the request-scoped key.
func (r *Resources) CacheNodeRows(ctx context.Context, addr fieldref.CollectionAddress, rows []querycfg.Row, ttl time.Duration) error {
	payload, err := cache.EncodeRows(rows)
	if err != nil {
		return fmt.Errorf("encode rows for %s: %w", addr, err)
	}
	return r.Cache.Set(ctx, cache.ResultKey(r.RequestID, addr), payload, ttl)
}

// CachedNodeRows reads back a node's rows if still live, reporting a miss
// via ok=false.
func (r *Resources) CachedNodeRows(ctx context.Context, addr fieldref.CollectionAddress) ([]querycfg.Row, bool, error) {
	payload, err := r.Cache.Get(ctx, cache.ResultKey(r.RequestID, addr))
	if err == cache.ErrMiss {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	rows, err := cache.DecodeRows(payload)
	if err != nil {
		return nil, false, err
	}
	return rows, true, nil
}

// AllResults returns every cached node result of the request, keyed by
// collection address, for downstream report assembly.
func (r *Resources) AllResults(ctx context.Context) (map[fieldref.CollectionAddress][]querycfg.Row, error) {
	pairs, err := r.Cache.GetByPrefix(ctx, cache.ResultPrefix(r.RequestID))
	if err != nil {
		return nil, err
	}
	out := make(map[fieldref.CollectionAddress][]querycfg.Row, len(pairs))
	for key, payload := range pairs {
		addr, ok := cache.AddressFromResultKey(key, r.RequestID)
		if !ok {
			continue
		}
		rows, err := cache.DecodeRows(payload)
		if err != nil {
			return nil, fmt.Errorf("decode cached result %s: %w", key, err)
		}
		out[addr] = rows
	}
	return out, nil
}

// DeleteRequest clears both key families of the request.
func (r *Resources) DeleteRequest(ctx context.Context) error {
	if err := r.Cache.DeleteByPrefix(ctx, cache.ResultPrefix(r.RequestID)); err != nil {
		return err
	}
	return r.Cache.DeleteByPrefix(ctx, cache.IdentityPrefix(r.RequestID))
}

// log appends one audit record, tolerating nothing: a failing sink is
// surfaced to the caller.
func (r *Resources) log(ctx context.Context, addr fieldref.CollectionAddress, fields []string, action execlog.ActionType, status execlog.Status, message string) error {
	return r.Log.Append(ctx, execlog.Entry{
		RequestID:      r.RequestID,
		Dataset:        addr.Dataset,
		Collection:     addr.Collection,
		FieldsAffected: fields,
		Action:         action,
		Status:         status,
		Message:        message,
	})
}
