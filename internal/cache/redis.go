package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient backs the Client interface with a shared Redis instance.
// Expiry is Redis-native, so entries outlive the process and a resumed
// request can re-read still-cached node outputs until the TTL lapses.
type RedisClient struct {
	rdb      *redis.Client
	scanSize int64
}

// NewRedisClient connects to Redis and verifies liveness once.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	c := &RedisClient{rdb: rdb, scanSize: 1000}
	if err := c.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to cache at %s: %w", addr, err)
	}
	return c, nil
}

func (c *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return val, err
}

// GetByPrefix walks the keyspace with SCAN rather than KEYS so large caches
// are never blocked by one request's export.
func (c *RedisClient) GetByPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", c.scanSize).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			val, err := c.rdb.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue // expired between scan and get
			}
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

func (c *RedisClient) DeleteByPrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", c.scanSize).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *RedisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}
