// Package cache is a small Redis-backed JSON cache. A cache built without a
// URL is disabled: reads always miss and writes are dropped.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "clinic"
	// TTLCandidates bounds how stale a cached search candidate list may be.
	TTLCandidates = 2 * time.Minute
)

// ErrMiss is returned by Get when the key is absent or the cache is disabled.
var ErrMiss = errors.New("cache miss")

type Config struct {
	URL       string
	KeyPrefix string
	// PingTimeout bounds the connectivity check in New.
	PingTimeout time.Duration
}

type Cache struct {
	client    *redis.Client
	keyPrefix string
	enabled   bool
}

// New connects to Redis when cfg.URL is set and returns a disabled cache otherwise.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return &Cache{keyPrefix: prefix}, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Cache{client: client, keyPrefix: prefix, enabled: true}, nil
}

// Disabled returns a cache that never stores anything.
func Disabled() *Cache {
	return &Cache{keyPrefix: DefaultKeyPrefix}
}

func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *Cache) IsEnabled() bool {
	return c.enabled
}

func (c *Cache) key(parts ...string) string {
	return c.keyPrefix + ":" + strings.Join(parts, ":")
}

// Get decodes the cached JSON for key into dest.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if !c.enabled {
		return ErrMiss
	}
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	return json.Unmarshal(data, dest)
}

// Set stores value as JSON under key.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.enabled || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Del(ctx, full...).Err()
}

// Ping reports Redis reachability. A disabled cache is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
