// Package cache provides a Redis-backed cache for scan results so repeated
// audits of unchanged sources skip the expensive detection pass. Values are
// stored as JSON with a TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Options configures the cache connection and behaviour.
type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL applied to every Set. Zero means entries never expire.
	TTL time.Duration
	// Prefix namespaces this service's keys in a shared Redis.
	Prefix string
}

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) func(o *Options) {
	return func(o *Options) { o.TTL = ttl }
}

// WithPrefix overrides the key namespace.
func WithPrefix(prefix string) func(o *Options) {
	return func(o *Options) { o.Prefix = prefix }
}

// Cache wraps a Redis client with JSON marshalling and key namespacing.
type Cache struct {
	client *redis.Client
	opts   Options
}

// New connects to Redis at addr and verifies the connection.
func New(ctx context.Context, addr string, optFns ...func(o *Options)) (*Cache, error) {
	opts := Options{
		Addr:   addr,
		TTL:    time.Hour,
		Prefix: "auditmesh",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	return &Cache{client: client, opts: opts}, nil
}

// Set stores value under key as JSON with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.key(key), data, c.opts.TTL).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Get loads the JSON value stored under key into dest. Returns ErrMiss when
// the key does not exist.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Delete removes key from the cache. Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client.
func (c *Cache) Close() error { return c.client.Close() }

func (c *Cache) key(key string) string {
	return c.opts.Prefix + ":" + key
}
