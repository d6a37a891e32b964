// Package rendercache keeps stamped PDFs in redis so repeat views of a
// signed document skip the stamping pass.
//
// The cache is optional. A nil *Cache is valid and behaves as a cache that
// never hits, so callers don't need to branch on whether REDIS_URL is set.
package rendercache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sign-tools:render:"

// Cache stores rendered PDF bytes by signed document id.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to redisURL. An empty URL disables the cache and returns nil.
func New(ctx context.Context, redisURL string, ttl time.Duration) (*Cache, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	log.Println("✅ Render cache connected")
	return &Cache{client: client, ttl: ttl}, nil
}

// Key is the redis key for a document's render.
func Key(documentID string) string {
	return keyPrefix + documentID
}

// Enabled reports whether the cache is backed by redis.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached render. A miss is (nil, false, nil).
func (c *Cache) Get(ctx context.Context, documentID string) ([]byte, bool, error) {
	if !c.Enabled() {
		return nil, false, nil
	}
	b, err := c.client.Get(ctx, Key(documentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set stores a render for the configured TTL.
func (c *Cache) Set(ctx context.Context, documentID string, pdf []byte) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Set(ctx, Key(documentID), pdf, c.ttl).Err()
}

// Delete drops cached renders.
func (c *Cache) Delete(ctx context.Context, documentIDs ...string) error {
	if !c.Enabled() || len(documentIDs) == 0 {
		return nil
	}
	keys := make([]string, len(documentIDs))
	for i, id := range documentIDs {
		keys[i] = Key(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

// Ping checks the connection for the health endpoint.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
