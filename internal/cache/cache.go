// Package cache keeps a short-lived copy of the remote document in
// Redis so repeated loads do not burn content-API rate limits.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/crm"
)

// snapshot is the cached value: the document plus the revision token it
// was loaded at.
type snapshot struct {
	Revision string       `json:"revision"`
	Document crm.Document `json:"document"`
}

type Cache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(redisURL, key string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if key == "" {
		key = "crm:document"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, key: key, ttl: ttl}, nil
}

// Get returns the cached document and revision. The third return is
// false on a miss; cache errors degrade to a miss.
func (c *Cache) Get(ctx context.Context) (crm.Document, string, bool) {
	raw, err := c.client.Get(ctx, c.key).Result()
	if err != nil {
		return crm.Document{}, "", false
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return crm.Document{}, "", false
	}
	snap.Document.EnsureCollections()
	return snap.Document, snap.Revision, true
}

// Put stores the document under the configured TTL.
func (c *Cache) Put(ctx context.Context, doc crm.Document, revision string) error {
	payload, err := json.Marshal(snapshot{Revision: revision, Document: doc})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache document: %w", err)
	}
	return nil
}

// Invalidate drops the cached document, called after every save.
func (c *Cache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("invalidate document cache: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
