package acl

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "sentra:acl:"

// Cache is a read-through Redis cache for ACL nodes. A nil *Cache is a
// valid no-op cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached node for the object, if present.
func (c *Cache) Get(ctx context.Context, object ObjectIdentity) (*Node, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKeyPrefix+object.String()).Bytes()
	if err != nil {
		return nil, false
	}
	var node Node
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, false
	}
	return &node, true
}

// Set stores the node. Failures are ignored; the store remains authoritative.
func (c *Cache) Set(ctx context.Context, node *Node) {
	if c == nil || node == nil {
		return
	}
	raw, err := json.Marshal(node)
	if err != nil {
		return
	}
	c.client.Set(ctx, cacheKeyPrefix+node.Object.String(), raw, c.ttl)
}

// Invalidate drops the cached node for the object.
func (c *Cache) Invalidate(ctx context.Context, object ObjectIdentity) {
	if c == nil {
		return
	}
	c.client.Del(ctx, cacheKeyPrefix+object.String())
}
