// Package cache provides the Redis-backed availability cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"stokado/internal/core/id"
	"stokado/internal/domain/ledger"
)

const keyPrefix = "availability:"

// Compile-time check.
var _ ledger.AvailabilityCache = (*AvailabilityCache)(nil)

// AvailabilityCache caches per-product availability views in Redis.
// Short TTL: the cache only absorbs read bursts between mutations, the
// ledger invalidates on every write.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityCache creates a new availability cache.
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AvailabilityCache{client: client, ttl: ttl}
}

// GetAvailability returns the cached view or (nil, nil) on miss.
func (c *AvailabilityCache) GetAvailability(ctx context.Context, productID id.ID) (*ledger.Availability, error) {
	data, err := c.client.Get(ctx, keyPrefix+productID.String()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var av ledger.Availability
	if err := json.Unmarshal(data, &av); err != nil {
		// poisoned entry, treat as miss
		return nil, nil
	}
	return &av, nil
}

// SetAvailability stores the view with the configured TTL.
func (c *AvailabilityCache) SetAvailability(ctx context.Context, av ledger.Availability) error {
	data, err := json.Marshal(av)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+av.ProductID.String(), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached view for a product.
func (c *AvailabilityCache) Invalidate(ctx context.Context, productID id.ID) error {
	if err := c.client.Del(ctx, keyPrefix+productID.String()).Err(); err != nil {
		return fmt.Errorf("cache del: %w", err)
	}
	return nil
}
