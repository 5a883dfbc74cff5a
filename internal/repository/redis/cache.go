package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fawwazmw/travelease-api/internal/domain"
)

const destinationKeyPrefix = "destination:slug:"

// DestinationCache is a TTL-bounded read cache for destination detail pages,
// keyed by slug. A miss is (nil, nil), not an error; callers fall through to
// PostgreSQL and write the result back.
type DestinationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDestinationCache creates a Redis-backed destination cache.
func NewDestinationCache(client *redis.Client, ttl time.Duration) *DestinationCache {
	return &DestinationCache{
		client: client,
		ttl:    ttl,
	}
}

// GetBySlug retrieves a cached destination by slug. Returns (nil, nil) on miss.
func (c *DestinationCache) GetBySlug(ctx context.Context, slug string) (*domain.Destination, error) {
	data, err := c.client.Get(ctx, destinationKeyPrefix+slug).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get destination: %w", err)
	}

	var d domain.Destination
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal cached destination: %w", err)
	}

	return &d, nil
}

// Set caches a destination under its slug with the configured TTL.
func (c *DestinationCache) Set(ctx context.Context, d *domain.Destination) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal destination: %w", err)
	}

	if err := c.client.Set(ctx, destinationKeyPrefix+d.Slug, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set destination: %w", err)
	}

	return nil
}

// Invalidate drops the cached entry for a slug. Called after catalog writes
// and rating recomputes.
func (c *DestinationCache) Invalidate(ctx context.Context, slug string) error {
	if err := c.client.Del(ctx, destinationKeyPrefix+slug).Err(); err != nil {
		return fmt.Errorf("redis del destination: %w", err)
	}
	return nil
}
