package access

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mwpdesign/PP2-sub001/pkg/logger"
)

const downlineGenerationKey = "downline:generation"

// DownlineCache shares resolved downlines between service instances through
// Redis. Entries are keyed by a generation counter, so invalidation is a
// single INCR that orphans every previous key instead of scanning for them.
// Orphaned entries age out through their TTL.
type DownlineCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewDownlineCache creates a Redis-backed downline cache
func NewDownlineCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *DownlineCache {
	return &DownlineCache{
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

// Get fetches a cached downline for the current generation. Any Redis error
// is reported as a miss so resolution falls through to the directory.
func (c *DownlineCache) Get(ctx context.Context, actorID string) (map[string]bool, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("Downline cache generation lookup failed:", err)
		return nil, false
	}

	data, err := c.client.Get(ctx, c.key(gen, actorID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Downline cache read failed:", err)
		}
		return nil, false
	}

	var doctorIDs []string
	if err := json.Unmarshal(data, &doctorIDs); err != nil {
		c.logger.Warn("Downline cache entry corrupted, discarding:", err)
		return nil, false
	}

	doctors := make(map[string]bool, len(doctorIDs))
	for _, id := range doctorIDs {
		doctors[id] = true
	}
	return doctors, true
}

// Set stores a resolved downline under the current generation, best effort
func (c *DownlineCache) Set(ctx context.Context, actorID string, doctors map[string]bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		return
	}

	doctorIDs := make([]string, 0, len(doctors))
	for id := range doctors {
		doctorIDs = append(doctorIDs, id)
	}

	data, err := json.Marshal(doctorIDs)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, c.key(gen, actorID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Downline cache write failed:", err)
	}
}

// Invalidate advances the generation counter, orphaning all cached entries
func (c *DownlineCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, downlineGenerationKey).Err(); err != nil {
		return fmt.Errorf("failed to advance downline cache generation: %w", err)
	}
	return nil
}

func (c *DownlineCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, downlineGenerationKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (c *DownlineCache) key(generation int64, actorID string) string {
	return fmt.Sprintf("downline:g%d:%s", generation, actorID)
}
