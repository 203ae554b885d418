// Package cache holds the Redis-backed cache for resolved rulesets.
// Resolution is pure and cheap, but the raw rows live in Postgres; the
// cache saves the row fetch on hot parcels.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sitefit/server/internal/config"
	"github.com/sitefit/server/internal/ruleset"
)

// RulesetCache caches resolved rulesets per jurisdiction and parcel. A
// nil client disables the cache: every Get misses, every Set is a no-op,
// so callers never branch on whether Redis is configured.
type RulesetCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRulesetCache builds the cache from configuration. Returns a
// disabled cache when no Redis address is configured.
func NewRulesetCache(cfg *config.Config) *RulesetCache {
	if cfg.Redis.Addr == "" {
		return &RulesetCache{ttl: cfg.Redis.TTL}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &RulesetCache{client: client, ttl: cfg.Redis.TTL}
}

// Ping verifies the Redis connection. A disabled cache is always
// healthy.
func (c *RulesetCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Get returns the cached ruleset, or (nil, nil) on a miss.
func (c *RulesetCache) Get(ctx context.Context, jurisdiction, parcelID string) (*ruleset.Ruleset, error) {
	if c.client == nil {
		return nil, nil
	}

	raw, err := c.client.Get(ctx, rulesetKey(jurisdiction, parcelID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached ruleset: %w", err)
	}

	var rs ruleset.Ruleset
	if err := json.Unmarshal(raw, &rs); err != nil {
		// A decode failure means the cached shape is stale; treat it as
		// a miss so the caller re-resolves and overwrites.
		return nil, nil
	}
	return &rs, nil
}

// Set stores a resolved ruleset with the configured TTL.
func (c *RulesetCache) Set(ctx context.Context, jurisdiction, parcelID string, rs ruleset.Ruleset) error {
	if c.client == nil {
		return nil
	}

	raw, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("failed to encode ruleset for cache: %w", err)
	}
	if err := c.client.Set(ctx, rulesetKey(jurisdiction, parcelID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache ruleset: %w", err)
	}
	return nil
}

// InvalidateJurisdiction drops every cached ruleset for a jurisdiction.
// Zoning documents change wholesale per jurisdiction, so invalidation
// does too.
func (c *RulesetCache) InvalidateJurisdiction(ctx context.Context, jurisdiction string) error {
	if c.client == nil {
		return nil
	}

	pattern := fmt.Sprintf("ruleset:%s:*", jurisdiction)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to invalidate %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan ruleset keys: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RulesetCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func rulesetKey(jurisdiction, parcelID string) string {
	return fmt.Sprintf("ruleset:%s:%s", jurisdiction, parcelID)
}
