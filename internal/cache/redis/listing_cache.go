package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tokenmarket/internal/domain"
)

const listingTTL = 5 * time.Minute

// ListingCache implements domain.ListingCache using JSON-serialized listings
// and a per-asset index set so a whole asset's entries can be dropped at once.
//
// Key schema:
//
//	listing:{id}          - JSON-encoded listing
//	listing:asset:{asset} - set of listing IDs cached for the asset
type ListingCache struct {
	rdb *redis.Client
}

// NewListingCache creates a ListingCache backed by the given Client.
func NewListingCache(c *Client) *ListingCache {
	return &ListingCache{rdb: c.Underlying()}
}

func listingKey(id string) string           { return "listing:" + id }
func listingAssetKey(assetID string) string { return "listing:asset:" + assetID }

// Set stores a listing with a 5-minute TTL and records it in the asset index.
func (lc *ListingCache) Set(ctx context.Context, l domain.Listing) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("redis: marshal listing %s: %w", l.ID, err)
	}

	idxKey := listingAssetKey(l.AssetID)

	pipe := lc.rdb.TxPipeline()
	pipe.Set(ctx, listingKey(l.ID), data, listingTTL)
	pipe.SAdd(ctx, idxKey, l.ID)
	pipe.Expire(ctx, idxKey, listingTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set listing %s: %w", l.ID, err)
	}
	return nil
}

// Get retrieves a listing by its ID from the cache.
// It returns domain.ErrNotFound when the key does not exist.
func (lc *ListingCache) Get(ctx context.Context, id string) (domain.Listing, error) {
	data, err := lc.rdb.Get(ctx, listingKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("redis: get listing %s: %w", id, err)
	}

	var l domain.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return domain.Listing{}, fmt.Errorf("redis: unmarshal listing %s: %w", id, err)
	}
	return l, nil
}

// Invalidate removes a single listing from the cache, cleaning up its asset
// index entry when the cached copy is still readable.
func (lc *ListingCache) Invalidate(ctx context.Context, id string) error {
	l, err := lc.Get(ctx, id)

	pipe := lc.rdb.TxPipeline()
	pipe.Del(ctx, listingKey(id))
	if err == nil {
		pipe.SRem(ctx, listingAssetKey(l.AssetID), id)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate listing %s: %w", id, err)
	}
	return nil
}

// InvalidateAsset drops every cached listing recorded for the asset.
func (lc *ListingCache) InvalidateAsset(ctx context.Context, assetID string) error {
	idxKey := listingAssetKey(assetID)

	ids, err := lc.rdb.SMembers(ctx, idxKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis: invalidate asset %s: %w", assetID, err)
	}

	pipe := lc.rdb.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, listingKey(id))
	}
	pipe.Del(ctx, idxKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate asset %s: %w", assetID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ListingCache = (*ListingCache)(nil)

// StatsCache implements domain.StatsCache with one JSON value per asset.
type StatsCache struct {
	rdb *redis.Client
}

// NewStatsCache creates a StatsCache backed by the given Client.
func NewStatsCache(c *Client) *StatsCache {
	return &StatsCache{rdb: c.Underlying()}
}

func statsKey(assetID string) string { return "stats:asset:" + assetID }

// SetStats stores aggregate stats for an asset with the given TTL.
func (sc *StatsCache) SetStats(ctx context.Context, stats domain.AssetStats, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("redis: marshal stats %s: %w", stats.AssetID, err)
	}
	if err := sc.rdb.Set(ctx, statsKey(stats.AssetID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set stats %s: %w", stats.AssetID, err)
	}
	return nil
}

// GetStats retrieves cached stats for an asset.
// It returns domain.ErrNotFound when the key does not exist.
func (sc *StatsCache) GetStats(ctx context.Context, assetID string) (domain.AssetStats, error) {
	data, err := sc.rdb.Get(ctx, statsKey(assetID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.AssetStats{}, domain.ErrNotFound
		}
		return domain.AssetStats{}, fmt.Errorf("redis: get stats %s: %w", assetID, err)
	}

	var stats domain.AssetStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return domain.AssetStats{}, fmt.Errorf("redis: unmarshal stats %s: %w", assetID, err)
	}
	return stats, nil
}

// Compile-time interface check.
var _ domain.StatsCache = (*StatsCache)(nil)
