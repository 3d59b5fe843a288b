package domain

import (
	"context"
	"time"
)

// ListingCache provides fast listing lookups in front of the store.
type ListingCache interface {
	Set(ctx context.Context, l Listing) error
	Get(ctx context.Context, id string) (Listing, error)
	InvalidateAsset(ctx context.Context, assetID string) error
	Invalidate(ctx context.Context, id string) error
}

// StatsCache caches aggregate asset statistics.
type StatsCache interface {
	SetStats(ctx context.Context, stats AssetStats, ttl time.Duration) error
	GetStats(ctx context.Context, assetID string) (AssetStats, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub for listing lifecycle events and durable streams
// for consumers that must not miss events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
