package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenmarket/internal/domain"
)

const (
	expirySweepLock = "sweep:expiry"

	// DefaultSweepBatch bounds how many overdue listings one sweep marks.
	DefaultSweepBatch = 500
)

// ExpiryService periodically marks overdue listings as EXPIRED. Only one
// replica sweeps at a time, guarded by a distributed lock.
type ExpiryService struct {
	listings domain.ListingStore
	cache    domain.ListingCache
	locks    domain.LockManager
	bus      domain.SignalBus
	logger   *slog.Logger

	interval  time.Duration
	batchSize int
}

// NewExpiryService creates an ExpiryService. A zero interval falls back to
// one minute, a zero batch size to DefaultSweepBatch.
func NewExpiryService(
	listings domain.ListingStore,
	cache domain.ListingCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	logger *slog.Logger,
	interval time.Duration,
	batchSize int,
) *ExpiryService {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = DefaultSweepBatch
	}
	return &ExpiryService{
		listings:  listings,
		cache:     cache,
		locks:     locks,
		bus:       bus,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. An individual sweep
// failure is logged and retried on the next tick.
func (s *ExpiryService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "expiry_service: sweeper started",
		slog.Duration("interval", s.interval),
		slog.Int("batch_size", s.batchSize),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "expiry_service: sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, domain.ErrLockHeld) {
				s.logger.WarnContext(ctx, "expiry_service: sweep failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// SweepOnce marks one batch of overdue listings as expired. It returns
// ErrLockHeld when another replica holds the sweep lock.
func (s *ExpiryService) SweepOnce(ctx context.Context) (int64, error) {
	unlock, err := s.locks.Acquire(ctx, expirySweepLock, s.interval)
	if err != nil {
		return 0, err
	}
	defer unlock()

	now := time.Now().UTC()
	overdue, err := s.listings.FindExpiredListings(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("expiry_service: find expired: %w", err)
	}
	if len(overdue) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(overdue))
	for _, l := range overdue {
		ids = append(ids, l.ID)
	}

	marked, err := s.listings.MarkAsExpired(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("expiry_service: mark expired: %w", err)
	}

	if s.cache != nil {
		for _, l := range overdue {
			_ = s.cache.Invalidate(ctx, l.ID)
			_ = s.cache.InvalidateAsset(ctx, l.AssetID)
		}
	}

	if s.bus != nil && marked > 0 {
		payload, _ := json.Marshal(domain.ListingEvent{
			Event: "listings_expired",
			Count: marked,
		})
		if err := s.bus.Publish(ctx, domain.ChannelListings, payload); err != nil {
			s.logger.WarnContext(ctx, "expiry_service: publish event failed",
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "expiry_service: sweep done",
		slog.Int("found", len(overdue)),
		slog.Int64("marked", marked),
	)
	return marked, nil
}
