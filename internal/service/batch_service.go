package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tokenmarket/internal/domain"
)

// Per-item rejection reasons surfaced to batch callers. These strings are part
// of the API contract; clients match on them to avoid re-submitting items.
const (
	reasonListingNotFound   = "Listing not found"
	reasonNotSellerCancel   = "Only the seller can cancel this listing"
	reasonNotSellerUpdate   = "Only the seller can update this listing"
	reasonNotActiveCancel   = "Listing cannot be cancelled (not active)"
	reasonNotActiveUpdate   = "Listing cannot be updated (not active)"
	reasonNoFieldsToUpdate  = "No valid fields to update"
	reasonAssetNotFound     = "Asset not found"
	reasonNotOwner          = "Only the asset owner can create this listing"
	reasonZeroBalance       = "Asset balance is zero"
	reasonInvalidPrice      = "Price must be a positive integer"
	reasonAlreadyListed     = "Asset already has an active sale listing"
	reasonExpirationInPast  = "Expiration must be in the future"
)

// BatchService implements the bounded batch use cases. Each item is validated
// independently; only the valid subset is committed, and the result reports a
// per-item outcome in input order.
type BatchService struct {
	listings domain.ListingStore
	assets   domain.AssetStore
	cache    domain.ListingCache
	bus      domain.SignalBus
	logger   *slog.Logger
}

// NewBatchService creates a BatchService with all required dependencies.
func NewBatchService(
	listings domain.ListingStore,
	assets domain.AssetStore,
	cache domain.ListingCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *BatchService {
	return &BatchService{
		listings: listings,
		assets:   assets,
		cache:    cache,
		bus:      bus,
		logger:   logger,
	}
}

// CreateBatchListings creates up to MaxBatchSize sale listings for one seller.
// Duplicate asset ids abort the whole call before any per-item work; every
// other rule failure is recorded per item. The valid subset is persisted with
// one bulk insert.
func (s *BatchService) CreateBatchListings(ctx context.Context, items []domain.BatchCreateItem, sellerAddress string) (domain.BatchCreateResult, error) {
	if err := checkBatchSize(len(items)); err != nil {
		return domain.BatchCreateResult{}, err
	}

	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it.AssetID] {
			return domain.BatchCreateResult{}, domain.ErrDuplicateAssetIDs
		}
		seen[it.AssetID] = true
	}

	var (
		valid  []domain.Listing
		result domain.BatchCreateResult
	)
	for _, it := range items {
		listing, err := s.validateSaleItem(ctx, it, sellerAddress)
		if err != nil {
			result.Errors = append(result.Errors, domain.BatchItemError{
				AssetID: it.AssetID,
				Error:   createReason(err),
			})
			continue
		}
		valid = append(valid, listing)
	}

	if len(valid) == 0 {
		return domain.BatchCreateResult{}, domain.ErrNoValidItems
	}

	created, err := s.listings.CreateMany(ctx, valid)
	if err != nil {
		return domain.BatchCreateResult{}, fmt.Errorf("batch_service: bulk create: %w", err)
	}

	result.Created = created
	result.SuccessCount = len(created)
	result.FailureCount = len(result.Errors)

	for _, l := range created {
		s.afterWrite(ctx, l, "listing_created")
	}

	s.logger.InfoContext(ctx, "batch_service: batch create done",
		slog.Int("submitted", len(items)),
		slog.Int("created", result.SuccessCount),
		slog.Int("rejected", result.FailureCount),
	)
	return result, nil
}

// validateSaleItem runs the single-item sale rule sequence for one batch
// entry without persisting anything.
func (s *BatchService) validateSaleItem(ctx context.Context, it domain.BatchCreateItem, sellerAddress string) (domain.Listing, error) {
	asset, err := s.assets.GetByID(ctx, it.AssetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Listing{}, domain.ErrAssetNotFound
		}
		return domain.Listing{}, err
	}
	if !asset.OwnedBy(sellerAddress) {
		return domain.Listing{}, domain.ErrNotOwner
	}
	if asset.Balance <= 0 {
		return domain.Listing{}, domain.ErrZeroBalance
	}

	price, err := domain.ParsePrice(it.Price)
	if err != nil {
		return domain.Listing{}, err
	}

	sales, err := s.listings.ActiveSalesForAsset(ctx, it.AssetID)
	if err != nil {
		return domain.Listing{}, err
	}
	if len(sales) > 0 {
		return domain.Listing{}, domain.ErrAlreadyListed
	}

	if err := validateExpiry(it.ExpiresAt); err != nil {
		return domain.Listing{}, err
	}

	return domain.NewSaleListing(
		uuid.New().String(), it.AssetID, sellerAddress, price, it.CurrencyContract, it.ExpiresAt,
	)
}

// CancelBatchListings cancels up to MaxBatchSize listings owned by one
// seller. The actual transition is one conditional bulk update guarded by
// status = ACTIVE, so a listing that lost the race is reported as a per-item
// failure rather than silently re-cancelled.
func (s *BatchService) CancelBatchListings(ctx context.Context, listingIDs []string, sellerAddress string) (domain.BatchCancelResult, error) {
	if err := checkBatchSize(len(listingIDs)); err != nil {
		return domain.BatchCancelResult{}, err
	}

	seen := make(map[string]bool, len(listingIDs))
	for _, id := range listingIDs {
		if seen[id] {
			return domain.BatchCancelResult{}, domain.ErrDuplicateListingIDs
		}
		seen[id] = true
	}

	var (
		result   domain.BatchCancelResult
		validIDs []string
		byID     = make(map[string]domain.Listing, len(listingIDs))
		rejected = make(map[string]string, len(listingIDs))
	)
	for _, id := range listingIDs {
		l, err := s.listings.GetByID(ctx, id)
		if err != nil {
			reason := reasonListingNotFound
			if !errors.Is(err, domain.ErrNotFound) {
				reason = err.Error()
			}
			rejected[id] = reason
			continue
		}
		switch {
		case !domain.SameAddress(l.SellerAddress, sellerAddress):
			rejected[id] = reasonNotSellerCancel
		case !l.IsActive():
			rejected[id] = reasonNotActiveCancel
		default:
			validIDs = append(validIDs, id)
			byID[id] = l
		}
	}

	if len(validIDs) == 0 {
		return domain.BatchCancelResult{}, domain.ErrNoValidItems
	}

	affected, err := s.listings.CancelListings(ctx, validIDs)
	if err != nil {
		return domain.BatchCancelResult{}, fmt.Errorf("batch_service: bulk cancel: %w", err)
	}

	cancelled := make(map[string]bool, len(affected))
	for _, id := range affected {
		cancelled[id] = true
	}

	// One pass over the submitted ids so errors correlate in input order,
	// whether an id was rejected up front or lost the conditional update
	// race (reported as not-active, same as a pre-validated terminal state).
	for _, id := range listingIDs {
		if reason, ok := rejected[id]; ok {
			result.Errors = append(result.Errors, domain.BatchItemError{ListingID: id, Error: reason})
			continue
		}
		if cancelled[id] {
			result.CancelledIDs = append(result.CancelledIDs, id)
			s.invalidate(ctx, byID[id])
			continue
		}
		result.Errors = append(result.Errors, domain.BatchItemError{ListingID: id, Error: reasonNotActiveCancel})
	}

	result.SuccessCount = len(result.CancelledIDs)
	result.FailureCount = len(result.Errors)

	s.publishEvent(ctx, domain.ListingEvent{
		Event: "listings_cancelled",
		Count: int64(result.SuccessCount),
	})

	s.logger.InfoContext(ctx, "batch_service: batch cancel done",
		slog.Int("submitted", len(listingIDs)),
		slog.Int("cancelled", result.SuccessCount),
		slog.Int("rejected", result.FailureCount),
	)
	return result, nil
}

// UpdateBatchListings applies per-listing price/expiry patches for one
// seller. Each surviving item is updated individually because items may
// change different fields; a failed update is a per-item error, and the call
// only fails outright when nothing was updated.
func (s *BatchService) UpdateBatchListings(ctx context.Context, items []domain.BatchUpdateItem, sellerAddress string) (domain.BatchUpdateResult, error) {
	if err := checkBatchSize(len(items)); err != nil {
		return domain.BatchUpdateResult{}, err
	}

	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it.ListingID] {
			return domain.BatchUpdateResult{}, domain.ErrDuplicateListingIDs
		}
		seen[it.ListingID] = true
	}

	var result domain.BatchUpdateResult
	for _, it := range items {
		updated, reason := s.applyUpdateItem(ctx, it, sellerAddress)
		if reason != "" {
			result.Errors = append(result.Errors, domain.BatchItemError{ListingID: it.ListingID, Error: reason})
			continue
		}
		result.Updated = append(result.Updated, updated)
		s.afterWrite(ctx, updated, "listing_updated")
	}

	result.SuccessCount = len(result.Updated)
	result.FailureCount = len(result.Errors)

	if result.SuccessCount == 0 {
		return domain.BatchUpdateResult{}, domain.ErrNoSuccessfulUpdates
	}

	s.logger.InfoContext(ctx, "batch_service: batch update done",
		slog.Int("submitted", len(items)),
		slog.Int("updated", result.SuccessCount),
		slog.Int("rejected", result.FailureCount),
	)
	return result, nil
}

// applyUpdateItem validates and persists one update item. It returns the
// updated listing, or a non-empty rejection reason.
func (s *BatchService) applyUpdateItem(ctx context.Context, it domain.BatchUpdateItem, sellerAddress string) (domain.Listing, string) {
	l, err := s.listings.GetByID(ctx, it.ListingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Listing{}, reasonListingNotFound
		}
		return domain.Listing{}, err.Error()
	}
	if !domain.SameAddress(l.SellerAddress, sellerAddress) {
		return domain.Listing{}, reasonNotSellerUpdate
	}
	if !l.IsActive() {
		return domain.Listing{}, reasonNotActiveUpdate
	}

	var patch domain.ListingPatch
	if it.Price != nil {
		price, err := domain.ParsePrice(*it.Price)
		if err != nil {
			return domain.Listing{}, reasonInvalidPrice
		}
		patch.Price = price
	}
	if it.ExpiresAt != nil {
		if err := validateExpiry(it.ExpiresAt); err != nil {
			return domain.Listing{}, reasonExpirationInPast
		}
		patch.ExpiresAt = it.ExpiresAt
	}
	if patch.Empty() {
		return domain.Listing{}, reasonNoFieldsToUpdate
	}

	updated, err := patch.Apply(l)
	if err != nil {
		return domain.Listing{}, err.Error()
	}

	if err := s.listings.Update(ctx, updated); err != nil {
		return domain.Listing{}, err.Error()
	}
	return updated, ""
}

// afterWrite refreshes the cache and publishes a per-listing event.
func (s *BatchService) afterWrite(ctx context.Context, l domain.Listing, event string) {
	s.invalidate(ctx, l)
	s.publishEvent(ctx, domain.ListingEvent{
		Event:     event,
		ListingID: l.ID,
		AssetID:   l.AssetID,
		Type:      string(l.Type),
		Price:     l.Price.String(),
	})
}

func (s *BatchService) invalidate(ctx context.Context, l domain.Listing) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, l.ID)
	_ = s.cache.InvalidateAsset(ctx, l.AssetID)
}

func (s *BatchService) publishEvent(ctx context.Context, evt domain.ListingEvent) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(evt)
	if err := s.bus.Publish(ctx, domain.ChannelListings, payload); err != nil {
		s.logger.WarnContext(ctx, "batch_service: publish event failed",
			slog.String("event", evt.Event),
			slog.String("error", err.Error()),
		)
	}
}

// checkBatchSize enforces the hard 1..MaxBatchSize bound on batch calls.
func checkBatchSize(n int) error {
	if n == 0 {
		return domain.ErrEmptyBatch
	}
	if n > domain.MaxBatchSize {
		return domain.ErrBatchTooLarge
	}
	return nil
}

// createReason maps a create-item validation error to its caller-facing
// reason string.
func createReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAssetNotFound):
		return reasonAssetNotFound
	case errors.Is(err, domain.ErrNotOwner):
		return reasonNotOwner
	case errors.Is(err, domain.ErrZeroBalance):
		return reasonZeroBalance
	case errors.Is(err, domain.ErrInvalidPrice):
		return reasonInvalidPrice
	case errors.Is(err, domain.ErrAlreadyListed):
		return reasonAlreadyListed
	case errors.Is(err, domain.ErrExpirationInPast):
		return reasonExpirationInPast
	default:
		return err.Error()
	}
}
