package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tokenmarket/internal/domain"
	"github.com/alanyoungcy/tokenmarket/internal/notify"
)

// CreateSaleRequest carries the inputs for listing an asset for sale.
type CreateSaleRequest struct {
	AssetID          string     `json:"asset_id"`
	SellerAddress    string     `json:"seller_address"`
	Price            string     `json:"price"`
	CurrencyContract string     `json:"currency_contract,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// CreateBidRequest carries the inputs for placing a bid on an asset.
type CreateBidRequest struct {
	AssetID          string     `json:"asset_id"`
	BuyerAddress     string     `json:"buyer_address"`
	Price            string     `json:"price"`
	CurrencyContract string     `json:"currency_contract,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// ListingService implements the single-item marketplace use cases. It is
// stateless between invocations: every call re-reads the asset and listing
// state it needs and writes once at the end.
type ListingService struct {
	listings domain.ListingStore
	assets   domain.AssetStore
	cache    domain.ListingCache
	bus      domain.SignalBus
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewListingService creates a ListingService with all required dependencies.
func NewListingService(
	listings domain.ListingStore,
	assets domain.AssetStore,
	cache domain.ListingCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *ListingService {
	return &ListingService{
		listings: listings,
		assets:   assets,
		cache:    cache,
		bus:      bus,
		logger:   logger,
	}
}

// WithNotifier attaches a notifier so completed sales trigger operator
// notifications. Without one, completions are only published on the bus.
func (s *ListingService) WithNotifier(n *notify.Notifier) *ListingService {
	s.notifier = n
	return s
}

// CreateSaleListing validates and persists a new sale listing for an asset.
// Validation order is fixed: asset existence, ownership, balance, price,
// single-active-sale, expiration.
func (s *ListingService) CreateSaleListing(ctx context.Context, req CreateSaleRequest) (domain.Listing, error) {
	asset, err := s.assets.GetByID(ctx, req.AssetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Listing{}, domain.ErrAssetNotFound
		}
		return domain.Listing{}, fmt.Errorf("listing_service: load asset %q: %w", req.AssetID, err)
	}

	if !asset.OwnedBy(req.SellerAddress) {
		return domain.Listing{}, domain.ErrNotOwner
	}
	if asset.Balance <= 0 {
		return domain.Listing{}, domain.ErrZeroBalance
	}

	price, err := domain.ParsePrice(req.Price)
	if err != nil {
		return domain.Listing{}, err
	}

	sales, err := s.listings.ActiveSalesForAsset(ctx, req.AssetID)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("listing_service: active sales for %q: %w", req.AssetID, err)
	}
	if len(sales) > 0 {
		return domain.Listing{}, domain.ErrAlreadyListed
	}

	if err := validateExpiry(req.ExpiresAt); err != nil {
		return domain.Listing{}, err
	}

	listing, err := domain.NewSaleListing(
		uuid.New().String(), req.AssetID, req.SellerAddress, price, req.CurrencyContract, req.ExpiresAt,
	)
	if err != nil {
		return domain.Listing{}, err
	}

	if err := s.listings.Create(ctx, listing); err != nil {
		// The store maps the partial unique index violation to ErrAlreadyListed,
		// closing the check-then-insert race window.
		if errors.Is(err, domain.ErrAlreadyListed) {
			return domain.Listing{}, domain.ErrAlreadyListed
		}
		return domain.Listing{}, fmt.Errorf("listing_service: create sale: %w", err)
	}

	s.afterWrite(ctx, listing, "listing_created")

	s.logger.InfoContext(ctx, "listing_service: sale listed",
		slog.String("listing_id", listing.ID),
		slog.String("asset_id", listing.AssetID),
		slog.String("price", listing.Price.String()),
	)
	return listing, nil
}

// CreateBid validates and persists a new bid on an asset. A bid must beat
// the current best active bid and a buyer may hold only one active bid per
// asset.
func (s *ListingService) CreateBid(ctx context.Context, req CreateBidRequest) (domain.Listing, error) {
	asset, err := s.assets.GetByID(ctx, req.AssetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Listing{}, domain.ErrAssetNotFound
		}
		return domain.Listing{}, fmt.Errorf("listing_service: load asset %q: %w", req.AssetID, err)
	}

	if asset.OwnedBy(req.BuyerAddress) {
		return domain.Listing{}, domain.ErrCannotBidOnOwnAsset
	}

	price, err := domain.ParsePrice(req.Price)
	if err != nil {
		return domain.Listing{}, err
	}

	best, err := s.listings.BestBidForAsset(ctx, req.AssetID)
	switch {
	case err == nil:
		if price.Cmp(best.Price) <= 0 {
			return domain.Listing{}, fmt.Errorf("%w (current best bid is %s)", domain.ErrBidTooLow, best.Price.String())
		}
	case errors.Is(err, domain.ErrNotFound):
		// No active bids yet; any positive price wins.
	default:
		return domain.Listing{}, fmt.Errorf("listing_service: best bid for %q: %w", req.AssetID, err)
	}

	bids, err := s.listings.ActiveBidsForAsset(ctx, req.AssetID)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("listing_service: active bids for %q: %w", req.AssetID, err)
	}
	for _, b := range bids {
		if domain.SameAddress(b.BuyerAddress, req.BuyerAddress) {
			return domain.Listing{}, domain.ErrDuplicateBid
		}
	}

	if err := validateExpiry(req.ExpiresAt); err != nil {
		return domain.Listing{}, err
	}

	bid, err := domain.NewBid(
		uuid.New().String(), req.AssetID, asset.OwnerAddress, req.BuyerAddress, price, req.CurrencyContract, req.ExpiresAt,
	)
	if err != nil {
		return domain.Listing{}, err
	}

	if err := s.listings.Create(ctx, bid); err != nil {
		if errors.Is(err, domain.ErrDuplicateBid) {
			return domain.Listing{}, domain.ErrDuplicateBid
		}
		return domain.Listing{}, fmt.Errorf("listing_service: create bid: %w", err)
	}

	s.afterWrite(ctx, bid, "listing_created")

	s.logger.InfoContext(ctx, "listing_service: bid placed",
		slog.String("listing_id", bid.ID),
		slog.String("asset_id", bid.AssetID),
		slog.String("price", bid.Price.String()),
	)
	return bid, nil
}

// AcceptBid completes a bid on behalf of the asset owner and records the
// ownership transfer on the asset.
func (s *ListingService) AcceptBid(ctx context.Context, assetID, listingID, actingAddress string) (domain.Listing, error) {
	bid, err := s.loadBid(ctx, assetID, listingID)
	if err != nil {
		return domain.Listing{}, err
	}

	if !bid.CanBeAcceptedBy(actingAddress) {
		return domain.Listing{}, domain.ErrNotAuthorized
	}

	completed, err := bid.Complete()
	if err != nil {
		return domain.Listing{}, err
	}
	if err := s.listings.Update(ctx, completed); err != nil {
		return domain.Listing{}, fmt.Errorf("listing_service: accept bid %q: %w", listingID, err)
	}

	s.recordTransfer(ctx, completed)
	s.afterWrite(ctx, completed, "listing_completed")
	s.notifySale(ctx, completed)

	s.logger.InfoContext(ctx, "listing_service: bid accepted",
		slog.String("listing_id", completed.ID),
		slog.String("asset_id", completed.AssetID),
	)
	return completed, nil
}

// RejectBid withdraws a bid. Only the original bidder may withdraw.
func (s *ListingService) RejectBid(ctx context.Context, assetID, listingID, actingAddress string) (domain.Listing, error) {
	bid, err := s.loadBid(ctx, assetID, listingID)
	if err != nil {
		return domain.Listing{}, err
	}

	if !bid.CanBeModifiedBy(actingAddress) {
		return domain.Listing{}, domain.ErrNotAuthorized
	}

	cancelled, err := bid.Cancel()
	if err != nil {
		return domain.Listing{}, err
	}
	if err := s.listings.Update(ctx, cancelled); err != nil {
		return domain.Listing{}, fmt.Errorf("listing_service: reject bid %q: %w", listingID, err)
	}

	s.afterWrite(ctx, cancelled, "listing_cancelled")

	s.logger.InfoContext(ctx, "listing_service: bid withdrawn",
		slog.String("listing_id", cancelled.ID),
	)
	return cancelled, nil
}

// BuyNow completes the first active sale listing on the asset that the buyer
// is allowed to accept. Selection is first-match in repository order, not
// lowest-price.
func (s *ListingService) BuyNow(ctx context.Context, assetID, buyerAddress string) (domain.Listing, error) {
	if _, err := s.assets.GetByID(ctx, assetID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Listing{}, domain.ErrAssetNotFound
		}
		return domain.Listing{}, fmt.Errorf("listing_service: load asset %q: %w", assetID, err)
	}

	sales, err := s.listings.ActiveSalesForAsset(ctx, assetID)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("listing_service: active sales for %q: %w", assetID, err)
	}

	var match *domain.Listing
	for i := range sales {
		if sales[i].IsSale() && sales[i].IsActive() && sales[i].CanBeAcceptedBy(buyerAddress) {
			match = &sales[i]
			break
		}
	}
	if match == nil {
		return domain.Listing{}, domain.ErrNoSaleAvailable
	}

	completed, err := match.Complete()
	if err != nil {
		return domain.Listing{}, err
	}
	completed.BuyerAddress = domain.NormalizeAddress(buyerAddress)

	if err := s.listings.Update(ctx, completed); err != nil {
		return domain.Listing{}, fmt.Errorf("listing_service: buy now %q: %w", completed.ID, err)
	}

	s.recordTransfer(ctx, completed)
	s.afterWrite(ctx, completed, "listing_completed")
	s.notifySale(ctx, completed)

	s.logger.InfoContext(ctx, "listing_service: sale bought",
		slog.String("listing_id", completed.ID),
		slog.String("asset_id", completed.AssetID),
		slog.String("buyer", completed.BuyerAddress),
	)
	return completed, nil
}

// GetListing retrieves a listing by id, consulting the cache first.
func (s *ListingService) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	if s.cache != nil {
		if l, err := s.cache.Get(ctx, id); err == nil {
			return l, nil
		}
	}

	l, err := s.listings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Listing{}, domain.ErrListingNotFound
		}
		return domain.Listing{}, fmt.Errorf("listing_service: get listing %q: %w", id, err)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, l)
	}
	return l, nil
}

// ListByAsset returns the listings for one asset with pagination.
func (s *ListingService) ListByAsset(ctx context.Context, assetID string, opts domain.ListOpts) ([]domain.Listing, error) {
	ls, err := s.listings.ListByAsset(ctx, assetID, opts)
	if err != nil {
		return nil, fmt.Errorf("listing_service: list by asset %q: %w", assetID, err)
	}
	return ls, nil
}

// loadBid fetches a listing by id and asserts it is a bid on the given asset.
func (s *ListingService) loadBid(ctx context.Context, assetID, listingID string) (domain.Listing, error) {
	bid, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Listing{}, domain.ErrListingNotFound
		}
		return domain.Listing{}, fmt.Errorf("listing_service: get bid %q: %w", listingID, err)
	}
	if !bid.IsBid() {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	if bid.AssetID != assetID {
		return domain.Listing{}, domain.ErrWrongAsset
	}
	return bid, nil
}

// recordTransfer updates the asset owner after a completed purchase. Failures
// are logged, not propagated: the listing transition has already been
// persisted and the asset record is refreshed by the chain indexer anyway.
func (s *ListingService) recordTransfer(ctx context.Context, l domain.Listing) {
	if l.BuyerAddress == "" {
		return
	}
	asset, err := s.assets.GetByID(ctx, l.AssetID)
	if err != nil {
		s.logger.WarnContext(ctx, "listing_service: transfer bookkeeping load failed",
			slog.String("asset_id", l.AssetID),
			slog.String("error", err.Error()),
		)
		return
	}
	asset.OwnerAddress = l.BuyerAddress
	asset.UpdatedAt = time.Now().UTC()
	if err := s.assets.Update(ctx, asset); err != nil {
		s.logger.WarnContext(ctx, "listing_service: transfer bookkeeping update failed",
			slog.String("asset_id", l.AssetID),
			slog.String("error", err.Error()),
		)
	}
}

// afterWrite refreshes the cache and publishes a lifecycle event. Both are
// best-effort: the store is the source of truth.
func (s *ListingService) afterWrite(ctx context.Context, l domain.Listing, event string) {
	if s.cache != nil {
		_ = s.cache.Set(ctx, l)
		_ = s.cache.InvalidateAsset(ctx, l.AssetID)
	}
	if s.bus == nil {
		return
	}

	payload, _ := json.Marshal(domain.ListingEvent{
		Event:     event,
		ListingID: l.ID,
		AssetID:   l.AssetID,
		Type:      string(l.Type),
		Price:     l.Price.String(),
	})
	if err := s.bus.Publish(ctx, domain.ChannelListings, payload); err != nil {
		s.logger.WarnContext(ctx, "listing_service: publish event failed",
			slog.String("event", event),
			slog.String("listing_id", l.ID),
			slog.String("error", err.Error()),
		)
	}
	if event == "listing_completed" {
		_ = s.bus.Publish(ctx, domain.ChannelSales, payload)
		if err := s.bus.StreamAppend(ctx, domain.StreamSales, payload); err != nil {
			s.logger.WarnContext(ctx, "listing_service: append sale to stream failed",
				slog.String("listing_id", l.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// notifySale pushes an operator notification for a completed sale.
func (s *ListingService) notifySale(ctx context.Context, l domain.Listing) {
	if s.notifier == nil {
		return
	}
	msg := fmt.Sprintf("asset %s sold for %s wei to %s", l.AssetID, l.Price.String(), l.BuyerAddress)
	if err := s.notifier.Notify(ctx, "sale_completed", "Sale completed", msg); err != nil {
		s.logger.WarnContext(ctx, "listing_service: notify failed",
			slog.String("listing_id", l.ID),
			slog.String("error", err.Error()),
		)
	}
}

// validateExpiry rejects deadlines that are not strictly in the future.
func validateExpiry(expiresAt *time.Time) error {
	if expiresAt != nil && !expiresAt.After(time.Now().UTC()) {
		return domain.ErrExpirationInPast
	}
	return nil
}

// GetAssetStats aggregates completed-sale volume and average price for an
// asset, with cache-aside on the stats cache.
func (s *ListingService) GetAssetStats(ctx context.Context, assetID string, stats domain.StatsCache) (domain.AssetStats, error) {
	if stats != nil {
		if cached, err := stats.GetStats(ctx, assetID); err == nil {
			return cached, nil
		}
	}

	volume, err := s.listings.TotalVolumeByAsset(ctx, assetID)
	if err != nil {
		return domain.AssetStats{}, fmt.Errorf("listing_service: total volume for %q: %w", assetID, err)
	}
	avg, err := s.listings.AveragePriceByAsset(ctx, assetID)
	if err != nil {
		return domain.AssetStats{}, fmt.Errorf("listing_service: average price for %q: %w", assetID, err)
	}
	count, err := s.listings.CountSalesByAsset(ctx, assetID)
	if err != nil {
		return domain.AssetStats{}, fmt.Errorf("listing_service: sales count for %q: %w", assetID, err)
	}

	out := domain.AssetStats{
		AssetID:      assetID,
		TotalVolume:  bigString(volume),
		AveragePrice: bigString(avg),
		SalesCount:   count,
	}
	if stats != nil {
		_ = stats.SetStats(ctx, out, 5*time.Minute)
	}
	return out, nil
}

func bigString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
