package domain

import (
	"context"
	"math/big"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// ListingStore persists marketplace listings.
//
// CreateMany accepts at most MaxBatchSize listings and inserts them in one
// transaction. Implementations must surface uniqueness conflicts (one active
// sale per asset, one active bid per buyer per asset) as ErrAlreadyListed /
// ErrDuplicateBid so use cases can classify them as business errors.
type ListingStore interface {
	Create(ctx context.Context, l Listing) error
	CreateMany(ctx context.Context, ls []Listing) ([]Listing, error)
	GetByID(ctx context.Context, id string) (Listing, error)
	ListByAsset(ctx context.Context, assetID string, opts ListOpts) ([]Listing, error)
	ActiveSalesForAsset(ctx context.Context, assetID string) ([]Listing, error)
	ActiveBidsForAsset(ctx context.Context, assetID string) ([]Listing, error)
	BestBidForAsset(ctx context.Context, assetID string) (Listing, error)
	Update(ctx context.Context, l Listing) error

	// CancelListings conditionally transitions the given ids from ACTIVE to
	// CANCELLED in one statement and returns the ids actually affected. Ids
	// that were not active are silently skipped, which is what lets a second
	// identical call report them as failures.
	CancelListings(ctx context.Context, ids []string) ([]string, error)

	// MarkAsExpired conditionally transitions the given ids from ACTIVE to
	// EXPIRED and returns the number of rows affected.
	MarkAsExpired(ctx context.Context, ids []string) (int64, error)

	// FindExpiredListings returns ACTIVE listings whose deadline has passed,
	// for the sweeper to hand back to MarkAsExpired.
	FindExpiredListings(ctx context.Context, now time.Time, limit int) ([]Listing, error)

	TotalVolumeByAsset(ctx context.Context, assetID string) (*big.Int, error)
	AveragePriceByAsset(ctx context.Context, assetID string) (*big.Int, error)
	CountSalesByAsset(ctx context.Context, assetID string) (int64, error)
}

// AssetStore provides read access to asset ownership and balance, plus the
// post-transfer bookkeeping update used by buy-now and bid acceptance.
type AssetStore interface {
	GetByID(ctx context.Context, id string) (Asset, error)
	Update(ctx context.Context, a Asset) error
}
