package domain

import (
	"math/big"
	"time"
)

// ListingType distinguishes sale listings from bids.
type ListingType string

const (
	ListingTypeSale ListingType = "SALE"
	ListingTypeBid  ListingType = "BID"
)

// ListingStatus tracks the listing lifecycle. Transitions are one-way:
// ACTIVE -> COMPLETED | CANCELLED | EXPIRED. Terminal states never change.
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "ACTIVE"
	ListingStatusCompleted ListingStatus = "COMPLETED"
	ListingStatusCancelled ListingStatus = "CANCELLED"
	ListingStatusExpired   ListingStatus = "EXPIRED"
)

// Listing is the marketplace aggregate: a SALE or BID record representing
// intent for one asset. Listings are value-like; the transition methods
// return a new Listing instead of mutating the receiver, so a Listing is
// safe to share across concurrent reads.
type Listing struct {
	ID               string
	AssetID          string
	Type             ListingType
	Price            *big.Int
	CurrencyContract string // empty = chain-native currency
	SellerAddress    string
	BuyerAddress     string // bids only
	Status           ListingStatus
	ExpiresAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewSaleListing constructs an ACTIVE sale listing. The price must be a
// positive integer in wei-equivalent units; addresses are normalized to
// lowercase so later comparisons are case-insensitive by construction.
func NewSaleListing(id, assetID, seller string, price *big.Int, currencyContract string, expiresAt *time.Time) (Listing, error) {
	if price == nil || price.Sign() <= 0 {
		return Listing{}, ErrInvalidPrice
	}
	now := time.Now().UTC()
	return Listing{
		ID:               id,
		AssetID:          assetID,
		Type:             ListingTypeSale,
		Price:            new(big.Int).Set(price),
		CurrencyContract: NormalizeAddress(currencyContract),
		SellerAddress:    NormalizeAddress(seller),
		Status:           ListingStatusActive,
		ExpiresAt:        expiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// NewBid constructs an ACTIVE bid. A bid always carries both the buyer
// placing it and the seller (current asset owner) it targets.
func NewBid(id, assetID, seller, buyer string, price *big.Int, currencyContract string, expiresAt *time.Time) (Listing, error) {
	if price == nil || price.Sign() <= 0 {
		return Listing{}, ErrInvalidPrice
	}
	now := time.Now().UTC()
	return Listing{
		ID:               id,
		AssetID:          assetID,
		Type:             ListingTypeBid,
		Price:            new(big.Int).Set(price),
		CurrencyContract: NormalizeAddress(currencyContract),
		SellerAddress:    NormalizeAddress(seller),
		BuyerAddress:     NormalizeAddress(buyer),
		Status:           ListingStatusActive,
		ExpiresAt:        expiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// IsSale reports whether this is a sale listing.
func (l Listing) IsSale() bool { return l.Type == ListingTypeSale }

// IsBid reports whether this is a bid.
func (l Listing) IsBid() bool { return l.Type == ListingTypeBid }

// IsCompleted reports whether the listing reached the COMPLETED state.
func (l Listing) IsCompleted() bool { return l.Status == ListingStatusCompleted }

// IsCancelled reports whether the listing reached the CANCELLED state.
func (l Listing) IsCancelled() bool { return l.Status == ListingStatusCancelled }

// IsExpiredAt reports whether the listing's deadline has passed at the given
// instant. Listings without a deadline never expire.
func (l Listing) IsExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// IsExpired is IsExpiredAt evaluated at the current time.
func (l Listing) IsExpired() bool { return l.IsExpiredAt(time.Now().UTC()) }

// IsActiveAt reports whether the listing is ACTIVE and not past its deadline
// at the given instant. Expiration is evaluated lazily here rather than by a
// background sweep.
func (l Listing) IsActiveAt(now time.Time) bool {
	return l.Status == ListingStatusActive && !l.IsExpiredAt(now)
}

// IsActive is IsActiveAt evaluated at the current time.
func (l Listing) IsActive() bool { return l.IsActiveAt(time.Now().UTC()) }

// CanBeAcceptedBy reports whether addr may accept this listing. A sale can be
// accepted by anyone except the seller; a bid can only be accepted by the
// seller (the asset owner). Inactive listings can never be accepted.
func (l Listing) CanBeAcceptedBy(addr string) bool {
	if !l.IsActive() {
		return false
	}
	if l.IsSale() {
		return !SameAddress(addr, l.SellerAddress)
	}
	return SameAddress(addr, l.SellerAddress)
}

// CanBeModifiedBy reports whether addr may modify or withdraw this listing:
// the seller for a sale, the buyer for a bid.
func (l Listing) CanBeModifiedBy(addr string) bool {
	if l.IsSale() {
		return SameAddress(addr, l.SellerAddress)
	}
	return SameAddress(addr, l.BuyerAddress)
}

// FormattedPrice renders the price divided by 10^decimals with trailing zero
// fraction digits stripped. With decimals <= 0 the raw integer string is
// returned.
func (l Listing) FormattedPrice(decimals int) string {
	return FormatUnits(l.Price, decimals)
}

// Complete transitions the listing to COMPLETED and returns the new value.
// It fails with ErrNotActive if the listing is not currently active.
func (l Listing) Complete() (Listing, error) {
	return l.transition(ListingStatusCompleted)
}

// Cancel transitions the listing to CANCELLED and returns the new value.
// Cancelling an already-terminal listing fails with ErrNotActive and leaves
// the original value untouched.
func (l Listing) Cancel() (Listing, error) {
	return l.transition(ListingStatusCancelled)
}

// Expire transitions the listing to EXPIRED and returns the new value.
func (l Listing) Expire() (Listing, error) {
	if l.Status != ListingStatusActive {
		return Listing{}, ErrNotActive
	}
	out := l
	out.Status = ListingStatusExpired
	out.UpdatedAt = time.Now().UTC()
	return out, nil
}

func (l Listing) transition(to ListingStatus) (Listing, error) {
	if !l.IsActive() {
		return Listing{}, ErrNotActive
	}
	out := l
	out.Status = to
	out.UpdatedAt = time.Now().UTC()
	return out, nil
}

// WithPrice returns a copy of the listing with a new price. It fails if the
// listing is not active or the price is not a positive integer.
func (l Listing) WithPrice(price *big.Int) (Listing, error) {
	if !l.IsActive() {
		return Listing{}, ErrNotActive
	}
	if price == nil || price.Sign() <= 0 {
		return Listing{}, ErrInvalidPrice
	}
	out := l
	out.Price = new(big.Int).Set(price)
	out.UpdatedAt = time.Now().UTC()
	return out, nil
}

// WithExpiry returns a copy of the listing with a new deadline. It fails if
// the listing is not active.
func (l Listing) WithExpiry(expiresAt time.Time) (Listing, error) {
	if !l.IsActive() {
		return Listing{}, ErrNotActive
	}
	out := l
	t := expiresAt
	out.ExpiresAt = &t
	out.UpdatedAt = time.Now().UTC()
	return out, nil
}

// ListingPatch enumerates the only two fields a batch update may change.
// Nil means "leave unchanged".
type ListingPatch struct {
	Price     *big.Int
	ExpiresAt *time.Time
}

// Empty reports whether the patch changes nothing.
func (p ListingPatch) Empty() bool {
	return p.Price == nil && p.ExpiresAt == nil
}

// Apply returns a copy of l with the patch applied, validating each provided
// field the same way the individual setters do.
func (p ListingPatch) Apply(l Listing) (Listing, error) {
	if p.Empty() {
		return Listing{}, ErrNoFieldsToUpdate
	}
	out := l
	var err error
	if p.Price != nil {
		out, err = out.WithPrice(p.Price)
		if err != nil {
			return Listing{}, err
		}
	}
	if p.ExpiresAt != nil {
		out, err = out.WithExpiry(*p.ExpiresAt)
		if err != nil {
			return Listing{}, err
		}
	}
	return out, nil
}
