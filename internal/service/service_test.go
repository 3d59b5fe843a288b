package service

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/alanyoungcy/tokenmarket/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeListingStore is an in-memory ListingStore that preserves insertion
// order, which the buy-now first-match rule depends on.
type fakeListingStore struct {
	mu    sync.Mutex
	byID  map[string]domain.Listing
	order []string

	createErr error

	// beforeCancel runs at the start of CancelListings under the store lock,
	// letting tests change listing state between the validation read and the
	// conditional bulk update.
	beforeCancel func()
}

func newFakeListingStore() *fakeListingStore {
	return &fakeListingStore{byID: make(map[string]domain.Listing)}
}

func (f *fakeListingStore) Create(_ context.Context, l domain.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.byID[l.ID] = l
	f.order = append(f.order, l.ID)
	return nil
}

func (f *fakeListingStore) CreateMany(_ context.Context, ls []domain.Listing) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, l := range ls {
		f.byID[l.ID] = l
		f.order = append(f.order, l.ID)
	}
	return ls, nil
}

func (f *fakeListingStore) GetByID(_ context.Context, id string) (domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (f *fakeListingStore) ListByAsset(_ context.Context, assetID string, opts domain.ListOpts) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Listing
	for _, id := range f.order {
		if l := f.byID[id]; l.AssetID == assetID {
			out = append(out, l)
		}
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeListingStore) ActiveSalesForAsset(_ context.Context, assetID string) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Listing
	for _, id := range f.order {
		l := f.byID[id]
		if l.AssetID == assetID && l.IsSale() && l.IsActive() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeListingStore) ActiveBidsForAsset(_ context.Context, assetID string) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Listing
	for _, id := range f.order {
		l := f.byID[id]
		if l.AssetID == assetID && l.IsBid() && l.IsActive() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeListingStore) BestBidForAsset(ctx context.Context, assetID string) (domain.Listing, error) {
	bids, err := f.ActiveBidsForAsset(ctx, assetID)
	if err != nil {
		return domain.Listing{}, err
	}
	if len(bids) == 0 {
		return domain.Listing{}, domain.ErrNotFound
	}
	best := bids[0]
	for _, b := range bids[1:] {
		if b.Price.Cmp(best.Price) > 0 {
			best = b
		}
	}
	return best, nil
}

func (f *fakeListingStore) Update(_ context.Context, l domain.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[l.ID]; !ok {
		return domain.ErrNotFound
	}
	f.byID[l.ID] = l
	return nil
}

func (f *fakeListingStore) CancelListings(_ context.Context, ids []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beforeCancel != nil {
		f.beforeCancel()
	}
	var affected []string
	for _, id := range ids {
		l, ok := f.byID[id]
		if !ok || l.Status != domain.ListingStatusActive {
			continue
		}
		l.Status = domain.ListingStatusCancelled
		l.UpdatedAt = time.Now().UTC()
		f.byID[id] = l
		affected = append(affected, id)
	}
	return affected, nil
}

func (f *fakeListingStore) MarkAsExpired(_ context.Context, ids []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		l, ok := f.byID[id]
		if !ok || l.Status != domain.ListingStatusActive {
			continue
		}
		l.Status = domain.ListingStatusExpired
		l.UpdatedAt = time.Now().UTC()
		f.byID[id] = l
		n++
	}
	return n, nil
}

func (f *fakeListingStore) FindExpiredListings(_ context.Context, now time.Time, limit int) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Listing
	for _, id := range f.order {
		l := f.byID[id]
		if l.Status == domain.ListingStatusActive && l.ExpiresAt != nil && !l.ExpiresAt.After(now) {
			out = append(out, l)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeListingStore) TotalVolumeByAsset(_ context.Context, assetID string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := new(big.Int)
	for _, l := range f.byID {
		if l.AssetID == assetID && l.IsCompleted() {
			total.Add(total, l.Price)
		}
	}
	return total, nil
}

func (f *fakeListingStore) AveragePriceByAsset(ctx context.Context, assetID string) (*big.Int, error) {
	total, err := f.TotalVolumeByAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	count, err := f.CountSalesByAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return new(big.Int), nil
	}
	return new(big.Int).Quo(total, big.NewInt(count)), nil
}

func (f *fakeListingStore) CountSalesByAsset(_ context.Context, assetID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, l := range f.byID {
		if l.AssetID == assetID && l.IsCompleted() {
			n++
		}
	}
	return n, nil
}

type fakeAssetStore struct {
	mu   sync.Mutex
	byID map[string]domain.Asset
}

func newFakeAssetStore(assets ...domain.Asset) *fakeAssetStore {
	f := &fakeAssetStore{byID: make(map[string]domain.Asset)}
	for _, a := range assets {
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeAssetStore) GetByID(_ context.Context, id string) (domain.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return domain.Asset{}, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeAssetStore) Update(_ context.Context, a domain.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[a.ID]; !ok {
		return domain.ErrNotFound
	}
	f.byID[a.ID] = a
	return nil
}

// fakeLockManager hands out the lock unless held is set.
type fakeLockManager struct {
	mu   sync.Mutex
	held bool
}

func (f *fakeLockManager) Acquire(_ context.Context, _ string, _ time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held {
		return nil, domain.ErrLockHeld
	}
	f.held = true
	return func() {
		f.mu.Lock()
		f.held = false
		f.mu.Unlock()
	}, nil
}

// fakeBus records published payloads per channel.
type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: make(map[string][][]byte)}
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (f *fakeBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (f *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (f *fakeBus) count(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published[channel])
}

func testAsset(id, owner string, balance int64) domain.Asset {
	now := time.Now().UTC()
	return domain.Asset{
		ID:           id,
		ContractAddr: "0x5fbdb2315678afecb367f032d93f642f64180aa3",
		TokenID:      "1",
		OwnerAddress: domain.NormalizeAddress(owner),
		Balance:      balance,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

var _ domain.ListingStore = (*fakeListingStore)(nil)
var _ domain.AssetStore = (*fakeAssetStore)(nil)
var _ domain.LockManager = (*fakeLockManager)(nil)
var _ domain.SignalBus = (*fakeBus)(nil)
