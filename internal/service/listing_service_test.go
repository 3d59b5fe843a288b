package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/tokenmarket/internal/domain"
)

const (
	addrAlice = "0xAAAA567890aBcDeF1234567890AbCdEf12345678"
	addrBob   = "0xBBBB567890abcdef1234567890abcdef12345678"
	addrCarol = "0xCCCC567890abcdef1234567890abcdef12345678"
)

func newTestListingService(assets ...domain.Asset) (*ListingService, *fakeListingStore, *fakeAssetStore) {
	listings := newFakeListingStore()
	assetStore := newFakeAssetStore(assets...)
	svc := NewListingService(listings, assetStore, nil, nil, testLogger())
	return svc, listings, assetStore
}

func TestCreateSaleListing(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active sale for the owner", func(t *testing.T) {
		svc, _, _ := newTestListingService(testAsset("asset-1", addrAlice, 1))

		l, err := svc.CreateSaleListing(ctx, CreateSaleRequest{
			AssetID: "asset-1", SellerAddress: addrAlice, Price: "1000000000000000000",
		})
		if err != nil {
			t.Fatalf("CreateSaleListing: %v", err)
		}
		if !l.IsSale() || !l.IsActive() {
			t.Errorf("got type=%s status=%s, want active sale", l.Type, l.Status)
		}
		if l.SellerAddress != domain.NormalizeAddress(addrAlice) {
			t.Errorf("seller = %q, want normalized %q", l.SellerAddress, domain.NormalizeAddress(addrAlice))
		}
		if l.Price.String() != "1000000000000000000" {
			t.Errorf("price = %s, want 1000000000000000000", l.Price)
		}
	})

	t.Run("rejects second active sale on the same asset", func(t *testing.T) {
		svc, _, _ := newTestListingService(testAsset("asset-1", addrAlice, 1))

		req := CreateSaleRequest{AssetID: "asset-1", SellerAddress: addrAlice, Price: "100"}
		if _, err := svc.CreateSaleListing(ctx, req); err != nil {
			t.Fatalf("first CreateSaleListing: %v", err)
		}
		if _, err := svc.CreateSaleListing(ctx, req); !errors.Is(err, domain.ErrAlreadyListed) {
			t.Errorf("second CreateSaleListing err = %v, want ErrAlreadyListed", err)
		}
	})

	t.Run("validation failures", func(t *testing.T) {
		future := time.Now().Add(time.Hour)
		past := time.Now().Add(-time.Hour)
		cases := []struct {
			name string
			req  CreateSaleRequest
			want error
		}{
			{"unknown asset", CreateSaleRequest{AssetID: "nope", SellerAddress: addrAlice, Price: "100"}, domain.ErrAssetNotFound},
			{"not the owner", CreateSaleRequest{AssetID: "asset-1", SellerAddress: addrBob, Price: "100"}, domain.ErrNotOwner},
			{"zero balance", CreateSaleRequest{AssetID: "asset-0", SellerAddress: addrAlice, Price: "100"}, domain.ErrZeroBalance},
			{"zero price", CreateSaleRequest{AssetID: "asset-1", SellerAddress: addrAlice, Price: "0"}, domain.ErrInvalidPrice},
			{"malformed price", CreateSaleRequest{AssetID: "asset-1", SellerAddress: addrAlice, Price: "1.5"}, domain.ErrInvalidPrice},
			{"past expiry", CreateSaleRequest{AssetID: "asset-1", SellerAddress: addrAlice, Price: "100", ExpiresAt: &past}, domain.ErrExpirationInPast},
			{"future expiry ok", CreateSaleRequest{AssetID: "asset-1", SellerAddress: addrAlice, Price: "100", ExpiresAt: &future}, nil},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				svc, _, _ := newTestListingService(
					testAsset("asset-1", addrAlice, 1),
					testAsset("asset-0", addrAlice, 0),
				)
				_, err := svc.CreateSaleListing(ctx, tc.req)
				if !errors.Is(err, tc.want) {
					t.Errorf("err = %v, want %v", err, tc.want)
				}
			})
		}
	})
}

func TestCreateBid(t *testing.T) {
	ctx := context.Background()

	t.Run("each new bid must beat the best active bid", func(t *testing.T) {
		svc, _, _ := newTestListingService(testAsset("asset-1", addrAlice, 1))

		if _, err := svc.CreateBid(ctx, CreateBidRequest{AssetID: "asset-1", BuyerAddress: addrBob, Price: "500"}); err != nil {
			t.Fatalf("first bid: %v", err)
		}
		if _, err := svc.CreateBid(ctx, CreateBidRequest{AssetID: "asset-1", BuyerAddress: addrCarol, Price: "400"}); !errors.Is(err, domain.ErrBidTooLow) {
			t.Fatalf("lower bid err = %v, want ErrBidTooLow", err)
		}
		if _, err := svc.CreateBid(ctx, CreateBidRequest{AssetID: "asset-1", BuyerAddress: addrCarol, Price: "500"}); !errors.Is(err, domain.ErrBidTooLow) {
			t.Fatalf("equal bid err = %v, want ErrBidTooLow", err)
		}
		bid, err := svc.CreateBid(ctx, CreateBidRequest{AssetID: "asset-1", BuyerAddress: addrCarol, Price: "600"})
		if err != nil {
			t.Fatalf("higher bid: %v", err)
		}
		if bid.SellerAddress != domain.NormalizeAddress(addrAlice) {
			t.Errorf("bid seller = %q, want asset owner", bid.SellerAddress)
		}
	})

	t.Run("one active bid per buyer per asset", func(t *testing.T) {
		svc, _, _ := newTestListingService(testAsset("asset-1", addrAlice, 1))

		if _, err := svc.CreateBid(ctx, CreateBidRequest{AssetID: "asset-1", BuyerAddress: addrBob, Price: "500"}); err != nil {
			t.Fatalf("first bid: %v", err)
		}
		// Same buyer with a different address casing still counts.
		_, err := svc.CreateBid(ctx, CreateBidRequest{AssetID: "asset-1", BuyerAddress: "0xBBBB567890ABCDEF1234567890ABCDEF12345678", Price: "900"})
		if !errors.Is(err, domain.ErrDuplicateBid) {
			t.Errorf("err = %v, want ErrDuplicateBid", err)
		}
	})

	t.Run("owner cannot bid on own asset", func(t *testing.T) {
		svc, _, _ := newTestListingService(testAsset("asset-1", addrAlice, 1))

		_, err := svc.CreateBid(ctx, CreateBidRequest{AssetID: "asset-1", BuyerAddress: addrAlice, Price: "500"})
		if !errors.Is(err, domain.ErrCannotBidOnOwnAsset) {
			t.Errorf("err = %v, want ErrCannotBidOnOwnAsset", err)
		}
	})

	t.Run("unknown asset", func(t *testing.T) {
		svc, _, _ := newTestListingService()

		_, err := svc.CreateBid(ctx, CreateBidRequest{AssetID: "nope", BuyerAddress: addrBob, Price: "500"})
		if !errors.Is(err, domain.ErrAssetNotFound) {
			t.Errorf("err = %v, want ErrAssetNotFound", err)
		}
	})
}

func TestAcceptBid(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*ListingService, *fakeAssetStore, domain.Listing) {
		t.Helper()
		svc, _, assets := newTestListingService(testAsset("asset-1", addrAlice, 1))
		bid, err := svc.CreateBid(ctx, CreateBidRequest{AssetID: "asset-1", BuyerAddress: addrBob, Price: "500"})
		if err != nil {
			t.Fatalf("CreateBid: %v", err)
		}
		return svc, assets, bid
	}

	t.Run("owner accepts and ownership transfers", func(t *testing.T) {
		svc, assets, bid := setup(t)

		completed, err := svc.AcceptBid(ctx, "asset-1", bid.ID, addrAlice)
		if err != nil {
			t.Fatalf("AcceptBid: %v", err)
		}
		if !completed.IsCompleted() {
			t.Errorf("status = %s, want COMPLETED", completed.Status)
		}
		asset, _ := assets.GetByID(ctx, "asset-1")
		if asset.OwnerAddress != domain.NormalizeAddress(addrBob) {
			t.Errorf("asset owner = %q, want buyer", asset.OwnerAddress)
		}
	})

	t.Run("only the seller may accept", func(t *testing.T) {
		svc, _, bid := setup(t)

		if _, err := svc.AcceptBid(ctx, "asset-1", bid.ID, addrCarol); !errors.Is(err, domain.ErrNotAuthorized) {
			t.Errorf("err = %v, want ErrNotAuthorized", err)
		}
	})

	t.Run("wrong asset id", func(t *testing.T) {
		svc, _, bid := setup(t)

		if _, err := svc.AcceptBid(ctx, "asset-2", bid.ID, addrAlice); !errors.Is(err, domain.ErrWrongAsset) {
			t.Errorf("err = %v, want ErrWrongAsset", err)
		}
	})

	t.Run("unknown listing", func(t *testing.T) {
		svc, _, _ := setup(t)

		if _, err := svc.AcceptBid(ctx, "asset-1", "nope", addrAlice); !errors.Is(err, domain.ErrListingNotFound) {
			t.Errorf("err = %v, want ErrListingNotFound", err)
		}
	})

	t.Run("sale listing id is not a bid", func(t *testing.T) {
		svc, _, _ := newTestListingService(testAsset("asset-1", addrAlice, 1))
		sale, err := svc.CreateSaleListing(ctx, CreateSaleRequest{AssetID: "asset-1", SellerAddress: addrAlice, Price: "100"})
		if err != nil {
			t.Fatalf("CreateSaleListing: %v", err)
		}
		if _, err := svc.AcceptBid(ctx, "asset-1", sale.ID, addrAlice); !errors.Is(err, domain.ErrListingNotFound) {
			t.Errorf("err = %v, want ErrListingNotFound", err)
		}
	})

	t.Run("accepted bid cannot be accepted again", func(t *testing.T) {
		svc, _, bid := setup(t)

		if _, err := svc.AcceptBid(ctx, "asset-1", bid.ID, addrAlice); err != nil {
			t.Fatalf("first accept: %v", err)
		}
		if _, err := svc.AcceptBid(ctx, "asset-1", bid.ID, addrAlice); !errors.Is(err, domain.ErrNotAuthorized) {
			t.Errorf("second accept err = %v, want ErrNotAuthorized", err)
		}
	})
}

func TestRejectBid(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestListingService(testAsset("asset-1", addrAlice, 1))
	bid, err := svc.CreateBid(ctx, CreateBidRequest{AssetID: "asset-1", BuyerAddress: addrBob, Price: "500"})
	if err != nil {
		t.Fatalf("CreateBid: %v", err)
	}

	t.Run("seller cannot withdraw the bid", func(t *testing.T) {
		if _, err := svc.RejectBid(ctx, "asset-1", bid.ID, addrAlice); !errors.Is(err, domain.ErrNotAuthorized) {
			t.Errorf("err = %v, want ErrNotAuthorized", err)
		}
	})

	t.Run("bidder withdraws", func(t *testing.T) {
		cancelled, err := svc.RejectBid(ctx, "asset-1", bid.ID, addrBob)
		if err != nil {
			t.Fatalf("RejectBid: %v", err)
		}
		if !cancelled.IsCancelled() {
			t.Errorf("status = %s, want CANCELLED", cancelled.Status)
		}
	})
}

func TestBuyNow(t *testing.T) {
	ctx := context.Background()

	t.Run("completes the first purchasable sale", func(t *testing.T) {
		svc, _, assets := newTestListingService(testAsset("asset-1", addrAlice, 1))
		if _, err := svc.CreateSaleListing(ctx, CreateSaleRequest{AssetID: "asset-1", SellerAddress: addrAlice, Price: "750"}); err != nil {
			t.Fatalf("CreateSaleListing: %v", err)
		}

		completed, err := svc.BuyNow(ctx, "asset-1", addrBob)
		if err != nil {
			t.Fatalf("BuyNow: %v", err)
		}
		if !completed.IsCompleted() {
			t.Errorf("status = %s, want COMPLETED", completed.Status)
		}
		if completed.BuyerAddress != domain.NormalizeAddress(addrBob) {
			t.Errorf("buyer = %q, want %q", completed.BuyerAddress, domain.NormalizeAddress(addrBob))
		}
		asset, _ := assets.GetByID(ctx, "asset-1")
		if asset.OwnerAddress != domain.NormalizeAddress(addrBob) {
			t.Errorf("asset owner = %q, want buyer", asset.OwnerAddress)
		}
	})

	t.Run("no active sale", func(t *testing.T) {
		svc, _, _ := newTestListingService(testAsset("asset-1", addrAlice, 1))

		if _, err := svc.BuyNow(ctx, "asset-1", addrBob); !errors.Is(err, domain.ErrNoSaleAvailable) {
			t.Errorf("err = %v, want ErrNoSaleAvailable", err)
		}
	})

	t.Run("seller cannot buy own listing", func(t *testing.T) {
		svc, _, _ := newTestListingService(testAsset("asset-1", addrAlice, 1))
		if _, err := svc.CreateSaleListing(ctx, CreateSaleRequest{AssetID: "asset-1", SellerAddress: addrAlice, Price: "750"}); err != nil {
			t.Fatalf("CreateSaleListing: %v", err)
		}

		if _, err := svc.BuyNow(ctx, "asset-1", addrAlice); !errors.Is(err, domain.ErrNoSaleAvailable) {
			t.Errorf("err = %v, want ErrNoSaleAvailable", err)
		}
	})

	t.Run("unknown asset", func(t *testing.T) {
		svc, _, _ := newTestListingService()

		if _, err := svc.BuyNow(ctx, "nope", addrBob); !errors.Is(err, domain.ErrAssetNotFound) {
			t.Errorf("err = %v, want ErrAssetNotFound", err)
		}
	})
}

func TestGetListing(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestListingService(testAsset("asset-1", addrAlice, 1))

	sale, err := svc.CreateSaleListing(ctx, CreateSaleRequest{AssetID: "asset-1", SellerAddress: addrAlice, Price: "100"})
	if err != nil {
		t.Fatalf("CreateSaleListing: %v", err)
	}

	got, err := svc.GetListing(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if got.ID != sale.ID {
		t.Errorf("got id %q, want %q", got.ID, sale.ID)
	}

	if _, err := svc.GetListing(ctx, "nope"); !errors.Is(err, domain.ErrListingNotFound) {
		t.Errorf("err = %v, want ErrListingNotFound", err)
	}
}

func TestGetAssetStats(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestListingService(testAsset("asset-1", addrAlice, 1))

	if _, err := svc.CreateSaleListing(ctx, CreateSaleRequest{AssetID: "asset-1", SellerAddress: addrAlice, Price: "300"}); err != nil {
		t.Fatalf("CreateSaleListing: %v", err)
	}
	if _, err := svc.BuyNow(ctx, "asset-1", addrBob); err != nil {
		t.Fatalf("BuyNow: %v", err)
	}

	stats, err := svc.GetAssetStats(ctx, "asset-1", nil)
	if err != nil {
		t.Fatalf("GetAssetStats: %v", err)
	}
	if stats.SalesCount != 1 {
		t.Errorf("sales count = %d, want 1", stats.SalesCount)
	}
	if stats.TotalVolume != "300" {
		t.Errorf("total volume = %s, want 300", stats.TotalVolume)
	}
	if stats.AveragePrice != "300" {
		t.Errorf("average price = %s, want 300", stats.AveragePrice)
	}
}
