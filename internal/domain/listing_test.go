package domain

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func mustSale(t *testing.T, price int64) Listing {
	t.Helper()
	l, err := NewSaleListing("lst-1", "asset-1", "0xSellerAA", big.NewInt(price), "", nil)
	if err != nil {
		t.Fatalf("NewSaleListing: %v", err)
	}
	return l
}

func mustBid(t *testing.T, price int64) Listing {
	t.Helper()
	l, err := NewBid("lst-2", "asset-1", "0xSellerAA", "0xBuyerBB", big.NewInt(price), "", nil)
	if err != nil {
		t.Fatalf("NewBid: %v", err)
	}
	return l
}

func TestNewSaleListing(t *testing.T) {
	t.Run("normalizes addresses to lowercase", func(t *testing.T) {
		l := mustSale(t, 1000)
		if l.SellerAddress != "0xselleraa" {
			t.Errorf("SellerAddress = %q, want lowercase", l.SellerAddress)
		}
	})

	t.Run("rejects zero price", func(t *testing.T) {
		_, err := NewSaleListing("id", "asset", "0xabc", big.NewInt(0), "", nil)
		if !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("err = %v, want ErrInvalidPrice", err)
		}
	})

	t.Run("rejects negative price", func(t *testing.T) {
		_, err := NewSaleListing("id", "asset", "0xabc", big.NewInt(-5), "", nil)
		if !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("err = %v, want ErrInvalidPrice", err)
		}
	})

	t.Run("rejects nil price", func(t *testing.T) {
		_, err := NewSaleListing("id", "asset", "0xabc", nil, "", nil)
		if !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("err = %v, want ErrInvalidPrice", err)
		}
	})

	t.Run("sale has no buyer", func(t *testing.T) {
		l := mustSale(t, 1000)
		if l.BuyerAddress != "" {
			t.Errorf("BuyerAddress = %q, want empty", l.BuyerAddress)
		}
		if !l.IsSale() || l.IsBid() {
			t.Error("expected a SALE listing")
		}
	})

	t.Run("starts active", func(t *testing.T) {
		l := mustSale(t, 1000)
		if l.Status != ListingStatusActive || !l.IsActive() {
			t.Errorf("Status = %q, want ACTIVE", l.Status)
		}
	})
}

func TestListing_Expiry(t *testing.T) {
	now := time.Now().UTC()

	t.Run("no deadline never expires", func(t *testing.T) {
		l := mustSale(t, 1000)
		if l.IsExpiredAt(now.Add(1000 * time.Hour)) {
			t.Error("listing without deadline should never expire")
		}
	})

	t.Run("past deadline is expired and inactive", func(t *testing.T) {
		past := now.Add(-time.Minute)
		l, err := NewSaleListing("id", "asset", "0xabc", big.NewInt(1), "", &past)
		if err != nil {
			t.Fatalf("NewSaleListing: %v", err)
		}
		if !l.IsExpiredAt(now) {
			t.Error("expected expired")
		}
		if l.IsActiveAt(now) {
			t.Error("expired listing must not be active")
		}
		// Status stays ACTIVE until an explicit Expire transition.
		if l.Status != ListingStatusActive {
			t.Errorf("Status = %q, want ACTIVE", l.Status)
		}
	})
}

func TestListing_Transitions(t *testing.T) {
	t.Run("cancel is one-way", func(t *testing.T) {
		l := mustSale(t, 1000)
		cancelled, err := l.Cancel()
		if err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if cancelled.Status != ListingStatusCancelled || cancelled.IsActive() {
			t.Errorf("Status = %q, want CANCELLED", cancelled.Status)
		}
		// Original value is untouched.
		if l.Status != ListingStatusActive {
			t.Errorf("original mutated: Status = %q", l.Status)
		}
		// A second cancel on the terminal value is rejected.
		if _, err := cancelled.Cancel(); !errors.Is(err, ErrNotActive) {
			t.Errorf("second Cancel err = %v, want ErrNotActive", err)
		}
	})

	t.Run("complete from active", func(t *testing.T) {
		l := mustBid(t, 500)
		done, err := l.Complete()
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if !done.IsCompleted() {
			t.Errorf("Status = %q, want COMPLETED", done.Status)
		}
	})

	t.Run("no transition out of terminal states", func(t *testing.T) {
		l := mustSale(t, 1000)
		done, _ := l.Complete()
		if _, err := done.Cancel(); !errors.Is(err, ErrNotActive) {
			t.Errorf("Cancel after Complete err = %v, want ErrNotActive", err)
		}
		if _, err := done.Expire(); !errors.Is(err, ErrNotActive) {
			t.Errorf("Expire after Complete err = %v, want ErrNotActive", err)
		}
	})

	t.Run("expire from active", func(t *testing.T) {
		l := mustSale(t, 1000)
		expired, err := l.Expire()
		if err != nil {
			t.Fatalf("Expire: %v", err)
		}
		if expired.Status != ListingStatusExpired {
			t.Errorf("Status = %q, want EXPIRED", expired.Status)
		}
	})
}

func TestListing_WithPrice(t *testing.T) {
	t.Run("updates price on active listing", func(t *testing.T) {
		l := mustSale(t, 1000)
		updated, err := l.WithPrice(big.NewInt(2000))
		if err != nil {
			t.Fatalf("WithPrice: %v", err)
		}
		if updated.Price.Int64() != 2000 {
			t.Errorf("Price = %s, want 2000", updated.Price)
		}
		if l.Price.Int64() != 1000 {
			t.Errorf("original price mutated: %s", l.Price)
		}
	})

	t.Run("fails on non-active without mutating", func(t *testing.T) {
		l := mustSale(t, 1000)
		cancelled, _ := l.Cancel()
		before := cancelled.UpdatedAt
		if _, err := cancelled.WithPrice(big.NewInt(2000)); !errors.Is(err, ErrNotActive) {
			t.Errorf("err = %v, want ErrNotActive", err)
		}
		if cancelled.Price.Int64() != 1000 || !cancelled.UpdatedAt.Equal(before) {
			t.Error("WithPrice on non-active listing must not change anything")
		}
	})

	t.Run("rejects non-positive price", func(t *testing.T) {
		l := mustSale(t, 1000)
		if _, err := l.WithPrice(big.NewInt(0)); !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("err = %v, want ErrInvalidPrice", err)
		}
	})
}

func TestListing_Authorization(t *testing.T) {
	t.Run("sale accepted by anyone but the seller", func(t *testing.T) {
		l := mustSale(t, 1000)
		if l.CanBeAcceptedBy("0xSellerAA") {
			t.Error("seller must not accept own sale")
		}
		if !l.CanBeAcceptedBy("0xSomeoneElse") {
			t.Error("third party should be able to accept a sale")
		}
	})

	t.Run("bid accepted only by the seller", func(t *testing.T) {
		l := mustBid(t, 500)
		if !l.CanBeAcceptedBy("0xSellerAA") {
			t.Error("seller should accept a bid")
		}
		if l.CanBeAcceptedBy("0xBuyerBB") {
			t.Error("buyer must not accept their own bid")
		}
	})

	t.Run("address comparison is case-insensitive", func(t *testing.T) {
		l := mustBid(t, 500)
		if l.CanBeAcceptedBy("0xSELLERAA") != l.CanBeAcceptedBy("0xselleraa") {
			t.Error("CanBeAcceptedBy must ignore address case")
		}
		if !l.CanBeModifiedBy("0xBUYERBB") {
			t.Error("CanBeModifiedBy must ignore address case")
		}
	})

	t.Run("inactive listing cannot be accepted", func(t *testing.T) {
		l := mustSale(t, 1000)
		cancelled, _ := l.Cancel()
		if cancelled.CanBeAcceptedBy("0xSomeoneElse") {
			t.Error("cancelled listing must not be acceptable")
		}
	})

	t.Run("modification rights", func(t *testing.T) {
		sale := mustSale(t, 1000)
		if !sale.CanBeModifiedBy("0xselleraa") || sale.CanBeModifiedBy("0xbuyerbb") {
			t.Error("only the seller modifies a sale")
		}
		bid := mustBid(t, 500)
		if !bid.CanBeModifiedBy("0xbuyerbb") || bid.CanBeModifiedBy("0xselleraa") {
			t.Error("only the buyer modifies a bid")
		}
	})
}

func TestListingPatch(t *testing.T) {
	t.Run("empty patch is rejected", func(t *testing.T) {
		l := mustSale(t, 1000)
		if _, err := (ListingPatch{}).Apply(l); !errors.Is(err, ErrNoFieldsToUpdate) {
			t.Errorf("err = %v, want ErrNoFieldsToUpdate", err)
		}
	})

	t.Run("applies both fields", func(t *testing.T) {
		l := mustSale(t, 1000)
		exp := time.Now().UTC().Add(time.Hour)
		out, err := ListingPatch{Price: big.NewInt(1234), ExpiresAt: &exp}.Apply(l)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if out.Price.Int64() != 1234 {
			t.Errorf("Price = %s, want 1234", out.Price)
		}
		if out.ExpiresAt == nil || !out.ExpiresAt.Equal(exp) {
			t.Errorf("ExpiresAt = %v, want %v", out.ExpiresAt, exp)
		}
	})

	t.Run("invalid price rejects the whole patch", func(t *testing.T) {
		l := mustSale(t, 1000)
		if _, err := (ListingPatch{Price: big.NewInt(-1)}).Apply(l); !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("err = %v, want ErrInvalidPrice", err)
		}
	})
}

func TestListing_JSONRoundTrip(t *testing.T) {
	l := mustBid(t, 500)
	big18, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	l.Price = big18

	data, err := l.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var out Listing
	if err := out.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if out.Price.Cmp(big18) != 0 {
		t.Errorf("Price = %s, want %s", out.Price, big18)
	}
	if out.ID != l.ID || out.Type != l.Type || out.BuyerAddress != l.BuyerAddress {
		t.Errorf("round trip mismatch: %+v vs %+v", out, l)
	}
}
