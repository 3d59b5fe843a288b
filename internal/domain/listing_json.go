package domain

import (
	"encoding/json"
	"math/big"
	"time"
)

// listingJSON is the wire/cache representation of a Listing. The price is a
// decimal string so arbitrary-precision values survive the round trip.
type listingJSON struct {
	ID               string        `json:"id"`
	AssetID          string        `json:"asset_id"`
	Type             ListingType   `json:"listing_type"`
	Price            string        `json:"price"`
	CurrencyContract string        `json:"currency_contract,omitempty"`
	SellerAddress    string        `json:"seller_address"`
	BuyerAddress     string        `json:"buyer_address,omitempty"`
	Status           ListingStatus `json:"status"`
	ExpiresAt        *time.Time    `json:"expires_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// MarshalJSON implements json.Marshaler.
func (l Listing) MarshalJSON() ([]byte, error) {
	price := "0"
	if l.Price != nil {
		price = l.Price.String()
	}
	return json.Marshal(listingJSON{
		ID:               l.ID,
		AssetID:          l.AssetID,
		Type:             l.Type,
		Price:            price,
		CurrencyContract: l.CurrencyContract,
		SellerAddress:    l.SellerAddress,
		BuyerAddress:     l.BuyerAddress,
		Status:           l.Status,
		ExpiresAt:        l.ExpiresAt,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Listing) UnmarshalJSON(data []byte) error {
	var raw listingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	price := new(big.Int)
	if raw.Price != "" {
		if _, ok := price.SetString(raw.Price, 10); !ok {
			return ErrInvalidPrice
		}
	}

	*l = Listing{
		ID:               raw.ID,
		AssetID:          raw.AssetID,
		Type:             raw.Type,
		Price:            price,
		CurrencyContract: raw.CurrencyContract,
		SellerAddress:    raw.SellerAddress,
		BuyerAddress:     raw.BuyerAddress,
		Status:           raw.Status,
		ExpiresAt:        raw.ExpiresAt,
		CreatedAt:        raw.CreatedAt,
		UpdatedAt:        raw.UpdatedAt,
	}
	return nil
}
