package domain

import "time"

// Asset is the on-chain asset a listing refers to. The marketplace does not
// own assets; it only reads ownership and balance when validating listings
// and updates them after a completed transfer.
type Asset struct {
	ID           string    `json:"id"`
	ContractAddr string    `json:"contract_addr"`
	TokenID      string    `json:"token_id"`
	OwnerAddress string    `json:"owner_address"`
	Balance      int64     `json:"balance"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OwnedBy compares the asset owner against addr case-insensitively.
func (a Asset) OwnedBy(addr string) bool {
	return SameAddress(a.OwnerAddress, addr)
}

// AssetStats aggregates completed-sale figures for one asset. Prices are
// decimal strings in wei-equivalent units.
type AssetStats struct {
	AssetID      string `json:"asset_id"`
	TotalVolume  string `json:"total_volume"`
	AveragePrice string `json:"average_price"`
	SalesCount   int64  `json:"sales_count"`
}
