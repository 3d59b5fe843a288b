package domain

import "time"

// MaxBatchSize is the hard upper bound on items per batch call.
const MaxBatchSize = 100

// BatchItemError records why a single batch item was rejected. Exactly one of
// AssetID / ListingID is set depending on the operation.
type BatchItemError struct {
	AssetID   string `json:"asset_id,omitempty"`
	ListingID string `json:"listing_id,omitempty"`
	Error     string `json:"error"`
}

// BatchCreateItem is one entry of a batch create request. The seller address
// is supplied once for the whole batch.
type BatchCreateItem struct {
	AssetID          string     `json:"asset_id"`
	Price            string     `json:"price"`
	CurrencyContract string     `json:"currency_contract,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// BatchCreateResult reports the per-item outcome of a batch create. The
// created and errors slices preserve the input order of their items, and
// SuccessCount+FailureCount always equals the number of submitted items.
type BatchCreateResult struct {
	SuccessCount int              `json:"success_count"`
	FailureCount int              `json:"failure_count"`
	Created      []Listing        `json:"created"`
	Errors       []BatchItemError `json:"errors"`
}

// BatchCancelResult reports the per-item outcome of a batch cancel.
type BatchCancelResult struct {
	SuccessCount int              `json:"success_count"`
	FailureCount int              `json:"failure_count"`
	CancelledIDs []string         `json:"cancelled_ids"`
	Errors       []BatchItemError `json:"errors"`
}

// BatchUpdateItem is one entry of a batch update request. Price and ExpiresAt
// are optional; at least one must be present for the item to be valid.
type BatchUpdateItem struct {
	ListingID string     `json:"listing_id"`
	Price     *string    `json:"price,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// BatchUpdateResult reports the per-item outcome of a batch update.
type BatchUpdateResult struct {
	SuccessCount int              `json:"success_count"`
	FailureCount int              `json:"failure_count"`
	Updated      []Listing        `json:"updated"`
	Errors       []BatchItemError `json:"errors"`
}
