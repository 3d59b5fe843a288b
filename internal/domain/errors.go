package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAssetNotFound   = errors.New("asset not found")
	ErrListingNotFound = errors.New("listing not found")

	ErrNotOwner            = errors.New("only the asset owner can list it for sale")
	ErrZeroBalance         = errors.New("asset balance is zero")
	ErrInvalidPrice        = errors.New("price must be a positive integer")
	ErrAlreadyListed       = errors.New("asset already has an active sale listing")
	ErrCannotBidOnOwnAsset = errors.New("cannot bid on your own asset")
	ErrDuplicateBid        = errors.New("buyer already has an active bid on this asset")
	ErrBidTooLow           = errors.New("bid must be higher than the current best bid")
	ErrExpirationInPast    = errors.New("expiration must be in the future")
	ErrNotActive           = errors.New("listing is not active")
	ErrNotAuthorized       = errors.New("address is not allowed to perform this action")
	ErrNoSaleAvailable     = errors.New("no active sale listing available")
	ErrWrongAsset          = errors.New("listing does not belong to this asset")

	ErrBatchTooLarge       = errors.New("batch exceeds the maximum of 100 items")
	ErrEmptyBatch          = errors.New("batch contains no items")
	ErrDuplicateAssetIDs   = errors.New("duplicate asset ids in batch")
	ErrDuplicateListingIDs = errors.New("duplicate listing ids in batch")
	ErrNoValidItems        = errors.New("no valid items in batch")
	ErrNoSuccessfulUpdates = errors.New("no listings were updated")
	ErrNoFieldsToUpdate    = errors.New("no valid fields to update")

	ErrRateLimited = errors.New("rate limited")
	ErrLockHeld    = errors.New("lock already held")
)
