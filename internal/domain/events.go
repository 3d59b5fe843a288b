package domain

// Pub/sub channels carrying listing lifecycle events as JSON payloads.
const (
	ChannelListings = "listings"
	ChannelSales    = "sales"
)

// StreamSales is the durable stream mirroring ChannelSales. Consumers that
// must not miss a completed sale (settlement, accounting) read from here
// instead of pub/sub.
const StreamSales = "stream:sales"

// ListingEvent is the JSON envelope published on the signal bus whenever a
// listing changes state.
type ListingEvent struct {
	Event     string `json:"event"` // listing_created, listing_completed, listing_cancelled, listings_expired
	ListingID string `json:"listing_id,omitempty"`
	AssetID   string `json:"asset_id,omitempty"`
	Type      string `json:"listing_type,omitempty"`
	Price     string `json:"price,omitempty"`
	Count     int64  `json:"count,omitempty"` // listings_expired only
}
