package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tokenmarket/internal/domain"
	"github.com/alanyoungcy/tokenmarket/internal/service"
)

// ListingService defines the methods that the listing handler requires from
// the service layer.
type ListingService interface {
	CreateSaleListing(ctx context.Context, req service.CreateSaleRequest) (domain.Listing, error)
	CreateBid(ctx context.Context, req service.CreateBidRequest) (domain.Listing, error)
	AcceptBid(ctx context.Context, assetID, listingID, actingAddress string) (domain.Listing, error)
	RejectBid(ctx context.Context, assetID, listingID, actingAddress string) (domain.Listing, error)
	GetListing(ctx context.Context, id string) (domain.Listing, error)
}

// ListingHandler serves the single-item listing endpoints.
type ListingHandler struct {
	listings ListingService
	logger   *slog.Logger
}

// NewListingHandler creates a ListingHandler with the given service and logger.
func NewListingHandler(listings ListingService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		listings: listings,
		logger:   logger,
	}
}

// CreateSale creates a new sale listing from a JSON body.
// POST /api/listings
func (h *ListingHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AssetID == "" || req.SellerAddress == "" || req.Price == "" {
		writeError(w, http.StatusBadRequest, "asset_id, seller_address and price are required")
		return
	}
	if !domain.ValidAddress(req.SellerAddress) {
		writeError(w, http.StatusBadRequest, "seller_address is not a valid address")
		return
	}

	listing, err := h.listings.CreateSaleListing(r.Context(), req)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: create sale failed",
			slog.String("asset_id", req.AssetID),
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, listing)
}

// CreateBid places a new bid from a JSON body.
// POST /api/bids
func (h *ListingHandler) CreateBid(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AssetID == "" || req.BuyerAddress == "" || req.Price == "" {
		writeError(w, http.StatusBadRequest, "asset_id, buyer_address and price are required")
		return
	}
	if !domain.ValidAddress(req.BuyerAddress) {
		writeError(w, http.StatusBadRequest, "buyer_address is not a valid address")
		return
	}

	bid, err := h.listings.CreateBid(r.Context(), req)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: create bid failed",
			slog.String("asset_id", req.AssetID),
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bid)
}

// bidActionRequest is the body for accept and reject calls.
type bidActionRequest struct {
	AssetID string `json:"asset_id"`
	Address string `json:"address"`
}

func (h *ListingHandler) decodeBidAction(w http.ResponseWriter, r *http.Request) (bidActionRequest, string, bool) {
	listingID := pathParam(r, "id")
	if listingID == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return bidActionRequest{}, "", false
	}

	var req bidActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return bidActionRequest{}, "", false
	}
	if req.AssetID == "" || req.Address == "" {
		writeError(w, http.StatusBadRequest, "asset_id and address are required")
		return bidActionRequest{}, "", false
	}
	return req, listingID, true
}

// AcceptBid completes a bid on behalf of the asset owner.
// POST /api/listings/{id}/accept
func (h *ListingHandler) AcceptBid(w http.ResponseWriter, r *http.Request) {
	req, listingID, ok := h.decodeBidAction(w, r)
	if !ok {
		return
	}

	completed, err := h.listings.AcceptBid(r.Context(), req.AssetID, listingID, req.Address)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: accept bid failed",
			slog.String("listing_id", listingID),
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, completed)
}

// RejectBid withdraws a bid on behalf of the bidder.
// POST /api/listings/{id}/reject
func (h *ListingHandler) RejectBid(w http.ResponseWriter, r *http.Request) {
	req, listingID, ok := h.decodeBidAction(w, r)
	if !ok {
		return
	}

	cancelled, err := h.listings.RejectBid(r.Context(), req.AssetID, listingID, req.Address)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: reject bid failed",
			slog.String("listing_id", listingID),
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cancelled)
}

// GetListing returns a single listing by id.
// GET /api/listings/{id}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	listing, err := h.listings.GetListing(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listing)
}
