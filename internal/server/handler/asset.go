package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tokenmarket/internal/domain"
)

// AssetService defines the methods that the asset handler requires from the
// service layer.
type AssetService interface {
	BuyNow(ctx context.Context, assetID, buyerAddress string) (domain.Listing, error)
	ListByAsset(ctx context.Context, assetID string, opts domain.ListOpts) ([]domain.Listing, error)
	GetAssetStats(ctx context.Context, assetID string, stats domain.StatsCache) (domain.AssetStats, error)
}

// AssetHandler serves the asset-scoped endpoints.
type AssetHandler struct {
	assets AssetService
	stats  domain.StatsCache
	logger *slog.Logger
}

// NewAssetHandler creates an AssetHandler. The stats cache may be nil, in
// which case stats are computed from the store on every request.
func NewAssetHandler(assets AssetService, stats domain.StatsCache, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{
		assets: assets,
		stats:  stats,
		logger: logger,
	}
}

// buyNowRequest is the body for buy-now calls.
type buyNowRequest struct {
	BuyerAddress string `json:"buyer_address"`
}

// BuyNow purchases the first available sale listing on an asset.
// POST /api/assets/{id}/buy
func (h *AssetHandler) BuyNow(w http.ResponseWriter, r *http.Request) {
	assetID := pathParam(r, "id")
	if assetID == "" {
		writeError(w, http.StatusBadRequest, "missing asset id")
		return
	}

	var req buyNowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.BuyerAddress == "" {
		writeError(w, http.StatusBadRequest, "buyer_address is required")
		return
	}
	if !domain.ValidAddress(req.BuyerAddress) {
		writeError(w, http.StatusBadRequest, "buyer_address is not a valid address")
		return
	}

	completed, err := h.assets.BuyNow(r.Context(), assetID, req.BuyerAddress)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: buy now failed",
			slog.String("asset_id", assetID),
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, completed)
}

// listListingsResponse wraps the asset listings response.
type listListingsResponse struct {
	Listings []domain.Listing `json:"listings"`
}

// ListListings returns the listings on an asset with pagination.
// GET /api/assets/{id}/listings?limit=50&offset=0
func (h *AssetHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	assetID := pathParam(r, "id")
	if assetID == "" {
		writeError(w, http.StatusBadRequest, "missing asset id")
		return
	}

	listings, err := h.assets.ListByAsset(r.Context(), assetID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list listings failed",
			slog.String("asset_id", assetID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}

	if listings == nil {
		listings = []domain.Listing{}
	}

	writeJSON(w, http.StatusOK, listListingsResponse{Listings: listings})
}

// GetStats returns aggregate sale statistics for an asset.
// GET /api/assets/{id}/stats
func (h *AssetHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	assetID := pathParam(r, "id")
	if assetID == "" {
		writeError(w, http.StatusBadRequest, "missing asset id")
		return
	}

	stats, err := h.assets.GetAssetStats(r.Context(), assetID, h.stats)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: asset stats failed",
			slog.String("asset_id", assetID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
