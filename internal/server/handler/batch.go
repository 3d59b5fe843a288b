package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tokenmarket/internal/domain"
)

// BatchService defines the methods that the batch handler requires from the
// service layer.
type BatchService interface {
	CreateBatchListings(ctx context.Context, items []domain.BatchCreateItem, sellerAddress string) (domain.BatchCreateResult, error)
	CancelBatchListings(ctx context.Context, listingIDs []string, sellerAddress string) (domain.BatchCancelResult, error)
	UpdateBatchListings(ctx context.Context, items []domain.BatchUpdateItem, sellerAddress string) (domain.BatchUpdateResult, error)
}

// BatchHandler serves the bounded batch endpoints. A batch call that commits
// any subset returns 200 with per-item outcomes; only structural failures
// (size, duplicates, nothing valid) produce an error status.
type BatchHandler struct {
	batch  BatchService
	logger *slog.Logger
}

// NewBatchHandler creates a BatchHandler with the given service and logger.
func NewBatchHandler(batch BatchService, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{
		batch:  batch,
		logger: logger,
	}
}

// batchCreateRequest is the body for batch listing creation.
type batchCreateRequest struct {
	SellerAddress string                   `json:"seller_address"`
	Items         []domain.BatchCreateItem `json:"items"`
}

// CreateBatch creates up to 100 sale listings in one call.
// POST /api/listings/batch
func (h *BatchHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !validSeller(w, req.SellerAddress) {
		return
	}

	result, err := h.batch.CreateBatchListings(r.Context(), req.Items, req.SellerAddress)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: batch create failed",
			slog.Int("items", len(req.Items)),
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// batchCancelRequest is the body for batch cancellation.
type batchCancelRequest struct {
	SellerAddress string   `json:"seller_address"`
	ListingIDs    []string `json:"listing_ids"`
}

// CancelBatch cancels up to 100 listings in one call.
// POST /api/listings/batch/cancel
func (h *BatchHandler) CancelBatch(w http.ResponseWriter, r *http.Request) {
	var req batchCancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !validSeller(w, req.SellerAddress) {
		return
	}

	result, err := h.batch.CancelBatchListings(r.Context(), req.ListingIDs, req.SellerAddress)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: batch cancel failed",
			slog.Int("items", len(req.ListingIDs)),
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// batchUpdateRequest is the body for batch updates.
type batchUpdateRequest struct {
	SellerAddress string                   `json:"seller_address"`
	Items         []domain.BatchUpdateItem `json:"items"`
}

// UpdateBatch applies price/expiry patches to up to 100 listings in one call.
// POST /api/listings/batch/update
func (h *BatchHandler) UpdateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !validSeller(w, req.SellerAddress) {
		return
	}

	result, err := h.batch.UpdateBatchListings(r.Context(), req.Items, req.SellerAddress)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: batch update failed",
			slog.Int("items", len(req.Items)),
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// validSeller writes a 400 and returns false when the seller address is
// missing or malformed.
func validSeller(w http.ResponseWriter, addr string) bool {
	if addr == "" {
		writeError(w, http.StatusBadRequest, "seller_address is required")
		return false
	}
	if !domain.ValidAddress(addr) {
		writeError(w, http.StatusBadRequest, "seller_address is not a valid address")
		return false
	}
	return true
}
