// Package handler contains the HTTP handlers for the marketplace API. The
// handlers are thin bindings: validation of business rules lives in the
// service layer, and handlers only translate between HTTP and services.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/tokenmarket/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps a service error onto an HTTP status and writes it.
// Unknown errors become an opaque 500.
func writeServiceError(w http.ResponseWriter, err error) {
	if status, ok := statusForError(err); ok {
		writeError(w, status, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// statusForError classifies the domain error set.
//
//	not found            -> 404
//	authorization        -> 403
//	uniqueness conflicts -> 409
//	malformed input      -> 400
//	rule violations      -> 422
func statusForError(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrAssetNotFound),
		errors.Is(err, domain.ErrListingNotFound),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, true

	case errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden, true

	case errors.Is(err, domain.ErrAlreadyListed),
		errors.Is(err, domain.ErrDuplicateBid):
		return http.StatusConflict, true

	case errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrBatchTooLarge),
		errors.Is(err, domain.ErrEmptyBatch),
		errors.Is(err, domain.ErrDuplicateAssetIDs),
		errors.Is(err, domain.ErrDuplicateListingIDs):
		return http.StatusBadRequest, true

	case errors.Is(err, domain.ErrZeroBalance),
		errors.Is(err, domain.ErrCannotBidOnOwnAsset),
		errors.Is(err, domain.ErrBidTooLow),
		errors.Is(err, domain.ErrExpirationInPast),
		errors.Is(err, domain.ErrNotActive),
		errors.Is(err, domain.ErrNoSaleAvailable),
		errors.Is(err, domain.ErrWrongAsset),
		errors.Is(err, domain.ErrNoValidItems),
		errors.Is(err, domain.ErrNoSuccessfulUpdates),
		errors.Is(err, domain.ErrNoFieldsToUpdate):
		return http.StatusUnprocessableEntity, true

	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, true
	}
	return 0, false
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
