// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package api

import (
	"net/http"

	"github.com/vigia-app/vigia/internal/auth"
	"github.com/vigia-app/vigia/internal/logging"
	"github.com/vigia-app/vigia/internal/models"
)

// CreateProductRequest is the payload for POST /api/products. The
// listing details come from the marketplace, not the client.
type CreateProductRequest struct {
	ExternalID string `json:"ml_id" validate:"required,min=1,max=64"`
}

// CreateProduct starts tracking a listing: it fetches the current
// listing state from the marketplace and stores it with an initial
// price sample.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req CreateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	item, err := h.market.GetItem(r.Context(), userID, req.ExternalID)
	if err != nil {
		respondMarketplaceError(w, err)
		return
	}

	product, err := h.db.CreateProduct(r.Context(), &models.Product{
		UserID:     userID,
		ExternalID: item.ID,
		Name:       item.Title,
		Price:      item.Price,
		Stock:      item.AvailableQuantity,
		URL:        item.Permalink,
		Thumbnail:  item.Thumbnail,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if _, err := h.db.AppendPriceSample(r.Context(), product.ID, item.Price, item.AvailableQuantity); err != nil {
		// The product exists; history starts next cycle instead.
		logging.Ctx(r.Context()).Warn().Err(err).Int64("product_id", product.ID).
			Msg("Failed to record initial price sample")
	}

	logging.Ctx(r.Context()).Info().
		Int64("product_id", product.ID).
		Str("external_id", product.ExternalID).
		Msg("Product tracking started")
	respondSuccess(w, http.StatusCreated, product)
}

// ListProducts returns the user's tracked products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	products, err := h.db.ListProducts(r.Context(), userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, products)
}

// GetProduct returns one tracked product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	product, err := h.db.GetProduct(r.Context(), id, userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, product)
}

// DeleteProduct stops tracking a product, dropping its history and
// alerts with it.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	if err := h.db.DeleteProduct(r.Context(), id, userID); err != nil {
		respondStoreError(w, err)
		return
	}

	logging.Ctx(r.Context()).Info().Int64("product_id", id).Msg("Product tracking stopped")
	respondSuccess(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// RefreshProduct polls the product immediately instead of waiting for
// the next monitor cycle. The full cycle semantics apply: listing
// update, history sample, alert evaluation.
func (h *Handler) RefreshProduct(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	product, err := h.db.GetProduct(r.Context(), id, userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if err := h.monitor.RefreshProduct(r.Context(), *product); err != nil {
		respondMarketplaceError(w, err)
		return
	}

	refreshed, err := h.db.GetProduct(r.Context(), id, userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, refreshed)
}

// ListHistory returns the recorded price samples for a product.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	limit := getIntParam(r, "limit", 0)
	samples, err := h.db.ListHistory(r.Context(), id, userID, limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, samples)
}

// ListReviews proxies the marketplace reviews for a tracked product.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	product, err := h.db.GetProduct(r.Context(), id, userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	reviews, err := h.market.GetItemReviews(r.Context(), userID, product.ExternalID)
	if err != nil {
		respondMarketplaceError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, reviews)
}

// SearchProducts proxies a marketplace keyword search so the frontend
// can offer listings to track.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "q query parameter is required", nil)
		return
	}

	limit := getIntParam(r, "limit", 20)
	if limit < 1 || limit > 50 {
		limit = 20
	}
	offset := getIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	result, err := h.market.Search(r.Context(), userID, query, limit, offset)
	if err != nil {
		respondMarketplaceError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, result)
}
