// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package models

// Item is a marketplace listing as returned by GET /items/{id}.
type Item struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Price             float64 `json:"price"`
	AvailableQuantity int     `json:"available_quantity"`
	Permalink         string  `json:"permalink"`
	Thumbnail         string  `json:"thumbnail"`
	SellerID          int64   `json:"seller_id"`
}

// SearchResult is the envelope returned by GET /search.
type SearchResult struct {
	Query   string `json:"query"`
	Results []Item `json:"results"`
	Paging  Paging `json:"paging"`
}

// Paging describes result pagination in marketplace search responses.
type Paging struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Review is a single product review from GET /reviews/item/{id}.
type Review struct {
	ID      int64   `json:"id"`
	Rate    float64 `json:"rate"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
}

// ReviewsResult is the envelope returned by the reviews endpoint.
type ReviewsResult struct {
	Reviews       []Review `json:"reviews"`
	RatingAverage float64  `json:"rating_average"`
}
