package handlers

import (
	"net/http"
	"strings"

	"townconnect-backend/internal/services"
)

// FeedHandler serves the home feed and explore search
type FeedHandler struct {
	feedService *services.FeedService
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feedService *services.FeedService) *FeedHandler {
	return &FeedHandler{feedService: feedService}
}

// GetFeed handles GET /api/v1/feed
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	events, err := h.feedService.FeedFor(r.Context(), currentUser(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

// Explore handles GET /api/v1/explore?q=
func (h *FeedHandler) Explore(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	result, err := h.feedService.Explore(r.Context(), query)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
