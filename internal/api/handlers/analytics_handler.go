package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
)

const (
	defaultZeroResultLimit = 50
	maxZeroResultLimit     = 500
)

// ZeroResultQuerier lists recent searches that matched no concepts
type ZeroResultQuerier interface {
	GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error)
}

// AnalyticsHandler serves search analytics
type AnalyticsHandler struct {
	analytics ZeroResultQuerier
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics ZeroResultQuerier) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// ZeroResultQueriesResponse lists zero-result searches, newest first
type ZeroResultQueriesResponse struct {
	Queries []*entities.SearchEvent `json:"queries"`
	Count   int                     `json:"count"`
}

// GetZeroResultQueries handles GET /api/analytics/zero-result-queries?limit=N
func (h *AnalyticsHandler) GetZeroResultQueries(w http.ResponseWriter, r *http.Request) {
	limit := defaultZeroResultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxZeroResultLimit {
			respondWithError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	events, err := h.analytics.GetZeroResultQueries(r.Context(), limit)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if events == nil {
		events = []*entities.SearchEvent{}
	}

	respondWithJSON(w, http.StatusOK, ZeroResultQueriesResponse{Queries: events, Count: len(events)})
}
