package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	"github.com/this-th/snomed-endoproc-lookup/internal/infrastructure/clients/snowstorm"
	"github.com/this-th/snomed-endoproc-lookup/internal/infrastructure/observability"
	"github.com/this-th/snomed-endoproc-lookup/internal/query/ecl"
)

// ConceptFetcher issues raw requests against the terminology server
type ConceptFetcher interface {
	SearchEndpoint() string
	ConceptEndpoint(conceptID string) string
	Fetch(ctx context.Context, operation, endpoint string) (*snowstorm.Response, error)
}

// ProxyHandler forwards concept requests to the terminology server and
// relays status and body.
type ProxyHandler struct {
	fetcher ConceptFetcher
}

// NewProxyHandler creates a new proxy handler
func NewProxyHandler(fetcher ConceptFetcher) *ProxyHandler {
	return &ProxyHandler{fetcher: fetcher}
}

// SearchConcepts handles GET /api/concepts
func (h *ProxyHandler) SearchConcepts(w http.ResponseWriter, r *http.Request) {
	target, decodeErr := ecl.ForwardURL(h.fetcher.SearchEndpoint(), r.URL.Query())
	logger := observability.LoggerFromContext(r.Context())
	if decodeErr != nil {
		logger.Warn().Err(decodeErr).Msg("Forwarding undecodable ECL fragment as received")
	}
	logger.Debug().Str("endpoint", target).Msg("Forwarding concept search")

	h.relay(w, r, "search", target, "Failed to fetch concepts")
}

// GetConcept handles GET /api/concepts/{id}
func (h *ProxyHandler) GetConcept(w http.ResponseWriter, r *http.Request) {
	id, ok := conceptIDParam(w, r)
	if !ok {
		return
	}
	target := h.fetcher.ConceptEndpoint(id) + "?descendantCountForm=inferred"
	h.relay(w, r, "detail", target, "Failed to fetch concept details")
}

// GetParents handles GET /api/concepts/{id}/parents
func (h *ProxyHandler) GetParents(w http.ResponseWriter, r *http.Request) {
	id, ok := conceptIDParam(w, r)
	if !ok {
		return
	}
	target := h.fetcher.ConceptEndpoint(id) + "/parents?form=inferred"
	h.relay(w, r, "parents", target, "Failed to fetch parent concepts")
}

// GetChildren handles GET /api/concepts/{id}/children
func (h *ProxyHandler) GetChildren(w http.ResponseWriter, r *http.Request) {
	id, ok := conceptIDParam(w, r)
	if !ok {
		return
	}
	target := h.fetcher.ConceptEndpoint(id) + "/children?form=inferred"
	h.relay(w, r, "children", target, "Failed to fetch child concepts")
}

func (h *ProxyHandler) relay(w http.ResponseWriter, r *http.Request, operation, target, failure string) {
	resp, err := h.fetcher.Fetch(r.Context(), operation, target)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("operation", operation).Msg("Terminology server unreachable")
		respondWithError(w, http.StatusInternalServerError, failure)
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respondWithJSON(w, resp.StatusCode, errorResponse{
			Error:   fmt.Sprintf("API error: %d", resp.StatusCode),
			Message: string(resp.Body),
		})
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func conceptIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !entities.IsValidConceptID(id) {
		respondWithError(w, http.StatusBadRequest, "invalid concept ID")
		return "", false
	}
	return id, true
}
