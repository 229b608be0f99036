package routes

import (
	"net/http"

	"github.com/this-th/snomed-endoproc-lookup/internal/api/handlers"
	"github.com/this-th/snomed-endoproc-lookup/internal/api/middleware"
	"github.com/this-th/snomed-endoproc-lookup/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	proxyHandler     *handlers.ProxyHandler
	facetHandler     *handlers.FacetHandler
	sessionHandler   *handlers.SessionHandler
	analyticsHandler *handlers.AnalyticsHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
	allowedOrigins  []string
}

// NewRouter creates a new router. analyticsHandler and cacheMiddleware are
// nil when Redis is disabled. Search event streams are served by cmd/sse.
func NewRouter(
	proxyHandler *handlers.ProxyHandler,
	facetHandler *handlers.FacetHandler,
	sessionHandler *handlers.SessionHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
	allowedOrigins []string,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		proxyHandler:     proxyHandler,
		facetHandler:     facetHandler,
		sessionHandler:   sessionHandler,
		analyticsHandler: analyticsHandler,
		cacheMiddleware:  cacheMiddleware,
		metrics:          metrics,
		allowedOrigins:   allowedOrigins,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Facet catalog and query preview
	r.mux.HandleFunc("GET /api/facets", r.facetHandler.ListFacets)
	r.mux.HandleFunc("GET /api/ecl", r.facetHandler.CompileQuery)

	// Terminology proxy
	r.mux.HandleFunc("GET /api/concepts", r.proxyHandler.SearchConcepts)
	r.mux.HandleFunc("GET /api/concepts/{id}", r.proxyHandler.GetConcept)
	r.mux.HandleFunc("GET /api/concepts/{id}/parents", r.proxyHandler.GetParents)
	r.mux.HandleFunc("GET /api/concepts/{id}/children", r.proxyHandler.GetChildren)

	// Lookup sessions
	r.mux.HandleFunc("POST /api/sessions", r.sessionHandler.CreateSession)
	r.mux.HandleFunc("GET /api/sessions/{id}", r.sessionHandler.GetSession)
	r.mux.HandleFunc("DELETE /api/sessions/{id}", r.sessionHandler.DeleteSession)
	r.mux.HandleFunc("POST /api/sessions/{id}/search", r.sessionHandler.Search)
	r.mux.HandleFunc("POST /api/sessions/{id}/more", r.sessionHandler.LoadMore)
	r.mux.HandleFunc("DELETE /api/sessions/{id}/more/error", r.sessionHandler.DismissLoadMoreError)
	r.mux.HandleFunc("POST /api/sessions/{id}/reset", r.sessionHandler.Reset)
	r.mux.HandleFunc("PUT /api/sessions/{id}/selection/{conceptId}", r.sessionHandler.Select)
	r.mux.HandleFunc("DELETE /api/sessions/{id}/selection", r.sessionHandler.ClearSelection)

	if r.analyticsHandler != nil {
		r.mux.HandleFunc("GET /api/analytics/zero-result-queries", r.analyticsHandler.GetZeroResultQueries)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
