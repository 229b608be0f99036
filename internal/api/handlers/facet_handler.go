package handlers

import (
	"net/http"
	"strconv"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	"github.com/this-th/snomed-endoproc-lookup/internal/query/ecl"
)

// FacetHandler serves the facet catalog and compiled query previews
type FacetHandler struct {
	searchEndpoint string
	pageSize       int
}

// NewFacetHandler creates a new facet handler. searchEndpoint is the concept
// search URL used for previews.
func NewFacetHandler(searchEndpoint string, pageSize int) *FacetHandler {
	return &FacetHandler{searchEndpoint: searchEndpoint, pageSize: pageSize}
}

// FacetsResponse lists the options of both facets in display order
type FacetsResponse struct {
	OrganSystems     []ecl.FacetEntry `json:"organSystems"`
	ProcedureMethods []ecl.FacetEntry `json:"procedureMethods"`
}

// CompiledQueryResponse is the compiled form of a set of search params
type CompiledQueryResponse struct {
	Params  entities.SearchParams `json:"params"`
	ECL     string                `json:"ecl"`
	Clauses []string              `json:"clauses"`
	URL     string                `json:"url"`
}

// ListFacets handles GET /api/facets
func (h *FacetHandler) ListFacets(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, FacetsResponse{
		OrganSystems:     ecl.Entries(ecl.FacetOrganSystem),
		ProcedureMethods: ecl.Entries(ecl.FacetProcedureMethod),
	})
}

// CompileQuery handles GET /api/ecl?term=&organSystem=&procedureMethod=&offset=&limit=
func (h *FacetHandler) CompileQuery(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	offset, err := intParam(query.Get("offset"), 0)
	if err != nil || offset < 0 {
		respondWithError(w, http.StatusBadRequest, "invalid offset parameter")
		return
	}
	limit, err := intParam(query.Get("limit"), h.pageSize)
	if err != nil || limit <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid limit parameter")
		return
	}

	params := entities.SearchParams{
		Term:            query.Get("term"),
		OrganSystem:     query.Get("organSystem"),
		ProcedureMethod: query.Get("procedureMethod"),
	}
	expr := ecl.Compile(params)

	respondWithJSON(w, http.StatusOK, CompiledQueryResponse{
		Params:  params,
		ECL:     expr.String(),
		Clauses: expr.Clauses(),
		URL:     ecl.SearchURL(h.searchEndpoint, params, offset, limit),
	})
}

func intParam(raw string, defaultValue int) (int, error) {
	if raw == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(raw)
}
