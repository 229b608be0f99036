package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/this-th/snomed-endoproc-lookup/internal/api/handlers"
	"github.com/this-th/snomed-endoproc-lookup/internal/infrastructure/clients/snowstorm"
	"github.com/this-th/snomed-endoproc-lookup/internal/query/ecl"
	apperrors "github.com/this-th/snomed-endoproc-lookup/pkg/errors"
)

const (
	testSearchEndpoint  = "https://snowstorm.test/MAIN/concepts"
	testConceptEndpoint = "https://snowstorm.test/browser/MAIN/2025-04-01/concepts/"
)

type MockConceptFetcher struct {
	mock.Mock
}

func (m *MockConceptFetcher) SearchEndpoint() string {
	return testSearchEndpoint
}

func (m *MockConceptFetcher) ConceptEndpoint(conceptID string) string {
	return testConceptEndpoint + conceptID
}

func (m *MockConceptFetcher) Fetch(ctx context.Context, operation, endpoint string) (*snowstorm.Response, error) {
	args := m.Called(ctx, operation, endpoint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snowstorm.Response), args.Error(1)
}

func TestProxyHandler_SearchConcepts_ReencodesECL(t *testing.T) {
	fetcher := new(MockConceptFetcher)
	handler := handlers.NewProxyHandler(fetcher)

	expr := "<< 71388002 AND (<< 71388002: << 363704007 = << 371398005)"
	var target string
	fetcher.On("Fetch", mock.Anything, "search", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { target = args.String(2) }).
		Return(&snowstorm.Response{StatusCode: 200, ContentType: "application/json", Body: []byte(`{"items":[],"total":0}`)}, nil)

	// Spaces arrive as '+', as a browser form would send them.
	req := httptest.NewRequest(http.MethodGet, "/api/concepts?term=scope&offset=20&limit=20&ecl="+strings.ReplaceAll(expr, " ", "+"), nil)
	w := httptest.NewRecorder()
	handler.SearchConcepts(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[],"total":0}`, w.Body.String())

	assert.True(t, strings.HasPrefix(target, testSearchEndpoint+"?"))
	assert.Contains(t, target, "activeFilter=true")
	assert.Contains(t, target, "includeLeafFlag=false")
	assert.Contains(t, target, "form=inferred")
	assert.Contains(t, target, "term=scope")
	assert.True(t, strings.HasSuffix(target, "&ecl="+ecl.EncodeComponent(expr)))
	assert.NotContains(t, target, "+")
	fetcher.AssertExpectations(t)
}

func TestProxyHandler_SearchConcepts_KeepsExplicitFlags(t *testing.T) {
	fetcher := new(MockConceptFetcher)
	handler := handlers.NewProxyHandler(fetcher)

	fetcher.On("Fetch", mock.Anything, "search", mock.MatchedBy(func(target string) bool {
		return strings.Contains(target, "activeFilter=false") && !strings.Contains(target, "activeFilter=true")
	})).Return(&snowstorm.Response{StatusCode: 200, Body: []byte(`{}`)}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/concepts?activeFilter=false", nil)
	w := httptest.NewRecorder()
	handler.SearchConcepts(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	fetcher.AssertExpectations(t)
}

func TestProxyHandler_RelaysUpstreamError(t *testing.T) {
	fetcher := new(MockConceptFetcher)
	handler := handlers.NewProxyHandler(fetcher)

	body := `{"error":"Bad ECL","message":"syntax"}`
	fetcher.On("Fetch", mock.Anything, "search", mock.Anything).
		Return(&snowstorm.Response{StatusCode: 500, ContentType: "application/json", Body: []byte(body)}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/concepts?ecl=x", nil)
	w := httptest.NewRecorder()
	handler.SearchConcepts(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "API error: 500", response["error"])
	assert.Equal(t, body, response["message"])
}

func TestProxyHandler_UpstreamUnreachable(t *testing.T) {
	fetcher := new(MockConceptFetcher)
	handler := handlers.NewProxyHandler(fetcher)

	fetcher.On("Fetch", mock.Anything, "parents", testConceptEndpoint+"446745002/parents?form=inferred").
		Return(nil, apperrors.NewTransportError("connection refused", nil))

	req := httptest.NewRequest(http.MethodGet, "/api/concepts/446745002/parents", nil)
	req.SetPathValue("id", "446745002")
	w := httptest.NewRecorder()
	handler.GetParents(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Failed to fetch parent concepts", response["error"])
	fetcher.AssertExpectations(t)
}

func TestProxyHandler_ConceptRoutes(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		target    string
		call      func(h *handlers.ProxyHandler, w http.ResponseWriter, r *http.Request)
	}{
		{"detail", "detail", testConceptEndpoint + "446745002?descendantCountForm=inferred", (*handlers.ProxyHandler).GetConcept},
		{"parents", "parents", testConceptEndpoint + "446745002/parents?form=inferred", (*handlers.ProxyHandler).GetParents},
		{"children", "children", testConceptEndpoint + "446745002/children?form=inferred", (*handlers.ProxyHandler).GetChildren},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := new(MockConceptFetcher)
			handler := handlers.NewProxyHandler(fetcher)
			fetcher.On("Fetch", mock.Anything, tt.operation, tt.target).
				Return(&snowstorm.Response{StatusCode: 200, ContentType: "application/json", Body: []byte(`[]`)}, nil)

			req := httptest.NewRequest(http.MethodGet, "/api/concepts/446745002", nil)
			req.SetPathValue("id", "446745002")
			w := httptest.NewRecorder()
			tt.call(handler, w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "[]", w.Body.String())
			fetcher.AssertExpectations(t)
		})
	}
}

func TestProxyHandler_RejectsInvalidConceptID(t *testing.T) {
	fetcher := new(MockConceptFetcher)
	handler := handlers.NewProxyHandler(fetcher)

	req := httptest.NewRequest(http.MethodGet, "/api/concepts/x", nil)
	req.SetPathValue("id", "..%2Fadmin")
	w := httptest.NewRecorder()
	handler.GetConcept(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}
