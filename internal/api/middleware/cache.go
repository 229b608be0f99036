package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/providers"
	"github.com/this-th/snomed-endoproc-lookup/internal/infrastructure/observability"
)

// CacheRule enables response caching for paths starting with Prefix
type CacheRule struct {
	Prefix     string
	TTLSeconds int
}

// CacheMiddleware caches successful GET responses of selected routes
type CacheMiddleware struct {
	cache   providers.CacheProvider
	rules   []CacheRule
	metrics *observability.Metrics
}

// NewCacheMiddleware creates a cache middleware. Rules are matched in order;
// the first matching prefix wins.
func NewCacheMiddleware(cache providers.CacheProvider, metrics *observability.Metrics, rules ...CacheRule) *CacheMiddleware {
	return &CacheMiddleware{
		cache:   cache,
		rules:   rules,
		metrics: metrics,
	}
}

// DefaultCacheRules caches the facet catalog, compiled query previews and
// the concept proxy routes.
func DefaultCacheRules(ttlSeconds int) []CacheRule {
	return []CacheRule{
		{Prefix: "/api/facets", TTLSeconds: ttlSeconds},
		{Prefix: "/api/ecl", TTLSeconds: ttlSeconds},
		{Prefix: "/api/concepts", TTLSeconds: ttlSeconds},
	}
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		rule, ok := m.ruleFor(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		logger := observability.LoggerFromContext(ctx)
		cacheKey := generateCacheKey(r)

		if cached, err := m.cache.Get(ctx, cacheKey); err == nil {
			observability.RecordCacheHit(ctx, m.metrics, "http")
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}

		observability.RecordCacheMiss(ctx, m.metrics, "http")
		w.Header().Set("X-Cache", "MISS")

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}
		next.ServeHTTP(recorder, r)

		if recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
			if err := m.cache.Set(ctx, cacheKey, recorder.body.Bytes(), rule.TTLSeconds); err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to cache response")
			}
		}
	})
}

func (m *CacheMiddleware) ruleFor(path string) (CacheRule, bool) {
	for _, rule := range m.rules {
		if rule.TTLSeconds > 0 && strings.HasPrefix(path, rule.Prefix) {
			return rule, true
		}
	}
	return CacheRule{}, false
}

// generateCacheKey hashes method, path and raw query into a fixed-length key
func generateCacheKey(r *http.Request) string {
	key := r.Method + ":" + r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	hash := sha256.Sum256([]byte(key))
	return "http:" + hex.EncodeToString(hash[:])
}

// responseRecorder tees the response into a buffer
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}
