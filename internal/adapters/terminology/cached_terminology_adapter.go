package terminology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/providers"
	"github.com/this-th/snomed-endoproc-lookup/internal/infrastructure/observability"
)

// CachedTerminologyAdapter wraps a TerminologyProvider with a cache for the
// per-concept lookups. Concept detail and hierarchy are fixed for a given
// release, so they are cached by concept ID and concurrent misses for the
// same key share one upstream call that outlives any single caller.
// Searches always go upstream.
type CachedTerminologyAdapter struct {
	provider   providers.TerminologyProvider
	cache      providers.CacheProvider
	ttlSeconds int
	metrics    *observability.Metrics
	inflight   singleflight.Group
}

// NewCachedTerminologyAdapter creates a new cached terminology adapter
func NewCachedTerminologyAdapter(provider providers.TerminologyProvider, cache providers.CacheProvider, ttlSeconds int, metrics *observability.Metrics) *CachedTerminologyAdapter {
	return &CachedTerminologyAdapter{
		provider:   provider,
		cache:      cache,
		ttlSeconds: ttlSeconds,
		metrics:    metrics,
	}
}

func conceptCacheKey(kind, conceptID string) string {
	return fmt.Sprintf("concept:%s:%s", kind, conceptID)
}

// SearchConcepts is not cached
func (a *CachedTerminologyAdapter) SearchConcepts(ctx context.Context, params entities.SearchParams, offset, limit int) (*entities.SearchResult, error) {
	return a.provider.SearchConcepts(ctx, params, offset, limit)
}

// GetConcept retrieves concept detail with caching
func (a *CachedTerminologyAdapter) GetConcept(ctx context.Context, conceptID string) (*entities.ConceptDetail, error) {
	key := conceptCacheKey("detail", conceptID)

	var detail entities.ConceptDetail
	if a.lookup(ctx, "detail", key, &detail) {
		return &detail, nil
	}

	return shared(ctx, a, key, func(ctx context.Context) (*entities.ConceptDetail, error) {
		return a.provider.GetConcept(ctx, conceptID)
	})
}

// GetParents retrieves parents with caching
func (a *CachedTerminologyAdapter) GetParents(ctx context.Context, conceptID string) ([]entities.Concept, error) {
	return a.relatives(ctx, "parents", conceptID, a.provider.GetParents)
}

// GetChildren retrieves children with caching
func (a *CachedTerminologyAdapter) GetChildren(ctx context.Context, conceptID string) ([]entities.Concept, error) {
	return a.relatives(ctx, "children", conceptID, a.provider.GetChildren)
}

func (a *CachedTerminologyAdapter) relatives(
	ctx context.Context,
	kind, conceptID string,
	fetch func(context.Context, string) ([]entities.Concept, error),
) ([]entities.Concept, error) {
	key := conceptCacheKey(kind, conceptID)

	var cached []entities.Concept
	if a.lookup(ctx, kind, key, &cached) && cached != nil {
		return cached, nil
	}

	return shared(ctx, a, key, func(ctx context.Context) ([]entities.Concept, error) {
		return fetch(ctx, conceptID)
	})
}

// shared runs fetch once per key for all concurrent callers and stores the
// result. The fetch is detached from the first caller's cancellation; each
// caller stops waiting when its own context ends.
func shared[T any](ctx context.Context, a *CachedTerminologyAdapter, key string, fetch func(context.Context) (T, error)) (T, error) {
	ch := a.inflight.DoChan(key, func() (interface{}, error) {
		fetchCtx := context.WithoutCancel(ctx)
		fetched, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		a.store(fetchCtx, key, fetched)
		return fetched, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// lookup reports whether key was found and decoded into out. Cache failures
// are logged and treated as misses.
func (a *CachedTerminologyAdapter) lookup(ctx context.Context, kind, key string, out interface{}) bool {
	data, err := a.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		observability.RecordCacheMiss(ctx, a.metrics, kind)
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		observability.RecordCacheMiss(ctx, a.metrics, kind)
		return false
	}
	observability.RecordCacheHit(ctx, a.metrics, kind)
	return true
}

func (a *CachedTerminologyAdapter) store(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, data, a.ttlSeconds); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}
