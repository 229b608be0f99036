package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/providers"
	"github.com/this-th/snomed-endoproc-lookup/internal/infrastructure/observability"
	"github.com/this-th/snomed-endoproc-lookup/internal/query/ecl"
	apperrors "github.com/this-th/snomed-endoproc-lookup/pkg/errors"
)

// DefaultPageSize is used when a pager is created with a non-positive page size
const DefaultPageSize = 20

var (
	// ErrStaleResponse is returned to a caller whose request was superseded
	// by a newer search, load-more or reset before its response arrived.
	ErrStaleResponse = errors.New("response superseded by a newer request")

	// ErrLoadMoreNotAllowed is returned when there is no further page to load
	// or the pager is not in the ready state.
	ErrLoadMoreNotAllowed = errors.New("load more is not allowed in the current state")
)

// SearchStatus is the state of a ResultPager
type SearchStatus string

const (
	SearchIdle        SearchStatus = "idle"
	SearchSearching   SearchStatus = "searching"
	SearchReady       SearchStatus = "ready"
	SearchLoadingMore SearchStatus = "loading-more"
	SearchError       SearchStatus = "error"
)

// SearchState is a point-in-time copy of the pager state
type SearchState struct {
	Status        SearchStatus          `json:"status"`
	Params        entities.SearchParams `json:"params"`
	ECL           string                `json:"ecl,omitempty"`
	Items         []entities.Concept    `json:"items"`
	Total         int                   `json:"total"`
	PageSize      int                   `json:"pageSize"`
	HasMore       bool                  `json:"hasMore"`
	Error         *apperrors.AppError   `json:"error,omitempty"`
	LoadMoreError *apperrors.AppError   `json:"loadMoreError,omitempty"`
}

// ResultPager runs concept searches and accumulates pages of results.
// Every request is tagged with a sequence number; a response is applied
// only if no newer request was issued in the meantime.
type ResultPager struct {
	provider  providers.TerminologyProvider
	pageSize  int
	eventBus  providers.EventBus
	sessionID string

	mu       sync.Mutex
	seq      uint64
	state    SearchState
	onSearch func()
}

// PagerOption customizes a ResultPager
type PagerOption func(*ResultPager)

// WithEventBus publishes a SearchEvent after every completed search
func WithEventBus(bus providers.EventBus, sessionID string) PagerOption {
	return func(p *ResultPager) {
		p.eventBus = bus
		p.sessionID = sessionID
	}
}

// WithOnSearch registers a hook run whenever the result set is replaced or
// cleared, before the new request is issued.
func WithOnSearch(fn func()) PagerOption {
	return func(p *ResultPager) { p.onSearch = fn }
}

// NewResultPager creates a new result pager
func NewResultPager(provider providers.TerminologyProvider, pageSize int, opts ...PagerOption) *ResultPager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	p := &ResultPager{
		provider: provider,
		pageSize: pageSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.state = p.idleState()
	return p
}

func (p *ResultPager) idleState() SearchState {
	return SearchState{
		Status:   SearchIdle,
		Items:    []entities.Concept{},
		PageSize: p.pageSize,
	}
}

// Search replaces the result set with the first page for params.
// On failure the pager moves to the error state with an empty result set and
// the normalized error is returned alongside the snapshot.
func (p *ResultPager) Search(ctx context.Context, params entities.SearchParams) (SearchState, error) {
	expr := ecl.Compile(params)

	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.state = SearchState{
		Status:   SearchSearching,
		Params:   params,
		ECL:      expr.String(),
		Items:    []entities.Concept{},
		PageSize: p.pageSize,
	}
	onSearch := p.onSearch
	p.mu.Unlock()

	if onSearch != nil {
		onSearch()
	}

	logger := observability.LoggerFromContext(ctx)
	logger.Debug().
		Str("term", params.Term).
		Str("organ_system", params.OrganSystem).
		Str("procedure_method", params.ProcedureMethod).
		Str("ecl", expr.String()).
		Msg("Searching concepts")

	start := time.Now()
	result, err := p.provider.SearchConcepts(ctx, params, 0, p.pageSize)
	latency := time.Since(start)

	p.mu.Lock()
	if seq != p.seq {
		p.mu.Unlock()
		logger.Debug().Uint64("seq", seq).Msg("Discarding superseded search response")
		return p.Snapshot(), ErrStaleResponse
	}

	var appErr *apperrors.AppError
	if err != nil {
		appErr = apperrors.Normalize(err)
		p.state.Status = SearchError
		p.state.Error = appErr
	} else {
		p.state.Items = truncate(nonNil(result.Items), result.Total)
		p.state.Total = result.Total
		p.state.Status = SearchReady
	}
	snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.publish(ctx, snapshot, latency)

	if appErr != nil {
		logger.Warn().Err(appErr).Str("ecl", snapshot.ECL).Msg("Concept search failed")
		return snapshot, appErr
	}
	return snapshot, nil
}

// LoadMore appends the next page to the result set. It is only valid in the
// ready state while fewer items than the total have been loaded; otherwise it
// returns ErrLoadMoreNotAllowed without issuing a request. A failed page keeps
// the loaded items and is recorded as a dismissible LoadMoreError.
func (p *ResultPager) LoadMore(ctx context.Context) (SearchState, error) {
	p.mu.Lock()
	if p.state.Status != SearchReady || len(p.state.Items) >= p.state.Total {
		snapshot := p.snapshotLocked()
		p.mu.Unlock()
		return snapshot, ErrLoadMoreNotAllowed
	}
	p.seq++
	seq := p.seq
	p.state.Status = SearchLoadingMore
	p.state.LoadMoreError = nil
	params := p.state.Params
	offset := len(p.state.Items)
	p.mu.Unlock()

	result, err := p.provider.SearchConcepts(ctx, params, offset, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()

	if seq != p.seq {
		return p.snapshotLocked(), ErrStaleResponse
	}

	p.state.Status = SearchReady
	if err != nil {
		appErr := apperrors.Normalize(err)
		p.state.LoadMoreError = appErr
		observability.LoggerFromContext(ctx).Warn().Err(appErr).Int("offset", offset).Msg("Loading more concepts failed")
		return p.snapshotLocked(), appErr
	}

	if len(result.Items) == 0 {
		// The server has nothing past this offset; stop paging.
		p.state.Total = len(p.state.Items)
		return p.snapshotLocked(), nil
	}

	// Loaded items are never dropped, even if the server now reports fewer.
	p.state.Total = max(result.Total, offset)
	p.state.Items = truncate(append(p.state.Items, result.Items...), p.state.Total)
	return p.snapshotLocked(), nil
}

// DismissLoadMoreError clears a recorded load-more failure
func (p *ResultPager) DismissLoadMoreError() SearchState {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.LoadMoreError = nil
	return p.snapshotLocked()
}

// Reset clears params and results and returns the pager to idle. Any request
// still in flight is discarded when it completes.
func (p *ResultPager) Reset() SearchState {
	p.mu.Lock()
	p.seq++
	p.state = p.idleState()
	snapshot := p.snapshotLocked()
	onSearch := p.onSearch
	p.mu.Unlock()

	if onSearch != nil {
		onSearch()
	}
	return snapshot
}

// Snapshot returns a copy of the current state
func (p *ResultPager) Snapshot() SearchState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *ResultPager) snapshotLocked() SearchState {
	s := p.state
	s.Items = append(make([]entities.Concept, 0, len(p.state.Items)), p.state.Items...)
	s.HasMore = s.Status == SearchReady && len(s.Items) < s.Total
	return s
}

func (p *ResultPager) publish(ctx context.Context, s SearchState, latency time.Duration) {
	if p.eventBus == nil {
		return
	}
	event := &entities.SearchEvent{
		ID:          uuid.NewString(),
		SessionID:   p.sessionID,
		Params:      s.Params,
		ECL:         s.ECL,
		ResultCount: len(s.Items),
		Total:       s.Total,
		LatencyMs:   int(latency.Milliseconds()),
		CreatedAt:   time.Now().UTC(),
	}
	if s.Error != nil {
		event.ErrorKind = string(s.Error.Type)
	}
	if err := p.eventBus.Publish(ctx, providers.EventChannelSearches, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to publish search event")
	}
}

func nonNil(items []entities.Concept) []entities.Concept {
	if items == nil {
		return []entities.Concept{}
	}
	return items
}

func truncate(items []entities.Concept, total int) []entities.Concept {
	if total >= 0 && len(items) > total {
		return items[:total]
	}
	return items
}
