package services_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/this-th/snomed-endoproc-lookup/internal/application/services"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/providers"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/providers/mocks"
	apperrors "github.com/this-th/snomed-endoproc-lookup/pkg/errors"
)

const baseECL = "(< 71388002: << 405815000 = << 105794008, [1..*] << 363704007 = *)"

func makeConcepts(prefix string, from, n int) []entities.Concept {
	items := make([]entities.Concept, 0, n)
	for i := from; i < from+n; i++ {
		items = append(items, entities.Concept{
			ConceptID: fmt.Sprintf("%s%d", prefix, 100000+i),
			Active:    true,
			PT:        entities.Term{Term: fmt.Sprintf("Procedure %d", i), Lang: "en"},
		})
	}
	return items
}

func page(prefix string, offset, n, total int) *entities.SearchResult {
	return &entities.SearchResult{Items: makeConcepts(prefix, offset, n), Total: total, Limit: 20, Offset: offset}
}

func TestResultPager_Search_OrganSystemOnly(t *testing.T) {
	provider := mocks.NewMockTerminologyProvider(t)
	pager := services.NewResultPager(provider, 20)

	params := entities.SearchParams{OrganSystem: "eye"}
	provider.On("SearchConcepts", mock.Anything, params, 0, 20).Return(page("1", 0, 3, 3), nil).Once()

	state, err := pager.Search(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, services.SearchReady, state.Status)
	assert.Equal(t, baseECL+" AND (<< 71388002: << 363704007 = << 371398005)", state.ECL)
	assert.Len(t, state.Items, 3)
	assert.Equal(t, 3, state.Total)
	assert.False(t, state.HasMore)
}

func TestResultPager_Search_TermAndMethod(t *testing.T) {
	provider := mocks.NewMockTerminologyProvider(t)
	pager := services.NewResultPager(provider, 20)

	params := entities.SearchParams{Term: "scope", ProcedureMethod: "biopsy"}
	provider.On("SearchConcepts", mock.Anything, params, 0, 20).Return(page("1", 0, 20, 41), nil).Once()

	state, err := pager.Search(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, baseECL+" AND (<< 71388002: << 260686004 = << 129314006)", state.ECL)
	assert.Equal(t, "scope", state.Params.Term)
	assert.True(t, state.HasMore)
}

func TestResultPager_Search_UpstreamError(t *testing.T) {
	provider := mocks.NewMockTerminologyProvider(t)
	pager := services.NewResultPager(provider, 20)

	params := entities.SearchParams{OrganSystem: "eye"}
	upstream := apperrors.NewUpstreamError(http.StatusInternalServerError, "API error: 500 - Bad ECL: syntax")
	provider.On("SearchConcepts", mock.Anything, params, 0, 20).Return(nil, upstream).Once()

	state, err := pager.Search(context.Background(), params)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeUpstream, appErr.Type)
	assert.Equal(t, 500, appErr.Status)
	assert.Equal(t, "API error: 500 - Bad ECL: syntax", appErr.Message)

	assert.Equal(t, services.SearchError, state.Status)
	assert.NotNil(t, state.Items)
	assert.Empty(t, state.Items)
	assert.Equal(t, upstream, state.Error)
}

func TestResultPager_LoadMore_NotAllowedWhenComplete(t *testing.T) {
	provider := mocks.NewMockTerminologyProvider(t)
	pager := services.NewResultPager(provider, 20)

	params := entities.SearchParams{Term: "gastroscopy"}
	provider.On("SearchConcepts", mock.Anything, params, 0, 20).Return(page("1", 0, 5, 5), nil).Once()

	_, err := pager.Search(context.Background(), params)
	require.NoError(t, err)

	state, err := pager.LoadMore(context.Background())
	assert.ErrorIs(t, err, services.ErrLoadMoreNotAllowed)
	assert.Len(t, state.Items, 5)
	provider.AssertNumberOfCalls(t, "SearchConcepts", 1)
}

func TestResultPager_LoadMore_NotAllowedOutsideReady(t *testing.T) {
	provider := mocks.NewMockTerminologyProvider(t)
	pager := services.NewResultPager(provider, 20)

	_, err := pager.LoadMore(context.Background())
	assert.ErrorIs(t, err, services.ErrLoadMoreNotAllowed)

	params := entities.SearchParams{Term: "x"}
	provider.On("SearchConcepts", mock.Anything, params, 0, 20).Return(nil, apperrors.NewTransportError("dial tcp", nil)).Once()
	_, _ = pager.Search(context.Background(), params)

	_, err = pager.LoadMore(context.Background())
	assert.ErrorIs(t, err, services.ErrLoadMoreNotAllowed)
}

func TestResultPager_LoadMore_AccumulatesPages(t *testing.T) {
	provider := mocks.NewMockTerminologyProvider(t)
	pager := services.NewResultPager(provider, 20)
	ctx := context.Background()

	params := entities.SearchParams{OrganSystem: "lowerGi"}
	provider.On("SearchConcepts", mock.Anything, params, 0, 20).Return(page("1", 0, 20, 45), nil).Once()
	provider.On("SearchConcepts", mock.Anything, params, 20, 20).Return(page("1", 20, 20, 45), nil).Once()
	provider.On("SearchConcepts", mock.Anything, params, 40, 20).Return(page("1", 40, 5, 45), nil).Once()

	state, err := pager.Search(ctx, params)
	require.NoError(t, err)

	loaded := len(state.Items)
	for state.HasMore {
		state, err = pager.LoadMore(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(state.Items), loaded)
		assert.LessOrEqual(t, len(state.Items), state.Total)
		loaded = len(state.Items)
	}

	assert.Equal(t, 45, len(state.Items))
	assert.Equal(t, "1100000", state.Items[0].ConceptID)
	assert.Equal(t, "1100044", state.Items[44].ConceptID)

	_, err = pager.LoadMore(ctx)
	assert.ErrorIs(t, err, services.ErrLoadMoreNotAllowed)
}

func TestResultPager_LoadMore_TruncatesAtTotal(t *testing.T) {
	provider := mocks.NewMockTerminologyProvider(t)
	pager := services.NewResultPager(provider, 20)
	ctx := context.Background()

	params := entities.SearchParams{Term: "scope"}
	provider.On("SearchConcepts", mock.Anything, params, 0, 20).Return(page("1", 0, 20, 25), nil).Once()
	provider.On("SearchConcepts", mock.Anything, params, 20, 20).Return(page("1", 20, 20, 25), nil).Once()

	_, err := pager.Search(ctx, params)
	require.NoError(t, err)
	state, err := pager.LoadMore(ctx)
	require.NoError(t, err)

	assert.Len(t, state.Items, 25)
	assert.Equal(t, 25, state.Total)
	assert.False(t, state.HasMore)
}

func TestResultPager_LoadMore_EmptyPageStopsPaging(t *testing.T) {
	provider := mocks.NewMockTerminologyProvider(t)
	pager := services.NewResultPager(provider, 20)
	ctx := context.Background()

	params := entities.SearchParams{Term: "scope"}
	provider.On("SearchConcepts", mock.Anything, params, 0, 20).Return(page("1", 0, 20, 60), nil).Once()
	provider.On("SearchConcepts", mock.Anything, params, 20, 20).Return(page("1", 20, 0, 60), nil).Once()

	_, err := pager.Search(ctx, params)
	require.NoError(t, err)
	state, err := pager.LoadMore(ctx)
	require.NoError(t, err)

	assert.Len(t, state.Items, 20)
	assert.Equal(t, 20, state.Total)
	assert.False(t, state.HasMore)
}

func TestResultPager_LoadMore_FailureKeepsResults(t *testing.T) {
	provider := mocks.NewMockTerminologyProvider(t)
	pager := services.NewResultPager(provider, 20)
	ctx := context.Background()

	params := entities.SearchParams{Term: "scope"}
	provider.On("SearchConcepts", mock.Anything, params, 0, 20).Return(page("1", 0, 20, 41), nil).Once()
	provider.On("SearchConcepts", mock.Anything, params, 20, 20).Return(nil, apperrors.NewUpstreamError(503, "API error: 503")).Once()

	_, err := pager.Search(ctx, params)
	require.NoError(t, err)

	state, err := pager.LoadMore(ctx)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstream))
	assert.Equal(t, services.SearchReady, state.Status)
	assert.Len(t, state.Items, 20)
	assert.Nil(t, state.Error)
	require.NotNil(t, state.LoadMoreError)
	assert.Equal(t, 503, state.LoadMoreError.Status)
	assert.True(t, state.HasMore)

	state = pager.DismissLoadMoreError()
	assert.Nil(t, state.LoadMoreError)
	assert.Len(t, state.Items, 20)
}

func TestResultPager_StaleSearchIsDiscarded(t *testing.T) {
	provider := mocks.NewMockTerminologyProvider(t)
	pager := services.NewResultPager(provider, 20)
	ctx := context.Background()

	paramsA := entities.SearchParams{OrganSystem: "eye"}
	paramsB := entities.SearchParams{OrganSystem: "lowerGi"}

	started := make(chan struct{})
	release := make(chan struct{})
	provider.On("SearchConcepts", mock.Anything, paramsA, 0, 20).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(page("7", 0, 10, 10), nil).Once()
	provider.On("SearchConcepts", mock.Anything, paramsB, 0, 20).Return(page("3", 0, 2, 2), nil).Once()

	type outcome struct {
		state services.SearchState
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		state, err := pager.Search(ctx, paramsA)
		done <- outcome{state, err}
	}()

	<-started
	stateB, err := pager.Search(ctx, paramsB)
	require.NoError(t, err)
	assert.Len(t, stateB.Items, 2)

	close(release)
	select {
	case res := <-done:
		assert.ErrorIs(t, res.err, services.ErrStaleResponse)
	case <-time.After(2 * time.Second):
		t.Fatal("search A did not return")
	}

	final := pager.Snapshot()
	assert.Equal(t, paramsB, final.Params)
	assert.Equal(t, services.SearchReady, final.Status)
	require.Len(t, final.Items, 2)
	assert.Equal(t, "3100000", final.Items[0].ConceptID)
}

func TestResultPager_SearchSupersedesLoadMore(t *testing.T) {
	provider := mocks.NewMockTerminologyProvider(t)
	pager := services.NewResultPager(provider, 20)
	ctx := context.Background()

	paramsA := entities.SearchParams{Term: "scope"}
	paramsB := entities.SearchParams{OrganSystem: "eye"}

	started := make(chan struct{})
	release := make(chan struct{})
	provider.On("SearchConcepts", mock.Anything, paramsA, 0, 20).Return(page("1", 0, 20, 40), nil).Once()
	provider.On("SearchConcepts", mock.Anything, paramsA, 20, 20).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(page("1", 20, 20, 40), nil).Once()
	provider.On("SearchConcepts", mock.Anything, paramsB, 0, 20).Return(page("5", 0, 3, 3), nil).Once()

	_, err := pager.Search(ctx, paramsA)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := pager.LoadMore(ctx)
		done <- err
	}()

	<-started
	stateB, err := pager.Search(ctx, paramsB)
	require.NoError(t, err)
	assert.Len(t, stateB.Items, 3)

	close(release)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, services.ErrStaleResponse)
	case <-time.After(2 * time.Second):
		t.Fatal("load more did not return")
	}

	final := pager.Snapshot()
	assert.Equal(t, paramsB, final.Params)
	assert.Equal(t, services.SearchReady, final.Status)
	assert.Equal(t, 3, final.Total)
	require.Len(t, final.Items, 3)
	for _, item := range final.Items {
		assert.Equal(t, "5", item.ConceptID[:1])
	}
	assert.Nil(t, final.LoadMoreError)
	assert.False(t, final.HasMore)
}

func TestResultPager_ResetDiscardsInFlightSearch(t *testing.T) {
	provider := mocks.NewMockTerminologyProvider(t)
	cleared := 0
	pager := services.NewResultPager(provider, 20, services.WithOnSearch(func() { cleared++ }))

	params := entities.SearchParams{Term: "scope"}
	started := make(chan struct{})
	release := make(chan struct{})
	provider.On("SearchConcepts", mock.Anything, params, 0, 20).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(page("1", 0, 20, 40), nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := pager.Search(context.Background(), params)
		done <- err
	}()

	<-started
	state := pager.Reset()
	assert.Equal(t, services.SearchIdle, state.Status)

	close(release)
	assert.ErrorIs(t, <-done, services.ErrStaleResponse)

	final := pager.Snapshot()
	assert.Equal(t, services.SearchIdle, final.Status)
	assert.Empty(t, final.Items)
	assert.Equal(t, entities.SearchParams{}, final.Params)
	assert.Equal(t, 2, cleared)
}

func TestResultPager_PublishesSearchEvent(t *testing.T) {
	provider := mocks.NewMockTerminologyProvider(t)
	bus := mocks.NewMockEventBus(t)
	pager := services.NewResultPager(provider, 10, services.WithEventBus(bus, "session-1"))

	params := entities.SearchParams{ProcedureMethod: "biopsy"}
	provider.On("SearchConcepts", mock.Anything, params, 0, 10).Return(page("1", 0, 10, 12), nil).Once()
	bus.On("Publish", mock.Anything, providers.EventChannelSearches, mock.MatchedBy(func(e *entities.SearchEvent) bool {
		return e.SessionID == "session-1" && e.ResultCount == 10 && e.Total == 12 &&
			e.Params == params && e.ErrorKind == "" && e.ID != ""
	})).Return(nil).Once()

	state, err := pager.Search(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 10, state.PageSize)
}

func TestResultPager_DefaultPageSize(t *testing.T) {
	provider := mocks.NewMockTerminologyProvider(t)
	pager := services.NewResultPager(provider, 0)
	assert.Equal(t, services.DefaultPageSize, pager.Snapshot().PageSize)
	assert.Equal(t, services.SearchIdle, pager.Snapshot().Status)
}
