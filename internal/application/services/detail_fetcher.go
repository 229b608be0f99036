package services

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/providers"
	"github.com/this-th/snomed-endoproc-lookup/internal/infrastructure/observability"
	apperrors "github.com/this-th/snomed-endoproc-lookup/pkg/errors"
)

// SlotStatus is the state of one detail sub-fetch
type SlotStatus string

const (
	SlotIdle    SlotStatus = "idle"
	SlotLoading SlotStatus = "loading"
	SlotReady   SlotStatus = "ready"
	SlotError   SlotStatus = "error"
)

// Slot holds the outcome of one sub-fetch. Data is only meaningful when
// Status is SlotReady and Err only when Status is SlotError.
type Slot[T any] struct {
	Status SlotStatus          `json:"status"`
	Data   T                   `json:"data"`
	Err    *apperrors.AppError `json:"error,omitempty"`
}

func loadingSlot[T any]() Slot[T] {
	return Slot[T]{Status: SlotLoading}
}

func resolveSlot[T any](data T, err error) Slot[T] {
	if err != nil {
		return Slot[T]{Status: SlotError, Err: apperrors.Normalize(err)}
	}
	return Slot[T]{Status: SlotReady, Data: data}
}

// SelectionState is a point-in-time copy of the selected concept and its
// three independently loaded parts.
type SelectionState struct {
	ConceptID string                        `json:"conceptId,omitempty"`
	Detail    Slot[*entities.ConceptDetail] `json:"detail"`
	Parents   Slot[[]entities.Concept]      `json:"parents"`
	Children  Slot[[]entities.Concept]      `json:"children"`
}

// DetailFetcher loads detail, parents and children for the selected concept.
// The three lookups run concurrently and each only writes its own slot, so a
// failure in one never blanks the others. Results for a concept that is no
// longer selected are discarded.
type DetailFetcher struct {
	provider providers.TerminologyProvider

	mu    sync.Mutex
	seq   uint64
	state SelectionState
}

// NewDetailFetcher creates a new detail fetcher
func NewDetailFetcher(provider providers.TerminologyProvider) *DetailFetcher {
	return &DetailFetcher{
		provider: provider,
		state:    idleSelection(),
	}
}

func idleSelection() SelectionState {
	return SelectionState{
		Detail:   Slot[*entities.ConceptDetail]{Status: SlotIdle},
		Parents:  Slot[[]entities.Concept]{Status: SlotIdle},
		Children: Slot[[]entities.Concept]{Status: SlotIdle},
	}
}

// Select makes conceptID the current selection and waits for its three
// lookups. It returns ErrStaleResponse if another selection or a Clear
// happened before they completed.
func (f *DetailFetcher) Select(ctx context.Context, conceptID string) (SelectionState, error) {
	if !entities.IsValidConceptID(conceptID) {
		return f.Snapshot(), apperrors.NewValidationError("invalid concept ID: " + conceptID)
	}

	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.state = SelectionState{
		ConceptID: conceptID,
		Detail:    loadingSlot[*entities.ConceptDetail](),
		Parents:   loadingSlot[[]entities.Concept](),
		Children:  loadingSlot[[]entities.Concept](),
	}
	f.mu.Unlock()

	logger := observability.LoggerFromContext(ctx)

	// Each lookup reports its failure through its slot, never through the group.
	var g errgroup.Group
	g.Go(func() error {
		detail, err := f.provider.GetConcept(ctx, conceptID)
		f.apply(seq, func(s *SelectionState) { s.Detail = resolveSlot(detail, err) })
		return nil
	})
	g.Go(func() error {
		parents, err := f.provider.GetParents(ctx, conceptID)
		f.apply(seq, func(s *SelectionState) { s.Parents = resolveSlot(nonNil(parents), err) })
		return nil
	})
	g.Go(func() error {
		children, err := f.provider.GetChildren(ctx, conceptID)
		f.apply(seq, func(s *SelectionState) { s.Children = resolveSlot(nonNil(children), err) })
		return nil
	})
	_ = g.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	if seq != f.seq {
		logger.Debug().Str("concept_id", conceptID).Msg("Discarding detail for deselected concept")
		return f.snapshotLocked(), ErrStaleResponse
	}
	return f.snapshotLocked(), nil
}

func (f *DetailFetcher) apply(seq uint64, update func(*SelectionState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if seq != f.seq {
		return
	}
	update(&f.state)
}

// Clear drops the selection. Lookups still in flight are discarded.
func (f *DetailFetcher) Clear() SelectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.state = idleSelection()
	return f.snapshotLocked()
}

// Snapshot returns a copy of the current selection state
func (f *DetailFetcher) Snapshot() SelectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *DetailFetcher) snapshotLocked() SelectionState {
	s := f.state
	if s.Parents.Data != nil {
		s.Parents.Data = append(make([]entities.Concept, 0, len(s.Parents.Data)), s.Parents.Data...)
	}
	if s.Children.Data != nil {
		s.Children.Data = append(make([]entities.Concept, 0, len(s.Children.Data)), s.Children.Data...)
	}
	return s
}
