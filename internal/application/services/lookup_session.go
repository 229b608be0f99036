package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/providers"
	apperrors "github.com/this-th/snomed-endoproc-lookup/pkg/errors"
)

// LookupSession pairs a result pager with a detail fetcher. A new search or
// a reset clears the selection.
type LookupSession struct {
	ID        string
	CreatedAt time.Time
	Pager     *ResultPager
	Details   *DetailFetcher

	mu       sync.Mutex
	lastSeen time.Time
}

// DetailViews are projections of the selected concept's detail
type DetailViews struct {
	Synonyms               []string                     `json:"synonyms"`
	ParentRelationships    []entities.Relationship      `json:"parentRelationships"`
	AttributeRelationships []entities.Relationship      `json:"attributeRelationships"`
	AttributeGroups        []entities.RelationshipGroup `json:"attributeGroups"`
}

// SessionView is the combined state of a session
type SessionView struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	Search    SearchState    `json:"search"`
	Selection SelectionState `json:"selection"`
	Views     *DetailViews   `json:"views,omitempty"`
}

// View returns the current state of the session. Views are derived from the
// detail slot only when it is ready.
func (s *LookupSession) View() SessionView {
	view := SessionView{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Search:    s.Pager.Snapshot(),
		Selection: s.Details.Snapshot(),
	}
	if detail := view.Selection.Detail; detail.Status == SlotReady && detail.Data != nil {
		view.Views = &DetailViews{
			Synonyms:               detail.Data.ActiveSynonyms(),
			ParentRelationships:    detail.Data.ParentRelationships(),
			AttributeRelationships: detail.Data.AttributeRelationships(),
			AttributeGroups:        detail.Data.AttributeGroups(),
		}
	}
	return view
}

func (s *LookupSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *LookupSession) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// SessionStore keeps lookup sessions in memory and expires idle ones
type SessionStore struct {
	provider providers.TerminologyProvider
	eventBus providers.EventBus
	pageSize int
	idleTTL  time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*LookupSession
}

// NewSessionStore creates a new session store. eventBus may be nil.
func NewSessionStore(provider providers.TerminologyProvider, eventBus providers.EventBus, pageSize int, idleTTL time.Duration) *SessionStore {
	return &SessionStore{
		provider: provider,
		eventBus: eventBus,
		pageSize: pageSize,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*LookupSession),
	}
}

// Create starts a new session
func (s *SessionStore) Create() *LookupSession {
	now := s.now()
	session := &LookupSession{
		ID:        uuid.NewString(),
		CreatedAt: now.UTC(),
		Details:   NewDetailFetcher(s.provider),
		lastSeen:  now,
	}

	opts := []PagerOption{WithOnSearch(func() { session.Details.Clear() })}
	if s.eventBus != nil {
		opts = append(opts, WithEventBus(s.eventBus, session.ID))
	}
	session.Pager = NewResultPager(s.provider, s.pageSize, opts...)

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	log.Debug().Str("session_id", session.ID).Msg("Created lookup session")
	return session
}

// Get returns the session and marks it as active
func (s *SessionStore) Get(id string) (*LookupSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("session not found: " + id)
	}
	session.touch(s.now())
	return session, nil
}

// Delete removes the session
func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return apperrors.NewNotFoundError("session not found: " + id)
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the idle TTL and returns how
// many were removed.
func (s *SessionStore) Sweep() int {
	if s.idleTTL <= 0 {
		return 0
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		if session.idleSince(now) > s.idleTTL {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper expires idle sessions every interval until ctx is done
func (s *SessionStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if s.idleTTL <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Stopping session sweeper")
				return
			case <-ticker.C:
				if removed := s.Sweep(); removed > 0 {
					log.Info().Int("removed", removed).Int("remaining", s.Len()).Msg("Expired idle lookup sessions")
				}
			}
		}
	}()
	log.Info().Dur("interval", interval).Dur("idle_ttl", s.idleTTL).Msg("Started session sweeper")
}
