package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/providers"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/repositories"
)

const analyticsWriteTimeout = 5 * time.Second

// SearchAnalyticsService records searches that matched no concepts. Searches
// that failed are not zero-result searches and are ignored.
type SearchAnalyticsService struct {
	repo repositories.SearchAnalyticsRepository
}

func NewSearchAnalyticsService(repo repositories.SearchAnalyticsRepository) *SearchAnalyticsService {
	return &SearchAnalyticsService{repo: repo}
}

// IsZeroResult reports whether the event is a successful search with no hits
func IsZeroResult(event *entities.SearchEvent) bool {
	return event != nil && event.ErrorKind == "" && event.Total == 0
}

// TrackSearch stores event if it is a zero-result search. The write uses its
// own timeout so a cancelled request does not drop it.
func (s *SearchAnalyticsService) TrackSearch(event *entities.SearchEvent) {
	if !IsZeroResult(event) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), analyticsWriteTimeout)
	defer cancel()

	if err := s.repo.LogEvent(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to log search event")
	}
}

// Start subscribes to search events and tracks them until ctx is done or the
// bus closes the subscription.
func (s *SearchAnalyticsService) Start(ctx context.Context, bus providers.EventBus) error {
	events, err := bus.Subscribe(ctx, providers.EventChannelSearches)
	if err != nil {
		return err
	}

	go s.consume(events)
	log.Info().Str("channel", providers.EventChannelSearches).Msg("Search analytics started")
	return nil
}

func (s *SearchAnalyticsService) consume(events <-chan *entities.SearchEvent) {
	for event := range events {
		s.TrackSearch(event)
	}
}

func (s *SearchAnalyticsService) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	return s.repo.GetZeroResultQueries(ctx, limit)
}
