package repositories

import (
	"context"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
)

// SearchAnalyticsRepository stores searches that matched no concepts
type SearchAnalyticsRepository interface {
	// LogEvent records a zero-result search
	LogEvent(ctx context.Context, event *entities.SearchEvent) error

	// GetZeroResultQueries returns the most recent zero-result searches, newest first
	GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error)
}
