package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/repositories"
	apperrors "github.com/this-th/snomed-endoproc-lookup/pkg/errors"
)

const (
	zeroResultsKey = "endoproc:analytics:zero_results"

	// DefaultMaxEntries bounds the zero-result list
	DefaultMaxEntries = 1000

	defaultLimit = 100
)

// RedisSearchAnalyticsAdapter keeps the most recent zero-result searches in a
// capped Redis list.
type RedisSearchAnalyticsAdapter struct {
	client     redis.Cmdable
	maxEntries int64
}

// NewRedisSearchAnalyticsAdapter creates a new analytics adapter. maxEntries
// <= 0 uses DefaultMaxEntries.
func NewRedisSearchAnalyticsAdapter(client redis.Cmdable, maxEntries int) repositories.SearchAnalyticsRepository {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &RedisSearchAnalyticsAdapter{client: client, maxEntries: int64(maxEntries)}
}

// LogEvent pushes the event onto the list and trims it to maxEntries
func (a *RedisSearchAnalyticsAdapter) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal search event", err)
	}

	pipe := a.client.TxPipeline()
	pipe.LPush(ctx, zeroResultsKey, data)
	pipe.LTrim(ctx, zeroResultsKey, 0, a.maxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.NewInternalError("failed to log search event", err)
	}
	return nil
}

// GetZeroResultQueries returns up to limit events, newest first. Entries that
// fail to decode are skipped.
func (a *RedisSearchAnalyticsAdapter) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	raw, err := a.client.LRange(ctx, zeroResultsKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get zero result queries", err)
	}

	events := make([]*entities.SearchEvent, 0, len(raw))
	for _, item := range raw {
		e := &entities.SearchEvent{}
		if err := json.Unmarshal([]byte(item), e); err != nil {
			log.Warn().Err(err).Msg("Skipping undecodable search event")
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
