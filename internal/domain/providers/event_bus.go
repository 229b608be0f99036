package providers

import (
	"context"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
)

// EventBus publishes and delivers search events
type EventBus interface {
	// Publish publishes an event to all subscribers of channel
	Publish(ctx context.Context, channel string, event *entities.SearchEvent) error

	// Subscribe delivers events published on channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.SearchEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelSearches carries one event per completed concept search
const EventChannelSearches = "lookup:searches"
