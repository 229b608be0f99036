//go:build integration

package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/providers"
)

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	host := os.Getenv("TEST_REDIS_HOST")
	if host == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}
	port := os.Getenv("TEST_REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	client := redis.NewClient(&redis.Options{Addr: host + ":" + port})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

func waitForSearchEvent(t *testing.T, ch <-chan *entities.SearchEvent) *entities.SearchEvent {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for search event")
		return nil
	}
}

func TestRedisEventBusFanout(t *testing.T) {
	bus := NewRedisEventBus(newTestRedisClient(t))
	defer bus.Close()

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel1()
	defer cancel2()

	sub1, err := bus.Subscribe(ctx1, providers.EventChannelSearches)
	require.NoError(t, err)
	sub2, err := bus.Subscribe(ctx2, providers.EventChannelSearches)
	require.NoError(t, err)

	event := &entities.SearchEvent{
		ID:          uuid.NewString(),
		Params:      entities.SearchParams{OrganSystem: "eye"},
		ResultCount: 20,
		Total:       41,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelSearches, event))

	received1 := waitForSearchEvent(t, sub1)
	received2 := waitForSearchEvent(t, sub2)
	assert.Equal(t, event.ID, received1.ID)
	assert.Equal(t, event.ID, received2.ID)
	assert.Equal(t, "eye", received1.Params.OrganSystem)
}

func TestRedisEventBus_SubscriptionClosesWithContext(t *testing.T) {
	bus := NewRedisEventBus(newTestRedisClient(t))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := bus.Subscribe(ctx, providers.EventChannelSearches)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was not closed")
	}
}
