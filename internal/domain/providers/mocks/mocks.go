// Package mocks provides testify mocks for the provider and repository interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/providers"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/repositories"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockTerminologyProvider is a mock of providers.TerminologyProvider
type MockTerminologyProvider struct {
	mock.Mock
}

var _ providers.TerminologyProvider = (*MockTerminologyProvider)(nil)

// NewMockTerminologyProvider creates a mock that asserts its expectations on cleanup
func NewMockTerminologyProvider(t testingT) *MockTerminologyProvider {
	m := &MockTerminologyProvider{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTerminologyProvider) SearchConcepts(ctx context.Context, params entities.SearchParams, offset, limit int) (*entities.SearchResult, error) {
	args := m.Called(ctx, params, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SearchResult), args.Error(1)
}

func (m *MockTerminologyProvider) GetConcept(ctx context.Context, conceptID string) (*entities.ConceptDetail, error) {
	args := m.Called(ctx, conceptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ConceptDetail), args.Error(1)
}

func (m *MockTerminologyProvider) GetParents(ctx context.Context, conceptID string) ([]entities.Concept, error) {
	args := m.Called(ctx, conceptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Concept), args.Error(1)
}

func (m *MockTerminologyProvider) GetChildren(ctx context.Context, conceptID string) ([]entities.Concept, error) {
	args := m.Called(ctx, conceptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Concept), args.Error(1)
}

// MockCacheProvider is a mock of providers.CacheProvider
type MockCacheProvider struct {
	mock.Mock
}

var _ providers.CacheProvider = (*MockCacheProvider)(nil)

// NewMockCacheProvider creates a mock that asserts its expectations on cleanup
func NewMockCacheProvider(t testingT) *MockCacheProvider {
	m := &MockCacheProvider{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	args := m.Called(ctx, key, value, expirationSeconds)
	return args.Error(0)
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockEventBus is a mock of providers.EventBus
type MockEventBus struct {
	mock.Mock
}

var _ providers.EventBus = (*MockEventBus)(nil)

// NewMockEventBus creates a mock that asserts its expectations on cleanup
func NewMockEventBus(t testingT) *MockEventBus {
	m := &MockEventBus{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.SearchEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.SearchEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.SearchEvent), args.Error(1)
}

func (m *MockEventBus) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockSearchAnalyticsRepository is a mock of repositories.SearchAnalyticsRepository
type MockSearchAnalyticsRepository struct {
	mock.Mock
}

var _ repositories.SearchAnalyticsRepository = (*MockSearchAnalyticsRepository)(nil)

// NewMockSearchAnalyticsRepository creates a mock that asserts its expectations on cleanup
func NewMockSearchAnalyticsRepository(t testingT) *MockSearchAnalyticsRepository {
	m := &MockSearchAnalyticsRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSearchAnalyticsRepository) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockSearchAnalyticsRepository) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.SearchEvent), args.Error(1)
}
