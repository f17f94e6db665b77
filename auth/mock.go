package auth

import (
	"context"
	"sync"
	"time"
)

// MockTokenStore provides customizable hooks for testing TokenStore
// consumers. When no hook is set it behaves as a concurrency-safe in-memory
// store.
type MockTokenStore struct {
	SetFunc    func(ctx context.Context, userID string, platform Platform, target Target, record *TokenRecord, ttl time.Duration) error
	GetFunc    func(ctx context.Context, userID string, platform Platform, target Target) (*TokenRecord, error)
	DeleteFunc func(ctx context.Context, userID string, platform Platform, target Target) error

	mu      sync.Mutex
	records map[string]*TokenRecord
}

// Ensure MockTokenStore implements TokenStore
var _ TokenStore = (*MockTokenStore)(nil)

func (m *MockTokenStore) Set(ctx context.Context, userID string, platform Platform, target Target, record *TokenRecord, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, userID, platform, target, record, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]*TokenRecord)
	}
	stored := *record
	m.records[cacheKey(userID, platform, target)] = &stored
	return nil
}

func (m *MockTokenStore) Get(ctx context.Context, userID string, platform Platform, target Target) (*TokenRecord, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID, platform, target)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[cacheKey(userID, platform, target)]
	if !ok {
		return nil, nil
	}
	out := *record
	return &out, nil
}

func (m *MockTokenStore) Delete(ctx context.Context, userID string, platform Platform, target Target) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, platform, target)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, cacheKey(userID, platform, target))
	return nil
}
