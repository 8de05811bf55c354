package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driven"
)

// Ensure MockKVStore implements KVStore
var _ driven.KVStore = (*MockKVStore)(nil)

type kvEntry struct {
	value     []byte
	expiresAt time.Time
}

// MockKVStore is an in-memory KVStore with a controllable clock.
type MockKVStore struct {
	mu      sync.Mutex
	entries map[string]kvEntry
	now     time.Time

	// Err, when set, is returned by every operation.
	Err error
}

// NewMockKVStore creates an empty store whose clock starts at the current time
func NewMockKVStore() *MockKVStore {
	return &MockKVStore{
		entries: make(map[string]kvEntry),
		now:     time.Now(),
	}
}

// Advance moves the store clock forward
func (m *MockKVStore) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func (m *MockKVStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.entries[key] = kvEntry{value: v, expiresAt: m.now.Add(ttl)}
	return nil
}

func (m *MockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e.value, nil
}

func (m *MockKVStore) Delete(ctx context.Context, key string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MockKVStore) GetAndDelete(ctx context.Context, key string) ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	delete(m.entries, key)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e.value, nil
}

func (m *MockKVStore) Ping(ctx context.Context) error {
	return m.Err
}

// live returns the entry if present and unexpired. Caller holds mu.
func (m *MockKVStore) live(key string) (kvEntry, bool) {
	e, ok := m.entries[key]
	if !ok || !m.now.Before(e.expiresAt) {
		return kvEntry{}, false
	}
	return e, true
}

// Has reports whether key holds a live entry (for test assertions)
func (m *MockKVStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok
}

// TTL returns the remaining lifetime of key (for test assertions)
func (m *MockKVStore) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return 0
	}
	return e.expiresAt.Sub(m.now)
}

// Keys returns the live keys with the given prefix, sorted
func (m *MockKVStore) Keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.entries {
		if _, ok := m.live(k); ok && len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
