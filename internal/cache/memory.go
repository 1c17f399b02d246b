package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Entries do not survive restarts; it is
// the test backend and a zero-dependency option for small deployments.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem)}
}

// Get retrieves a value. Expired entries are removed and reported as misses.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(item.expiresAt) {
		delete(s.items, key)
		return nil, false, nil
	}
	return item.value, true, nil
}

// Put stores a value with the given TTL, overwriting any existing entry.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = memoryItem{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Clear removes all entries.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]memoryItem)
	return nil
}

// SizeEstimate returns the number of stored entries, including any that
// expired but have not been read since.
func (s *MemoryStore) SizeEstimate(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.items)), nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

// Sweep removes expired entries and returns how many were removed.
func (s *MemoryStore) Sweep(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var removed int64
	for key, item := range s.items {
		if now.After(item.expiresAt) {
			delete(s.items, key)
			removed++
		}
	}
	return removed, nil
}
