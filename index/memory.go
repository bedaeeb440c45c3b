package index

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store. Useful for tests and ephemeral runs;
// it does not survive process restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	byHash  map[string]int // hash -> index into entries
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byHash: make(map[string]int),
	}
}

// GetAll returns a copy of all entries in insertion order.
func (s *MemoryStore) GetAll(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...), nil
}

// UpsertBatch inserts or replaces entries. Existing hashes keep their
// position; new hashes append in the order given.
func (s *MemoryStore) UpsertBatch(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if i, ok := s.byHash[e.Hash]; ok {
			e.Position = s.entries[i].Position
			s.entries[i] = e
			continue
		}
		e.Position = len(s.entries)
		s.byHash[e.Hash] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return nil
}

// Search performs cosine similarity search over the stored entries.
func (s *MemoryStore) Search(ctx context.Context, query []float32, k int, floor float64) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return searchEntries(s.entries, query, k, floor), nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close clears the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byHash = make(map[string]int)
	return nil
}
