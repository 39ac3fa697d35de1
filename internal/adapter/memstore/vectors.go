package memstore

import (
	"fmt"
	"sort"
	"sync"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/port"
)

var _ port.VectorStore = (*VectorStore)(nil)

// VectorStore is a brute-force in-memory port.VectorStore.
type VectorStore struct {
	mu        sync.RWMutex
	dimension int
	items     map[string]port.VectorItem
}

func NewVectorStore(dimension int) *VectorStore {
	return &VectorStore{
		dimension: dimension,
		items:     make(map[string]port.VectorItem),
	}
}

func (s *VectorStore) Upsert(items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if len(item.Vector) != s.dimension {
			return fmt.Errorf("memstore: vector %s has dimension %d, want %d", item.ID, len(item.Vector), s.dimension)
		}
		s.items[item.ID] = item
	}
	return nil
}

func (s *VectorStore) Search(query []float32, k int) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(query) != s.dimension {
		return nil, fmt.Errorf("memstore: query has dimension %d, want %d", len(query), s.dimension)
	}

	results := make([]port.VectorResult, 0, len(s.items))
	for id, item := range s.items {
		results = append(results, port.VectorResult{
			ID:       id,
			Score:    analyzer.VectorCosine(query, item.Vector),
			Metadata: item.Metadata,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *VectorStore) Delete(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.items, id)
	}
	return nil
}

func (s *VectorStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}
