package vectorstore

import (
	"context"
	"sync"

	"harvester/internal/model"
)

type memEntry struct {
	chunk     model.Chunk
	embedding []float32
}

// MemStore is a Store kept entirely in memory.
type MemStore struct {
	mu       sync.RWMutex
	embedder Embedder
	order    []string
	entries  map[string]memEntry
}

func NewMemStore(embedder Embedder) *MemStore {
	return &MemStore{
		embedder: embedder,
		entries:  make(map[string]memEntry),
	}
}

func (s *MemStore) ExistingIDs(context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]struct{}, len(s.entries))
	for id := range s.entries {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *MemStore) Add(_ context.Context, chunks []model.Chunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, c := range chunks {
		if _, ok := s.entries[c.ID]; ok {
			continue
		}
		s.entries[c.ID] = memEntry{chunk: c, embedding: s.embedder.Embed(c.Content)}
		s.order = append(s.order, c.ID)
		added++
	}
	return added, nil
}

func (s *MemStore) Search(_ context.Context, query string, k int, threshold float64) ([]model.SearchResult, error) {
	q := s.embedder.Embed(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]model.SearchResult, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		results = append(results, model.SearchResult{
			ID:       e.chunk.ID,
			Content:  e.chunk.Content,
			Metadata: e.chunk.Metadata,
			Score:    Cosine(q, e.embedding),
		})
	}
	return rank(results, k, threshold), nil
}

func (s *MemStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries), nil
}

// IDs returns the stored ids in insertion order.
func (s *MemStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.order...)
}

func (s *MemStore) Close() error { return nil }
