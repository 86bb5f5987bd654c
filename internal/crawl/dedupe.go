package crawl

import (
	"sync"

	"harvester/internal/model"
)

// VisitedSet holds every task identity already taken for processing,
// whatever its outcome. It only grows.
type VisitedSet struct {
	keys map[model.TaskKey]struct{}
	mu   sync.RWMutex
}

func NewVisitedSet() *VisitedSet {
	return &VisitedSet{
		keys: make(map[model.TaskKey]struct{}),
	}
}

// MarkIfNotVisited inserts key and reports whether it was absent. The
// check and the insert happen under one lock.
func (s *VisitedSet) MarkIfNotVisited(key model.TaskKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *VisitedSet) Contains(key model.TaskKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.keys[key]
	return ok
}

func (s *VisitedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.keys)
}

// Keys returns a copy of the set.
func (s *VisitedSet) Keys() []model.TaskKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TaskKey, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	return out
}
