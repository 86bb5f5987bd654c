package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"harvester/internal/model"
)

var ErrRunNotFound = errors.New("run not found")

// RunStore keeps the records of crawl and ingestion runs in memory.
type RunStore struct {
	runs map[string]*model.Run
	mu   sync.RWMutex
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*model.Run),
	}
}

func (s *RunStore) CreateRun(run *model.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.CreatedAt = time.Now()
	run.UpdatedAt = run.CreatedAt
	cp := *run
	s.runs[run.ID] = &cp
}

// GetRun returns a copy of the run.
func (s *RunStore) GetRun(id string) (*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

func (s *RunStore) UpdateRun(id string, update func(*model.Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	update(run)
	run.UpdatedAt = time.Now()
	return nil
}

// ListRuns returns copies of every run, oldest first.
func (s *RunStore) ListRuns() []*model.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*model.Run, 0, len(s.runs))
	for _, r := range s.runs {
		cp := *r
		runs = append(runs, &cp)
	}
	sort.Slice(runs, func(a, b int) bool {
		if runs[a].CreatedAt.Equal(runs[b].CreatedAt) {
			return runs[a].ID < runs[b].ID
		}
		return runs[a].CreatedAt.Before(runs[b].CreatedAt)
	})
	return runs
}
