package store

import (
	"sync"
	"time"

	"harvester/internal/model"
)

// PageStore records what each crawl run did with every task, in the order
// the tasks finished.
type PageStore struct {
	pages map[string][]model.PageRecord
	mu    sync.RWMutex
}

func NewPageStore() *PageStore {
	return &PageStore{
		pages: make(map[string][]model.PageRecord),
	}
}

func (s *PageStore) AddPage(page model.PageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page.At.IsZero() {
		page.At = time.Now()
	}
	s.pages[page.RunID] = append(s.pages[page.RunID], page)
}

func (s *PageStore) GetPagesByRunID(runID string) []model.PageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]model.PageRecord{}, s.pages[runID]...)
}
