// Package search answers similarity queries against the vector store.
package search

import (
	"context"
	"errors"
	"strings"

	"harvester/internal/config"
	"harvester/internal/model"
	"harvester/internal/vectorstore"
)

var ErrEmptyQuery = errors.New("query is empty")

type Query struct {
	Text string
	// K and Threshold fall back to the configured defaults when unset.
	K         int
	Threshold *float64
}

type Searcher struct {
	store    vectorstore.Store
	defaults config.SearchConfig
}

func NewSearcher(store vectorstore.Store, defaults config.SearchConfig) *Searcher {
	return &Searcher{store: store, defaults: defaults}
}

// Search returns at most K chunks scoring at least Threshold, best first.
func (s *Searcher) Search(ctx context.Context, q Query) ([]model.SearchResult, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	k := q.K
	if k <= 0 {
		k = s.defaults.K
	}
	threshold := s.defaults.ScoreThreshold
	if q.Threshold != nil {
		threshold = *q.Threshold
	}

	results, err := s.store.Search(ctx, text, k, threshold)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []model.SearchResult{}
	}
	return results, nil
}
