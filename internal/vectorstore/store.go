// Package vectorstore persists chunks together with their embeddings and
// answers similarity queries over them.
package vectorstore

import (
	"context"
	"errors"
	"math"
	"sort"

	"harvester/internal/model"
)

// ErrStoreNotFound is returned when opening a store that was never created.
var ErrStoreNotFound = errors.New("vector store not found, run ingest first")

// Store is the boundary between ingestion and the similarity index. Add is
// additive: an id already present is left untouched.
type Store interface {
	ExistingIDs(ctx context.Context) (map[string]struct{}, error)
	Add(ctx context.Context, chunks []model.Chunk) (int, error)
	Search(ctx context.Context, query string, k int, threshold float64) ([]model.SearchResult, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rank keeps results scoring at least threshold, best first, at most k.
// Ties are broken by id so the order is stable.
func rank(results []model.SearchResult, k int, threshold float64) []model.SearchResult {
	kept := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	sort.Slice(kept, func(a, b int) bool {
		if kept[a].Score == kept[b].Score {
			return kept[a].ID < kept[b].ID
		}
		return kept[a].Score > kept[b].Score
	})
	if k > 0 && len(kept) > k {
		kept = kept[:k]
	}
	return kept
}
