package vectorstore

import (
	"context"
	"sync"

	"harvester/internal/model"
)

// LazySQLite defers opening the SQLite store under dir to its first use.
// ExistingIDs and Add create the store; Search and Count on a store that was
// never created fail with ErrStoreNotFound.
type LazySQLite struct {
	dir      string
	embedder Embedder

	mu    sync.Mutex
	store *SQLiteStore
}

var _ Store = (*LazySQLite)(nil)

func NewLazySQLite(dir string, embedder Embedder) *LazySQLite {
	return &LazySQLite{dir: dir, embedder: embedder}
}

func (l *LazySQLite) open(create bool) (*SQLiteStore, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store != nil {
		return l.store, nil
	}
	var (
		s   *SQLiteStore
		err error
	)
	if create {
		s, err = OpenSQLite(l.dir, l.embedder)
	} else {
		s, err = OpenSQLiteExisting(l.dir, l.embedder)
	}
	if err != nil {
		return nil, err
	}
	l.store = s
	return s, nil
}

func (l *LazySQLite) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	s, err := l.open(true)
	if err != nil {
		return nil, err
	}
	return s.ExistingIDs(ctx)
}

func (l *LazySQLite) Add(ctx context.Context, chunks []model.Chunk) (int, error) {
	s, err := l.open(true)
	if err != nil {
		return 0, err
	}
	return s.Add(ctx, chunks)
}

func (l *LazySQLite) Search(ctx context.Context, query string, k int, threshold float64) ([]model.SearchResult, error) {
	s, err := l.open(false)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, query, k, threshold)
}

func (l *LazySQLite) Count(ctx context.Context) (int, error) {
	s, err := l.open(false)
	if err != nil {
		return 0, err
	}
	return s.Count(ctx)
}

func (l *LazySQLite) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store == nil {
		return nil
	}
	err := l.store.Close()
	l.store = nil
	return err
}
