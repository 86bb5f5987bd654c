package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"harvester/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBFile is the database file name inside a persist directory.
const DBFile = "index.db"

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id        TEXT PRIMARY KEY,
	content   TEXT NOT NULL,
	metadata  TEXT NOT NULL,
	embedding BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteStore keeps chunks in a single SQLite file and searches them by a
// full scan over the stored embeddings.
type SQLiteStore struct {
	db       *sql.DB
	embedder Embedder
}

// OpenSQLite opens or creates the store under dir.
func OpenSQLite(dir string, embedder Embedder) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return openSQLite(filepath.Join(dir, DBFile), embedder)
}

// OpenSQLiteExisting opens the store under dir and fails with
// ErrStoreNotFound when it was never created.
func OpenSQLiteExisting(dir string, embedder Embedder) (*SQLiteStore, error) {
	path := filepath.Join(dir, DBFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", dir, ErrStoreNotFound)
	}
	return openSQLite(path, embedder)
}

func openSQLite(path string, embedder Embedder) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SQLiteStore{db: db, embedder: embedder}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	want := strconv.Itoa(s.embedder.Dims())
	var dims string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = 'dims'").Scan(&dims)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec("INSERT INTO store_meta(key, value) VALUES('dims', ?)", want); err != nil {
			return fmt.Errorf("set embedding dims: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read embedding dims: %w", err)
	case dims != want:
		return fmt.Errorf("store was built with %s-dimensional embeddings, embedder has %s", dims, want)
	}
	return nil
}

func (s *SQLiteStore) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// Add inserts the chunks in one transaction and returns how many were new.
func (s *SQLiteStore) Add(ctx context.Context, chunks []model.Chunk) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO chunks(id, content, metadata, embedding) VALUES(?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return 0, fmt.Errorf("encode metadata of %s: %w", c.ID, err)
		}
		res, err := stmt.ExecContext(ctx, c.ID, c.Content, string(meta), encodeVector(s.embedder.Embed(c.Content)))
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", c.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return added, nil
}

func (s *SQLiteStore) Search(ctx context.Context, query string, k int, threshold float64) ([]model.SearchResult, error) {
	q := s.embedder.Embed(query)

	rows, err := s.db.QueryContext(ctx, "SELECT id, content, metadata, embedding FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}
	defer rows.Close()

	var results []model.SearchResult
	for rows.Next() {
		var (
			r    model.SearchResult
			meta string
			blob []byte
		)
		if err := rows.Scan(&r.ID, &r.Content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		r.Score = Cosine(q, decodeVector(blob))
		if r.Score < threshold {
			continue
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", r.ID, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rank(results, k, threshold), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
