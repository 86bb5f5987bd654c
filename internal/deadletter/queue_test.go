package deadletter

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PutAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq", "crawl.jsonl")
	q, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, q.Put(KindCrawlTask, "https://site.example/a", errors.New("HTTP 500")))
	require.NoError(t, q.Put(KindInputFile, "docs/bad.json", errors.New("invalid JSON")))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, KindCrawlTask, entries[0].Kind)
	assert.Equal(t, "https://site.example/a", entries[0].Subject)
	assert.Equal(t, "HTTP 500", entries[0].Reason)
	assert.NotEmpty(t, entries[0].ID)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.False(t, entries[1].Time.IsZero())
}

func TestQueue_NilIsNoop(t *testing.T) {
	q, err := Open("")
	require.NoError(t, err)
	assert.Nil(t, q)
	assert.NoError(t, q.Put(KindCrawlTask, "x", errors.New("y")))
}

func TestRead_MissingFile(t *testing.T) {
	entries, err := Read(filepath.Join(t.TempDir(), "none.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
