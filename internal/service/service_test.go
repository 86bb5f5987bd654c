package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/config"
	"harvester/internal/ingest"
	"harvester/internal/model"
	"harvester/internal/store"
	"harvester/internal/vectorstore"
)

func mirrorSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><head><title>Campus</title></head><body><a href="/a">A</a><a href="/b">B</a><a href="/gone">Gone</a></body></html>`)
	})
	// /a and /b serve the same bytes, so their artifacts are duplicates.
	mirror := func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>mirrored content</p></body></html>`)
	}
	mux.HandleFunc("/a", mirror)
	mux.HandleFunc("/b", mirror)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func crawlConfig(t *testing.T, seed string) config.CrawlConfig {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default().Crawl
	cfg.Seeds = []string{seed}
	cfg.HTMLDir = filepath.Join(root, "clgSite")
	cfg.TextDir = filepath.Join(root, "clgText")
	cfg.PDFDir = filepath.Join(root, "clgPDF")
	cfg.DeadLetter = filepath.Join(root, "crawl_deadletter.jsonl")
	return cfg
}

func TestCrawlService_Run(t *testing.T) {
	srv := mirrorSite(t)
	cfg := crawlConfig(t, srv.URL+"/")
	runs, pages := store.NewRunStore(), store.NewPageStore()

	svc, err := NewCrawlService(cfg, runs, pages, Options{})
	require.NoError(t, err)

	run, stats, err := svc.Run(context.Background(), CrawlRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 4, stats.Visited)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.Deduped)

	stored, err := svc.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, stored.Status)
	assert.Equal(t, stats, stored.Summary)

	html, err := os.ReadDir(cfg.HTMLDir)
	require.NoError(t, err)
	assert.Len(t, html, 2, "one of the mirrored pages is removed")
	_, err = os.Stat(filepath.Join(cfg.HTMLDir, "_a.html"))
	assert.NoError(t, err, "the lexically first copy is kept")

	recs, err := svc.GetPages(run.ID)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	var failed []string
	titles := map[string]string{}
	for _, r := range recs {
		assert.Equal(t, run.ID, r.RunID)
		titles[r.URL] = r.Title
		if r.Error != "" {
			failed = append(failed, r.URL)
		}
	}
	assert.Equal(t, []string{srv.URL + "/gone"}, failed)
	assert.Equal(t, "Campus", titles[srv.URL+"/"])
	assert.Empty(t, titles[srv.URL+"/a"])
}

func TestCrawlService_RequestOverrides(t *testing.T) {
	srv := mirrorSite(t)
	cfg := crawlConfig(t, "https://unused.example/")
	cfg.Dedupe = false

	svc, err := NewCrawlService(cfg, store.NewRunStore(), store.NewPageStore(), Options{})
	require.NoError(t, err)

	_, stats, err := svc.Run(context.Background(), CrawlRequest{Seeds: []string{srv.URL + "/"}, MaxPages: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Visited)
	assert.Zero(t, stats.Deduped)
}

func TestCrawlService_SubmitCancelled(t *testing.T) {
	srv := mirrorSite(t)
	cfg := crawlConfig(t, srv.URL+"/")
	svc, err := NewCrawlService(cfg, store.NewRunStore(), store.NewPageStore(), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pending := svc.Submit(ctx, CrawlRequest{})
	assert.Equal(t, model.RunStatusPending, pending.Status)
	svc.Wait()

	run, err := svc.GetRun(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCancelled, run.Status)
	assert.NotEmpty(t, run.Error)
}

func TestCrawlService_InvalidSeedFails(t *testing.T) {
	cfg := crawlConfig(t, "not a url")
	svc, err := NewCrawlService(cfg, store.NewRunStore(), store.NewPageStore(), Options{})
	require.NoError(t, err)

	run, _, err := svc.Run(context.Background(), CrawlRequest{})
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)

	_, err = svc.GetPages("unknown")
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func ingestConfig(t *testing.T) (config.IngestConfig, string) {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "text_json_folder")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "about.json"),
		[]byte(`{"text": "About the institute", "metadata": {"doc_name": "about"}}`), 0o644))

	cfg := config.Default().Ingest
	cfg.Sources = []config.SourceConfig{{Path: src, Strategy: config.StrategyDefault}}
	cfg.DumpDir = filepath.Join(root, "chunkJson")
	return cfg, src
}

func TestIngestService_Run(t *testing.T) {
	cfg, _ := ingestConfig(t)
	vs := vectorstore.NewMemStore(vectorstore.NewHashEmbedder(32))
	runs := store.NewRunStore()

	svc, err := NewIngestService(cfg, vs, runs, Options{})
	require.NoError(t, err)

	run, report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, report.Indexed)

	run, report, err = svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Indexed)

	stored, err := svc.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunKindIngest, stored.Kind)
	summary, ok := stored.Summary.(*ingest.Report)
	require.True(t, ok)
	assert.Equal(t, 1, summary.Total)
}

type brokenStore struct{ vectorstore.Store }

func (brokenStore) ExistingIDs(context.Context) (map[string]struct{}, error) {
	return nil, errors.New("database is locked")
}

func TestIngestService_SubmitFailure(t *testing.T) {
	cfg, _ := ingestConfig(t)
	svc, err := NewIngestService(cfg, brokenStore{}, store.NewRunStore(), Options{})
	require.NoError(t, err)

	pending := svc.Submit(context.Background())
	svc.Wait()

	run, err := svc.GetRun(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "database is locked")
}

func TestIngestService_WatchWaitsForRunInProgress(t *testing.T) {
	cfg, src := ingestConfig(t)
	runs := store.NewRunStore()
	svc, err := NewIngestService(cfg, vectorstore.NewMemStore(vectorstore.NewHashEmbedder(32)), runs, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hold the lock the way a submitted run does.
	svc.mu.Lock()
	done := make(chan error, 1)
	go func() { done <- svc.Watch(ctx, 20*time.Millisecond) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(src, "late.json"), []byte(`{"text": "arrived later"}`), 0o644))

	require.Eventually(t, func() bool { return len(runs.ListRuns()) > 0 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	for _, r := range runs.ListRuns() {
		assert.Equal(t, model.RunStatusPending, r.Status)
	}

	svc.mu.Unlock()
	require.Eventually(t, func() bool {
		for _, r := range runs.ListRuns() {
			if r.Status != model.RunStatusCompleted {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
