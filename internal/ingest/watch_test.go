package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/config"
)

func TestPipeline_WatchReindexesChanges(t *testing.T) {
	fx := newFixture(t)
	p := fx.pipeline(t, fx.store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reports := make(chan *Report, 4)
	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, 50*time.Millisecond, func(ctx context.Context) error {
			r, err := p.Run(ctx)
			if err == nil {
				reports <- r
			}
			return err
		})
	}()

	// Give the watcher time to register its directories.
	time.Sleep(100 * time.Millisecond)
	fx.write(t, fx.textDir, "late.json", `{"text": "arrived later"}`)

	select {
	case r := <-reports:
		assert.Equal(t, 1, r.Indexed)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not re-run the pipeline")
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestPipeline_WatchNoSources(t *testing.T) {
	fx := newFixture(t)
	fx.cfg.Sources = []config.SourceConfig{{Path: filepath.Join(fx.root, "missing")}}
	err := fx.pipeline(t, fx.store).Watch(context.Background(), time.Millisecond, nil)
	require.Error(t, err)
}

func TestPipeline_Matches(t *testing.T) {
	fx := newFixture(t)
	p := fx.pipeline(t, fx.store)

	assert.True(t, p.matches(filepath.Join(fx.textDir, "a.json")))
	assert.False(t, p.matches(filepath.Join(fx.textDir, "a.txt")))
	assert.False(t, p.matches(filepath.Join(fx.textDir, "sub", "a.json")))
	assert.False(t, p.matches(filepath.Join(os.TempDir(), "elsewhere.json")))
}
