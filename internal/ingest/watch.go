package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 2 * time.Second

// Watch calls rerun whenever matching source files changed and then stayed
// quiet for debounce, until ctx is done. A nil rerun runs the pipeline
// itself. A failed re-run does not stop watching.
func (p *Pipeline) Watch(ctx context.Context, debounce time.Duration, rerun func(context.Context) error) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if rerun == nil {
		rerun = func(ctx context.Context) error {
			_, err := p.Run(ctx)
			return err
		}
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	watched := 0
	for _, src := range p.sources {
		n, err := addWatches(w, src.Path)
		if err != nil {
			p.logger.Warn("not watching source", "path", src.Path, "error", err)
			continue
		}
		watched += n
	}
	if watched == 0 {
		return fmt.Errorf("no source directory to watch")
	}
	p.logger.Info("watching sources", "dirs", watched, "debounce", debounce)

	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	dirty := false
	var lastChange time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if n, err := addWatches(w, ev.Name); err == nil && n > 0 {
					dirty = true
					lastChange = time.Now()
					continue
				}
			}
			if p.matches(ev.Name) {
				p.logger.Debug("source change detected", "path", ev.Name, "op", ev.Op.String())
				dirty = true
				lastChange = time.Now()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			if !dirty || time.Since(lastChange) < debounce {
				continue
			}
			dirty = false
			if err := rerun(ctx); err != nil {
				p.logger.Error("ingestion run failed", "error", err)
			}
		}
	}
}

// matches reports whether path is selected by the pattern of a source.
func (p *Pipeline) matches(path string) bool {
	for _, src := range p.sources {
		rel, err := filepath.Rel(src.Path, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if ok, _ := doublestar.Match(src.Pattern, filepath.ToSlash(rel)); ok {
			return true
		}
	}
	return false
}

// addWatches watches root and every directory below it and returns how
// many directories were added. A root that is not a directory adds none.
func addWatches(w *fsnotify.Watcher, root string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}
