package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"harvester/internal/deadletter"
	"harvester/internal/logging"
	"harvester/internal/metrics"
	"harvester/internal/model"
)

// ArtifactWriter persists crawl output. Implemented by store.ArtifactStore.
type ArtifactWriter interface {
	Write(folder, base, ext string, content []byte) (string, error)
	WriteStream(folder, base, ext string, r io.Reader) (string, int64, error)
}

// Dirs are the three artifact folders of a crawl.
type Dirs struct {
	HTML string
	Text string
	PDF  string
}

type EngineOptions struct {
	Workers  int
	MaxPages int
	Dirs     Dirs

	// OnResult is called after every processed task, from the worker
	// that processed it.
	OnResult func(model.TaskResult)

	Metrics    *metrics.Metrics
	DeadLetter *deadletter.Queue
	Logger     *slog.Logger
}

type Engine struct {
	workerCount int
	maxPages    int
	dirs        Dirs
	fetcher     *Fetcher
	artifacts   ArtifactWriter
	onResult    func(model.TaskResult)
	metrics     *metrics.Metrics
	deadLetter  *deadletter.Queue
	logger      *slog.Logger
}

func NewEngine(fetcher *Fetcher, artifacts ArtifactWriter, opts EngineOptions) *Engine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("crawl")
	}
	return &Engine{
		workerCount: opts.Workers,
		maxPages:    opts.MaxPages,
		dirs:        opts.Dirs,
		fetcher:     fetcher,
		artifacts:   artifacts,
		onResult:    opts.OnResult,
		metrics:     opts.Metrics,
		deadLetter:  opts.DeadLetter,
		logger:      opts.Logger,
	}
}

// crawlRun is everything one Run owns: the origins, the frontier, the
// visited set and the running stats. It is discarded when Run returns.
type crawlRun struct {
	origins  []*url.URL
	frontier *Frontier
	visited  *VisitedSet

	mu    sync.Mutex
	taken int // marked visited, still processing
	stats model.CrawlStats
}

func (r *crawlRun) sameOrigin(u *url.URL) bool {
	for _, o := range r.origins {
		if SameOrigin(o, u) {
			return true
		}
	}
	return false
}

// Run crawls from the seeds until the frontier is empty, MaxPages tasks
// were taken, or ctx is cancelled. Every task taken is marked visited
// exactly once whatever its outcome, and a failed task is never re-queued.
func (e *Engine) Run(ctx context.Context, seeds []string) (*model.CrawlStats, *VisitedSet, error) {
	run := &crawlRun{
		frontier: NewFrontier(),
		visited:  NewVisitedSet(),
	}
	run.stats.StartedAt = time.Now()

	for _, s := range seeds {
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, nil, fmt.Errorf("invalid seed URL %q", s)
		}
		run.origins = append(run.origins, u)
	}
	// Reverse so the first seed is popped first.
	for i := len(seeds) - 1; i >= 0; i-- {
		run.frontier.Push(model.CrawlTask{URL: seeds[i], Cookies: e.fetcher.CookieState(seeds[i])})
	}

	stop := context.AfterFunc(ctx, run.frontier.Close)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.workerCount; i++ {
		g.Go(func() error {
			e.worker(gctx, run)
			return nil
		})
	}
	_ = g.Wait()

	run.mu.Lock()
	run.stats.FinishedAt = time.Now()
	stats := run.stats
	run.mu.Unlock()

	e.logger.Info("crawl finished",
		"visited", stats.Visited, "html", stats.HTMLPages, "pdf", stats.PDFs,
		"failed", stats.Failed, "skipped", stats.Skipped)

	if err := ctx.Err(); err != nil {
		return &stats, run.visited, err
	}
	return &stats, run.visited, nil
}

func (e *Engine) worker(ctx context.Context, run *crawlRun) {
	for {
		task, ok := run.frontier.Pop()
		if !ok {
			return
		}
		e.handle(ctx, run, task)
		run.frontier.Done()
	}
}

func (e *Engine) handle(ctx context.Context, run *crawlRun, task model.CrawlTask) {
	if ctx.Err() != nil {
		return
	}

	// The identity is the cookie state the task is fetched under now.
	task.Cookies = e.fetcher.CookieState(task.URL)

	run.mu.Lock()
	if e.maxPages > 0 && run.stats.Visited+run.taken >= e.maxPages {
		run.mu.Unlock()
		run.frontier.Close()
		return
	}
	if !run.visited.MarkIfNotVisited(task.Key()) {
		run.stats.Skipped++
		run.mu.Unlock()
		e.logger.Debug("skipping already visited URL", "url", task.URL)
		e.metrics.CrawlTasks.WithLabelValues("skipped").Inc()
		return
	}
	run.taken++
	run.mu.Unlock()

	result := e.processTask(ctx, task)

	run.mu.Lock()
	run.taken--
	run.stats.Visited++
	if result.OK() {
		for _, a := range result.Artifacts {
			switch a.Kind {
			case model.ArtifactHTML:
				run.stats.HTMLPages++
			case model.ArtifactPDF:
				run.stats.PDFs++
			}
		}
	} else {
		run.stats.Failed++
	}
	run.mu.Unlock()

	if e.onResult != nil {
		e.onResult(result)
	}
	if !result.OK() {
		e.logger.Warn("fetch failed", "url", task.URL, "attempts", result.Attempts, "error", result.Err)
		e.metrics.CrawlTasks.WithLabelValues("failed").Inc()
		if err := e.deadLetter.Put(deadletter.KindCrawlTask, task.URL, result.Err); err != nil {
			e.logger.Error("dead-letter write failed", "url", task.URL, "error", err)
		}
		return
	}
	e.metrics.CrawlTasks.WithLabelValues("ok").Inc()

	var next []model.CrawlTask
	for _, link := range result.Links {
		u, err := url.Parse(link)
		if err != nil || !run.sameOrigin(u) {
			continue
		}
		t := model.CrawlTask{URL: link, Cookies: e.fetcher.CookieState(link)}
		if run.visited.Contains(t.Key()) {
			continue
		}
		next = append(next, t)
	}
	if n := run.frontier.Push(next...); n > 0 {
		e.logger.Debug("enqueued links", "url", task.URL, "count", n)
	}
}

// processTask fetches one task and writes its artifacts. It never panics
// the run: every failure is reported in the result.
func (e *Engine) processTask(ctx context.Context, task model.CrawlTask) model.TaskResult {
	if IsPDF(task.URL) {
		return e.processPDF(ctx, task)
	}
	return e.processHTML(ctx, task)
}

func (e *Engine) processPDF(ctx context.Context, task model.CrawlTask) model.TaskResult {
	result := model.TaskResult{Task: task}
	e.logger.Info("fetching", "url", task.URL, "kind", "pdf")

	var art model.Artifact
	attempts, err := e.fetcher.StreamPDF(ctx, task.URL, func(body io.Reader) error {
		name, n, err := e.artifacts.WriteStream(e.dirs.PDF, PDFName(task.URL), ".pdf", body)
		if err != nil {
			return err
		}
		art = model.Artifact{Kind: model.ArtifactPDF, Folder: e.dirs.PDF, Name: name, Size: n}
		return nil
	})
	result.Attempts = attempts
	if err != nil {
		result.Err = err
		return result
	}

	result.Artifacts = append(result.Artifacts, art)
	e.metrics.Artifacts.WithLabelValues(string(model.ArtifactPDF)).Inc()
	e.logger.Info("saved artifact", "url", task.URL, "folder", art.Folder, "file", art.Name, "bytes", art.Size)
	return result
}

func (e *Engine) processHTML(ctx context.Context, task model.CrawlTask) model.TaskResult {
	result := model.TaskResult{Task: task}
	e.logger.Info("fetching", "url", task.URL, "kind", "html")

	res, attempts, err := e.fetcher.FetchHTML(ctx, task.URL)
	result.Attempts = attempts
	if err != nil {
		result.Err = err
		return result
	}

	page, err := ParsePage(task.URL, res.Body)
	if err != nil {
		result.Err = fmt.Errorf("parse page: %w", err)
		return result
	}

	result.Title = page.Title

	base := SafeName(task.URL)
	htmlName, err := e.artifacts.Write(e.dirs.HTML, base, ".html", []byte(page.Pretty))
	if err != nil {
		result.Err = fmt.Errorf("save html: %w", err)
		return result
	}
	result.Artifacts = append(result.Artifacts, model.Artifact{
		Kind: model.ArtifactHTML, Folder: e.dirs.HTML, Name: htmlName, Size: int64(len(page.Pretty)),
	})
	e.metrics.Artifacts.WithLabelValues(string(model.ArtifactHTML)).Inc()

	textName, err := e.artifacts.Write(e.dirs.Text, base, ".txt", []byte(page.Text))
	if err != nil {
		result.Err = fmt.Errorf("save text: %w", err)
		return result
	}
	result.Artifacts = append(result.Artifacts, model.Artifact{
		Kind: model.ArtifactText, Folder: e.dirs.Text, Name: textName, Size: int64(len(page.Text)),
	})
	e.metrics.Artifacts.WithLabelValues(string(model.ArtifactText)).Inc()

	e.logger.Info("saved artifact", "url", task.URL, "html", htmlName, "text", textName, "links", len(page.Links))
	result.Links = page.Links
	return result
}
