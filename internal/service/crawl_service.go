package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"harvester/internal/config"
	"harvester/internal/crawl"
	"harvester/internal/deadletter"
	"harvester/internal/logging"
	"harvester/internal/metrics"
	"harvester/internal/model"
	"harvester/internal/store"
)

type Options struct {
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// Transport overrides the HTTP transport of the crawl fetcher (tests).
	Transport http.RoundTripper
}

// CrawlRequest overrides the configured seeds and page limit for one run.
type CrawlRequest struct {
	Seeds    []string `json:"seeds,omitempty"`
	MaxPages int      `json:"max_pages,omitempty"`
}

// CrawlService runs crawls followed by the dedupe pass and keeps a record
// of every run. Runs are serialised: they share the artifact folders.
type CrawlService struct {
	cfg        config.CrawlConfig
	pages      PageRepository
	artifacts  *store.ArtifactStore
	deadLetter *deadletter.Queue
	metrics    *metrics.Metrics
	logger     *slog.Logger
	transport  http.RoundTripper
	tracker    runTracker

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewCrawlService(cfg config.CrawlConfig, runs RunRepository, pages PageRepository, opts Options) (*CrawlService, error) {
	dl, err := deadletter.Open(cfg.DeadLetter)
	if err != nil {
		return nil, err
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("crawl")
	}
	return &CrawlService{
		cfg:        cfg,
		pages:      pages,
		artifacts:  store.NewArtifactStore(),
		deadLetter: dl,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		transport:  opts.Transport,
		tracker:    runTracker{runs: runs, logger: opts.Logger},
	}, nil
}

// Run crawls synchronously and returns the finished run record.
func (s *CrawlService) Run(ctx context.Context, req CrawlRequest) (*model.Run, *model.CrawlStats, error) {
	run := s.tracker.create(model.RunKindCrawl)
	stats, err := s.execute(ctx, run, req)
	return run, stats, err
}

// Submit starts a crawl in the background and returns its pending record.
// ctx bounds the crawl, so it must outlive the caller's request.
func (s *CrawlService) Submit(ctx context.Context, req CrawlRequest) *model.Run {
	run := s.tracker.create(model.RunKindCrawl)
	pending := *run
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.execute(ctx, run, req)
	}()
	return &pending
}

// Wait blocks until every submitted crawl has finished.
func (s *CrawlService) Wait() { s.wg.Wait() }

func (s *CrawlService) GetRun(id string) (*model.Run, error) {
	return s.tracker.runs.GetRun(id)
}

func (s *CrawlService) GetPages(runID string) ([]model.PageRecord, error) {
	run, err := s.tracker.runs.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run.Kind != model.RunKindCrawl {
		return nil, fmt.Errorf("run %s is not a crawl", runID)
	}
	return s.pages.GetPagesByRunID(runID), nil
}

func (s *CrawlService) execute(ctx context.Context, run *model.Run, req CrawlRequest) (*model.CrawlStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.start(run)
	log := s.logger.With("run_id", run.ID)

	stats, err := s.crawl(ctx, run.ID, req, log)
	if err == nil && s.cfg.Dedupe {
		var removed int
		removed, err = s.Dedupe()
		if stats != nil {
			stats.Deduped = removed
		}
	}
	s.tracker.finish(run, stats, err)
	return stats, err
}

func (s *CrawlService) crawl(ctx context.Context, runID string, req CrawlRequest, log *slog.Logger) (*model.CrawlStats, error) {
	seeds := req.Seeds
	if len(seeds) == 0 {
		seeds = s.cfg.Seeds
	}
	maxPages := s.cfg.MaxPages
	if req.MaxPages > 0 {
		maxPages = req.MaxPages
	}

	if err := s.artifacts.EnsureFolders(s.cfg.HTMLDir, s.cfg.TextDir, s.cfg.PDFDir); err != nil {
		return nil, err
	}
	fetcher, err := crawl.NewFetcher(crawl.FetcherOptions{
		HTMLTimeout:  s.cfg.HTMLTimeout,
		PDFTimeout:   s.cfg.PDFTimeout,
		UserAgent:    s.cfg.UserAgent,
		Headers:      s.cfg.Headers,
		MaxRetries:   s.cfg.MaxRetries,
		RetryBackoff: s.cfg.RetryBackoff,
		RequestDelay: s.cfg.RequestDelay,
		Transport:    s.transport,
	})
	if err != nil {
		return nil, err
	}

	engine := crawl.NewEngine(fetcher, s.artifacts, crawl.EngineOptions{
		Workers:  s.cfg.Workers,
		MaxPages: maxPages,
		Dirs:     crawl.Dirs{HTML: s.cfg.HTMLDir, Text: s.cfg.TextDir, PDF: s.cfg.PDFDir},
		OnResult: func(r model.TaskResult) {
			s.pages.AddPage(pageRecord(runID, r))
		},
		Metrics:    s.metrics,
		DeadLetter: s.deadLetter,
		Logger:     log,
	})

	log.Info("crawl started", "seeds", seeds, "workers", s.cfg.Workers, "max_pages", maxPages)
	stats, _, err := engine.Run(ctx, seeds)
	return stats, err
}

// Dedupe removes byte-identical artifacts from the three folders and
// returns how many files were removed.
func (s *CrawlService) Dedupe() (int, error) {
	total := 0
	var errs []error
	for _, folder := range []string{s.cfg.HTMLDir, s.cfg.TextDir, s.cfg.PDFDir} {
		removed, err := s.artifacts.Deduplicate(folder)
		for _, path := range removed {
			s.logger.Info("removed duplicate", "path", path)
		}
		total += len(removed)
		s.metrics.DedupeRemoved.Add(float64(len(removed)))
		if err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Info("dedupe finished", "removed", total)
	return total, errors.Join(errs...)
}

func pageRecord(runID string, r model.TaskResult) model.PageRecord {
	rec := model.PageRecord{
		RunID:     runID,
		URL:       r.Task.URL,
		Title:     r.Title,
		Cookies:   r.Task.Cookies,
		Artifacts: r.Artifacts,
		Attempts:  r.Attempts,
		At:        time.Now(),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}
