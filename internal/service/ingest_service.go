package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"harvester/internal/config"
	"harvester/internal/deadletter"
	"harvester/internal/ingest"
	"harvester/internal/logging"
	"harvester/internal/metrics"
	"harvester/internal/model"
	"harvester/internal/vectorstore"
)

// IngestService runs the ingestion pipeline against one vector store and
// records every run. Runs are serialised.
type IngestService struct {
	pipeline *ingest.Pipeline
	logger   *slog.Logger
	tracker  runTracker

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewIngestService(cfg config.IngestConfig, store vectorstore.Store, runs RunRepository, opts Options) (*IngestService, error) {
	dl, err := deadletter.Open(cfg.DeadLetter)
	if err != nil {
		return nil, err
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("ingest")
	}
	p, err := ingest.NewPipeline(cfg, store, ingest.Options{
		Metrics:    opts.Metrics,
		DeadLetter: dl,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &IngestService{
		pipeline: p,
		logger:   opts.Logger,
		tracker:  runTracker{runs: runs, logger: opts.Logger},
	}, nil
}

func (s *IngestService) Run(ctx context.Context) (*model.Run, *ingest.Report, error) {
	run := s.tracker.create(model.RunKindIngest)
	report, err := s.execute(ctx, run)
	return run, report, err
}

// Submit starts an ingestion run in the background and returns its
// pending record.
func (s *IngestService) Submit(ctx context.Context) *model.Run {
	run := s.tracker.create(model.RunKindIngest)
	pending := *run
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.execute(ctx, run)
	}()
	return &pending
}

// Wait blocks until every submitted run has finished.
func (s *IngestService) Wait() { s.wg.Wait() }

func (s *IngestService) GetRun(id string) (*model.Run, error) {
	return s.tracker.runs.GetRun(id)
}

// Watch re-runs ingestion on source changes until ctx is done. Every
// re-run gets its own run record and waits for a run already in progress.
func (s *IngestService) Watch(ctx context.Context, debounce time.Duration) error {
	return s.pipeline.Watch(ctx, debounce, func(ctx context.Context) error {
		_, err := s.execute(ctx, s.tracker.create(model.RunKindIngest))
		return err
	})
}

func (s *IngestService) execute(ctx context.Context, run *model.Run) (*ingest.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.start(run)
	report, err := s.pipeline.Run(ctx)
	s.tracker.finish(run, report, err)
	return report, err
}
