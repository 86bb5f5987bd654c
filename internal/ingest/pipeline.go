// Package ingest turns JSON source files into chunks and adds the ones the
// vector store does not have yet.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"harvester/internal/chunk"
	"harvester/internal/config"
	"harvester/internal/deadletter"
	"harvester/internal/jsonval"
	"harvester/internal/logging"
	"harvester/internal/metrics"
	"harvester/internal/model"
	"harvester/internal/vectorstore"
)

const defaultPattern = "*.json"

// Source is an input directory resolved to the chunker it is read with.
type Source struct {
	Path     string
	Pattern  string
	Strategy config.Strategy
	Chunker  chunk.Chunker
}

// FileResult is the outcome of parsing and chunking one input file.
type FileResult struct {
	Path   string
	FileID string
	Chunks []model.Chunk
	Err    error
}

// Report summarises one pipeline run.
type Report struct {
	Files          int      `json:"files"`
	Skipped        int      `json:"skipped"`
	MissingSources []string `json:"missing_sources,omitempty"`
	Chunks         int      `json:"chunks"`
	New            int      `json:"new"`
	Indexed        int      `json:"indexed"`
	Batches        int      `json:"batches"`
	Total          int      `json:"total"`
}

type Options struct {
	Metrics    *metrics.Metrics
	DeadLetter *deadletter.Queue
	Logger     *slog.Logger
}

type Pipeline struct {
	sources   []Source
	store     vectorstore.Store
	batchSize int
	workers   int
	dumpDir   string

	metrics    *metrics.Metrics
	deadLetter *deadletter.Queue
	logger     *slog.Logger
}

// NewPipeline resolves every configured source to its chunker. Chunk dumps
// are written only when cfg.Dump is set.
func NewPipeline(cfg config.IngestConfig, store vectorstore.Store, opts Options) (*Pipeline, error) {
	window, err := chunk.NewWindow(chunk.Config{
		Size:           cfg.ChunkSize,
		Overlap:        cfg.ChunkOverlap,
		MetadataMaxLen: cfg.MetadataMaxLen,
	})
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}

	sources := make([]Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		src := Source{Path: sc.Path, Pattern: sc.Pattern, Strategy: sc.Strategy}
		if src.Pattern == "" {
			src.Pattern = defaultPattern
		}
		if !doublestar.ValidatePattern(src.Pattern) {
			return nil, fmt.Errorf("source %s: invalid pattern %q", sc.Path, src.Pattern)
		}
		switch sc.Strategy {
		case config.StrategyStructured:
			src.Chunker = chunk.NewSections()
		case config.StrategyDefault, "":
			src.Strategy = config.StrategyDefault
			src.Chunker = window
		default:
			return nil, fmt.Errorf("source %s: unknown strategy %q", sc.Path, sc.Strategy)
		}
		sources = append(sources, src)
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("ingest")
	}

	p := &Pipeline{
		sources:    sources,
		store:      store,
		batchSize:  cfg.BatchSize,
		workers:    cfg.Workers,
		metrics:    opts.Metrics,
		deadLetter: opts.DeadLetter,
		logger:     opts.Logger,
	}
	if cfg.Dump {
		p.dumpDir = cfg.DumpDir
	}
	return p, nil
}

func (p *Pipeline) Sources() []Source { return p.sources }

type job struct {
	source *Source
	path   string
}

// Run processes every source file once. Parsing and chunking may run on
// several workers; filtering and indexing follow file order. A failed
// batch ends the run with its error; earlier batches stay committed.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	existing, err := p.store.ExistingIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list existing vectors: %w", err)
	}
	p.logger.Info("checked existing vectors", "count", len(existing))

	jobs, err := p.collect(report)
	if err != nil {
		return report, err
	}

	results := make([]FileResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.processFile(jobs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	seen := make(map[string]struct{})
	var pending []model.Chunk
	for _, res := range results {
		if res.Err != nil {
			p.fileFailed(res)
			report.Skipped++
			continue
		}
		report.Files++
		report.Chunks += len(res.Chunks)
		p.metrics.IngestFiles.WithLabelValues("ok").Inc()

		if p.dumpDir != "" {
			if err := writeDump(p.dumpDir, res.FileID, res.Chunks); err != nil {
				return report, err
			}
		}

		for _, c := range res.Chunks {
			if _, ok := existing[c.ID]; ok {
				p.metrics.IngestChunks.WithLabelValues("existing").Inc()
				continue
			}
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			pending = append(pending, c)
		}
	}
	report.New = len(pending)
	p.metrics.IngestChunks.WithLabelValues("new").Add(float64(len(pending)))
	p.logger.Info("indexing", "count", len(pending), "batch", p.batchSize)

	for start := 0; start < len(pending); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := min(start+p.batchSize, len(pending))
		n, err := p.store.Add(ctx, pending[start:end])
		if err != nil {
			return report, fmt.Errorf("index batch %d: %w", report.Batches+1, err)
		}
		report.Batches++
		report.Indexed += n
		p.metrics.IngestChunks.WithLabelValues("indexed").Add(float64(n))
	}

	total, err := p.store.Count(ctx)
	if err != nil {
		return report, err
	}
	report.Total = total
	p.logger.Info("ingestion complete", "files", report.Files, "skipped", report.Skipped,
		"indexed", report.Indexed, "total", total)
	return report, nil
}

// collect lists the matching files of every source in a stable order. A
// source directory that does not exist is skipped.
func (p *Pipeline) collect(report *Report) ([]job, error) {
	var jobs []job
	for i := range p.sources {
		src := &p.sources[i]
		info, err := os.Stat(src.Path)
		if err != nil || !info.IsDir() {
			p.logger.Warn("skipping source", "path", src.Path)
			report.MissingSources = append(report.MissingSources, src.Path)
			continue
		}

		matches, err := doublestar.Glob(os.DirFS(src.Path), src.Pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("match %s in %s: %w", src.Pattern, src.Path, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			jobs = append(jobs, job{source: src, path: filepath.Join(src.Path, filepath.FromSlash(m))})
		}
	}
	return jobs, nil
}

// FileID is the file name without its extension.
func FileID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (p *Pipeline) processFile(j job) FileResult {
	res := FileResult{Path: j.path, FileID: FileID(j.path)}
	p.logger.Debug("processing file", "file_id", res.FileID, "path", j.path)

	data, err := os.ReadFile(j.path)
	if err != nil {
		res.Err = fmt.Errorf("read: %w", err)
		return res
	}
	doc, err := jsonval.Parse(data)
	if err != nil {
		res.Err = err
		return res
	}
	chunks, err := j.source.Chunker.Chunk(res.FileID, doc)
	if err != nil {
		res.Err = err
		return res
	}
	if chunks == nil {
		chunks = []model.Chunk{}
	}
	res.Chunks = chunks
	return res
}

func (p *Pipeline) fileFailed(res FileResult) {
	label := "error"
	switch {
	case errors.Is(res.Err, jsonval.ErrInvalidJSON):
		label = "invalid"
		p.logger.Warn("invalid JSON", "path", res.Path)
	case errors.Is(res.Err, chunk.ErrUnexpectedShape):
		label = "unexpected_shape"
		p.logger.Warn("unexpected JSON structure", "path", res.Path, "error", res.Err)
	default:
		p.logger.Warn("skipping file", "path", res.Path, "error", res.Err)
	}
	p.metrics.IngestFiles.WithLabelValues(label).Inc()
	if err := p.deadLetter.Put(deadletter.KindInputFile, res.Path, res.Err); err != nil {
		p.logger.Error("dead-letter write failed", "path", res.Path, "error", err)
	}
}
