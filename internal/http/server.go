package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"harvester/internal/logging"
	"harvester/internal/metrics"
	"harvester/internal/search"
	"harvester/internal/service"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	router   *http.ServeMux
	crawl    *service.CrawlService
	ingest   *service.IngestService
	searcher *search.Searcher
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// runCtx bounds runs submitted over HTTP. It outlives single requests.
	runCtx context.Context
}

func NewServer(runCtx context.Context, crawl *service.CrawlService, ingest *service.IngestService, searcher *search.Searcher, m *metrics.Metrics) *Server {
	server := &Server{
		router:   http.NewServeMux(),
		crawl:    crawl,
		ingest:   ingest,
		searcher: searcher,
		metrics:  m,
		logger:   logging.New("http"),
		runCtx:   runCtx,
	}
	server.router.HandleFunc("/crawl", server.handleCrawl)
	server.router.HandleFunc("/ingest", server.handleIngest)
	server.router.HandleFunc("/runs/{id}", server.handleGetRun)
	server.router.HandleFunc("/runs/{id}/pages", server.handleGetPages)
	server.router.HandleFunc("/search", server.handleSearch)
	server.router.HandleFunc("/healthz", server.handleHealth)
	if m != nil {
		server.router.Handle("/metrics", m.Handler())
	}
	return server
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
