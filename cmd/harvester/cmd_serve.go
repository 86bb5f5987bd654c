package main

import (
	"errors"

	"github.com/spf13/cobra"

	httppkg "harvester/internal/http"
	"harvester/internal/logging"
	"harvester/internal/metrics"
	"harvester/internal/search"
	"harvester/internal/service"
	"harvester/internal/store"
	"harvester/internal/vectorstore"
)

var serveFlags struct {
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve crawl, ingest and search over HTTP",
	Long: `Starts the HTTP server. POST /crawl and POST /ingest start background
runs, GET /runs/{id} reports their status and GET /search queries the
vector store. Stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr := cfg.Server.Addr
	if serveFlags.addr != "" {
		addr = serveFlags.addr
	}

	// The store is created by the first ingestion; searches fail until then.
	vs := vectorstore.NewLazySQLite(cfg.Ingest.PersistDir, vectorstore.NewHashEmbedder(cfg.Ingest.EmbeddingDims))
	defer vs.Close()
	if _, err := vs.Count(cmd.Context()); errors.Is(err, vectorstore.ErrStoreNotFound) {
		logging.New("serve").Warn("vector store not found, run ingest first", "persist_dir", cfg.Ingest.PersistDir)
	} else if err != nil {
		return err
	}

	m := metrics.New()
	runs, pages := store.NewRunStore(), store.NewPageStore()
	opts := service.Options{Metrics: m}

	crawlSvc, err := service.NewCrawlService(cfg.Crawl, runs, pages, opts)
	if err != nil {
		return err
	}
	ingestSvc, err := service.NewIngestService(cfg.Ingest, vs, runs, opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	srv := httppkg.NewServer(ctx, crawlSvc, ingestSvc, search.NewSearcher(vs, cfg.Search), m)
	err = srv.Start(ctx, addr)

	// Submitted runs share ctx and stop with it.
	crawlSvc.Wait()
	ingestSvc.Wait()
	return err
}
