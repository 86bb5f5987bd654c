package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"harvester/internal/ingest"
	"harvester/internal/logging"
	"harvester/internal/service"
	"harvester/internal/store"
	"harvester/internal/vectorstore"
)

var ingestFlags struct {
	watch    bool
	debounce time.Duration
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Chunk the configured sources and index new chunks",
	Long: `Reads every JSON file of the configured sources, chunks it and adds the
chunks whose ids are not yet in the vector store. Interrupted runs resume
where they stopped. With --watch, ingestion re-runs whenever a source
changes.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.BoolVar(&ingestFlags.watch, "watch", false, "Keep running and re-ingest on source changes")
	f.DurationVar(&ingestFlags.debounce, "debounce", ingest.DefaultDebounce, "Quiet period before a watched change is ingested")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	vs, err := vectorstore.OpenSQLite(cfg.Ingest.PersistDir, vectorstore.NewHashEmbedder(cfg.Ingest.EmbeddingDims))
	if err != nil {
		return err
	}
	defer vs.Close()

	svc, err := service.NewIngestService(cfg.Ingest, vs, store.NewRunStore(), service.Options{})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	_, report, err := svc.Run(ctx)
	if report != nil {
		printJSON(cmd, report)
	}
	if err != nil || !ingestFlags.watch {
		return err
	}

	logging.New("ingest").Info("watching sources", "debounce", ingestFlags.debounce)
	if err := svc.Watch(ctx, ingestFlags.debounce); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
