package main

import (
	"github.com/spf13/cobra"

	"harvester/internal/service"
	"harvester/internal/store"
)

var crawlFlags struct {
	seeds    []string
	maxPages int
	workers  int
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the configured site into the HTML, text and PDF folders",
	Long: `Crawls every page sharing an origin with a seed URL. HTML pages are
saved pretty-printed together with their visible text, PDFs are streamed
to disk. Byte-identical artifacts are removed afterwards unless
crawl.dedupe is off.`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	f := crawlCmd.Flags()
	f.StringArrayVar(&crawlFlags.seeds, "seed", nil, "Seed URL, repeatable (overrides crawl.seeds)")
	f.IntVar(&crawlFlags.maxPages, "max-pages", 0, "Stop after this many pages (overrides crawl.max_pages)")
	f.IntVar(&crawlFlags.workers, "workers", 0, "Concurrent fetchers (overrides crawl.workers)")
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	crawlCfg := cfg.Crawl
	if crawlFlags.workers > 0 {
		crawlCfg.Workers = crawlFlags.workers
	}

	svc, err := service.NewCrawlService(crawlCfg, store.NewRunStore(), store.NewPageStore(), service.Options{})
	if err != nil {
		return err
	}
	_, stats, err := svc.Run(cmd.Context(), service.CrawlRequest{
		Seeds:    crawlFlags.seeds,
		MaxPages: crawlFlags.maxPages,
	})
	if stats != nil {
		printJSON(cmd, stats)
	}
	return err
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Remove byte-identical files from the artifact folders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := service.NewCrawlService(cfg.Crawl, store.NewRunStore(), store.NewPageStore(), service.Options{})
		if err != nil {
			return err
		}
		removed, err := svc.Dedupe()
		printJSON(cmd, map[string]int{"removed": removed})
		return err
	},
}
