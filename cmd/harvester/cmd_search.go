package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"harvester/internal/search"
	"harvester/internal/vectorstore"
)

var searchFlags struct {
	k         int
	threshold float64
	asJSON    bool
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Query the vector store built by ingest",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.IntVar(&searchFlags.k, "k", 0, "Number of results (defaults to search.k)")
	f.Float64Var(&searchFlags.threshold, "threshold", 0, "Minimum score (defaults to search.score_threshold)")
	f.BoolVar(&searchFlags.asJSON, "json", false, "Print results as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	vs, err := vectorstore.OpenSQLiteExisting(cfg.Ingest.PersistDir, vectorstore.NewHashEmbedder(cfg.Ingest.EmbeddingDims))
	if err != nil {
		return err
	}
	defer vs.Close()

	q := search.Query{Text: strings.Join(args, " "), K: searchFlags.k}
	if cmd.Flags().Changed("threshold") {
		q.Threshold = &searchFlags.threshold
	}
	results, err := search.NewSearcher(vs, cfg.Search).Search(cmd.Context(), q)
	if err != nil {
		return err
	}

	if searchFlags.asJSON {
		printJSON(cmd, results)
		return nil
	}
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "no results")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. [%.3f] %s\n%s\n\n", i+1, r.Score, r.ID, r.Content)
	}
	return nil
}
