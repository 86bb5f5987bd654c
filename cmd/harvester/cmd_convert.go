package main

import (
	"errors"

	"github.com/spf13/cobra"

	"harvester/internal/deadletter"
	"harvester/internal/extract"
	"harvester/internal/logging"
)

var textJSONCmd = &cobra.Command{
	Use:   "textjson",
	Short: "Wrap every cleaned .txt file as a JSON document for ingestion",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		report, err := extract.TextToJSON(cfg.Extract.TextDir, cfg.Extract.TextOutDir, extract.Options{
			Logger: logging.New("textjson"),
		})
		if report != nil {
			printJSON(cmd, report)
		}
		return err
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the external document extractor over every PDF",
	Long: `Runs extract.command once per PDF in extract.pdf_dir with the PDF path
appended, and writes the paragraphs and tables it prints as JSON to
extract.out_dir.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if len(cfg.Extract.Command) == 0 {
			return errors.New("extract.command is not configured")
		}
		ex, err := extract.NewCommandExtractor(cfg.Extract.Command, cfg.Extract.Timeout)
		if err != nil {
			return err
		}
		dl, err := deadletter.Open(cfg.Extract.DeadLetter)
		if err != nil {
			return err
		}
		report, err := extract.ExtractDir(cmd.Context(), ex, cfg.Extract.PDFDir, cfg.Extract.OutDir, extract.Options{
			DeadLetter: dl,
			Logger:     logging.New("extract"),
		})
		if report != nil {
			printJSON(cmd, report)
		}
		return err
	},
}
