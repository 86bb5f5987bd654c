package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"harvester/internal/deadletter"
	"harvester/internal/logging"
)

// TextDocType tags documents converted from crawled page text.
const TextDocType = "web_extracted"

type TextDocument struct {
	Text     string       `json:"text"`
	Metadata TextMetadata `json:"metadata"`
}

type TextMetadata struct {
	DocName string `json:"doc_name"`
	DocType string `json:"doc_type"`
}

// Report counts the outcome of a directory conversion.
type Report struct {
	Converted int `json:"converted"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type Options struct {
	DeadLetter *deadletter.Queue
	Logger     *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.New("extract")
}

// ExtractDir converts every PDF in pdfDir into outDir/<name>.json. A file
// that fails is logged and dead-lettered; the rest are still converted.
func ExtractDir(ctx context.Context, ex Extractor, pdfDir, outDir string, opts Options) (*Report, error) {
	log := opts.logger()
	entries, err := os.ReadDir(pdfDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pdfDir, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", outDir, err)
	}

	report := &Report{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}

		path := filepath.Join(pdfDir, name)
		log.Info("processing file", "file", path)
		doc, err := ex.Extract(ctx, path)
		if err == nil {
			err = writeJSON(filepath.Join(outDir, strings.TrimSuffix(name, filepath.Ext(name))+".json"), doc)
		}
		if err != nil {
			report.Failed++
			log.Warn("extraction failed", "file", path, "error", err)
			if dlErr := opts.DeadLetter.Put(deadletter.KindPDFExtract, path, err); dlErr != nil {
				log.Error("dead-letter write failed", "file", path, "error", dlErr)
			}
			continue
		}
		report.Converted++
	}
	log.Info("extraction finished", "converted", report.Converted, "failed", report.Failed)
	return report, nil
}

// TextToJSON wraps every non-empty .txt file of textDir into a
// TextDocument written to outDir/<name>.json.
func TextToJSON(textDir, outDir string, opts Options) (*Report, error) {
	log := opts.logger()
	entries, err := os.ReadDir(textDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", textDir, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", outDir, err)
	}

	report := &Report{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(textDir, name))
		if err != nil {
			return report, fmt.Errorf("read %s: %w", name, err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			report.Skipped++
			continue
		}

		base := strings.TrimSuffix(name, ".txt")
		doc := TextDocument{
			Text:     text,
			Metadata: TextMetadata{DocName: base, DocType: TextDocType},
		}
		if err := writeJSON(filepath.Join(outDir, base+".json"), doc); err != nil {
			return report, err
		}
		report.Converted++
	}
	log.Info("text conversion finished", "converted", report.Converted, "skipped", report.Skipped)
	return report, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
