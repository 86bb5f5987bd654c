// Package config provides configuration loading for the harvester.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete harvester configuration.
type Config struct {
	Crawl   CrawlConfig   `yaml:"crawl"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Extract ExtractConfig `yaml:"extract"`
	Search  SearchConfig  `yaml:"search"`
	Server  ServerConfig  `yaml:"server"`
}

// CrawlConfig configures the site crawler.
type CrawlConfig struct {
	// Seeds are the start URLs. A link is followed when it shares the
	// origin of one of them.
	Seeds []string `yaml:"seeds"`

	HTMLDir string `yaml:"html_dir"`
	TextDir string `yaml:"text_dir"`
	PDFDir  string `yaml:"pdf_dir"`

	HTMLTimeout time.Duration `yaml:"html_timeout"`
	PDFTimeout  time.Duration `yaml:"pdf_timeout"`

	// Workers is the number of concurrent fetchers. 1 keeps the strict
	// sequential LIFO order.
	Workers int `yaml:"workers"`

	// MaxRetries is the number of extra attempts for a transient failure.
	// 0 never retries.
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// RequestDelay is the minimum spacing between two requests.
	RequestDelay time.Duration `yaml:"request_delay"`

	UserAgent string            `yaml:"user_agent"`
	Headers   map[string]string `yaml:"headers"`

	// MaxPages stops dispatching fetches after this many tasks (0 = unlimited).
	MaxPages int `yaml:"max_pages"`

	// Dedupe runs the content-hash pass over the artifact folders after the crawl.
	Dedupe bool `yaml:"dedupe"`

	// DeadLetter is a JSONL file receiving tasks that failed for good.
	DeadLetter string `yaml:"dead_letter"`
}

// Strategy names a chunking strategy for an ingestion source.
type Strategy string

const (
	StrategyDefault    Strategy = "default"
	StrategyStructured Strategy = "structured"
)

// SourceConfig is one ingestion input directory.
type SourceConfig struct {
	Path     string   `yaml:"path"`
	Strategy Strategy `yaml:"strategy"`
	// Pattern selects files inside Path (doublestar syntax, default "*.json").
	Pattern string `yaml:"pattern"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	Sources        []SourceConfig `yaml:"sources"`
	PersistDir     string         `yaml:"persist_dir"`
	BatchSize      int            `yaml:"batch_size"`
	ChunkSize      int            `yaml:"chunk_size"`
	ChunkOverlap   int            `yaml:"chunk_overlap"`
	MetadataMaxLen int            `yaml:"metadata_max_len"`
	DumpDir        string         `yaml:"dump_dir"`
	Dump           bool           `yaml:"dump"`
	Workers        int            `yaml:"workers"`
	EmbeddingDims  int            `yaml:"embedding_dims"`
	DeadLetter     string         `yaml:"dead_letter"`
}

// ExtractConfig configures the document extractor boundary.
type ExtractConfig struct {
	PDFDir string `yaml:"pdf_dir"`
	OutDir string `yaml:"out_dir"`
	// Command is the external extractor argv; the PDF path is appended.
	Command    []string      `yaml:"command"`
	Timeout    time.Duration `yaml:"timeout"`
	TextDir    string        `yaml:"text_dir"`
	TextOutDir string        `yaml:"text_out_dir"`
	// DeadLetter is a JSONL file receiving PDFs the extractor failed on.
	DeadLetter string `yaml:"dead_letter"`
}

// SearchConfig configures similarity queries.
type SearchConfig struct {
	K              int     `yaml:"k"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration the harvester runs with when no file is given.
func Default() *Config {
	return &Config{
		Crawl: CrawlConfig{
			Seeds:        []string{"https://iiitsurat.ac.in/"},
			HTMLDir:      "clgSite",
			TextDir:      "clgText",
			PDFDir:       "clgPDF",
			HTMLTimeout:  15 * time.Second,
			PDFTimeout:   30 * time.Second,
			Workers:      1,
			MaxRetries:   0,
			RetryBackoff: 500 * time.Millisecond,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Headers: map[string]string{
				"Accept-Language": "en-US,en;q=0.9",
				"Referer":         "https://www.google.com",
			},
			Dedupe: true,
		},
		Ingest: IngestConfig{
			Sources: []SourceConfig{
				{Path: "SpecialPDFjson", Strategy: StrategyDefault},
				{Path: "NormalPDFjson3", Strategy: StrategyStructured},
				{Path: "text_json_folder", Strategy: StrategyDefault},
			},
			PersistDir:     "./sql_chroma_db",
			BatchSize:      64,
			ChunkSize:      1024,
			ChunkOverlap:   100,
			MetadataMaxLen: 200,
			DumpDir:        "chunkJson",
			Dump:           true,
			Workers:        1,
			EmbeddingDims:  384,
		},
		Extract: ExtractConfig{
			PDFDir:     "mergedPDF",
			OutDir:     "PDF_jsonl_folder2",
			Timeout:    2 * time.Minute,
			TextDir:    "cleanedText2",
			TextOutDir: "text_json_folder",
		},
		Search: SearchConfig{
			K:              3,
			ScoreThreshold: 0.1,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if len(c.Crawl.Seeds) == 0 {
		return fmt.Errorf("crawl.seeds is required")
	}
	if c.Crawl.HTMLDir == "" || c.Crawl.TextDir == "" || c.Crawl.PDFDir == "" {
		return fmt.Errorf("crawl.html_dir, crawl.text_dir and crawl.pdf_dir are required")
	}
	if c.Crawl.HTMLTimeout <= 0 || c.Crawl.PDFTimeout <= 0 {
		return fmt.Errorf("crawl timeouts must be positive")
	}
	if c.Crawl.Workers < 1 {
		return fmt.Errorf("crawl.workers must be at least 1, got %d", c.Crawl.Workers)
	}
	if c.Crawl.MaxRetries < 0 {
		return fmt.Errorf("crawl.max_retries must be non-negative")
	}
	if c.Crawl.MaxPages < 0 {
		return fmt.Errorf("crawl.max_pages must be non-negative")
	}

	for i, src := range c.Ingest.Sources {
		if src.Path == "" {
			return fmt.Errorf("ingest.sources[%d].path is required", i)
		}
		switch src.Strategy {
		case "", StrategyDefault, StrategyStructured:
		default:
			return fmt.Errorf("ingest.sources[%d].strategy: unknown strategy %q", i, src.Strategy)
		}
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap (%d) must be in [0, chunk_size)", c.Ingest.ChunkOverlap)
	}
	if c.Ingest.MetadataMaxLen <= 0 {
		return fmt.Errorf("ingest.metadata_max_len must be positive")
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be at least 1, got %d", c.Ingest.Workers)
	}
	if c.Ingest.EmbeddingDims <= 0 {
		return fmt.Errorf("ingest.embedding_dims must be positive")
	}
	if c.Ingest.PersistDir == "" {
		return fmt.Errorf("ingest.persist_dir is required")
	}

	if c.Search.K <= 0 {
		return fmt.Errorf("search.k must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Load returns the defaults when path is empty, otherwise the file contents.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFromFile(path)
}
