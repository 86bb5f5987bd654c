package model

import "time"

type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusCancelled RunStatus = "CANCELLED"
	RunStatusFailed    RunStatus = "FAILED"
)

type RunKind string

const (
	RunKindCrawl  RunKind = "crawl"
	RunKindIngest RunKind = "ingest"
)

// Run is the record of one crawl or ingestion invocation.
type Run struct {
	ID     string    `json:"id"`
	Kind   RunKind   `json:"kind"`
	Status RunStatus `json:"status"`
	Error  string    `json:"error,omitempty"`

	// Summary is the stats/report of the run once finished.
	Summary any `json:"summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CrawlTask is a URL together with the cookie state it is fetched under.
type CrawlTask struct {
	URL     string
	Cookies string
}

// TaskKey identifies a task for deduplication. The same URL under a
// different cookie state is a different task.
type TaskKey struct {
	URL     string
	Cookies string
}

func (t CrawlTask) Key() TaskKey {
	return TaskKey{URL: t.URL, Cookies: t.Cookies}
}

type ArtifactKind string

const (
	ArtifactHTML ArtifactKind = "html"
	ArtifactText ArtifactKind = "text"
	ArtifactPDF  ArtifactKind = "pdf"
)

// Artifact is a file written by the crawler.
type Artifact struct {
	Kind   ArtifactKind `json:"kind"`
	Folder string       `json:"folder"`
	Name   string       `json:"name"` // final file name including extension
	Size   int64        `json:"size"`
}

// TaskResult is the outcome of processing one crawl task.
type TaskResult struct {
	Task      CrawlTask
	Title     string
	Artifacts []Artifact
	Links     []string
	Attempts  int
	Err       error
}

func (r TaskResult) OK() bool { return r.Err == nil }

// PageRecord is what a crawl run did with one task.
type PageRecord struct {
	RunID     string     `json:"run_id"`
	URL       string     `json:"url"`
	Title     string     `json:"title,omitempty"`
	Cookies   string     `json:"cookies,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	Attempts  int        `json:"attempts"`
	Error     string     `json:"error,omitempty"`
	At        time.Time  `json:"at"`
}

type CrawlStats struct {
	Visited   int `json:"visited"`
	HTMLPages int `json:"html_pages"`
	PDFs      int `json:"pdfs"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Deduped   int `json:"deduped"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Chunk is one indexable unit of text. ID is derived from the source file,
// the position and the content.
type Chunk struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// SearchResult is one hit of a similarity query.
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}
