// Package metrics exposes crawl and ingestion counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "harvester"

// Metrics groups every collector of one process on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	CrawlTasks    *prometheus.CounterVec
	Artifacts     *prometheus.CounterVec
	DedupeRemoved prometheus.Counter
	IngestFiles   *prometheus.CounterVec
	IngestChunks  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CrawlTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_tasks_total",
			Help:      "Crawl tasks processed, by result (ok, failed, skipped).",
		}, []string{"result"}),
		Artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_total",
			Help:      "Artifacts written, by kind (html, text, pdf).",
		}, []string{"kind"}),
		DedupeRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedupe_removed_total",
			Help:      "Artifacts removed as byte-identical duplicates.",
		}),
		IngestFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_files_total",
			Help:      "Input files seen by ingestion, by result (ok, invalid, unexpected_shape, error).",
		}, []string{"result"}),
		IngestChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_chunks_total",
			Help:      "Chunks produced by ingestion, by state (existing, new, indexed).",
		}, []string{"state"}),
	}
	m.Registry.MustRegister(m.CrawlTasks, m.Artifacts, m.DedupeRemoved, m.IngestFiles, m.IngestChunks)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
