// Package metrics defines the Prometheus collectors used by the tracker's
// binaries and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. Each Metrics owns its registry so
// several instances (one per test, say) never collide.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	PagesFetchedTotal    *prometheus.CounterVec
	FetchFailuresTotal   *prometheus.CounterVec
	RankEntriesTotal     prometheus.Counter
	DuplicatesSkipped    prometheus.Counter
	DocumentUpserts      *prometheus.CounterVec
	RunsTotal            *prometheus.CounterVec
	RunFinalRank         prometheus.Histogram
	SeriesBuildDuration  prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PagesFetchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_pages_fetched_total",
				Help: "Result pages fetched by source.",
			},
			[]string{"source"},
		),
		FetchFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_fetch_failures_total",
				Help: "Result page fetches that ended a walk, by source.",
			},
			[]string{"source"},
		),
		RankEntriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ranking_rank_entries_total",
				Help: "Rank entries written.",
			},
		),
		DuplicatesSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ranking_duplicates_skipped_total",
				Help: "Scraped entries skipped because the run already ranks the document.",
			},
		),
		DocumentUpserts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_document_upserts_total",
				Help: "Document resolutions by outcome (created, updated, unchanged).",
			},
			[]string{"outcome"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_runs_total",
				Help: "Ingestion runs by status (completed, partial, reused).",
			},
			[]string{"status"},
		),
		RunFinalRank: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ranking_run_final_rank",
				Help:    "Final rank reached per run.",
				Buckets: []float64{0, 10, 20, 30, 50, 100},
			},
		),
		SeriesBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ranking_series_build_seconds",
				Help:    "Time to assemble rank series from the store.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "series_cache_hits_total",
				Help: "Total number of series cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "series_cache_misses_total",
				Help: "Total number of series cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PagesFetchedTotal,
		m.FetchFailuresTotal,
		m.RankEntriesTotal,
		m.DuplicatesSkipped,
		m.DocumentUpserts,
		m.RunsTotal,
		m.RunFinalRank,
		m.SeriesBuildDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for m's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
