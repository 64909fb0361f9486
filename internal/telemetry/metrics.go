// Package telemetry exposes indexing and query metrics in Prometheus format.
// Every Metrics instance owns its registry, so tests and concurrent runs do
// not collide. A nil *Metrics is valid and records nothing.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values.
const (
	PageOK      = "ok"
	PageSkipped = "skipped"

	RunSuccess   = "success"
	RunFailed    = "failed"
	RunCancelled = "cancelled"

	QueryOK       = "ok"
	QueryEmpty    = "empty"
	QueryNotBuilt = "not_built"
	QueryError    = "error"
)

// Metrics holds the wordgrid collectors.
type Metrics struct {
	registry *prometheus.Registry

	pages         *prometheus.CounterVec
	words         prometheus.Counter
	overMerged    prometheus.Counter
	runs          *prometheus.CounterVec
	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram

	zeroResults *CircularBuffer[string]
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wordgrid_pages_total",
			Help: "Pages processed by indexing runs, by outcome.",
		}, []string{"status"}),
		words: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wordgrid_words_total",
			Help: "Word records emitted by indexing runs.",
		}),
		overMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wordgrid_overmerged_rows_total",
			Help: "Rows flagged as over-merged during clustering.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wordgrid_index_runs_total",
			Help: "Indexing runs, by result.",
		}, []string{"result"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wordgrid_queries_total",
			Help: "Search queries, by status.",
		}, []string{"status"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wordgrid_query_duration_seconds",
			Help:    "Search query latency.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		zeroResults: NewCircularBuffer[string](50),
	}

	m.registry.MustRegister(m.pages, m.words, m.overMerged, m.runs, m.queries, m.queryDuration)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// PageProcessed counts one page with the given status.
func (m *Metrics) PageProcessed(status string) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(status).Inc()
}

// WordsEmitted adds n words.
func (m *Metrics) WordsEmitted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.words.Add(float64(n))
}

// OverMergedRows adds n over-merged rows.
func (m *Metrics) OverMergedRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.overMerged.Add(float64(n))
}

// RunFinished counts a finished indexing run.
func (m *Metrics) RunFinished(result string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
}

// QueryObserved records a query outcome and its latency. Successful queries
// with no results are remembered for RecentZeroResultQueries.
func (m *Metrics) QueryObserved(query, status string, results int, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(status).Inc()
	m.queryDuration.Observe(d.Seconds())
	if status == QueryOK && results == 0 {
		m.zeroResults.Add(query)
	}
}

// RecentZeroResultQueries returns recent queries that matched nothing,
// oldest first.
func (m *Metrics) RecentZeroResultQueries() []string {
	if m == nil {
		return nil
	}
	return m.zeroResults.Items()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", slog.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
