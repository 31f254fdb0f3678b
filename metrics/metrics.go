// Package metrics bundles the Prometheus collectors shared by the pipeline.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a pipeline run.
type Metrics struct {
	Registry *prometheus.Registry

	RowsAccepted   *prometheus.CounterVec
	RowsRejected   *prometheus.CounterVec
	LoadDuration   prometheus.Histogram
	FetchRequests  *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
	FetchRetries   prometheus.Counter
	FetchErrors    *prometheus.CounterVec
	Queries        *prometheus.CounterVec
	OutputsWritten *prometheus.CounterVec
}

// New constructs and registers all metrics on a dedicated registry. The run
// label is attached to every series.
func New(runID string) *Metrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"run_id": runID}

	rowsAccepted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "reviews_ingest_rows_total",
			Help:        "Rows normalized and accepted for loading, by relation.",
			ConstLabels: labels,
		},
		[]string{"relation"},
	)
	rowsRejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "reviews_ingest_rejected_total",
			Help:        "Rows that aborted a batch, by relation and reason.",
			ConstLabels: labels,
		},
		[]string{"relation", "reason"},
	)
	loadDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "reviews_store_load_duration_seconds",
			Help:        "Duration of atomic batch loads into the store.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		},
	)
	fetchRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "reviews_fetch_requests_total",
			Help:        "Remote source download requests.",
			ConstLabels: labels,
		},
		[]string{"phase"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "reviews_fetch_duration_seconds",
			Help:        "Remote source download latency.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		},
	)
	fetchRetries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "reviews_fetch_retries_total",
			Help:        "Download retry attempts scheduled.",
			ConstLabels: labels,
		},
	)
	fetchErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "reviews_fetch_errors_total",
			Help:        "Download errors by type.",
			ConstLabels: labels,
		},
		[]string{"error_type"},
	)
	queries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "reviews_report_queries_total",
			Help:        "Report queries by name and cache outcome.",
			ConstLabels: labels,
		},
		[]string{"query", "cache"},
	)
	outputs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "reviews_outputs_written_total",
			Help:        "Report artifacts written, by kind.",
			ConstLabels: labels,
		},
		[]string{"kind"},
	)

	registry.MustRegister(rowsAccepted, rowsRejected, loadDuration, fetchRequests, fetchDuration,
		fetchRetries, fetchErrors, queries, outputs)

	return &Metrics{
		Registry:       registry,
		RowsAccepted:   rowsAccepted,
		RowsRejected:   rowsRejected,
		LoadDuration:   loadDuration,
		FetchRequests:  fetchRequests,
		FetchDuration:  fetchDuration,
		FetchRetries:   fetchRetries,
		FetchErrors:    fetchErrors,
		Queries:        queries,
		OutputsWritten: outputs,
	}
}

// AddAccepted adds n accepted rows for a relation.
func (m *Metrics) AddAccepted(relation string, n int) {
	if m == nil {
		return
	}
	m.RowsAccepted.WithLabelValues(relation).Add(float64(n))
}

// IncRejected counts a batch-aborting row.
func (m *Metrics) IncRejected(relation, reason string) {
	if m == nil {
		return
	}
	m.RowsRejected.WithLabelValues(relation, reason).Inc()
}

// ObserveLoad records a store load duration.
func (m *Metrics) ObserveLoad(d time.Duration) {
	if m == nil {
		return
	}
	m.LoadDuration.Observe(d.Seconds())
}

// IncFetch increments the download request counter.
func (m *Metrics) IncFetch(phase string) {
	if m == nil {
		return
	}
	m.FetchRequests.WithLabelValues(phase).Inc()
}

// ObserveFetch records a download duration.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.FetchRetries.Inc()
}

// IncFetchError increments the errors counter for a type label.
func (m *Metrics) IncFetchError(errorType string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(errorType).Inc()
}

// IncQuery counts a report query, hit or miss.
func (m *Metrics) IncQuery(name string, cached bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if cached {
		outcome = "hit"
	}
	m.Queries.WithLabelValues(name, outcome).Inc()
}

// IncOutput counts a written artifact.
func (m *Metrics) IncOutput(kind string) {
	if m == nil {
		return
	}
	m.OutputsWritten.WithLabelValues(kind).Inc()
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
