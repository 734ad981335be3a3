// Package metrics exposes Prometheus instrumentation for the catalog,
// garbage collector, lock service, and filter evaluator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

var (
	// Version gauges, by status ("incomplete", "valid", "invalid")
	VersionsTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "catalog_versions_total",
		Help: "Number of versions currently in the catalog, by status",
	}, []string{"status"})

	VersionsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_versions_created_total",
		Help: "Total versions created",
	})

	VersionsRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_versions_removed_total",
		Help: "Total versions removed (tombstoned)",
	})

	// Block gauges, by validity ("valid", "invalid", "incomplete")
	BlocksTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "catalog_blocks_total",
		Help: "Number of block rows currently in the catalog, by status",
	}, []string{"status"})

	BlockWriterCommitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_block_writer_commits_total",
		Help: "Total transaction commits performed by block writers",
	})

	BlockWriterCommitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_block_writer_commit_duration_seconds",
		Help:    "Duration of block writer transaction commits",
		Buckets: prometheus.DefBuckets,
	})

	// GC planner
	GCRoundsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_gc_rounds_total",
		Help: "Total garbage collection rounds run",
	})

	GCRoundDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_gc_round_duration_seconds",
		Help:    "Duration of a single garbage collection round",
		Buckets: prometheus.DefBuckets,
	})

	GCTombstonesPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_gc_tombstones_pending",
		Help: "Deleted-block tombstones not yet past their grace period",
	})

	GCFalsePositivesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_gc_false_positives_total",
		Help: "Tombstones resolved as false positives (block re-referenced before grace expiry)",
	})

	GCResolvedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_gc_resolved_total",
		Help: "Tombstones that became genuine delete candidates and were handed to the caller",
	})

	// Lock service
	LockAcquisitionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_lock_acquisitions_total",
		Help: "Total successful lock acquisitions",
	})

	LockReleasesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_lock_releases_total",
		Help: "Total lock releases",
	})

	LockConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_lock_conflicts_total",
		Help: "Lock attempts that failed because the lock was already held",
	})

	// Filter language
	FilterQueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_filter_queries_total",
		Help: "Total filter expressions parsed and lowered to SQL",
	})

	FilterParseErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_filter_parse_errors_total",
		Help: "Filter expressions that failed to parse or type-check",
	})

	// Import / export
	ExportDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_export_duration_seconds",
		Help:    "Duration of a catalog export, by format version",
		Buckets: prometheus.DefBuckets,
	}, []string{"version"})

	ImportDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_import_duration_seconds",
		Help:    "Duration of a catalog import, by source format version",
		Buckets: prometheus.DefBuckets,
	}, []string{"version"})
)

func init() {
	prometheus.MustRegister(
		VersionsTotal,
		VersionsCreatedTotal,
		VersionsRemovedTotal,
		BlocksTotal,
		BlockWriterCommitsTotal,
		BlockWriterCommitDuration,
		GCRoundsTotal,
		GCRoundDuration,
		GCTombstonesPending,
		GCFalsePositivesTotal,
		GCResolvedTotal,
		LockAcquisitionsTotal,
		LockReleasesTotal,
		LockConflictsTotal,
		FilterQueriesTotal,
		FilterParseErrorsTotal,
		ExportDuration,
		ImportDuration,
	)
}

// Handler returns the HTTP handler that serves the Prometheus exposition
// format for all metrics registered by this package.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed wall-clock time and reports it to a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed duration on histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed duration on a histogram vec under
// the given label values.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
