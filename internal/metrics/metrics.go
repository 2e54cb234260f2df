// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from a bucket-to-database run.
//
// The package exposes a narrow interface (Backend) focused on counters and
// timing data, and a global, pluggable backend that defaults to a no-op
// implementation so instrumentation is always safe to call. Concrete metric
// systems live in subpackages (prompush, datadog) and are installed by the CLI.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by this package.
const (
	StepTotal           = "etl_step_total"
	StepDurationSeconds = "etl_step_duration_seconds"
	DocumentsTotal      = "etl_documents_total"
	RowsTotal           = "etl_rows_total"
	BatchesTotal        = "etl_batches_total"
)

// Document kinds used with RecordDocument.
const (
	DocListed     = "listed"
	DocFetched    = "fetched"
	DocParseError = "parse_error"
	DocFlattened  = "flattened"
	DocWritten    = "written"
	DocWriteError = "write_error"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep measures latency and success/failure of one pipeline step
// (list, fetch, flatten, write, run).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordDocument increments the per-document counter for kind (see the Doc*
// constants).
func RecordDocument(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(DocumentsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordRows increments the number of rows written to the database.
func RecordRows(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{"job": job})
}

// RecordBatches increments a batch-level counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}
