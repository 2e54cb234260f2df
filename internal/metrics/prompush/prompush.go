// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A run is a short-lived batch job with nothing to scrape, so collected
// metrics are pushed to a Pushgateway when the CLI calls metrics.Flush at the
// end of the run. The Pushgateway "job" grouping key carries the job label;
// the remaining labels become Prometheus labels.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // etl_step_total
	stepDuration *prometheus.SummaryVec // etl_step_duration_seconds

	documentCounter *prometheus.CounterVec // etl_documents_total
	rowCounter      prometheus.Counter     // etl_rows_total
	batchCounter    prometheus.Counter     // etl_batches_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often same as pipeline job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "etl"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Total number of pipeline step executions, partitioned by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDurationSeconds,
			Help:       "Duration of pipeline steps in seconds, partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	documentCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.DocumentsTotal,
			Help: "Documents seen per outcome (listed, fetched, parse_error, flattened, written, write_error).",
		},
		[]string{"kind"},
	)
	rowCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Total number of rows written to destination tables.",
		},
	)
	batchCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Total number of insert batches flushed for this job.",
		},
	)

	for name, c := range map[string]prometheus.Collector{
		"step counter":     stepCounter,
		"step summary":     stepDuration,
		"document counter": documentCounter,
		"row counter":      rowCounter,
		"batch counter":    batchCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	return &Backend{
		gatewayURL:      gatewayURL,
		jobName:         jobName,
		reg:             reg,
		stepCounter:     stepCounter,
		stepDuration:    stepDuration,
		documentCounter: documentCounter,
		rowCounter:      rowCounter,
		batchCounter:    batchCounter,
	}, nil
}

// IncCounter routes the increment to the collector registered under name.
// Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)

	case metrics.DocumentsTotal:
		if b.documentCounter == nil {
			return
		}
		b.documentCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.RowsTotal:
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.Add(delta)

	case metrics.BatchesTotal:
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.Add(delta)
	}
}

// ObserveHistogram records step durations; other names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
