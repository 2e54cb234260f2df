package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/metrics"
)

// readSummaryCountSum reads sample count and sum from a SummaryVec for assertions in tests.
func readSummaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()

	m := &dto.Metric{}
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatalf("SummaryVec.WithLabelValues(...) does not implement prometheus.Metric")
	}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	if m.GetSummary() == nil {
		t.Fatalf("metric did not contain Summary value")
	}
	sum := m.GetSummary()
	return sum.GetSampleCount(), sum.GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL returns error", jobName: "etl-job", wantErr: true},
		{name: "empty job name uses default", gatewayURL: "http://pushgateway:9091", wantJobName: "etl"},
		{name: "explicit job name is preserved", jobName: "bucket-load", gatewayURL: "http://pushgateway:9091", wantJobName: "bucket-load"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewBackend(%q, %q) error = nil, want non-nil", tt.jobName, tt.gatewayURL)
				}
				if b != nil {
					t.Fatalf("NewBackend(%q, %q) backend = %v, want nil", tt.jobName, tt.gatewayURL, b)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend(%q, %q) error = %v, want nil", tt.jobName, tt.gatewayURL, err)
			}
			if b.jobName != tt.wantJobName {
				t.Fatalf("backend.jobName = %q, want %q", b.jobName, tt.wantJobName)
			}
			if b.stepCounter == nil || b.stepDuration == nil || b.documentCounter == nil || b.rowCounter == nil || b.batchCounter == nil {
				t.Fatalf("NewBackend() left a collector nil: %+v", b)
			}
		})
	}
}

func TestIncCounter(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("etl", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.IncCounter(metrics.StepTotal, 3, metrics.Labels{"step": "fetch", "status": "success"})
	b.IncCounter(metrics.DocumentsTotal, 5, metrics.Labels{"kind": metrics.DocFetched})
	b.IncCounter(metrics.RowsTotal, 7, nil)
	b.IncCounter(metrics.BatchesTotal, 2, nil)
	b.IncCounter(metrics.BatchesTotal, 0.5, nil)
	b.IncCounter("unknown_metric", 10, metrics.Labels{"foo": "bar"})

	if got := testutil.ToFloat64(b.stepCounter.WithLabelValues("fetch", "success")); got != 3 {
		t.Fatalf("step counter = %v, want 3", got)
	}
	if got := testutil.ToFloat64(b.documentCounter.WithLabelValues(metrics.DocFetched)); got != 5 {
		t.Fatalf("document counter = %v, want 5", got)
	}
	if got := testutil.ToFloat64(b.rowCounter); got != 7 {
		t.Fatalf("row counter = %v, want 7", got)
	}
	if got := testutil.ToFloat64(b.batchCounter); got != 2.5 {
		t.Fatalf("batch counter = %v, want 2.5", got)
	}
}

// TestIncCounterNilMetrics ensures a zero-value Backend does not panic.
func TestIncCounterNilMetrics(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "success"})
	b.IncCounter(metrics.DocumentsTotal, 1, metrics.Labels{"kind": metrics.DocListed})
	b.IncCounter(metrics.RowsTotal, 1, nil)
	b.IncCounter(metrics.BatchesTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 1, nil)
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		metricName string
		value      float64
		wantCount  uint64
		wantSum    float64
	}{
		{name: "records step duration", metricName: metrics.StepDurationSeconds, value: 1.5, wantCount: 1, wantSum: 1.5},
		{name: "ignores unknown metric name", metricName: "other_metric", value: 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend("etl", "http://example.com")
			if err != nil {
				t.Fatalf("NewBackend() error = %v", err)
			}
			b.ObserveHistogram(tt.metricName, tt.value, metrics.Labels{"step": "write", "status": "success"})

			gotCount, gotSum := readSummaryCountSum(t, b.stepDuration, "write", "success")
			if gotCount != tt.wantCount {
				t.Fatalf("summary sample count = %d, want %d", gotCount, tt.wantCount)
			}
			if gotSum != tt.wantSum {
				t.Fatalf("summary sample sum = %v, want %v", gotSum, tt.wantSum)
			}
		})
	}
}

// TestFlush verifies that Flush pushes the registry to the configured
// Pushgateway URL under the job grouping key.
func TestFlush(t *testing.T) {
	t.Parallel()

	type pushRequestInfo struct {
		method string
		path   string
		body   string
	}
	reqCh := make(chan pushRequestInfo, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		reqCh <- pushRequestInfo{method: r.Method, path: r.URL.Path, body: string(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("bucket-load", server.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter(metrics.RowsTotal, 4, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got pushRequestInfo
	select {
	case got = <-reqCh:
	default:
		t.Fatalf("Flush() did not result in any HTTP request to the Pushgateway")
	}

	if got.method != http.MethodPut {
		t.Fatalf("push method = %q, want %q", got.method, http.MethodPut)
	}
	if !strings.Contains(got.path, "/job/bucket-load") {
		t.Fatalf("push path = %q, want it to contain /job/bucket-load", got.path)
	}
	if got.body == "" {
		t.Fatalf("push body is empty")
	}
}

func BenchmarkIncCounterDocument(b *testing.B) {
	backend, err := NewBackend("etl", "http://example.com")
	if err != nil {
		b.Fatalf("NewBackend() error = %v", err)
	}
	labels := metrics.Labels{"kind": metrics.DocFetched}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backend.IncCounter(metrics.DocumentsTotal, 1, labels)
	}
}
