package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/config"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/datasource"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/datasource/file"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/flatten"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/metrics"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/pipeline"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage/sqlite"
)

const bucket = "bkt"

// newFetcher serves files from an in-memory bucket directory.
func newFetcher(t *testing.T, files map[string]string) *datasource.Fetcher {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fsys, "/root/"+bucket+"/"+name, []byte(body), 0o644))
	}
	f, err := datasource.NewFetcher(file.NewDirFs(fsys, "/root"), bucket, "exports/", datasource.FetcherOptions{
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return f
}

func newSQLite(t *testing.T) *sqlite.Repository {
	t.Helper()
	r, closeFn, err := sqlite.NewRepository(context.Background(), sqlite.Config{
		DSN:    ":memory:",
		Batch:  storage.BatchOptions{Size: 2},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(closeFn)
	return r
}

// sqliteRepo adapts *sqlite.Repository to storage.Repository without
// closing the shared test database.
type sqliteRepo struct{ *sqlite.Repository }

func (sqliteRepo) Close() {}

func dump(t *testing.T, r *sqlite.Repository, table string) [][]any {
	t.Helper()
	rows, err := r.DB().QueryContext(context.Background(), fmt.Sprintf(`SELECT * FROM "%s" ORDER BY rowid`, table))
	require.NoError(t, err)
	defer rows.Close()
	cols, err := rows.Columns()
	require.NoError(t, err)
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		require.NoError(t, rows.Scan(ptrs...))
		out = append(out, vals)
	}
	require.NoError(t, rows.Err())
	return out
}

func tables(t *testing.T, r *sqlite.Repository) []string {
	t.Helper()
	rows, err := r.DB().QueryContext(context.Background(), `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		out = append(out, n)
	}
	return out
}

func TestRunWritesOneTablePerDocument(t *testing.T) {
	t.Parallel()

	db := newSQLite(t)
	docs := newFetcher(t, map[string]string{
		"exports/a.json": `[{"id": 1, "name": "x"}, {"id": 2, "tags": ["p", "q"]}]`,
		"exports/b.json": `{"user": {"id": 7, "active": true}}`,
		"exports/c.json": `42`,
		"other/d.json":   `{"ignored": true}`,
	})

	r := pipeline.New(pipeline.Config{Job: "test"}, docs, flatten.New(flatten.Options{}), sqliteRepo{db}, zaptest.NewLogger(t))
	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 3, rep.Listed)
	assert.Equal(t, 3, rep.Fetched)
	assert.Equal(t, 3, rep.Flattened)
	assert.Equal(t, 3, rep.Written)
	assert.Equal(t, int64(4), rep.Rows)
	assert.Zero(t, rep.ParseErrors)
	assert.Zero(t, rep.WriteErrors)

	assert.Equal(t, []string{"test_table_0", "test_table_1", "test_table_2"}, tables(t, db))

	want := [][]any{
		{int64(1), "x", nil, nil},
		{int64(2), nil, "p", "q"},
	}
	if diff := cmp.Diff(want, dump(t, db, "test_table_0")); diff != "" {
		t.Fatalf("test_table_0 mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, [][]any{{int64(7), int64(1)}}, dump(t, db, "test_table_1"))
	assert.Equal(t, [][]any{{int64(42)}}, dump(t, db, "test_table_2"))

	var names []string
	for _, tr := range rep.Tables {
		names = append(names, tr.Object+"->"+tr.Table)
	}
	assert.Equal(t, []string{
		"exports/a.json->test_table_0",
		"exports/b.json->test_table_1",
		"exports/c.json->test_table_2",
	}, names)
}

func TestRunIsRepeatable(t *testing.T) {
	t.Parallel()

	db := newSQLite(t)
	files := map[string]string{
		"exports/a.json": `[{"k": "v1"}, {"k": "v2"}]`,
	}

	for i := 0; i < 2; i++ {
		r := pipeline.New(pipeline.Config{Job: "test", TablePrefix: "doc_"}, newFetcher(t, files),
			flatten.New(flatten.Options{}), sqliteRepo{db}, zaptest.NewLogger(t))
		rep, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(2), rep.Rows)
	}
	assert.Equal(t, [][]any{{"v1"}, {"v2"}}, dump(t, db, "doc_0"))
}

func TestRunParseErrorAbortWritesNothing(t *testing.T) {
	t.Parallel()

	db := newSQLite(t)
	docs := newFetcher(t, map[string]string{
		"exports/0.json": `{"a": 1}`,
		"exports/1.json": `{"a": `,
		"exports/2.json": `{"a": 3}`,
	})

	r := pipeline.New(pipeline.Config{Job: "test"}, docs, flatten.New(flatten.Options{}), sqliteRepo{db}, zaptest.NewLogger(t))
	rep, err := r.Run(context.Background())

	var pe *datasource.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "exports/1.json", pe.Object)
	assert.Equal(t, 1, pe.Index)
	assert.Equal(t, 1, rep.ParseErrors)
	assert.Zero(t, rep.Written)
	assert.Empty(t, tables(t, db))
}

func TestRunParseErrorSkipKeepsIndices(t *testing.T) {
	t.Parallel()

	db := newSQLite(t)
	docs := newFetcher(t, map[string]string{
		"exports/0.json": `{"a": 1}`,
		"exports/1.json": "{\"a\": \"\xc3\x28\"}",
		"exports/2.json": `{"a": 3}`,
	})

	cfg := pipeline.Config{Job: "test", OnParseError: config.PolicySkip}
	r := pipeline.New(cfg, docs, flatten.New(flatten.Options{}), sqliteRepo{db}, zaptest.NewLogger(t))
	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"test_table_0", "test_table_2"}, tables(t, db))
	assert.Equal(t, 3, rep.Listed)
	assert.Equal(t, 1, rep.ParseErrors)
	assert.Equal(t, 2, rep.Written)
	require.Len(t, rep.Tables, 3)
	assert.Equal(t, 1, rep.Tables[0].Index)
	assert.Empty(t, rep.Tables[0].Table)
	assert.Error(t, rep.Tables[0].Err)
}

func TestRunRejectsLossyDocuments(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"malformed number":  `{"a": 1.2.3}`,
		"column collision":  `{"a.b": 1, "a": {"b": 2}}`,
		"non-finite number": `[NaN]`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			db := newSQLite(t)
			docs := newFetcher(t, map[string]string{
				"exports/0.json": `{"a": 1}`,
				"exports/1.json": body,
			})
			r := pipeline.New(pipeline.Config{Job: "test"}, docs, flatten.New(flatten.Options{}), sqliteRepo{db}, zaptest.NewLogger(t))
			rep, err := r.Run(context.Background())

			var pe *datasource.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, 1, pe.Index)
			assert.Equal(t, 1, rep.ParseErrors)
			assert.Empty(t, tables(t, db))
		})
	}
}

func TestRunStorageAccessErrorIsFatal(t *testing.T) {
	t.Parallel()

	// No bucket directory: listing fails.
	f, err := datasource.NewFetcher(file.NewDirFs(afero.NewMemMapFs(), "/root"), bucket, "exports/", datasource.FetcherOptions{})
	require.NoError(t, err)

	repo := &fakeRepo{}
	cfg := pipeline.Config{Job: "test", OnParseError: config.PolicySkip, OnWriteError: config.PolicySkip}
	rep, err := pipeline.New(cfg, f, flatten.New(flatten.Options{}), repo, zaptest.NewLogger(t)).Run(context.Background())

	var sae *datasource.StorageAccessError
	require.ErrorAs(t, err, &sae)
	assert.Equal(t, "list", sae.Op)
	assert.Zero(t, rep.Listed)
	assert.Empty(t, repo.calls)
}

// fakeRepo records replace calls and fails the tables named in fail.
type fakeRepo struct {
	mu    sync.Mutex
	fail  map[string]error
	calls []string
}

func (f *fakeRepo) ReplaceTable(_ context.Context, name string, t *schema.Table) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if err := f.fail[name]; err != nil {
		return 0, err
	}
	return int64(t.Len()), nil
}

func (f *fakeRepo) Exec(context.Context, string) error { return nil }
func (f *fakeRepo) Close()                             {}

func TestRunWritePolicies(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"exports/0.json": `[{"a": 1}]`,
		"exports/1.json": `[{"a": 2}]`,
		"exports/2.json": `[{"a": 3}]`,
	}
	boom := errors.New("disk full")

	tests := []struct {
		policy    string
		wantCalls []string
		wantErr   bool
		written   int
	}{
		{config.PolicyAbort, []string{"test_table_0", "test_table_1"}, true, 1},
		{config.PolicySkip, []string{"test_table_0", "test_table_1", "test_table_2"}, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			t.Parallel()

			repo := &fakeRepo{fail: map[string]error{"test_table_1": boom}}
			cfg := pipeline.Config{Job: "test", OnWriteError: tt.policy}
			rep, err := pipeline.New(cfg, newFetcher(t, files), flatten.New(flatten.Options{}), repo, zaptest.NewLogger(t)).
				Run(context.Background())

			if tt.wantErr {
				var werr *storage.WriteError
				require.ErrorAs(t, err, &werr)
				assert.Equal(t, "test_table_1", werr.Table)
				assert.ErrorIs(t, err, boom)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, repo.calls)
			assert.Equal(t, tt.written, rep.Written)
			assert.Equal(t, 1, rep.WriteErrors)
		})
	}
}

func TestRunCanceledBeforeWrite(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := &fakeRepo{}
	_, err := pipeline.New(pipeline.Config{Job: "test"}, newFetcher(t, map[string]string{"exports/0.json": `{}`}),
		flatten.New(flatten.Options{}), repo, zaptest.NewLogger(t)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, repo.calls)
}

func TestTableName(t *testing.T) {
	t.Parallel()

	r := pipeline.New(pipeline.Config{}, nil, nil, nil, nil)
	if got, want := r.TableName(12), "test_table_12"; got != want {
		t.Fatalf("TableName(12) = %q, want %q", got, want)
	}
}

// recordingBackend captures counters for assertions.
type recordingBackend struct {
	mu       sync.Mutex
	counters map[string]float64
}

func (b *recordingBackend) IncCounter(name string, delta float64, labels metrics.Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := name
	if k := labels["kind"]; k != "" {
		key += "/" + k
	}
	if s := labels["step"]; s != "" {
		key += "/" + s + "/" + labels["status"]
	}
	b.counters[key] += delta
}
func (b *recordingBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (b *recordingBackend) Flush() error                                     { return nil }

// TestRunRecordsMetrics swaps the global metrics backend, so it must not run
// in parallel.
func TestRunRecordsMetrics(t *testing.T) {
	rec := &recordingBackend{counters: map[string]float64{}}
	metrics.SetBackend(rec)
	t.Cleanup(func() { metrics.SetBackend(nopBackend{}) })

	repo := &fakeRepo{}
	cfg := pipeline.Config{Job: "metrics-test", OnParseError: config.PolicySkip}
	_, err := pipeline.New(cfg, newFetcher(t, map[string]string{
		"exports/0.json": `[{"a": 1}, {"a": 2}]`,
		"exports/1.json": `nope`,
	}), flatten.New(flatten.Options{}), repo, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2.0, rec.counters[metrics.DocumentsTotal+"/"+metrics.DocListed])
	assert.Equal(t, 2.0, rec.counters[metrics.DocumentsTotal+"/"+metrics.DocFetched])
	assert.Equal(t, 1.0, rec.counters[metrics.DocumentsTotal+"/"+metrics.DocParseError])
	assert.Equal(t, 1.0, rec.counters[metrics.DocumentsTotal+"/"+metrics.DocWritten])
	assert.Equal(t, 2.0, rec.counters[metrics.RowsTotal])
	assert.Equal(t, 1.0, rec.counters[metrics.StepTotal+"/"+pipeline.StepRun+"/success"])
	assert.Equal(t, 1.0, rec.counters[metrics.StepTotal+"/"+pipeline.StepWrite+"/success"])
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, metrics.Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (nopBackend) Flush() error                                     { return nil }
