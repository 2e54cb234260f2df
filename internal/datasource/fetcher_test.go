package datasource_test

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap/zaptest"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/config"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/datasource"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/datasource/file"
	jsonparser "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/parser/json"
)

// memStore is an ObjectStore over a fixed listing.
type memStore struct {
	names   []string
	bodies  map[string]string
	listErr error
	readErr map[string]error
	reads   []string
}

func (m *memStore) List(ctx context.Context, _, _ string) iter.Seq2[datasource.Object, error] {
	return func(yield func(datasource.Object, error) bool) {
		for _, n := range m.names {
			if !yield(datasource.Object{Name: n}, nil) {
				return
			}
		}
		if m.listErr != nil {
			yield(datasource.Object{}, m.listErr)
		}
	}
}

func (m *memStore) Read(ctx context.Context, _, name string) ([]byte, error) {
	m.reads = append(m.reads, name)
	if err := m.readErr[name]; err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); ok && name == "p/slow.json" {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []byte(m.bodies[name]), nil
}

type result struct {
	doc datasource.Document
	err error
}

func drain(t *testing.T, f *datasource.Fetcher) []result {
	t.Helper()
	var out []result
	for d, err := range f.Documents(context.Background()) {
		out = append(out, result{d, err})
	}
	return out
}

func TestNewFetcherValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		store     datasource.ObjectStore
		bucket    string
		prefix    string
		manifest  []string
		wantPaths []string
	}{
		{name: "empty bucket and prefix", store: &memStore{}, wantPaths: []string{"source.bucket", "source.prefix"}},
		{name: "nil store", bucket: "b", prefix: "p/", wantPaths: []string{"source.kind"}},
		{name: "manifest outside prefix", store: &memStore{}, bucket: "b", prefix: "p/", manifest: []string{"p/a", "q/b"}, wantPaths: []string{"source.manifest[1]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := datasource.NewFetcher(tt.store, tt.bucket, tt.prefix, datasource.FetcherOptions{Manifest: tt.manifest})
			var cerr *config.ConfigError
			require.ErrorAs(t, err, &cerr)
			var paths []string
			for _, iss := range cerr.Issues {
				paths = append(paths, iss.Path)
			}
			assert.Equal(t, tt.wantPaths, paths)
		})
	}
}

func TestDocumentsFromDirectory(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	files := map[string]string{
		"/data/bkt/exports/b.json": `[{"x":1},{"x":2,"y":3}]`,
		"/data/bkt/exports/a.json": `{"a":{"b":1,"c":2}}`,
		"/data/bkt/other/c.json":   `{}`,
	}
	for p, body := range files {
		require.NoError(t, afero.WriteFile(fsys, p, []byte(body), 0o644))
	}

	f, err := datasource.NewFetcher(file.NewDirFs(fsys, "/data"), "bkt", "exports/", datasource.FetcherOptions{
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	got := drain(t, f)
	require.Len(t, got, 2)

	for i, want := range []string{"exports/a.json", "exports/b.json"} {
		require.NoError(t, got[i].err)
		assert.Equal(t, i, got[i].doc.Index)
		assert.Equal(t, want, got[i].doc.Name)
		assert.Equal(t, xxh3.Hash([]byte(files["/data/bkt/"+want])), got[i].doc.Checksum)
		assert.Equal(t, int64(len(files["/data/bkt/"+want])), got[i].doc.Size)
	}
	assert.Equal(t, `{"a":{"b":1,"c":2}}`, got[0].doc.Value.String())
}

func TestDocumentsParseErrorContinues(t *testing.T) {
	t.Parallel()

	store := &memStore{
		names: []string{"p/", "p/0.json", "p/1.json", "p/2.json"},
		bodies: map[string]string{
			"p/0.json": `{"ok":true}`,
			"p/1.json": `{"broken":`,
			"p/2.json": `[1]`,
		},
	}
	f, err := datasource.NewFetcher(store, "bkt", "p/", datasource.FetcherOptions{SkipDirectoryMarkers: true})
	require.NoError(t, err)

	got := drain(t, f)
	require.Len(t, got, 3)

	require.NoError(t, got[0].err)
	var perr *datasource.ParseError
	require.ErrorAs(t, got[1].err, &perr)
	assert.Equal(t, "p/1.json", perr.Object)
	assert.Equal(t, 1, perr.Index)
	assert.Nil(t, got[1].doc.Value)
	require.NoError(t, got[2].err)
	assert.Equal(t, 2, got[2].doc.Index)
	assert.NotContains(t, store.reads, "p/")
}

func TestDocumentsMalformedNumberIsParseError(t *testing.T) {
	t.Parallel()

	store := &memStore{
		names:  []string{"p/0.json", "p/1.json"},
		bodies: map[string]string{"p/0.json": `{"a": 1.2.3}`, "p/1.json": `[NaN]`},
	}
	f, err := datasource.NewFetcher(store, "bkt", "p/", datasource.FetcherOptions{})
	require.NoError(t, err)

	got := drain(t, f)
	require.Len(t, got, 2)
	for i, r := range got {
		var perr *datasource.ParseError
		require.ErrorAs(t, r.err, &perr, "document %d", i)
		assert.Equal(t, i, perr.Index)
		assert.Nil(t, r.doc.Value)
	}
}

func TestDocumentsDirectoryMarkerKeptWhenNotSkipping(t *testing.T) {
	t.Parallel()

	store := &memStore{names: []string{"p/", "p/0.json"}, bodies: map[string]string{"p/0.json": `1`}}
	f, err := datasource.NewFetcher(store, "bkt", "p/", datasource.FetcherOptions{})
	require.NoError(t, err)

	got := drain(t, f)
	require.Len(t, got, 2)
	require.ErrorIs(t, got[0].err, jsonparser.ErrEmpty)
	assert.Equal(t, 1, got[1].doc.Index)
}

func TestDocumentsStorageErrorsAreTerminal(t *testing.T) {
	t.Parallel()

	denied := errors.New("403 forbidden")

	t.Run("list", func(t *testing.T) {
		t.Parallel()
		store := &memStore{names: []string{"p/0.json"}, bodies: map[string]string{"p/0.json": `1`}, listErr: denied}
		f, err := datasource.NewFetcher(store, "bkt", "p/", datasource.FetcherOptions{})
		require.NoError(t, err)

		got := drain(t, f)
		require.Len(t, got, 2)
		var serr *datasource.StorageAccessError
		require.ErrorAs(t, got[1].err, &serr)
		assert.Equal(t, "list", serr.Op)
		assert.ErrorIs(t, serr, denied)
	})

	t.Run("read", func(t *testing.T) {
		t.Parallel()
		store := &memStore{
			names:   []string{"p/0.json", "p/1.json", "p/2.json"},
			bodies:  map[string]string{"p/0.json": `1`, "p/2.json": `2`},
			readErr: map[string]error{"p/1.json": denied},
		}
		f, err := datasource.NewFetcher(store, "bkt", "p/", datasource.FetcherOptions{})
		require.NoError(t, err)

		got := drain(t, f)
		require.Len(t, got, 2)
		var serr *datasource.StorageAccessError
		require.ErrorAs(t, got[1].err, &serr)
		assert.Equal(t, "read", serr.Op)
		assert.Equal(t, "p/1.json", serr.Object)
		assert.NotContains(t, store.reads, "p/2.json")
	})
}

func TestDocumentsManifestPinsOrder(t *testing.T) {
	t.Parallel()

	store := &memStore{
		names:  []string{"p/a.json", "p/b.json", "p/c.json"},
		bodies: map[string]string{"p/a.json": `1`, "p/b.json": `2`, "p/c.json": `3`},
	}
	f, err := datasource.NewFetcher(store, "bkt", "p/", datasource.FetcherOptions{Manifest: []string{"p/c.json", "p/a.json"}})
	require.NoError(t, err)

	got := drain(t, f)
	require.Len(t, got, 2)
	assert.Equal(t, "p/c.json", got[0].doc.Name)
	assert.Equal(t, "p/a.json", got[1].doc.Name)
}

func TestDocumentsFetchTimeout(t *testing.T) {
	t.Parallel()

	store := &memStore{names: []string{"p/slow.json"}}
	f, err := datasource.NewFetcher(store, "bkt", "p/", datasource.FetcherOptions{FetchTimeout: 10 * time.Millisecond})
	require.NoError(t, err)

	got := drain(t, f)
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0].err, context.DeadlineExceeded)
}

func TestDocumentsStopsWhenConsumerBreaks(t *testing.T) {
	t.Parallel()

	store := &memStore{
		names:  []string{"p/0", "p/1", "p/2"},
		bodies: map[string]string{"p/0": `0`, "p/1": `1`, "p/2": `2`},
	}
	f, err := datasource.NewFetcher(store, "bkt", "p/", datasource.FetcherOptions{})
	require.NoError(t, err)

	for range f.Documents(context.Background()) {
		break
	}
	assert.Equal(t, []string{"p/0"}, store.reads)
}
