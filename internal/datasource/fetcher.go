package datasource

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/config"
	jsonparser "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/parser/json"
)

// FetcherOptions tunes a Fetcher.
type FetcherOptions struct {
	// SkipDirectoryMarkers drops zero-content "folder" objects whose name
	// ends in "/". Skipped objects do not consume an index.
	SkipDirectoryMarkers bool

	// FetchTimeout bounds each object read. Zero means no timeout.
	FetchTimeout time.Duration

	// Parser controls byte decoding and JSON parsing.
	Parser jsonparser.Options

	// Manifest, when non-empty, replaces the bucket listing: exactly these
	// object names are fetched, in this order. Every name must start with
	// the prefix.
	Manifest []string

	Logger *zap.Logger
}

// Fetcher produces the ordered sequence of documents under one prefix.
type Fetcher struct {
	store  ObjectStore
	bucket string
	prefix string
	opts   FetcherOptions
	log    *zap.Logger
}

// NewFetcher validates its inputs and returns a Fetcher. Empty bucket or
// prefix, or manifest entries outside the prefix, yield a *config.ConfigError.
func NewFetcher(store ObjectStore, bucket, prefix string, opts FetcherOptions) (*Fetcher, error) {
	var issues []config.Issue
	if store == nil {
		issues = append(issues, config.Issue{Severity: config.SeverityError, Path: "source.kind", Message: "no object store configured"})
	}
	if strings.TrimSpace(bucket) == "" {
		issues = append(issues, config.Issue{Severity: config.SeverityError, Path: "source.bucket", Message: "bucket must not be empty"})
	}
	if strings.TrimSpace(prefix) == "" {
		issues = append(issues, config.Issue{Severity: config.SeverityError, Path: "source.prefix", Message: "prefix must not be empty"})
	}
	for i, name := range opts.Manifest {
		if !strings.HasPrefix(name, prefix) {
			issues = append(issues, config.Issue{
				Severity: config.SeverityError,
				Path:     fmt.Sprintf("source.manifest[%d]", i),
				Message:  fmt.Sprintf("object %q is not under prefix %q", name, prefix),
			})
		}
	}
	if len(issues) > 0 {
		return nil, &config.ConfigError{Issues: issues}
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		store:  store,
		bucket: bucket,
		prefix: prefix,
		opts:   opts,
		log:    log.With(zap.String("bucket", bucket), zap.String("prefix", prefix)),
	}, nil
}

// Bucket returns the bucket the Fetcher reads from.
func (f *Fetcher) Bucket() string { return f.bucket }

// Prefix returns the key prefix the Fetcher lists.
func (f *Fetcher) Prefix() string { return f.prefix }

// Documents lazily lists, reads and parses every object under the prefix.
//
// Each yielded pair is one of:
//   - a Document with a nil error;
//   - a Document without Value plus a *ParseError, after which iteration
//     continues with the next object;
//   - a *StorageAccessError, after which the sequence ends.
//
// Indices are assigned in listing order before reading, so a failed object
// still consumes its index.
func (f *Fetcher) Documents(ctx context.Context) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		index := 0
		for obj, err := range f.objects(ctx) {
			if err != nil {
				yield(Document{}, &StorageAccessError{Op: "list", Bucket: f.bucket, Err: err})
				return
			}
			if f.opts.SkipDirectoryMarkers && strings.HasSuffix(obj.Name, "/") {
				f.log.Debug("skipping directory marker", zap.String("object", obj.Name))
				continue
			}

			doc := Document{Index: index, Name: obj.Name}
			index++

			raw, err := f.read(ctx, obj.Name)
			if err != nil {
				yield(doc, &StorageAccessError{Op: "read", Bucket: f.bucket, Object: obj.Name, Err: err})
				return
			}
			doc.Size = int64(len(raw))
			doc.Checksum = xxh3.Hash(raw)

			v, err := jsonparser.Decode(raw, f.opts.Parser)
			if err != nil {
				if !yield(doc, &ParseError{Object: obj.Name, Index: doc.Index, Err: err}) {
					return
				}
				continue
			}
			doc.Value = v
			if !yield(doc, nil) {
				return
			}
		}
	}
}

func (f *Fetcher) objects(ctx context.Context) iter.Seq2[Object, error] {
	if len(f.opts.Manifest) == 0 {
		return f.store.List(ctx, f.bucket, f.prefix)
	}
	return func(yield func(Object, error) bool) {
		for _, name := range f.opts.Manifest {
			if err := ctx.Err(); err != nil {
				yield(Object{}, err)
				return
			}
			if !yield(Object{Name: name}, nil) {
				return
			}
		}
	}
}

func (f *Fetcher) read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.FetchTimeout)
		defer cancel()
	}
	return f.store.Read(ctx, f.bucket, name)
}
