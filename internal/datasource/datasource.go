// Package datasource defines how documents are pulled out of an object store.
//
// An ObjectStore lists and reads objects in a bucket; concrete stores live in
// subpackages (gcs for Google Cloud Storage, file for a local directory). A
// Fetcher drives a store: it enumerates the objects under a prefix in listing
// order, reads and decodes each one, and yields a lazy sequence of Documents.
package datasource

import (
	"context"
	"iter"
	"time"

	"github.com/valyala/fastjson"
)

// Object is one entry of a bucket listing.
type Object struct {
	Name    string
	Size    int64
	Updated time.Time
}

// ObjectStore is the minimal object store contract used by the Fetcher.
//
// List must yield every object whose name starts with prefix, in the store's
// listing order, following any pagination internally. After yielding a
// non-nil error the sequence ends.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) iter.Seq2[Object, error]
	Read(ctx context.Context, bucket, name string) ([]byte, error)
}

// Document is one parsed object.
type Document struct {
	// Index is the zero-based position of the object in listing order.
	Index int
	// Name is the object key.
	Name string
	// Size is the number of raw bytes read.
	Size int64
	// Checksum is the xxh3-64 hash of the raw bytes.
	Checksum uint64
	// Value is the parsed JSON value. Nil when parsing failed.
	Value *fastjson.Value
}
