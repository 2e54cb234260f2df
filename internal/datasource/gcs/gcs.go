// Package gcs implements datasource.ObjectStore on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/datasource"
)

// Config selects how the storage client authenticates.
type Config struct {
	// CredentialsFile is a service-account JSON key. When empty, Application
	// Default Credentials are used.
	CredentialsFile string

	// Endpoint overrides the API endpoint (e.g. a local emulator). Requests
	// to a custom endpoint are sent unauthenticated.
	Endpoint string
}

// objectIterator is the subset of *storage.ObjectIterator used by List.
type objectIterator interface {
	Next() (*storage.ObjectAttrs, error)
}

// Store lists and reads objects through a storage.Client.
type Store struct {
	client *storage.Client

	// Test seams; default to the real client.
	objects   func(ctx context.Context, bucket, prefix string) objectIterator
	newReader func(ctx context.Context, bucket, name string) (io.ReadCloser, error)
}

var _ datasource.ObjectStore = (*Store)(nil)

// NewStore opens a read-only storage client.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadOnly)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: new client: %w", err)
	}
	return newStore(client), nil
}

func newStore(client *storage.Client) *Store {
	s := &Store{client: client}
	s.objects = func(ctx context.Context, bucket, prefix string) objectIterator {
		q := &storage.Query{Prefix: prefix}
		if err := q.SetAttrSelection([]string{"Name", "Size", "Updated"}); err != nil {
			q = &storage.Query{Prefix: prefix}
		}
		return client.Bucket(bucket).Objects(ctx, q)
	}
	s.newReader = func(ctx context.Context, bucket, name string) (io.ReadCloser, error) {
		return client.Bucket(bucket).Object(name).NewReader(ctx)
	}
	return s
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// List yields every object under prefix in the order the service returns
// them (lexicographic by name). Page tokens are followed by the iterator.
func (s *Store) List(ctx context.Context, bucket, prefix string) iter.Seq2[datasource.Object, error] {
	return func(yield func(datasource.Object, error) bool) {
		it := s.objects(ctx, bucket, prefix)
		for {
			attrs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield(datasource.Object{}, err)
				return
			}
			if !yield(datasource.Object{Name: attrs.Name, Size: attrs.Size, Updated: attrs.Updated}, nil) {
				return
			}
		}
	}
}

// Read downloads one object into memory.
func (s *Store) Read(ctx context.Context, bucket, name string) ([]byte, error) {
	r, err := s.newReader(ctx, bucket, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs: read %s: %w", name, err)
	}
	return b, nil
}
