// Package duckdb wires the DuckDB backend into the storage factory.
package duckdb

import (
	"context"
	"sync"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

type wrappedRepo struct {
	*Repository
	closeFn func()
	once    sync.Once
}

var _ storage.Repository = (*wrappedRepo)(nil)

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.once.Do(w.closeFn)
	}
}

func init() {
	storage.RegisterDialect("duckdb", Dialect)
	storage.Register("duckdb", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:    cfg.DSN,
			Batch:  cfg.Batch(),
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
