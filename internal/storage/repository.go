// Package storage contains storage-agnostic contracts and utilities shared
// by the database backends.
//
// Backends register a Factory for their kind in init; callers open a
// Repository with New and never import a backend directly (see package all).
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"
)

// DefaultBatchSize is used when Config.BatchSize is not positive.
const DefaultBatchSize = 1000

// Repository is one open database session.
type Repository interface {
	// ReplaceTable drops name when it exists, creates it from t's inferred
	// column kinds and inserts every row of t. It returns the number of rows
	// inserted. A table with zero columns is dropped and not recreated.
	ReplaceTable(ctx context.Context, name string, t *schema.Table) (int64, error)

	// Exec runs a single statement outside any replace.
	Exec(ctx context.Context, sql string) error

	// Close releases the session. It is safe to call more than once.
	Close()
}

// Config carries what a backend needs to open a session.
type Config struct {
	Kind      string
	DSN       string
	BatchSize int

	// Job labels batch metrics.
	Job string

	Logger *zap.Logger
}

// Batch returns the configured batch options with defaults applied.
func (c Config) Batch() BatchOptions {
	size := c.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	return BatchOptions{Size: size, Job: c.Job, Logger: c.Logger}
}

// Factory opens a Repository for one kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
	dialects  = map[string]Dialect{}
)

// Register registers (or replaces) the Factory for kind. It is typically
// called from backend packages' init functions.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// RegisterDialect records the statement builders of kind so callers can
// render DDL without opening a connection.
func RegisterDialect(kind string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[kind] = d
}

// LookupDialect returns the Dialect registered for kind.
func LookupDialect(kind string) (Dialect, error) {
	mu.RLock()
	d, ok := dialects[kind]
	mu.RUnlock()
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported storage.kind=%s", kind)
	}
	return d, nil
}

// New opens a Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered kinds.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
