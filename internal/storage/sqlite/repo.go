// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql. A replace runs DROP, CREATE and prepared INSERTs inside one
// transaction; SQLite does not have a dedicated bulk-load API like Postgres
// COPY, but transactions keep performance acceptable for moderate volumes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage"
	sqliteddl "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage/sqlite/ddl"
)

// Dialect renders SQLite statements.
var Dialect = storage.Dialect{
	Name:        "sqlite",
	MapType:     sqliteddl.MapType,
	QuoteIdent:  sqliteddl.QuoteIdent,
	CreateTable: sqliteddl.BuildCreateTableSQL,
	DropTable:   sqliteddl.BuildDropTableSQL,
	FoldsCase:   true,
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
	log *zap.Logger
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection: ":memory:" databases are per connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	// Apply a basic ping with context to fail fast on invalid DSNs.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg, log: log.With(zap.String("backend", "sqlite"))}, closeFn, nil
}

// ReplaceTable implements storage.Repository.
func (r *Repository) ReplaceTable(ctx context.Context, name string, t *schema.Table) (int64, error) {
	plan, err := storage.PlanReplace(Dialect, name, t)
	if err != nil {
		return 0, err
	}
	batch := r.cfg.Batch
	batch.Logger = r.log.With(zap.String("table", name))

	n, err := storage.ReplaceSQL(ctx, r.db, true, plan, batch, storage.PreparedInsert(Dialect, name))
	if err != nil {
		return 0, fmt.Errorf("sqlite: %w", err)
	}
	return n, nil
}

// Exec executes an arbitrary SQL statement using the underlying database/sql
// connection.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// DB exposes the handle for callers that read results back.
func (r *Repository) DB() *sql.DB { return r.db }
