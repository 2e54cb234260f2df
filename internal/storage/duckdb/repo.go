// Package duckdb implements a DuckDB-backed storage.Repository. A replace
// runs DROP, CREATE and prepared INSERTs in one transaction.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	duckdb "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage"
	duckddl "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage/duckdb/ddl"
)

// Dialect renders DuckDB statements.
var Dialect = storage.Dialect{
	Name:        "duckdb",
	MapType:     duckddl.MapType,
	QuoteIdent:  duckddl.QuoteIdent,
	CreateTable: duckddl.BuildCreateTableSQL,
	DropTable:   duckddl.BuildDropTableSQL,
	FoldsCase:   true,
}

// Config holds DuckDB repository configuration. An empty DSN opens an
// in-memory database.
type Config struct {
	DSN    string
	Batch  storage.BatchOptions
	Logger *zap.Logger
}

// Repository is a DuckDB-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
	log *zap.Logger
}

// NewRepository opens the database file named by cfg.DSN and returns a
// Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	connector, err := duckdb.NewConnector(cfg.DSN, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("duckdb: open %q: %w", cfg.DSN, err)
	}
	db := sql.OpenDB(connector)
	// Keep every statement on one connection so in-memory databases persist.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = connector.Close()
		return nil, nil, fmt.Errorf("duckdb: ping: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	closeFn := func() {
		_ = db.Close()
		_ = connector.Close()
	}
	return &Repository{db: db, cfg: cfg, log: log.With(zap.String("backend", "duckdb"))}, closeFn, nil
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
		return 0, fmt.Errorf("duckdb: %w", err)
	}
	return n, nil
}

// Exec executes a SQL statement.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("duckdb: exec: %w", err)
	}
	return nil
}
