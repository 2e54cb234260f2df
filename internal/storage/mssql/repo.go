// Package mssql implements a Microsoft SQL Server repository using the
// go-mssqldb bulk copy API. A replace runs DROP, CREATE and the bulk copy in
// one transaction, so a failure leaves the previous table intact.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"go.uber.org/zap"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage"
	msddl "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage/mssql/ddl"
)

// Dialect renders T-SQL statements.
var Dialect = storage.Dialect{
	Name:        "mssql",
	MapType:     msddl.MapType,
	QuoteIdent:  msddl.QuoteIdent,
	CreateTable: msddl.BuildCreateTableSQL,
	DropTable:   msddl.BuildDropTableSQL,
	MaxIdentLen: 128,
	FoldsCase:   true,
}

// Config holds MSSQL repository configuration.
type Config struct {
	DSN    string
	Batch  storage.BatchOptions
	Logger *zap.Logger
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
	log *zap.Logger
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	p, err := msdsn.Parse(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mssql ping %s: %w", p.Host, err)
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	close := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg, log: log.With(zap.String("backend", "mssql"))}, close, nil
}

// ReplaceTable implements storage.Repository.
func (r *Repository) ReplaceTable(ctx context.Context, name string, t *schema.Table) (int64, error) {
	plan, err := storage.PlanReplace(Dialect, name, t)
	if err != nil {
		return 0, err
	}
	batch := r.cfg.Batch
	batch.Logger = r.log.With(zap.String("table", name))

	n, err := storage.ReplaceSQL(ctx, r.db, true, plan, batch, bulkCopy(name))
	if err != nil {
		return 0, fmt.Errorf("mssql: %w", err)
	}
	return n, nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("mssql: exec: %w", err)
	}
	return nil
}

// bulkCopy streams one batch through mssql.CopyIn. It must run on the
// replace transaction.
func bulkCopy(table string) storage.InsertFunc {
	return func(ctx context.Context, ex storage.Execer, columns []string, rows [][]any) (int64, error) {
		if len(rows) == 0 {
			return 0, nil
		}
		stmt, err := ex.PrepareContext(ctx, mssql.CopyIn(msddl.QuoteIdent(table), mssql.BulkOptions{}, columns...))
		if err != nil {
			return 0, fmt.Errorf("prepare bulk: %w", err)
		}
		for i := range rows {
			if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
				_ = stmt.Close()
				return 0, fmt.Errorf("bulk row %d: %w", i, err)
			}
		}
		res, err := stmt.ExecContext(ctx)
		if cerr := stmt.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			return 0, fmt.Errorf("bulk finalize: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		return n, nil
	}
}
