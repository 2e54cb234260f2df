// Package postgres implements a Postgres repository using pgx v5. A replace
// runs DROP, CREATE and COPY in one transaction, so a failure leaves the
// previous table intact.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage"
	pgddl "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage/postgres/ddl"
)

// Dialect renders Postgres statements.
var Dialect = storage.Dialect{
	Name:          "postgres",
	MapType:       pgddl.MapType,
	QuoteIdent:    pgddl.QuoteIdent,
	CreateTable:   pgddl.BuildCreateTableSQL,
	DropTable:     pgddl.BuildDropTableSQL,
	MaxIdentLen:   63,
	IdentLenBytes: true,
}

// Config holds Postgres repository configuration.
type Config struct {
	DSN    string // connection string for pgxpool
	Batch  storage.BatchOptions
	Logger *zap.Logger
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
	log  *zap.Logger
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres dsn: %w", err)
	}
	// One session is all a sequential run needs.
	pcfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres ping %s: %w", pcfg.ConnConfig.Host, err)
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg, log: log.With(zap.String("backend", "postgres"))}, close, nil
}

// ReplaceTable implements storage.Repository.
func (r *Repository) ReplaceTable(ctx context.Context, name string, t *schema.Table) (int64, error) {
	plan, err := storage.PlanReplace(Dialect, name, t)
	if err != nil {
		return 0, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("postgres: begin tx: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, plan.Drop); err != nil {
		return 0, fmt.Errorf("postgres: drop %s: %w", name, pgDetail(err))
	}
	var n int64
	if plan.Create != "" {
		if _, err := tx.Exec(ctx, plan.Create); err != nil {
			return 0, fmt.Errorf("postgres: create %s: %w", name, pgDetail(err))
		}

		batch := r.cfg.Batch
		batch.Logger = r.log.With(zap.String("table", name))
		n, err = storage.LoadBatches(ctx, plan.Columns, plan.Rows, batch,
			func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
				return tx.CopyFrom(ctx, pgx.Identifier{name}, cols, pgx.CopyFromRows(rows))
			})
		if err != nil {
			return 0, fmt.Errorf("postgres: copy into %s: %w", name, pgDetail(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return n, nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", pgDetail(err))
	}
	return nil
}

// pgDetail appends the server's detail and SQLSTATE when present.
func pgDetail(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s, %s)", err, pgErr.Detail, pgErr.SQLState())
	}
	return err
}
