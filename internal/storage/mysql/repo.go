// Package mysql implements a MySQL-backed storage.Repository using
// go-sql-driver/mysql and multi-row INSERT statements.
//
// MySQL commits DDL implicitly, so a replace cannot be made atomic: when an
// insert fails after DROP TABLE the table is left missing or partially
// loaded. The failure is logged and returned; a re-run restores the table.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage"
	myddl "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage/mysql/ddl"
)

// maxPlaceholders is the protocol limit on bound parameters per statement.
const maxPlaceholders = 65535

// Dialect renders MySQL statements.
var Dialect = storage.Dialect{
	Name:        "mysql",
	MapType:     myddl.MapType,
	QuoteIdent:  myddl.QuoteIdent,
	CreateTable: myddl.BuildCreateTableSQL,
	DropTable:   myddl.BuildDropTableSQL,
	MaxIdentLen: 64,
	FoldsCase:   true,
}

// Config holds MySQL repository configuration.
type Config struct {
	DSN    string
	Batch  storage.BatchOptions
	Logger *zap.Logger
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
	log *zap.Logger
}

// NewRepository parses the DSN, opens a pool and pings it. It returns the
// Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mcfg, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql ping %s: %w", mcfg.Addr, err)
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg, log: log.With(zap.String("backend", "mysql"))}, closeFn, nil
}

// ReplaceTable implements storage.Repository.
func (r *Repository) ReplaceTable(ctx context.Context, name string, t *schema.Table) (int64, error) {
	plan, err := storage.PlanReplace(Dialect, name, t)
	if err != nil {
		return 0, err
	}
	batch := r.cfg.Batch
	batch.Size = effectiveBatch(batch.Size, len(plan.Columns))
	batch.Logger = r.log.With(zap.String("table", name))

	n, err := storage.ReplaceSQL(ctx, r.db, false, plan, batch, insertBatch(name))
	if err != nil {
		r.log.Warn("replace failed; table may be missing or partially loaded",
			zap.String("table", name), zap.Int64("inserted", n), zap.Error(err))
		return n, fmt.Errorf("mysql: %w", err)
	}
	return n, nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// effectiveBatch caps size so one INSERT stays under the placeholder limit.
func effectiveBatch(size, width int) int {
	if width <= 0 {
		return size
	}
	if limit := maxPlaceholders / width; limit < size {
		if limit < 1 {
			return 1
		}
		return limit
	}
	return size
}

// insertBatch sends rows as one multi-row INSERT.
func insertBatch(table string) storage.InsertFunc {
	return func(ctx context.Context, ex storage.Execer, columns []string, rows [][]any) (int64, error) {
		if len(rows) == 0 {
			return 0, nil
		}
		args := make([]any, 0, len(rows)*len(columns))
		for _, row := range rows {
			args = append(args, row...)
		}
		res, err := ex.ExecContext(ctx, buildInsertSQL(table, columns, len(rows)), args...)
		if err != nil {
			return 0, fmt.Errorf("insert: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		return n, nil
	}
}

// buildInsertSQL renders INSERT INTO `t` (`a`, `b`) VALUES (?, ?), (?, ?).
func buildInsertSQL(table string, columns []string, nRows int) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = myddl.QuoteIdent(c)
	}
	tuple := "(" + storage.Placeholders(len(columns)) + ")"

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(myddl.QuoteIdent(table))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(") VALUES ")
	for i := 0; i < nRows; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
	}
	return sb.String()
}
