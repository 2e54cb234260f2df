package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	gddl "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/ddl"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"
)

// Dialect bundles the statement builders of one SQL backend.
type Dialect struct {
	Name        string
	MapType     gddl.TypeMapper
	QuoteIdent  gddl.Quoter
	CreateTable func(gddl.TableDef) (string, error)
	DropTable   func(name string) (string, error)

	// MaxIdentLen is the longest identifier the backend accepts, counted in
	// bytes when IdentLenBytes is set and in characters otherwise. Zero
	// means no limit.
	MaxIdentLen   int
	IdentLenBytes bool
	// FoldsCase is set when quoted column names that differ only in case
	// name the same column.
	FoldsCase bool
}

// ErrIdentifier is returned by PlanReplace for table or column names the
// dialect cannot represent.
var ErrIdentifier = errors.New("invalid identifier")

// CheckIdentifiers reports names that exceed the dialect's length limit or
// that the dialect would treat as the same column.
func (d Dialect) CheckIdentifiers(table string, columns []string) error {
	if err := d.checkLen("table", table); err != nil {
		return err
	}
	var seen map[string]string
	if d.FoldsCase {
		seen = make(map[string]string, len(columns))
	}
	fold := cases.Fold()
	for _, c := range columns {
		if err := d.checkLen("column", c); err != nil {
			return err
		}
		if seen == nil {
			continue
		}
		key := fold.String(c)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%w: columns %q and %q are the same name in %s", ErrIdentifier, prev, c, d.Name)
		}
		seen[key] = c
	}
	return nil
}

func (d Dialect) checkLen(what, name string) error {
	if d.MaxIdentLen == 0 {
		return nil
	}
	n, unit := utf8.RuneCountInString(name), "characters"
	if d.IdentLenBytes {
		n, unit = len(name), "bytes"
	}
	if n > d.MaxIdentLen {
		return fmt.Errorf("%w: %s name %q is %d %s, %s allows %d", ErrIdentifier, what, name, n, unit, d.Name, d.MaxIdentLen)
	}
	return nil
}

// ReplacePlan holds everything needed to replace one table.
type ReplacePlan struct {
	Table   string
	Drop    string
	Create  string // empty when the table has no columns
	Columns []string
	Kinds   []schema.Kind
	Rows    [][]any
}

// PlanReplace normalizes t to its inferred column kinds and renders the DROP
// and CREATE statements for name.
func PlanReplace(d Dialect, name string, t *schema.Table) (ReplacePlan, error) {
	if err := d.CheckIdentifiers(name, t.Columns); err != nil {
		return ReplacePlan{}, err
	}
	drop, err := d.DropTable(name)
	if err != nil {
		return ReplacePlan{}, err
	}
	p := ReplacePlan{Table: name, Drop: drop, Columns: t.Columns, Rows: t.Rows}
	if t.Width() == 0 {
		return p, nil
	}
	p.Kinds = t.Normalize()
	p.Create, err = d.CreateTable(gddl.FromKinds(name, t.Columns, p.Kinds, d.MapType))
	if err != nil {
		return ReplacePlan{}, err
	}
	return p, nil
}

// QuotedColumns returns the plan's columns quoted for d.
func (p ReplacePlan) QuotedColumns(d Dialect) []string {
	out := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		out[i] = d.QuoteIdent(c)
	}
	return out
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// InsertFunc inserts one batch of rows through ex.
type InsertFunc func(ctx context.Context, ex Execer, columns []string, rows [][]any) (int64, error)

// ReplaceSQL executes plan over database/sql: drop, create, then batched
// inserts. When atomic is set all of it runs in one transaction, so a failure
// leaves the previous table untouched.
func ReplaceSQL(ctx context.Context, db *sql.DB, atomic bool, plan ReplacePlan, batch BatchOptions, insert InsertFunc) (int64, error) {
	if !atomic {
		return replaceOn(ctx, db, plan, batch, insert)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	n, err := replaceOn(ctx, tx, plan, batch, insert)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func replaceOn(ctx context.Context, ex Execer, plan ReplacePlan, batch BatchOptions, insert InsertFunc) (int64, error) {
	if _, err := ex.ExecContext(ctx, plan.Drop); err != nil {
		return 0, fmt.Errorf("drop %s: %w", plan.Table, err)
	}
	if plan.Create == "" {
		if batch.Logger != nil {
			batch.Logger.Debug("table has no columns; dropped only", zap.String("table", plan.Table))
		}
		return 0, nil
	}
	if _, err := ex.ExecContext(ctx, plan.Create); err != nil {
		return 0, fmt.Errorf("create %s: %w", plan.Table, err)
	}
	return LoadBatches(ctx, plan.Columns, plan.Rows, batch, func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
		return insert(ctx, ex, cols, rows)
	})
}

// PreparedInsert returns an InsertFunc that executes a prepared single-row
// INSERT per row, using "?" placeholders.
func PreparedInsert(d Dialect, table string) InsertFunc {
	return func(ctx context.Context, ex Execer, columns []string, rows [][]any) (int64, error) {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = d.QuoteIdent(c)
		}
		stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			d.QuoteIdent(table),
			strings.Join(quoted, ", "),
			Placeholders(len(columns)),
		)
		stmt, err := ex.PrepareContext(ctx, stmtSQL)
		if err != nil {
			return 0, fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		var inserted int64
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return inserted, fmt.Errorf("insert: %w", err)
			}
			inserted++
		}
		return inserted, nil
	}
}

// Placeholders returns "?, ?, ..." with n markers.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
