// Package probe previews a run without touching a database: it fetches and
// flattens documents and renders the CREATE TABLE statement each one would
// get in the chosen dialect.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/datasource"
	gddl "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/ddl"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/pipeline"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage"
)

// Options control sampling.
type Options struct {
	// Limit caps the number of documents examined. Zero means all.
	Limit int
	// TablePrefix names the tables as a run would.
	TablePrefix string
	// Dialect renders the DDL.
	Dialect storage.Dialect
}

// Result describes one sampled document.
type Result struct {
	Index   int
	Object  string
	Table   string
	Columns []gddl.ColumnDef
	Rows    int
	// Create is empty when the document flattens to no columns.
	Create string
	// Err is set when the document could not be parsed or flattened.
	Err error
}

// Probe examines up to opts.Limit documents. Parse failures are reported
// per document; a storage access failure ends the probe.
func Probe(ctx context.Context, docs pipeline.Documents, flat pipeline.Flattener, opts Options) ([]Result, error) {
	prefix := opts.TablePrefix
	if prefix == "" {
		prefix = pipeline.DefaultTablePrefix
	}

	var out []Result
	for doc, err := range docs.Documents(ctx) {
		var sae *datasource.StorageAccessError
		if errors.As(err, &sae) {
			return out, err
		}

		res := Result{Index: doc.Index, Object: doc.Name, Table: fmt.Sprintf("%s%d", prefix, doc.Index), Err: err}
		if err == nil {
			res.Err = describe(&res, doc, flat, opts.Dialect)
		}
		out = append(out, res)

		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, ctx.Err()
}

func describe(res *Result, doc datasource.Document, flat pipeline.Flattener, d storage.Dialect) error {
	t, err := flat.Flatten(doc.Value)
	if err != nil {
		return &datasource.ParseError{Object: doc.Name, Index: doc.Index, Err: err}
	}
	res.Rows = t.Len()

	plan, err := storage.PlanReplace(d, res.Table, t)
	if err != nil {
		return err
	}
	res.Create = plan.Create
	res.Columns = gddl.FromKinds(res.Table, plan.Columns, plan.Kinds, d.MapType).Columns
	return nil
}

// Render writes a human-readable report of results to w.
func Render(w io.Writer, results []Result) error {
	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "-- #%d %s -> %s", r.Index, r.Object, r.Table)
		switch {
		case r.Err != nil:
			fmt.Fprintf(&sb, ": error: %v\n\n", r.Err)
			continue
		case r.Create == "":
			sb.WriteString(": no columns, table would be dropped only\n\n")
			continue
		}
		fmt.Fprintf(&sb, " (%d rows, %d columns)\n%s\n\n", r.Rows, len(r.Columns), r.Create)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
