// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render CREATE TABLE statements from that model.
//
// The package stays generic: it does not assume any specific SQL dialect.
// Backend-specific packages (e.g., internal/storage/postgres/ddl) supply an
// identifier quoter and a type mapper and wrap the builders here.
package ddl

import (
	"fmt"
	"strings"
)

// Quoter quotes a single identifier for a dialect.
type Quoter func(string) string

// Verbatim emits identifiers as-is.
func Verbatim(id string) string { return id }

// ColumnDefs validates t and renders each column as
//
//	<quoted name> <SQLType> [NOT NULL]
//
// in column order. dialect prefixes error messages.
func ColumnDefs(dialect string, t TableDef, quote Quoter) ([]string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return nil, fmt.Errorf("%s: table FQN must not be empty", dialect)
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("%s: at least one column is required", dialect)
	}

	cols := make([]string, 0, len(t.Columns))
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return nil, fmt.Errorf("%s: column with empty name in table %s", dialect, fqn)
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate column %q in table %s", dialect, c.Name, fqn)
		}
		seen[c.Name] = struct{}{}

		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return nil, fmt.Errorf("%s: column %s missing SQLType", dialect, c.Name)
		}

		var sb strings.Builder
		sb.WriteString(quote(c.Name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())
	}
	return cols, nil
}

// BuildCreateTableSQL renders a generic CREATE TABLE statement:
//
//	CREATE TABLE <FQN> (
//	  <col1-def>,
//	  <col2-def>
//	);
//
// Identifiers are emitted verbatim. Dialect packages use CreateTable with
// their own quoter instead.
func BuildCreateTableSQL(t TableDef) (string, error) {
	return CreateTable("ddl", t, Verbatim)
}

// CreateTable renders CREATE TABLE with the given quoter.
func CreateTable(dialect string, t TableDef, quote Quoter) (string, error) {
	cols, err := ColumnDefs(dialect, t, quote)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n);",
		quote(strings.TrimSpace(t.FQN)),
		strings.Join(cols, ",\n  "),
	), nil
}

// DropTableIfExists renders DROP TABLE IF EXISTS with the given quoter.
func DropTableIfExists(dialect, name string, quote Quoter) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%s: table name must not be empty", dialect)
	}
	return "DROP TABLE IF EXISTS " + quote(name) + ";", nil
}
