// Package ddl provides SQLite-specific helpers for generating DDL from the
// generic ddl.TableDef model, using double-quoted identifiers.
package ddl

import (
	"strings"

	gddl "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/ddl"
)

const dialect = "sqlite ddl"

// BuildCreateTableSQL returns a SQLite CREATE TABLE statement.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return gddl.CreateTable(dialect, t, QuoteIdent)
}

// BuildDropTableSQL returns DROP TABLE IF EXISTS for name.
func BuildDropTableSQL(name string) (string, error) {
	return gddl.DropTableIfExists(dialect, name, QuoteIdent)
}

// QuoteIdent quotes a single identifier, escaping embedded double quotes.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
