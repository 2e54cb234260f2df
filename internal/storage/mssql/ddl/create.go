// Package ddl provides MSSQL-specific helpers for generating DDL from the
// generic ddl.TableDef model.
//
// The builders here:
//   - Use SQL Server-style identifier quoting: [table], [col].
//   - Guard DROP TABLE with OBJECT_ID(...) so the script also runs on
//     servers without DROP TABLE IF EXISTS.
package ddl

import (
	"fmt"
	"strings"

	gddl "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/ddl"
)

const dialect = "mssql ddl"

// BuildCreateTableSQL returns a T-SQL CREATE TABLE statement.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return gddl.CreateTable(dialect, t, QuoteIdent)
}

// BuildDropTableSQL returns a T-SQL script that drops name when it exists:
//
//	IF OBJECT_ID(N'[table]', N'U') IS NOT NULL
//	  DROP TABLE [table];
func BuildDropTableSQL(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%s: table name must not be empty", dialect)
	}
	q := QuoteIdent(name)
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL\n  DROP TABLE %s;",
		strings.ReplaceAll(q, "'", "''"), q), nil
}

// QuoteIdent quotes a single identifier segment for SQL Server using
// bracket syntax, escaping any closing brackets.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func QuoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}
