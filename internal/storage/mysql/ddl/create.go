package ddl

import (
	"strings"

	gddl "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/ddl"
)

const dialect = "mysql ddl"

// BuildCreateTableSQL returns a MySQL CREATE TABLE statement with
// backtick-quoted identifiers and a utf8mb4 default charset.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	stmt, err := gddl.CreateTable(dialect, t, QuoteIdent)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(stmt, ";") + " DEFAULT CHARSET=utf8mb4;", nil
}

// BuildDropTableSQL returns DROP TABLE IF EXISTS for name.
func BuildDropTableSQL(name string) (string, error) {
	return gddl.DropTableIfExists(dialect, name, QuoteIdent)
}

// QuoteIdent quotes a single identifier with backticks, doubling embedded
// backticks.
func QuoteIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}
