// Package ddl contains DuckDB-specific helpers for generating DDL.
package ddl

import "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"

// MapType maps an inferred column kind into a DuckDB column type.
func MapType(kind schema.Kind) string {
	switch kind {
	case schema.KindBool:
		return "BOOLEAN"
	case schema.KindInt:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}
