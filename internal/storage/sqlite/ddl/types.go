// Package ddl contains SQLite-specific helpers for generating DDL.
//
// SQLite supports dynamic typing, so the mapping prefers canonical
// affinities: booleans are stored as INTEGER 0/1.
package ddl

import "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"

// MapType maps an inferred column kind into a SQLite column type.
func MapType(kind schema.Kind) string {
	switch kind {
	case schema.KindBool, schema.KindInt:
		return "INTEGER"
	case schema.KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}
