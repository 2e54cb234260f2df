// Package ddl contains Postgres-specific helpers for generating DDL.
package ddl

import "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"

// MapType maps an inferred column kind into a Postgres SQL type.
//
//	bool   -> BOOLEAN
//	int    -> BIGINT
//	float  -> DOUBLE PRECISION
//	others -> TEXT
func MapType(kind schema.Kind) string {
	switch kind {
	case schema.KindBool:
		return "BOOLEAN"
	case schema.KindInt:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}
