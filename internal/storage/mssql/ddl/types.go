// Package ddl contains MSSQL-specific helpers for generating DDL.
package ddl

import "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"

// MapType maps an inferred column kind into a SQL Server column type.
// Unknown kinds fall back to NVARCHAR(MAX).
func MapType(kind schema.Kind) string {
	switch kind {
	case schema.KindBool:
		return "BIT"
	case schema.KindInt:
		return "BIGINT"
	case schema.KindFloat:
		return "FLOAT"
	default:
		return "NVARCHAR(MAX)"
	}
}
