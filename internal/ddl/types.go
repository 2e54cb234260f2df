package ddl

import "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"

// ColumnDef describes a single column in a table definition produced or
// consumed by ddl. It intentionally uses simple, database-agnostic fields.
//
// Fields:
//   - Name: logical column name (unquoted; quoting/escaping happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, DOUBLE PRECISION)
//   - Nullable: whether NULL is allowed
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// TableDef holds the table name (FQN) and an ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// TypeMapper maps an inferred column kind to a dialect SQL type.
type TypeMapper func(schema.Kind) string

// FromKinds builds a TableDef for a flattened table. Every column is
// nullable because any key path may be absent from some rows; no keys or
// constraints are emitted.
func FromKinds(fqn string, columns []string, kinds []schema.Kind, mapType TypeMapper) TableDef {
	def := TableDef{FQN: fqn, Columns: make([]ColumnDef, len(columns))}
	for i, name := range columns {
		k := schema.KindString
		if i < len(kinds) {
			k = kinds[i]
		}
		def.Columns[i] = ColumnDef{Name: name, SQLType: mapType(k), Nullable: true}
	}
	return def
}
