// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories with the storage package. Importing it makes the
// following storage kinds available at runtime:
//
//   - "postgres" (internal/storage/postgres)
//   - "mysql"    (internal/storage/mysql)
//   - "mssql"    (internal/storage/mssql)
//   - "sqlite"   (internal/storage/sqlite)
//   - "duckdb"   (internal/storage/duckdb)
//
// A binary that needs only a subset can import those backends directly
// instead of this package.
package all

import (
	_ "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage/duckdb"
	_ "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage/mssql"
	_ "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage/mysql"
	_ "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage/postgres"
	_ "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage/sqlite"
)
