// Package sqlite implements a SQLite-backed storage.Repository.
package sqlite

import (
	"go.uber.org/zap"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:etl.db?_pragma=busy_timeout(5000)"
	//   "etl.db"
	//   ":memory:"
	DSN string

	Batch  storage.BatchOptions
	Logger *zap.Logger
}
