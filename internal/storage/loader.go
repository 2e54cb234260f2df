// This file implements a generic, batched loader that slices a table's rows
// and invokes a provided bulk-insert function (CopyFn) per batch.
//
// Backends implement CopyFn using their most efficient primitive (Postgres
// COPY, MSSQL bulk copy, MySQL multi-row INSERT, prepared INSERT for SQLite
// and DuckDB).
//
// Logging: on every successful flush, a concise progress line is emitted with
// running totals and instantaneous rows/sec since the previous flush.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/metrics"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to 'columns' order) and return the number of
// rows reported as inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// BatchOptions controls LoadBatches.
type BatchOptions struct {
	Size   int
	Job    string
	Logger *zap.Logger
}

// LoadBatches groups rows into batches of opts.Size and calls copyFn for each
// non-empty batch, in order. It returns the total number of rows reported by
// copyFn and the first error encountered.
//
// Cancellation is checked between batches.
func LoadBatches(
	ctx context.Context,
	columns []string,
	rows [][]any,
	opts BatchOptions,
	copyFn CopyFn,
) (int64, error) {
	if opts.Size <= 0 {
		return 0, fmt.Errorf("batch size must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var (
		total       int64
		batches     int64
		start       = time.Now()
		lastFlushTS = start
	)

	for lo := 0; lo < len(rows); lo += opts.Size {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		hi := min(lo+opts.Size, len(rows))

		n, err := copyFn(ctx, columns, rows[lo:hi])
		total += n
		if err != nil {
			log.Warn("loader: copy failed",
				zap.Int64("batch", batches+1),
				zap.Int64("inserted", n),
				zap.Int64("total_inserted", total),
				zap.Error(err))
			return total, err
		}

		batches++
		metrics.RecordBatches(opts.Job, 1)

		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(n) / sinceLast.Seconds()
		}
		log.Debug("batch flushed",
			zap.Int64("batch", batches),
			zap.Float64("rps", rps),
			zap.Int64("inserted", n),
			zap.Int64("total_inserted", total),
			zap.Duration("elapsed", now.Sub(start).Truncate(time.Millisecond)),
			zap.Duration("since_last", sinceLast.Truncate(time.Millisecond)),
		)
		lastFlushTS = now
	}
	return total, nil
}
