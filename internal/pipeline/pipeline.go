// Package pipeline runs one bucket-to-database job: it pulls every document
// under the configured prefix, flattens each into a table, and replaces one
// destination table per document.
//
// A run has two phases. Phase 1 consumes the whole document sequence and
// flattens every document in memory; a storage access failure or (under the
// abort policy) a parse failure ends the run before anything is written.
// Phase 2 writes the tables in index order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/config"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/datasource"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/metrics"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage"
)

// DefaultTablePrefix names destination tables when Config.TablePrefix is empty.
const DefaultTablePrefix = "test_table_"

// Step names passed to metrics.RecordStep.
const (
	StepFetch   = "fetch"
	StepFlatten = "flatten"
	StepWrite   = "write"
	StepRun     = "run"
)

// Documents yields parsed documents in listing order. *datasource.Fetcher
// satisfies it.
type Documents interface {
	Documents(ctx context.Context) iter.Seq2[datasource.Document, error]
}

// Flattener converts one parsed document into a table. *flatten.Flattener
// satisfies it.
type Flattener interface {
	Flatten(v *fastjson.Value) (*schema.Table, error)
}

// Config controls one run.
type Config struct {
	// Job labels logs and metrics.
	Job string

	// TablePrefix is prepended to each document index to name its table.
	TablePrefix string

	// OnParseError and OnWriteError are config.PolicyAbort (default) or
	// config.PolicySkip.
	OnParseError string
	OnWriteError string

	// WriteTimeout bounds each table replace. Zero means no timeout.
	WriteTimeout time.Duration
}

// TableResult describes the outcome for one document.
type TableResult struct {
	Index  int
	Object string
	// Table is empty when the document never reached the write phase.
	Table string
	Rows  int64
	Err   error
}

// Report summarizes a run. Run returns it even when it fails.
type Report struct {
	RunID       string
	Listed      int
	Fetched     int
	ParseErrors int
	Flattened   int
	Written     int
	WriteErrors int
	Rows        int64
	Tables      []TableResult
	Duration    time.Duration
}

// Runner executes runs against one repository.
type Runner struct {
	cfg  Config
	docs Documents
	flat Flattener
	repo storage.Repository
	log  *zap.Logger

	newRunID func() string
}

// New returns a Runner. A nil logger discards logs.
func New(cfg Config, docs Documents, flat Flattener, repo storage.Repository, log *zap.Logger) *Runner {
	if cfg.TablePrefix == "" {
		cfg.TablePrefix = DefaultTablePrefix
	}
	if cfg.OnParseError == "" {
		cfg.OnParseError = config.PolicyAbort
	}
	if cfg.OnWriteError == "" {
		cfg.OnWriteError = config.PolicyAbort
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		docs:     docs,
		flat:     flat,
		repo:     repo,
		log:      log,
		newRunID: func() string { return uuid.NewString() },
	}
}

// TableName returns the destination table for the document at index.
func (r *Runner) TableName(index int) string {
	return fmt.Sprintf("%s%d", r.cfg.TablePrefix, index)
}

// pending is a flattened document waiting for phase 2.
type pending struct {
	index  int
	object string
	table  *schema.Table
}

// Run executes both phases and returns the report together with the first
// fatal error, if any.
func (r *Runner) Run(ctx context.Context) (rep *Report, err error) {
	start := time.Now()
	rep = &Report{RunID: r.newRunID()}
	log := r.log.With(zap.String("run_id", rep.RunID), zap.String("job", r.cfg.Job))

	defer func() {
		rep.Duration = time.Since(start)
		metrics.RecordStep(r.cfg.Job, StepRun, err, rep.Duration)
		fields := []zap.Field{
			zap.Int("listed", rep.Listed),
			zap.Int("fetched", rep.Fetched),
			zap.Int("parse_errors", rep.ParseErrors),
			zap.Int("flattened", rep.Flattened),
			zap.Int("written", rep.Written),
			zap.Int("write_errors", rep.WriteErrors),
			zap.Int64("rows", rep.Rows),
			zap.Duration("elapsed", rep.Duration.Truncate(time.Millisecond)),
		}
		if err != nil {
			log.Error("run failed", append(fields, zap.Error(err))...)
			return
		}
		log.Info("run finished", fields...)
	}()

	log.Info("run started",
		zap.String("table_prefix", r.cfg.TablePrefix),
		zap.String("on_parse_error", r.cfg.OnParseError),
		zap.String("on_write_error", r.cfg.OnWriteError))

	work, err := r.collect(ctx, rep, log)
	if err != nil {
		return rep, err
	}
	return rep, r.write(ctx, rep, work, log)
}

// collect is phase 1: fetch and flatten every document.
func (r *Runner) collect(ctx context.Context, rep *Report, log *zap.Logger) (work []pending, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep(r.cfg.Job, StepFetch, err, time.Since(start)) }()

	for doc, derr := range r.docs.Documents(ctx) {
		var sae *datasource.StorageAccessError
		if errors.As(derr, &sae) {
			if sae.Object != "" {
				rep.Listed++
				metrics.RecordDocument(r.cfg.Job, metrics.DocListed, 1)
			}
			return nil, derr
		}

		rep.Listed++
		metrics.RecordDocument(r.cfg.Job, metrics.DocListed, 1)
		if derr == nil || isParseError(derr) {
			rep.Fetched++
			metrics.RecordDocument(r.cfg.Job, metrics.DocFetched, 1)
		}

		if derr == nil {
			var t *schema.Table
			t, derr = r.flatten(doc)
			if derr == nil {
				rep.Flattened++
				metrics.RecordDocument(r.cfg.Job, metrics.DocFlattened, 1)
				log.Debug("document flattened",
					zap.Int("index", doc.Index),
					zap.String("object", doc.Name),
					zap.Int64("bytes", doc.Size),
					zap.String("xxh3", fmt.Sprintf("%016x", doc.Checksum)),
					zap.Int("columns", t.Width()),
					zap.Int("rows", t.Len()))
				work = append(work, pending{index: doc.Index, object: doc.Name, table: t})
				continue
			}
		}

		if !isParseError(derr) {
			// Cancellation or another non-document failure.
			return nil, derr
		}
		rep.ParseErrors++
		metrics.RecordDocument(r.cfg.Job, metrics.DocParseError, 1)
		rep.Tables = append(rep.Tables, TableResult{Index: doc.Index, Object: doc.Name, Err: derr})
		if r.cfg.OnParseError != config.PolicySkip {
			return nil, derr
		}
		log.Warn("skipping unparseable document",
			zap.Int("index", doc.Index),
			zap.String("object", doc.Name),
			zap.Error(derr))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return work, nil
}

func (r *Runner) flatten(doc datasource.Document) (*schema.Table, error) {
	start := time.Now()
	t, err := r.flat.Flatten(doc.Value)
	if err != nil {
		err = &datasource.ParseError{Object: doc.Name, Index: doc.Index, Err: err}
	}
	metrics.RecordStep(r.cfg.Job, StepFlatten, err, time.Since(start))
	return t, err
}

// write is phase 2: replace one table per flattened document, in index
// order.
func (r *Runner) write(ctx context.Context, rep *Report, work []pending, log *zap.Logger) error {
	for _, p := range work {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := r.TableName(p.index)
		start := time.Now()
		n, err := storage.WriteTable(ctx, r.repo, name, p.table, r.cfg.WriteTimeout)
		metrics.RecordStep(r.cfg.Job, StepWrite, err, time.Since(start))

		res := TableResult{Index: p.index, Object: p.object, Table: name, Rows: n, Err: err}
		rep.Tables = append(rep.Tables, res)

		if err != nil {
			rep.WriteErrors++
			metrics.RecordDocument(r.cfg.Job, metrics.DocWriteError, 1)
			if r.cfg.OnWriteError != config.PolicySkip {
				return err
			}
			log.Warn("skipping failed table",
				zap.String("table", name),
				zap.String("object", p.object),
				zap.Error(err))
			continue
		}

		rep.Written++
		rep.Rows += n
		metrics.RecordDocument(r.cfg.Job, metrics.DocWritten, 1)
		metrics.RecordRows(r.cfg.Job, n)
		log.Info("table written",
			zap.String("table", name),
			zap.String("object", p.object),
			zap.Int64("rows", n),
			zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
	}
	return nil
}

func isParseError(err error) bool {
	var pe *datasource.ParseError
	return errors.As(err, &pe)
}
