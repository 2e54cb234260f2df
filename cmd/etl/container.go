// This file wires the configured components into one run. It keeps the CLI
// layer thin: it depends only on storage-agnostic interfaces and never
// imports database drivers or backend-specific packages directly.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/config"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/datasource"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/datasource/file"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/datasource/gcs"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/flatten"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/metrics"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/metrics/datadog"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/metrics/prompush"
	jsonparser "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/parser/json"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/pipeline"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/probe"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/prompt"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage"
)

// Function variables used to introduce test seams.
// In production these point to real implementations; tests can override them.
var (
	newRepositoryFn = storage.New

	openGCSFn = func(ctx context.Context, cfg gcs.Config) (objectStore, error) {
		return gcs.NewStore(ctx, cfg)
	}

	// prompterFn returns nil when stdin is not a terminal.
	prompterFn = func() prompt.Prompter {
		if !prompt.IsInteractive(os.Stdin) {
			return nil
		}
		return prompt.NewSurvey()
	}
)

// objectStore is a datasource.ObjectStore that holds resources.
type objectStore interface {
	datasource.ObjectStore
	Close() error
}

// localStore adapts a file.Dir, which holds nothing open.
type localStore struct{ *file.Dir }

func (localStore) Close() error { return nil }

// run executes one pipeline and prints its summary.
func (a *app) run(ctx context.Context, p config.Pipeline, log *zap.Logger) error {
	flush, err := setupMetrics(p.Metrics, p.Job, log)
	if err != nil {
		return err
	}
	defer flush()

	if err := prompt.FillCredentials(prompterFn(), p.Storage.Kind, &p.Storage.DB); err != nil {
		return err
	}
	dsn, err := config.BuildDSN(p.Storage.Kind, p.Storage.DB)
	if err != nil {
		return &config.ConfigError{Issues: []config.Issue{{
			Severity: config.SeverityError,
			Path:     "storage.db",
			Message:  err.Error(),
		}}}
	}

	store, err := openStore(ctx, a.fs, p.Source)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("close object store", zap.Error(err))
		}
	}()

	fetcher, err := newFetcher(a.fs, store, p, log)
	if err != nil {
		return err
	}

	shown := p
	shown.Storage.DB.DSN = dsn
	log.Info("connecting to database",
		zap.String("kind", p.Storage.Kind),
		zap.String("dsn", shown.Redacted().Storage.DB.DSN))
	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:      p.Storage.Kind,
		DSN:       dsn,
		BatchSize: p.Storage.BatchSize,
		Job:       p.Job,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", p.Storage.Kind, err)
	}
	defer repo.Close()

	runner := pipeline.New(pipeline.Config{
		Job:          p.Job,
		TablePrefix:  p.Storage.TablePrefix,
		OnParseError: p.Policy.OnParseError,
		OnWriteError: p.Policy.OnWriteError,
		WriteTimeout: p.Runtime.WriteTimeout,
	}, fetcher, newFlattener(p.Flatten), repo, log)

	rep, err := runner.Run(ctx)
	printReport(a, rep)
	return err
}

// probe previews the tables of a run without opening the database.
func (a *app) probe(ctx context.Context, p config.Pipeline, limit int, log *zap.Logger) error {
	dialect, err := storage.LookupDialect(p.Storage.Kind)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, a.fs, p.Source)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	fetcher, err := newFetcher(a.fs, store, p, log)
	if err != nil {
		return err
	}
	results, err := probe.Probe(ctx, fetcher, newFlattener(p.Flatten), probe.Options{
		Limit:       limit,
		TablePrefix: p.Storage.TablePrefix,
		Dialect:     dialect,
	})
	if rerr := probe.Render(a.stdout, results); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

func newFlattener(c config.FlattenConfig) *flatten.Flattener {
	return flatten.New(flatten.Options{Separator: c.Separator, MaxLevel: c.MaxLevel})
}

// openStore opens the object store named by src.Kind.
func openStore(ctx context.Context, fsys afero.Fs, src config.Source) (objectStore, error) {
	switch src.Kind {
	case "gcs":
		s, err := openGCSFn(ctx, gcs.Config{CredentialsFile: src.CredentialsFile, Endpoint: src.Endpoint})
		if err != nil {
			return nil, &datasource.StorageAccessError{Op: "connect", Bucket: src.Bucket, Err: err}
		}
		return s, nil
	case "file":
		return localStore{file.NewDirFs(fsys, src.Root)}, nil
	default:
		return nil, fmt.Errorf("unsupported source.kind=%s", src.Kind)
	}
}

func newFetcher(fsys afero.Fs, store datasource.ObjectStore, p config.Pipeline, log *zap.Logger) (*datasource.Fetcher, error) {
	var manifest []string
	if p.Source.Manifest != "" {
		names, err := file.ReadList(fsys, p.Source.Manifest)
		if err != nil {
			return nil, &config.ConfigError{Issues: []config.Issue{{
				Severity: config.SeverityError,
				Path:     "source.manifest",
				Message:  fmt.Sprintf("read manifest: %v", err),
			}}}
		}
		manifest = names
	}
	return datasource.NewFetcher(store, p.Source.Bucket, p.Source.Prefix, datasource.FetcherOptions{
		SkipDirectoryMarkers: p.Source.SkipDirectoryMarkers,
		FetchTimeout:         p.Runtime.FetchTimeout,
		Parser:               jsonparser.FromConfigOptions(p.Parser.Options),
		Manifest:             manifest,
		Logger:               log,
	})
}

// setupMetrics installs the configured metrics backend and returns a
// function that flushes it.
func setupMetrics(m config.MetricsConfig, job string, log *zap.Logger) (func(), error) {
	var b metrics.Backend
	switch m.Backend {
	case "prometheus":
		pb, err := prompush.NewBackend(job, m.PushgatewayURL)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		b = pb
	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{
			Addr:       m.StatsdAddr,
			Namespace:  "etl.",
			GlobalTags: []string{"job:" + job},
		})
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		b = db
	default:
		log.Debug("metrics: disabled", zap.String("backend", m.Backend))
		return func() {}, nil
	}

	log.Info("metrics: enabled", zap.String("backend", m.Backend))
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics: flush error", zap.Error(err))
		}
	}, nil
}

func printReport(a *app, rep *pipeline.Report) {
	if rep == nil {
		return
	}
	fmt.Fprintf(a.stdout, "run %s: listed=%d fetched=%d parse_errors=%d flattened=%d written=%d write_errors=%d rows=%d elapsed=%s\n",
		rep.RunID, rep.Listed, rep.Fetched, rep.ParseErrors, rep.Flattened,
		rep.Written, rep.WriteErrors, rep.Rows, rep.Duration.Round(time.Millisecond))
	for _, t := range rep.Tables {
		switch {
		case t.Err != nil && t.Table == "":
			fmt.Fprintf(a.stdout, "  #%d %s: not parsed: %v\n", t.Index, t.Object, t.Err)
		case t.Err != nil:
			fmt.Fprintf(a.stdout, "  #%d %s -> %s: failed: %v\n", t.Index, t.Object, t.Table, t.Err)
		default:
			fmt.Fprintf(a.stdout, "  #%d %s -> %s: %d rows\n", t.Index, t.Object, t.Table, t.Rows)
		}
	}
}
