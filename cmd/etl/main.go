// Command etl copies every JSON document under a bucket prefix into its own
// relational table.
//
//	etl run --config pipeline.yaml
//	etl validate --config pipeline.yaml
//	etl config --config pipeline.yaml
//	etl probe --config pipeline.yaml --limit 5
//
// Running without a sub-command is the same as "etl run". Exit status is 0 on
// success, 2 for configuration errors and 1 for any other failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/config"

	// register all backends with the storage factory.
	_ "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/storage/all"
)

// options holds the command-line flags.
type options struct {
	configFile     string
	envFile        string
	dbParams       string
	bucketParams   string
	metricsBackend string
	pushgatewayURL string
	statsdAddr     string
	verbose        bool
}

// app carries the process environment so tests can substitute it.
type app struct {
	fs        afero.Fs
	lookupEnv func(string) (string, bool)
	stdout    io.Writer
	stderr    io.Writer

	// logger, when set, is used instead of building one from -v.
	logger *zap.Logger

	opts options
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		fs:        afero.NewOsFs(),
		lookupEnv: os.LookupEnv,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
	}
	code := a.execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// execute runs the command line and maps the outcome to an exit status.
func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(a.stderr, "etl: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var cerr *config.ConfigError
	if errors.As(err, &cerr) {
		return 2
	}
	return 1
}

func (a *app) rootCommand() *cobra.Command {
	run := a.runCommand()
	root := &cobra.Command{
		Use:           "etl",
		Short:         "Load JSON documents from a bucket into relational tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          run.RunE,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.opts.configFile, "config", "", "pipeline config file (JSON or YAML)")
	f.StringVar(&a.opts.envFile, "env-file", "", "optional .env file with ETL_* overrides")
	f.StringVar(&a.opts.dbParams, "db-params", "", "legacy database parameters JSON (host, port, database, service_key)")
	f.StringVar(&a.opts.bucketParams, "bucket-params", "", "legacy bucket parameters JSON (bucket_name, prefix)")
	f.StringVar(&a.opts.metricsBackend, "metrics-backend", "", "metrics backend: none, prometheus or datadog (overrides config)")
	f.StringVar(&a.opts.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides config)")
	f.StringVar(&a.opts.statsdAddr, "statsd-addr", "", "DogStatsD address (overrides config)")
	f.BoolVarP(&a.opts.verbose, "verbose", "v", false, "enable debug logs")

	root.AddCommand(run, a.validateCommand(), a.configCommand(), a.probeCommand())
	return root
}

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Copy every document under the prefix into its own table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := a.newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			p, err := a.loadPipeline(log)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), p, log)
		},
	}
}

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the resolved configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.load()
			if err != nil {
				return err
			}
			issues := config.ValidatePipeline(p)
			for _, iss := range issues {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if err := config.Validate(p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
}

func (a *app) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as YAML with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.load()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(p.Redacted())
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func (a *app) probeCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Fetch and flatten documents and print the tables a run would create",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := a.newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			p, err := a.loadPipeline(log)
			if err != nil {
				return err
			}
			return a.probe(cmd.Context(), p, limit, log)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of documents to examine (0 = all)")
	return cmd
}

// load resolves the configuration from files, environment and flags.
func (a *app) load() (config.Pipeline, error) {
	p, err := config.Load(config.LoadOptions{
		Fs:               a.fs,
		ConfigFile:       a.opts.configFile,
		EnvFile:          a.opts.envFile,
		DBParamsFile:     a.opts.dbParams,
		BucketParamsFile: a.opts.bucketParams,
		LookupEnv:        a.lookupEnv,
	})
	if err != nil {
		return p, err
	}
	if a.opts.metricsBackend != "" {
		p.Metrics.Backend = a.opts.metricsBackend
	}
	if a.opts.pushgatewayURL != "" {
		p.Metrics.PushgatewayURL = a.opts.pushgatewayURL
	}
	if a.opts.statsdAddr != "" {
		p.Metrics.StatsdAddr = a.opts.statsdAddr
	}
	return p, nil
}

// loadPipeline loads and validates the configuration, logging warnings.
func (a *app) loadPipeline(log *zap.Logger) (config.Pipeline, error) {
	p, err := a.load()
	if err != nil {
		return p, err
	}
	for _, iss := range config.ValidatePipeline(p) {
		if iss.Severity == config.SeverityWarning {
			log.Warn("config", zap.String("path", iss.Path), zap.String("issue", iss.Message))
		}
	}
	if err := config.Validate(p); err != nil {
		return p, err
	}
	return p, nil
}

func (a *app) newLogger() (*zap.Logger, error) {
	if a.logger != nil {
		return a.logger, nil
	}
	var (
		log *zap.Logger
		err error
	)
	if a.opts.verbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}
