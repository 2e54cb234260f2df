// Package config defines the configuration model for a bucket-to-database
// run, how it is loaded, and how it is validated.
//
// A pipeline file (JSON or YAML) looks like:
//
//	job: nightly-export
//	source:
//	  kind: gcs
//	  bucket: my-bucket
//	  prefix: exports/2024/
//	  credentials_file: service_key.json
//	parser:
//	  options: { ndjson: false }
//	flatten: { separator: ".", max_level: 0 }
//	storage:
//	  kind: mysql
//	  table_prefix: test_table_
//	  batch_size: 1000
//	  db: { host: db.internal, port: 3306, database: staging, user: etl }
//	policy: { on_parse_error: abort, on_write_error: abort }
//	runtime: { fetch_timeout: 30s, write_timeout: 5m }
//
// Every key can be overridden from the environment with the ETL_ prefix and
// dots replaced by underscores (ETL_STORAGE_DB_PASSWORD).
package config

import "time"

// Policy values for Policy.OnParseError and Policy.OnWriteError.
const (
	PolicyAbort = "abort"
	PolicySkip  = "skip"
)

// Pipeline is the top-level configuration of one run.
type Pipeline struct {
	// Job names the run in logs and metrics.
	Job string `mapstructure:"job" yaml:"job" validate:"required"`

	Source  Source        `mapstructure:"source" yaml:"source"`
	Parser  Parser        `mapstructure:"parser" yaml:"parser"`
	Flatten FlattenConfig `mapstructure:"flatten" yaml:"flatten"`
	Storage Storage       `mapstructure:"storage" yaml:"storage"`
	Policy  Policy        `mapstructure:"policy" yaml:"policy"`
	Runtime RuntimeConfig `mapstructure:"runtime" yaml:"runtime"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// Source identifies the bucket and prefix to read.
type Source struct {
	// Kind selects the object store: "gcs" or "file".
	Kind string `mapstructure:"kind" yaml:"kind" validate:"required,oneof=gcs file"`

	Bucket string `mapstructure:"bucket" yaml:"bucket" validate:"required"`
	Prefix string `mapstructure:"prefix" yaml:"prefix" validate:"required"`

	// CredentialsFile is a service-account JSON key for gcs. Empty means
	// Application Default Credentials.
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`

	// Endpoint overrides the gcs API endpoint (emulators).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// Root is the local directory holding bucket sub-directories for the
	// "file" kind.
	Root string `mapstructure:"root" yaml:"root,omitempty"`

	// Manifest optionally names a list file of object names that pins which
	// objects are fetched and in what order.
	Manifest string `mapstructure:"manifest" yaml:"manifest,omitempty"`

	SkipDirectoryMarkers bool `mapstructure:"skip_directory_markers" yaml:"skip_directory_markers"`
}

// Parser configures decoding of object bytes.
type Parser struct {
	// Kind is "json", the only supported format.
	Kind string `mapstructure:"kind" yaml:"kind" validate:"oneof=json"`

	// Options is interpreted by the parser (ndjson: bool).
	Options Options `mapstructure:"options" yaml:"options"`
}

// FlattenConfig configures the flattener.
type FlattenConfig struct {
	Separator string `mapstructure:"separator" yaml:"separator" validate:"required"`
	MaxLevel  int    `mapstructure:"max_level" yaml:"max_level" validate:"gte=0"`
}

// Storage selects the destination database.
type Storage struct {
	// Kind selects the backend: postgres, mysql, mssql, sqlite or duckdb.
	Kind string `mapstructure:"kind" yaml:"kind" validate:"required,oneof=postgres mysql mssql sqlite duckdb"`

	// TablePrefix is prepended to the zero-based document index to name
	// each destination table.
	TablePrefix string `mapstructure:"table_prefix" yaml:"table_prefix" validate:"required,sqlident"`

	// BatchSize is the number of rows per insert batch.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size" validate:"gte=1"`

	DB DBConfig `mapstructure:"db" yaml:"db"`
}

// DBConfig holds connection parameters. When DSN is set it is used as-is;
// otherwise BuildDSN assembles one from the remaining fields.
type DBConfig struct {
	DSN      string            `mapstructure:"dsn" yaml:"dsn,omitempty"`
	Host     string            `mapstructure:"host" yaml:"host,omitempty"`
	Port     int               `mapstructure:"port" yaml:"port,omitempty" validate:"gte=0,lte=65535"`
	Database string            `mapstructure:"database" yaml:"database,omitempty"`
	User     string            `mapstructure:"user" yaml:"user,omitempty"`
	Password string            `mapstructure:"password" yaml:"password,omitempty"`
	Params   map[string]string `mapstructure:"params" yaml:"params,omitempty"`
}

// Policy decides what happens when one document fails.
type Policy struct {
	OnParseError string `mapstructure:"on_parse_error" yaml:"on_parse_error" validate:"oneof=abort skip"`
	OnWriteError string `mapstructure:"on_write_error" yaml:"on_write_error" validate:"oneof=abort skip"`
}

// RuntimeConfig bounds the blocking steps. Zero disables a timeout.
type RuntimeConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	// Backend is "none", "prometheus" or "datadog".
	Backend        string `mapstructure:"backend" yaml:"backend" validate:"oneof=none prometheus datadog"`
	PushgatewayURL string `mapstructure:"pushgateway_url" yaml:"pushgateway_url,omitempty"`
	StatsdAddr     string `mapstructure:"statsd_addr" yaml:"statsd_addr,omitempty"`
}

// Redacted returns a copy of p that is safe to print.
func (p Pipeline) Redacted() Pipeline {
	if p.Storage.DB.Password != "" {
		p.Storage.DB.Password = "REDACTED"
	}
	if p.Storage.DB.DSN != "" {
		p.Storage.DB.DSN = redactDSN(p.Storage.Kind, p.Storage.DB.DSN)
	}
	return p
}

// Options is a small helper to fetch typed values from free-form maps
// decoded from configuration files. It performs only minimal type coercion
// and returns the provided default when a key is absent or of an unexpected
// type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64
// and YAML numbers as int, so both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}
