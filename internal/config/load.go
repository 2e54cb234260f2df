package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ETL"

// LoadOptions lists the inputs that make up a configuration.
type LoadOptions struct {
	// Fs is the filesystem all files are read from. Nil means the OS.
	Fs afero.Fs

	// ConfigFile is an optional pipeline file (JSON or YAML).
	ConfigFile string

	// EnvFile is an optional .env file. Its values behave like environment
	// variables but never replace variables that are already set.
	EnvFile string

	// DBParamsFile is an optional legacy connection parameters file with
	// host, port, database and service_key. It implies storage.kind=mysql
	// unless the pipeline file sets a kind.
	DBParamsFile string

	// BucketParamsFile is an optional legacy bucket parameters file with
	// bucket_name and prefix. It implies source.kind=gcs unless the
	// pipeline file sets a kind.
	BucketParamsFile string

	// LookupEnv reads environment variables. Nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// defaults seeds every known key so environment overrides apply to all of
// them.
var defaults = map[string]any{
	"job":                           "etl",
	"source.kind":                   "gcs",
	"source.bucket":                 "",
	"source.prefix":                 "",
	"source.credentials_file":       "",
	"source.endpoint":               "",
	"source.root":                   "",
	"source.manifest":               "",
	"source.skip_directory_markers": true,
	"parser.kind":                   "json",
	"parser.options":                map[string]any{},
	"flatten.separator":             ".",
	"flatten.max_level":             0,
	"storage.kind":                  "mysql",
	"storage.table_prefix":          "test_table_",
	"storage.batch_size":            1000,
	"storage.db.dsn":                "",
	"storage.db.host":               "",
	"storage.db.port":               0,
	"storage.db.database":           "",
	"storage.db.user":               "",
	"storage.db.password":           "",
	"storage.db.params":             map[string]string{},
	"policy.on_parse_error":         PolicyAbort,
	"policy.on_write_error":         PolicyAbort,
	"runtime.fetch_timeout":         "0s",
	"runtime.write_timeout":         "0s",
	"metrics.backend":               "none",
	"metrics.pushgateway_url":       "",
	"metrics.statsd_addr":           "",
}

// Load assembles a Pipeline from defaults, the pipeline file, the legacy
// parameter files, the .env file and the environment, in increasing order of
// precedence except that legacy files are treated as explicit inputs and
// win over the environment. Any failure is returned as a *ConfigError.
//
// Load does not validate the result; call Validate.
func Load(opts LoadOptions) (Pipeline, error) {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	v := viper.New()
	v.SetFs(fsys)
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Pipeline{}, loadError("config", "read pipeline file %s: %v", opts.ConfigFile, err)
		}
	}

	// Environment: real variables first, then .env values for keys the
	// environment leaves unset.
	dotenv := map[string]string{}
	if opts.EnvFile != "" {
		b, err := afero.ReadFile(fsys, opts.EnvFile)
		if err != nil {
			return Pipeline{}, loadError("env_file", "read %s: %v", opts.EnvFile, err)
		}
		dotenv, err = godotenv.Parse(bytes.NewReader(b))
		if err != nil {
			return Pipeline{}, loadError("env_file", "parse %s: %v", opts.EnvFile, err)
		}
	}
	for _, key := range v.AllKeys() {
		name := EnvName(key)
		if val, ok := lookup(name); ok {
			v.Set(key, val)
		} else if val, ok := dotenv[name]; ok {
			v.Set(key, val)
		}
	}

	if opts.DBParamsFile != "" {
		if err := applyLegacy(v, fsys, opts.DBParamsFile, "db_params", map[string]string{
			"host":        "storage.db.host",
			"port":        "storage.db.port",
			"database":    "storage.db.database",
			"service_key": "source.credentials_file",
		}); err != nil {
			return Pipeline{}, err
		}
		if !v.InConfig("storage.kind") {
			v.Set("storage.kind", "mysql")
		}
	}
	if opts.BucketParamsFile != "" {
		if err := applyLegacy(v, fsys, opts.BucketParamsFile, "bucket_params", map[string]string{
			"bucket_name": "source.bucket",
			"prefix":      "source.prefix",
		}); err != nil {
			return Pipeline{}, err
		}
		if !v.InConfig("source.kind") {
			v.Set("source.kind", "gcs")
		}
	}

	var p Pipeline
	if err := v.Unmarshal(&p); err != nil {
		return Pipeline{}, loadError("config", "decode: %v", err)
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	if p.Storage.DB.Params == nil {
		p.Storage.DB.Params = map[string]string{}
	}
	return p, nil
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
}

// applyLegacy copies the fields of one legacy JSON parameter file onto the
// pipeline keys named in mapping. Missing fields are left alone.
func applyLegacy(v *viper.Viper, fsys afero.Fs, path, issuePath string, mapping map[string]string) error {
	lv := viper.New()
	lv.SetFs(fsys)
	lv.SetConfigFile(path)
	lv.SetConfigType("json")
	if err := lv.ReadInConfig(); err != nil {
		return loadError(issuePath, "read %s: %v", path, err)
	}
	for from, to := range mapping {
		if lv.IsSet(from) {
			v.Set(to, lv.Get(from))
		}
	}
	return nil
}

func loadError(path, format string, args ...any) *ConfigError {
	return &ConfigError{Issues: []Issue{{
		Severity: SeverityError,
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
	}}}
}
