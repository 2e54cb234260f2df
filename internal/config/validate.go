// Package config provides configuration models and helpers for ETL pipelines.
//
// This file adds a linter/validator for Pipeline values. Structural rules
// (required fields, enumerations, ranges) are declared as validator struct
// tags; cross-field rules are checked by hand. Both produce Issue values with
// dotted paths that callers can surface in a CLI or tests.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "source.manifest[1]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ConfigError carries the issues that make a configuration unusable. It is
// fatal before any work starts.
type ConfigError struct {
	Issues []Issue
}

func (e *ConfigError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, iss := range e.Issues {
		msgs = append(msgs, iss.Error())
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Unwrap exposes each issue to errors.Is/As.
func (e *ConfigError) Unwrap() []error {
	out := make([]error, len(e.Issues))
	for i, iss := range e.Issues {
		out[i] = iss
	}
	return out
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return identRe.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Validate returns a *ConfigError when p has at least one error-severity
// issue. Warnings are ignored; use ValidatePipeline to see them.
func Validate(p Pipeline) error {
	var errs []Issue
	for _, iss := range ValidatePipeline(p) {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ConfigError{Issues: errs}
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	issues := structIssues(p)
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validatePolicy(p.Policy)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	return issues
}

// structIssues converts validator tag failures into issues.
func structIssues(p Pipeline) []Issue {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Severity: SeverityError, Path: "", Message: err.Error()}}
	}
	out := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		// Namespace is "Pipeline.storage.kind"; drop the root type.
		_, path, _ := strings.Cut(fe.Namespace(), ".")
		out = append(out, Issue{Severity: SeverityError, Path: path, Message: tagMessage(fe)})
	}
	return out
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "oneof":
		return fmt.Sprintf("%q is not one of [%s]", fe.Value(), fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "sqlident":
		return fmt.Sprintf("%q is not a plain SQL identifier (letters, digits, underscore)", fe.Value())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// validateSource checks kind-specific source settings.
func validateSource(s Source) []Issue {
	var issues []Issue

	switch s.Kind {
	case "gcs":
		if strings.TrimSpace(s.CredentialsFile) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "source.credentials_file",
				Message:  "no service-account key configured; Application Default Credentials will be used",
			})
		}
	case "file":
		if strings.TrimSpace(s.Root) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.root",
				Message:  "file source requires a root directory",
			})
		}
	}

	if s.Prefix != "" && !strings.HasSuffix(s.Prefix, "/") {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.prefix",
			Message:  fmt.Sprintf("prefix %q does not end in '/'; objects merely starting with it will also match", s.Prefix),
		})
	}

	return issues
}

// validateStorage checks that a DSN can be produced for the backend.
func validateStorage(s Storage) []Issue {
	var issues []Issue
	db := s.DB

	if strings.TrimSpace(db.DSN) == "" {
		switch s.Kind {
		case "postgres", "mysql", "mssql":
			if strings.TrimSpace(db.Host) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "storage.db.host",
					Message:  "either storage.db.dsn or storage.db.host must be set",
				})
			}
			if strings.TrimSpace(db.Database) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "storage.db.database",
					Message:  "either storage.db.dsn or storage.db.database must be set",
				})
			}
			if strings.TrimSpace(db.User) == "" {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     "storage.db.user",
					Message:  "no database user configured; it will be prompted for on a terminal",
				})
			}
		case "sqlite":
			if strings.TrimSpace(db.Database) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "storage.db.database",
					Message:  "sqlite requires storage.db.dsn or storage.db.database (a file path or :memory:)",
				})
			}
		}
	}

	if s.Kind == "postgres" && len(s.TablePrefix)+10 > 63 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.table_prefix",
			Message:  "postgres truncates identifiers longer than 63 bytes; long prefixes may collide",
		})
	}

	return issues
}

func validatePolicy(p Policy) []Issue {
	if p.OnParseError == PolicySkip || p.OnWriteError == PolicySkip {
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "policy",
			Message:  "skip policy enabled; failed documents leave gaps in the table numbering",
		}}
	}
	return nil
}

func validateMetrics(m MetricsConfig) []Issue {
	switch m.Backend {
	case "prometheus":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			return []Issue{{Severity: SeverityError, Path: "metrics.pushgateway_url", Message: "prometheus backend requires a pushgateway URL"}}
		}
	case "datadog":
		if strings.TrimSpace(m.StatsdAddr) == "" {
			return []Issue{{Severity: SeverityError, Path: "metrics.statsd_addr", Message: "datadog backend requires a DogStatsD address"}}
		}
	}
	return nil
}
