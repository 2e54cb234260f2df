package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/microsoft/go-mssqldb/msdsn"
)

const redacted = "REDACTED"

var defaultPorts = map[string]int{
	"postgres": 5432,
	"mysql":    3306,
	"mssql":    1433,
}

// BuildDSN returns the driver connection string for a storage kind. An
// explicit db.DSN wins; otherwise it is assembled from the discrete fields
// in the form each driver expects.
func BuildDSN(kind string, db DBConfig) (string, error) {
	if db.DSN != "" {
		return db.DSN, nil
	}

	switch kind {
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			Host:     hostPort(kind, db),
			Path:     "/" + db.Database,
			RawQuery: encodeParams(db.Params),
		}
		if db.User != "" {
			u.User = url.UserPassword(db.User, db.Password)
		}
		dsn := u.String()
		if _, err := pgconn.ParseConfig(dsn); err != nil {
			return "", fmt.Errorf("postgres dsn: %w", err)
		}
		return dsn, nil

	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = db.User
		cfg.Passwd = db.Password
		cfg.Net = "tcp"
		cfg.Addr = hostPort(kind, db)
		cfg.DBName = db.Database
		if len(db.Params) > 0 {
			cfg.Params = make(map[string]string, len(db.Params))
			for k, v := range db.Params {
				cfg.Params[k] = v
			}
		}
		return cfg.FormatDSN(), nil

	case "mssql":
		q := url.Values{}
		q.Set("database", db.Database)
		for k, v := range db.Params {
			q.Set(k, v)
		}
		u := url.URL{
			Scheme:   "sqlserver",
			Host:     hostPort(kind, db),
			RawQuery: q.Encode(),
		}
		if db.User != "" {
			u.User = url.UserPassword(db.User, db.Password)
		}
		dsn := u.String()
		if _, err := msdsn.Parse(dsn); err != nil {
			return "", fmt.Errorf("mssql dsn: %w", err)
		}
		return dsn, nil

	case "sqlite", "duckdb":
		if q := encodeParams(db.Params); q != "" {
			return db.Database + "?" + q, nil
		}
		return db.Database, nil

	default:
		return "", fmt.Errorf("unknown storage kind %q", kind)
	}
}

func hostPort(kind string, db DBConfig) string {
	port := db.Port
	if port == 0 {
		port = defaultPorts[kind]
	}
	return net.JoinHostPort(db.Host, strconv.Itoa(port))
}

// encodeParams renders params as a query string with sorted keys.
func encodeParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	q := url.Values{}
	for _, k := range keys {
		q.Set(k, params[k])
	}
	return q.Encode()
}

var kvPassword = regexp.MustCompile(`(?i)(password|pwd)\s*=\s*('[^']*'|[^\s;]*)`)

// redactDSN hides the password in a connection string. Unparseable strings
// fall back to keyword masking.
func redactDSN(kind, dsn string) string {
	switch kind {
	case "mysql":
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			break
		}
		if cfg.Passwd != "" {
			cfg.Passwd = redacted
		}
		return cfg.FormatDSN()
	case "postgres", "mssql":
		if !strings.Contains(dsn, "://") {
			break
		}
		u, err := url.Parse(dsn)
		if err != nil {
			break
		}
		if u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), redacted)
			}
		}
		return u.String()
	}
	return kvPassword.ReplaceAllString(dsn, "${1}="+redacted)
}
