package storage

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// WriteError reports a failed table replace.
type WriteError struct {
	Table string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write table %s: %v", e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ValidTableName reports whether name is a plain identifier that every
// backend accepts unquoted.
func ValidTableName(name string) bool {
	return tableNameRe.MatchString(name)
}

// WriteTable replaces table name with t through repo. A positive timeout
// bounds the whole replace. Every failure is returned as a *WriteError.
func WriteTable(ctx context.Context, repo Repository, name string, t *schema.Table, timeout time.Duration) (int64, error) {
	if !ValidTableName(name) {
		return 0, &WriteError{Table: name, Err: fmt.Errorf("invalid table name %q", name)}
	}
	if t == nil {
		return 0, &WriteError{Table: name, Err: fmt.Errorf("nil table")}
	}
	if err := t.Validate(); err != nil {
		return 0, &WriteError{Table: name, Err: err}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	n, err := repo.ReplaceTable(ctx, name, t)
	if err != nil {
		return n, &WriteError{Table: name, Err: err}
	}
	return n, nil
}
