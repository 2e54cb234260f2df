// Package schema holds the in-memory tabular model produced by flattening a
// JSON document and consumed by storage backends.
//
// A Table is row-major: Columns fixes the column order and every row in Rows
// has exactly len(Columns) cells. Cell values are one of string, int64,
// float64, bool or nil.
package schema

import (
	"fmt"
	"strconv"
)

// Kind is the inferred logical type of a column.
type Kind string

const (
	KindNull   Kind = "null"
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
)

// Table is an ordered set of named columns plus rows aligned to them.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.Columns) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Column returns the cells of column i in row order.
func (t *Table) Column(i int) []any {
	out := make([]any, len(t.Rows))
	for r, row := range t.Rows {
		if i < len(row) {
			out[r] = row[i]
		}
	}
	return out
}

// Validate checks that every row is aligned to Columns and every cell holds
// a supported value type.
func (t *Table) Validate() error {
	for r, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("schema: row %d has %d cells, want %d", r, len(row), len(t.Columns))
		}
		for c, v := range row {
			if KindOf(v) == "" {
				return fmt.Errorf("schema: row %d column %q: unsupported value type %T", r, t.Columns[c], v)
			}
		}
	}
	return nil
}

// KindOf reports the Kind of a single cell value, or "" when the type is not
// supported.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case int64:
		return KindInt
	case float64:
		return KindFloat
	case string:
		return KindString
	default:
		return ""
	}
}

// Widen combines the kind seen so far with the kind of the next value.
//
// Null never changes the result; int and float widen to float; any other
// mix of kinds widens to string.
func Widen(a, b Kind) Kind {
	switch {
	case a == b:
		return a
	case a == KindNull || a == "":
		return b
	case b == KindNull || b == "":
		return a
	case (a == KindInt && b == KindFloat) || (a == KindFloat && b == KindInt):
		return KindFloat
	default:
		return KindString
	}
}

// ColumnKinds infers one Kind per column. A column whose cells are all nil
// is reported as KindString so it can still be created as a nullable text
// column.
func (t *Table) ColumnKinds() []Kind {
	kinds := make([]Kind, len(t.Columns))
	for _, row := range t.Rows {
		for c := range kinds {
			if c < len(row) {
				kinds[c] = Widen(kinds[c], KindOf(row[c]))
			}
		}
	}
	for c, k := range kinds {
		if k == "" || k == KindNull {
			kinds[c] = KindString
		}
	}
	return kinds
}

// Normalize converts every cell in place to the kind inferred for its
// column and returns those kinds. Ints in float columns become float64;
// non-string scalars in string columns become their JSON text. nil cells
// stay nil.
func (t *Table) Normalize() []Kind {
	kinds := t.ColumnKinds()
	for _, row := range t.Rows {
		for c, k := range kinds {
			if c >= len(row) || row[c] == nil {
				continue
			}
			row[c] = convert(row[c], k)
		}
	}
	return kinds
}

func convert(v any, k Kind) any {
	switch k {
	case KindFloat:
		if n, ok := v.(int64); ok {
			return float64(n)
		}
	case KindString:
		switch x := v.(type) {
		case bool:
			return strconv.FormatBool(x)
		case int64:
			return strconv.FormatInt(x, 10)
		case float64:
			return strconv.FormatFloat(x, 'g', -1, 64)
		}
	}
	return v
}
