// Package flatten converts one parsed JSON document into a schema.Table.
//
// Shape rules:
//
//   - a top-level array yields one row per element, an object yields exactly
//     one row, and a scalar (at the top level or as an array element) yields
//     a row with a single column named "value";
//   - nested object fields become "parent<sep>child" columns and nested array
//     elements become "parent<sep><i>" columns, recursively;
//   - an empty nested object or array becomes a column holding NULL;
//   - containers nested deeper than MaxLevel are kept as compact JSON text.
//
// Columns appear in first-seen order: rows are scanned in order, and within a
// row keys are visited in document order. Keys are NFC-normalized, and when an
// object repeats a key the last value wins while the first position is kept.
// Two different key paths that join to the same column name in one row (for
// example {"a.b": 1, "a": {"b": 2}}) are an error wrapping ErrColumnCollision.
package flatten

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"
	"golang.org/x/text/unicode/norm"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"
)

// ScalarColumn names the column that holds scalar documents and scalar array
// elements.
const ScalarColumn = "value"

// DefaultSeparator joins path segments.
const DefaultSeparator = "."

// Options configures a Flattener.
type Options struct {
	// Separator joins nested path segments. Empty means DefaultSeparator.
	Separator string
	// MaxLevel limits how many levels of nesting are expanded into columns.
	// Zero means unlimited.
	MaxLevel int
}

// Flattener turns documents into tables. It holds no per-document state and
// is safe for concurrent use.
type Flattener struct {
	sep      string
	maxLevel int
}

// New returns a Flattener with defaults applied.
func New(opt Options) *Flattener {
	sep := opt.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	maxLevel := opt.MaxLevel
	if maxLevel < 0 {
		maxLevel = 0
	}
	return &Flattener{sep: sep, maxLevel: maxLevel}
}

// ErrEmptyKey is returned when a document produces a column with an empty
// name (for example an object key "").
var ErrEmptyKey = errors.New("flatten: empty column name")

// ErrColumnCollision is returned when two key paths of one row map to the
// same column name.
var ErrColumnCollision = errors.New("flatten: column name collision")

// Flatten converts v into a Table. The result is deterministic for a given
// document and Options.
func (f *Flattener) Flatten(v *fastjson.Value) (*schema.Table, error) {
	if v == nil {
		return nil, fmt.Errorf("flatten: nil document")
	}

	b := &builder{f: f, index: map[string]int{}, claimed: map[int]string{}}

	switch v.Type() {
	case fastjson.TypeArray:
		for i, elem := range v.GetArray() {
			row := b.newRow()
			if err := b.flattenRoot(row, elem); err != nil {
				return nil, fmt.Errorf("flatten: element %d: %w", i, err)
			}
		}
	default:
		row := b.newRow()
		if err := b.flattenRoot(row, v); err != nil {
			return nil, fmt.Errorf("flatten: %w", err)
		}
	}

	return b.table(), nil
}

// builder accumulates columns and rows for one document.
type builder struct {
	f       *Flattener
	index   map[string]int
	columns []string
	rows    []*[]any

	// claimed maps column index to the key path that filled it in the
	// current row.
	claimed map[int]string
}

func (b *builder) newRow() *[]any {
	row := make([]any, 0, len(b.columns))
	b.rows = append(b.rows, &row)
	clear(b.claimed)
	return &row
}

func (b *builder) table() *schema.Table {
	t := &schema.Table{
		Columns: b.columns,
		Rows:    make([][]any, len(b.rows)),
	}
	if t.Columns == nil {
		t.Columns = []string{}
	}
	for i, rp := range b.rows {
		row := *rp
		for len(row) < len(b.columns) {
			row = append(row, nil)
		}
		t.Rows[i] = row
	}
	return t
}

// set stores value under column name in row, registering the column the
// first time it is seen. src is the JSON Pointer of the value.
func (b *builder) set(row *[]any, name, src string, value any) error {
	if name == "" {
		return ErrEmptyKey
	}
	idx, ok := b.index[name]
	if !ok {
		idx = len(b.columns)
		b.index[name] = idx
		b.columns = append(b.columns, name)
	}
	if prev, ok := b.claimed[idx]; ok {
		return fmt.Errorf("%w: %q from %q and %q", ErrColumnCollision, name, prev, src)
	}
	b.claimed[idx] = src
	for len(*row) <= idx {
		*row = append(*row, nil)
	}
	(*row)[idx] = value
	return nil
}

func (b *builder) flattenRoot(row *[]any, v *fastjson.Value) error {
	switch v.Type() {
	case fastjson.TypeObject:
		return b.flattenObject(row, "", "", v.GetObject(), 0)
	case fastjson.TypeArray:
		return b.flattenArray(row, ScalarColumn, "", v.GetArray(), 0)
	default:
		return b.set(row, ScalarColumn, "", scalar(v))
	}
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func pointer(src, key string) string {
	return src + "/" + pointerEscaper.Replace(key)
}

func (b *builder) join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + b.f.sep + key
}

// expand reports whether a container at the given depth is expanded into
// columns. Depth 0 is a field of the row object itself.
func (b *builder) expand(depth int) bool {
	return b.f.maxLevel == 0 || depth < b.f.maxLevel
}

func (b *builder) flattenObject(row *[]any, prefix, src string, o *fastjson.Object, depth int) error {
	for _, m := range members(o) {
		if err := b.flattenValue(row, b.join(prefix, m.key), pointer(src, m.key), m.value, depth); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) flattenArray(row *[]any, prefix, src string, elems []*fastjson.Value, depth int) error {
	for i, elem := range elems {
		idx := strconv.Itoa(i)
		if err := b.flattenValue(row, b.join(prefix, idx), pointer(src, idx), elem, depth); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) flattenValue(row *[]any, path, src string, v *fastjson.Value, depth int) error {
	switch v.Type() {
	case fastjson.TypeObject:
		o := v.GetObject()
		if o.Len() == 0 {
			return b.set(row, path, src, nil)
		}
		if !b.expand(depth) {
			return b.set(row, path, src, v.String())
		}
		return b.flattenObject(row, path, src, o, depth+1)

	case fastjson.TypeArray:
		elems := v.GetArray()
		if len(elems) == 0 {
			return b.set(row, path, src, nil)
		}
		if !b.expand(depth) {
			return b.set(row, path, src, v.String())
		}
		return b.flattenArray(row, path, src, elems, depth+1)

	default:
		return b.set(row, path, src, scalar(v))
	}
}

type member struct {
	key   string
	value *fastjson.Value
}

// members returns the object's fields in document order with NFC-normalized
// keys. Repeated keys keep their first position and their last value.
func members(o *fastjson.Object) []member {
	out := make([]member, 0, o.Len())
	var seen map[string]int
	o.Visit(func(k []byte, v *fastjson.Value) {
		key := norm.NFC.String(string(k))
		if seen == nil {
			seen = make(map[string]int, o.Len())
		}
		if i, ok := seen[key]; ok {
			out[i].value = v
			return
		}
		seen[key] = len(out)
		out = append(out, member{key: key, value: v})
	})
	return out
}

// scalar converts a non-container JSON value to its cell value. Integral
// numbers that fit int64 become int64, other finite numbers float64; numbers
// outside the float64 range keep their literal text.
func scalar(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeNull:
		return nil
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		raw := string(v.MarshalTo(nil))
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		if x, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(x, 0) {
			return x
		}
		return raw
	default:
		return v.String()
	}
}
