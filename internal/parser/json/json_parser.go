// Package json decodes the raw bytes of one stored object into a parsed JSON
// value.
//
// Decoding is deliberately strict about text: a leading byte order mark is
// removed (UTF-16 input with a BOM is transcoded to UTF-8 first), and any
// remaining invalid UTF-8 is an error rather than being replaced. Parsing uses
// fastjson, whose object values keep their keys in document order, which the
// flattener relies on for deterministic column order.
//
// Two input shapes are accepted:
//
//   - a single JSON value (object, array or scalar), the default;
//   - with NDJSON enabled, several whitespace-separated top-level values,
//     which are returned as one array holding them in order.
package json

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/valyala/fastjson"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/config"
)

// Options controls how object bytes are decoded.
type Options struct {
	// NDJSON accepts several top-level values per object and wraps them
	// into an array.
	NDJSON bool
}

// FromConfigOptions constructs JSON Options from the generic parser options
// map.
func FromConfigOptions(o config.Options) Options {
	return Options{
		NDJSON: o.Bool("ndjson", false),
	}
}

// ErrEmpty is returned for objects that contain no JSON value at all.
var ErrEmpty = errors.New("json parser: empty document")

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decode turns raw object bytes into a parsed value. The returned value owns
// its memory and stays valid after later calls.
func Decode(raw []byte, opt Options) (*fastjson.Value, error) {
	text, err := DecodeText(raw)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(text)) == 0 {
		return nil, ErrEmpty
	}
	if opt.NDJSON {
		return decodeStream(text)
	}
	// fastjson's parser is lenient about number literals; the validator is not.
	if err := fastjson.ValidateBytes(text); err != nil {
		return nil, fmt.Errorf("json parser: %w", err)
	}
	v, err := fastjson.ParseBytes(text)
	if err != nil {
		return nil, fmt.Errorf("json parser: %w", err)
	}
	return v, nil
}

// DecodeText strips a byte order mark and checks that the result is valid
// UTF-8.
func DecodeText(raw []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(raw, bomUTF16LE), bytes.HasPrefix(raw, bomUTF16BE):
		out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), raw)
		if err != nil {
			return nil, fmt.Errorf("json parser: decode UTF-16: %w", err)
		}
		raw = out
	default:
		raw = bytes.TrimPrefix(raw, bomUTF8)
	}

	if off := invalidUTF8Offset(raw); off >= 0 {
		return nil, fmt.Errorf("json parser: invalid UTF-8 at byte %d", off)
	}
	return raw, nil
}

func invalidUTF8Offset(b []byte) int {
	if utf8.Valid(b) {
		return -1
	}
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

// decodeStream parses whitespace-separated top-level values. A single value
// is returned as-is; several are wrapped into an array.
func decodeStream(text []byte) (*fastjson.Value, error) {
	var (
		sc    fastjson.Scanner
		buf   = []byte{'['}
		count int
	)
	sc.InitBytes(text)
	for sc.Next() {
		if count > 0 {
			buf = append(buf, ',')
		}
		start := len(buf)
		buf = sc.Value().MarshalTo(buf)
		if err := fastjson.ValidateBytes(buf[start:]); err != nil {
			return nil, fmt.Errorf("json parser: value %d: %w", count, err)
		}
		count++
	}
	if err := sc.Error(); err != nil {
		return nil, fmt.Errorf("json parser: value %d: %w", count, err)
	}
	buf = append(buf, ']')

	v, err := fastjson.ParseBytes(buf)
	if err != nil {
		return nil, fmt.Errorf("json parser: %w", err)
	}
	if count == 1 {
		return v.GetArray()[0], nil
	}
	return v, nil
}
