package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWiden(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b Kind
		want Kind
	}{
		{"", KindInt, KindInt},
		{KindNull, KindBool, KindBool},
		{KindString, KindNull, KindString},
		{KindInt, KindInt, KindInt},
		{KindInt, KindFloat, KindFloat},
		{KindFloat, KindInt, KindFloat},
		{KindBool, KindInt, KindString},
		{KindString, KindFloat, KindString},
		{KindBool, KindFloat, KindString},
	}
	for _, tt := range tests {
		if got := Widen(tt.a, tt.b); got != tt.want {
			t.Errorf("Widen(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestColumnKinds(t *testing.T) {
	t.Parallel()

	tbl := &Table{
		Columns: []string{"id", "price", "flag", "mixed", "empty"},
		Rows: [][]any{
			{int64(1), int64(10), true, "x", nil},
			{int64(2), 2.5, nil, int64(3), nil},
			{nil, nil, false, nil, nil},
		},
	}

	want := []Kind{KindInt, KindFloat, KindBool, KindString, KindString}
	if diff := cmp.Diff(want, tbl.ColumnKinds()); diff != "" {
		t.Fatalf("ColumnKinds() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tbl := &Table{
		Columns: []string{"price", "mixed", "flagtext"},
		Rows: [][]any{
			{int64(10), "a", true},
			{2.5, int64(7), "no"},
			{nil, 1.25, nil},
		},
	}

	kinds := tbl.Normalize()

	if diff := cmp.Diff([]Kind{KindFloat, KindString, KindString}, kinds); diff != "" {
		t.Fatalf("Normalize() kinds mismatch (-want +got):\n%s", diff)
	}
	wantRows := [][]any{
		{float64(10), "a", "true"},
		{2.5, "7", "no"},
		{nil, "1.25", nil},
	}
	if diff := cmp.Diff(wantRows, tbl.Rows); diff != "" {
		t.Fatalf("Normalize() rows mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	ok := &Table{Columns: []string{"a"}, Rows: [][]any{{int64(1)}, {nil}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	short := &Table{Columns: []string{"a", "b"}, Rows: [][]any{{int64(1)}}}
	if err := short.Validate(); err == nil {
		t.Fatalf("Validate() on misaligned row error = nil, want non-nil")
	}

	bad := &Table{Columns: []string{"a"}, Rows: [][]any{{int(1)}}}
	if err := bad.Validate(); err == nil {
		t.Fatalf("Validate() on int cell error = nil, want non-nil")
	}
}

func TestColumn(t *testing.T) {
	t.Parallel()

	tbl := &Table{Columns: []string{"a", "b"}, Rows: [][]any{{"x", int64(1)}, {"y", nil}}}
	if diff := cmp.Diff([]any{int64(1), nil}, tbl.Column(1)); diff != "" {
		t.Fatalf("Column(1) mismatch (-want +got):\n%s", diff)
	}
	if tbl.Width() != 2 || tbl.Len() != 2 {
		t.Fatalf("Width/Len = %d/%d, want 2/2", tbl.Width(), tbl.Len())
	}
}
