package ddl

import (
	"strings"
	"testing"

	gddl "github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/ddl"
	"github.com/NiladriMallik/ETL-NoSQL-to-SQL/internal/schema"
)

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	def := gddl.FromKinds("test_table_0",
		[]string{"id", "items.0.name", `we"ird`},
		[]schema.Kind{schema.KindInt, schema.KindString, schema.KindFloat},
		MapType)

	got, err := BuildCreateTableSQL(def)
	if err != nil {
		t.Fatalf("BuildCreateTableSQL() unexpected error: %v", err)
	}
	want := "CREATE TABLE \"test_table_0\" (\n" +
		"  \"id\" BIGINT,\n" +
		"  \"items.0.name\" TEXT,\n" +
		"  \"we\"\"ird\" DOUBLE PRECISION\n" +
		");"
	if got != want {
		t.Fatalf("BuildCreateTableSQL() =\n%s\nwant\n%s", got, want)
	}
}

func TestBuildCreateTableSQLErrorsArePrefixed(t *testing.T) {
	t.Parallel()

	_, err := BuildCreateTableSQL(gddl.TableDef{FQN: "t"})
	if err == nil || !strings.HasPrefix(err.Error(), "postgres ddl: ") {
		t.Fatalf("BuildCreateTableSQL() error = %v, want postgres ddl prefix", err)
	}
}

func TestBuildDropTableSQL(t *testing.T) {
	t.Parallel()

	got, err := BuildDropTableSQL("test_table_3")
	if err != nil {
		t.Fatalf("BuildDropTableSQL() unexpected error: %v", err)
	}
	if want := `DROP TABLE IF EXISTS "test_table_3";`; got != want {
		t.Fatalf("BuildDropTableSQL() = %q, want %q", got, want)
	}
}
