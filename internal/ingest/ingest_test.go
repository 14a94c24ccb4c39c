package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/papapumpkin/pares/internal/table"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		body    string
		columns []string
		rows    []table.Row
	}{
		{
			name:    "comma",
			body:    "actor_id,power\na1,3\n\na2,\n",
			columns: []string{"actor_id", "power"},
			rows:    []table.Row{{"actor_id": "a1", "power": "3"}, {"actor_id": "a2", "power": nil}},
		},
		{
			name:    "semicolon with decimal comma",
			body:    "actor_id;power\na1;2,5\n",
			columns: []string{"actor_id", "power"},
			rows:    []table.Row{{"actor_id": "a1", "power": "2,5"}},
		},
		{
			name:    "bom and short record",
			body:    "\ufeffid , name\nx\n",
			columns: []string{"id", "name"},
			rows:    []table.Row{{"id": "x", "name": nil}},
		},
		{
			name:    "blank header cell",
			body:    "id,\n1,2\n",
			columns: []string{"id", "column_2"},
			rows:    []table.Row{{"id": "1", "column_2": "2"}},
		},
		{
			name: "empty file",
			body: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse("T", []byte(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.columns, got.Columns(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("columns (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.rows, got.Rows(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("rows (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "LOOKUP_GEO.csv", "geo_id,grupo\ng1,north\n")
	writeFile(t, dir, "TIDY_5_1_ACTORES.CSV", "Actor ID,Tipo\na1,ngo\n")
	writeFile(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755); err != nil {
		t.Fatal(err)
	}

	reg := table.NewRegistry(nil)
	ds, err := LoadDir(context.Background(), dir, reg)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 0 {
		t.Errorf("unexpected diagnostics: %v", ds)
	}
	if diff := cmp.Diff([]string{"LOOKUP_GEO", "TIDY_5_1_ACTORES"}, reg.Names()); diff != "" {
		t.Errorf("tables (-want +got):\n%s", diff)
	}
	actors, _ := reg.Get("TIDY_5_1_ACTORES")
	if diff := cmp.Diff([]string{"actor_id", "tipo"}, actors.Columns()); diff != "" {
		t.Errorf("canonical columns (-want +got):\n%s", diff)
	}
}

func TestLoadDirErrors(t *testing.T) {
	t.Parallel()

	t.Run("no csv files", func(t *testing.T) {
		t.Parallel()
		_, err := LoadDir(context.Background(), t.TempDir(), table.NewRegistry(nil))
		if !errors.Is(err, ErrNoInputs) {
			t.Errorf("err = %v, want ErrNoInputs", err)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()
		_, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "nope"), table.NewRegistry(nil))
		if err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, dir, "A.csv", "x\n1\n")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := LoadDir(ctx, dir, table.NewRegistry(nil))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

func TestTableName(t *testing.T) {
	t.Parallel()
	if got := TableName("/in/TIDY_6_1_CONFLICT_EVENTS.csv"); got != "TIDY_6_1_CONFLICT_EVENTS" {
		t.Errorf("TableName = %q", got)
	}
}
