package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/papapumpkin/pares/internal/diag"
)

func TestDiagnosticsLevels(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := New(Options{Writer: &buf})

	var ds diag.List
	ds.Add("join", "TIDY_5_1_ACTORES", diag.KindUnresolvedJoin, "2 of 5 rows have no grupo")
	ds.Add("network", "", diag.KindImplicitActor, "actor %q registered from a relation", "z")
	Diagnostics(l, ds)

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "WARN") || !strings.Contains(lines[0], "table=TIDY_5_1_ACTORES") {
		t.Errorf("warning line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "INFO") || strings.Contains(lines[1], "table=") {
		t.Errorf("note line = %q", lines[1])
	}
}

func TestVerboseEnablesDebug(t *testing.T) {
	t.Parallel()
	var quiet, loud bytes.Buffer
	New(Options{Writer: &quiet}).Debug("hidden")
	New(Options{Writer: &loud, Verbose: true}).Debug("shown")
	if quiet.Len() != 0 {
		t.Errorf("debug line written without verbose: %q", quiet.String())
	}
	if !strings.Contains(loud.String(), "shown") {
		t.Errorf("debug line missing with verbose: %q", loud.String())
	}
}

func TestOrDiscard(t *testing.T) {
	t.Parallel()
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	l := New(Options{})
	if OrDiscard(l) != l {
		t.Error("OrDiscard should keep a non-nil logger")
	}
}
