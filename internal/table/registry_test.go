package table

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/pares/internal/diag"
)

func testAliases() Aliases {
	return Aliases{
		"grupo":      {"grupo", "zone", "zona", "group"},
		"actor_name": {"nombre_actor", "actor_name", "nombre"},
		"power":      {"poder", "power", "influencia"},
	}
}

func TestRegisterResolvesAliases(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testAliases())
	src := New("TIDY_5_1_ACTORES", []string{"Actor_ID", "Nombre", "Poder", "Zona"},
		Row{"Actor_ID": "A1", "Nombre": "Cooperativa", "Poder": "3", "Zona": "Norte"},
	)
	ds := reg.Register(src)
	if len(ds) != 0 {
		t.Fatalf("unexpected diagnostics: %v", ds)
	}

	got, ok := reg.Get("TIDY_5_1_ACTORES")
	if !ok {
		t.Fatal("table not registered")
	}
	want := []string{"actor_id", "actor_name", "power", "grupo"}
	if diff := cmp.Diff(want, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if g, _ := got.Row(0).Str("grupo"); g != "Norte" {
		t.Errorf("grupo = %q, want Norte", g)
	}
}

func TestScopedAliases(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testAliases())
	reg.ScopeAliases("TIDY_6_1_CONFLICT_EVENTS", Aliases{"severity": {"suma"}})

	ds := reg.Register(New("TIDY_6_1_CONFLICT_EVENTS", []string{"Suma", "Zona"}, Row{"Suma": 3.0, "Zona": "N"}))
	ds = append(ds, reg.Register(New("TIDY_4_1_AMENAZAS", []string{"Suma"}, Row{"Suma": 7.0}))...)
	if len(ds) != 0 {
		t.Fatalf("unexpected diagnostics: %v", ds)
	}

	events, _ := reg.Get("TIDY_6_1_CONFLICT_EVENTS")
	if diff := cmp.Diff([]string{"severity", "grupo"}, events.Columns()); diff != "" {
		t.Errorf("scoped columns (-want +got):\n%s", diff)
	}
	threats, _ := reg.Get("TIDY_4_1_AMENAZAS")
	if diff := cmp.Diff([]string{"suma"}, threats.Columns()); diff != "" {
		t.Errorf("unscoped columns (-want +got):\n%s", diff)
	}
}

func TestRegisterAliasCollision(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testAliases())
	src := New("T", []string{"zona", "group"}, Row{"zona": "A", "group": "B"})
	ds := reg.Register(src)
	if ds.Count(diag.KindAliasCollision) != 1 {
		t.Fatalf("want one alias collision, got %v", ds)
	}
	got, _ := reg.Get("T")
	if g, _ := got.Row(0).Str("grupo"); g != "A" {
		t.Errorf("grupo = %q, want first matching column", g)
	}
}

func TestRegisterKeepsCanonicalColumn(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testAliases())
	src := New("T", []string{"grupo", "zona"}, Row{"grupo": "A", "zona": "B"})
	if ds := reg.Register(src); len(ds) != 0 {
		t.Fatalf("unexpected diagnostics: %v", ds)
	}
	got, _ := reg.Get("T")
	if diff := cmp.Diff([]string{"grupo", "zona"}, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
}

func TestRegistryShapesAndRequire(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(nil)
	reg.Register(New("B", []string{"x"}, Row{"x": 1}, Row{"x": 2}))
	reg.Register(New("A", []string{"x", "y"}))

	want := []Shape{{Name: "A", Rows: 0, Columns: 2}, {Name: "B", Rows: 2, Columns: 1}}
	if diff := cmp.Diff(want, reg.Shapes()); diff != "" {
		t.Errorf("Shapes (-want +got):\n%s", diff)
	}

	if err := reg.Require("C"); !errors.Is(err, diag.ErrSchema) {
		t.Errorf("Require(C) = %v, want schema error", err)
	}
	if err := reg.Require("A", "y"); err != nil {
		t.Errorf("Require(A, y) = %v", err)
	}

	ds := reg.Register(New("A", []string{"x"}))
	if ds.Count(diag.KindDuplicateKey) != 1 {
		t.Errorf("re-registering should be reported, got %v", ds)
	}
}
