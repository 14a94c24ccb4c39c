package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/pares/internal/catalog"
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/table"
	"github.com/papapumpkin/pares/internal/telemetry"
)

const tol = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) <= tol }

// fixture registers two groups: north, whose two actors collaborate and
// half of whom sit in a dialogue space, and south, whose actors are in
// conflict. One conflict event points at an unknown context. Each group
// has one livelihood using one ecosystem service.
func fixture(t *testing.T, skip ...string) *table.Registry {
	t.Helper()
	omit := make(map[string]bool)
	for _, s := range skip {
		omit[s] = true
	}
	reg := catalog.Default().NewRegistry()
	add := func(name string, cols []string, rows ...table.Row) {
		if omit[name] {
			return
		}
		if ds := reg.Register(table.New(name, cols, rows...)); len(ds) != 0 {
			t.Fatalf("register %s: %v", name, ds)
		}
	}

	add("LOOKUP_CONTEXT", []string{"context_id", "geo_id", "fecha_iso"},
		table.Row{"context_id": "c1", "geo_id": "g1", "fecha_iso": "2024-01-01"},
		table.Row{"context_id": "c2", "geo_id": "g2", "fecha_iso": "2024-01-01"},
	)
	add("LOOKUP_GEO", []string{"geo_id", "admin0", "paisaje", "grupo"},
		table.Row{"geo_id": "g1", "admin0": "CO", "paisaje": "andes", "grupo": "north"},
		table.Row{"geo_id": "g2", "admin0": "CO", "paisaje": "caribe", "grupo": "south"},
	)
	add("TIDY_5_1_ACTORES", []string{"context_id", "actor_id", "tipo_actor"},
		table.Row{"context_id": "c1", "actor_id": "a1", "tipo_actor": "ngo"},
		table.Row{"context_id": "c1", "actor_id": "a2", "tipo_actor": "state"},
		table.Row{"context_id": "c2", "actor_id": "a3", "tipo_actor": "ngo"},
		table.Row{"context_id": "c2", "actor_id": "a4", "tipo_actor": "private"},
	)
	add("TIDY_5_1_RELACIONES", []string{"context_id", "actor_id", "otro_actor_id", "tipo_relacion"},
		table.Row{"context_id": "c1", "actor_id": "a1", "otro_actor_id": "a2", "tipo_relacion": "Colabora"},
		table.Row{"context_id": "c2", "actor_id": "a3", "otro_actor_id": "a4", "tipo_relacion": "Conflicto"},
	)
	add("TIDY_5_2_DIALOGO", []string{"context_id", "espacio_id", "nombre"},
		table.Row{"context_id": "c1", "espacio_id": "s1", "nombre": "Mesa"},
	)
	add("TIDY_5_2_DIALOGO_ACTOR", []string{"espacio_id", "actor_id"},
		table.Row{"espacio_id": "s1", "actor_id": "a1"},
	)
	add("TIDY_6_1_CONFLICT_EVENTS", []string{"context_id", "cod_conflict", "suma", "fecha"},
		table.Row{"context_id": "c2", "cod_conflict": "k1", "suma": 3.0, "fecha": "2024-05-01"},
		table.Row{"context_id": "c9", "cod_conflict": "k2", "suma": 1.0, "fecha": "2024-05-01"},
	)
	add("TIDY_3_2_PRIORIZACION", []string{"context_id", "mdv_id", "mdv_name", "i_total"},
		table.Row{"context_id": "c1", "mdv_id": "m1", "mdv_name": "Cafe", "i_total": 9.0},
		table.Row{"context_id": "c2", "mdv_id": "m2", "mdv_name": "Pesca", "i_total": 4.0},
	)
	add("TIDY_3_5_SE_MDV", []string{"context_id", "se_code", "mdv_id", "nr_usuarios", "mes_falta", "barreras"},
		table.Row{"context_id": "c1", "se_code": "SE1", "mdv_id": "m1", "nr_usuarios": "120 familias", "mes_falta": "enero, febrero", "barreras": "costo y distancia"},
		table.Row{"context_id": "c2", "se_code": "SE2", "mdv_id": "m2", "nr_usuarios": "40", "mes_falta": ""},
	)
	add("TIDY_4_2_1_DIFERENCIADO", []string{"context_id", "dif_group", "threat_id"},
		table.Row{"context_id": "c1", "dif_group": "Mujeres", "threat_id": "t1"},
	)
	return reg
}

func runFixture(t *testing.T, reg *table.Registry, opts Options) *Result {
	t.Helper()
	if opts.TopN == 0 {
		opts.TopN = 10
	}
	res, err := Run(context.Background(), reg, catalog.Default(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()
	res := runFixture(t, fixture(t), Options{RunID: "r1"})

	if res.Summary.RunID != "r1" {
		t.Errorf("run id = %q", res.Summary.RunID)
	}
	if diff := cmp.Diff([]string{"north", "south"}, res.Summary.Groups); diff != "" {
		t.Errorf("groups (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"TIDY_6_1_CONFLICT_EVENTS": 1}, res.Summary.Unresolved); diff != "" {
		t.Errorf("unresolved (-want +got):\n%s", diff)
	}

	north, ok := res.Feasibility.ScoreOf("north")
	if !ok {
		t.Fatal("north not scored")
	}
	if !near(north.NetworkStrength, 1) || !near(north.DialogueCoverage, 0.5) || !near(north.ConflictRisk, 0) {
		t.Errorf("north components = %+v", north)
	}
	if !near(north.Score, 0.875) || north.Rank != 1 {
		t.Errorf("north score %v rank %d, want 0.875 rank 1", north.Score, north.Rank)
	}
	south, _ := res.Feasibility.ScoreOf("south")
	if !near(south.ConflictRisk, 1) || !near(south.Score, 0) || south.Rank != 2 {
		t.Errorf("south = %+v", south)
	}
	overall, _ := res.Feasibility.ScoreOf(join.Overall)
	if !near(overall.ConflictRisk, 0.5) || overall.Rank != 0 {
		t.Errorf("overall = %+v", overall)
	}

	for _, name := range []string{
		"priority_overall", "priority_by_grupo", "api_rankings_balanced", "api_stability",
		"actor_centrality", "dyads", "network_strength",
		"conflict_risk", "conflict_blockers", "conflict_timeline", "threat_conflict_links",
		"dialogue_coverage", "dialogue_participation",
		"feasibility", "feasibility_rankings_base", "feasibility_stability", "monitoring_plan",
		"capacity_questions_overall", "actors_overall", "actors_by_grupo",
		"sci_components_overall", "sci_rankings_balanced", "ecosystem_eli_overall", "tps_overall", "ivl_by_grupo",
		"evi_by_grupo", "evi_rankings_base", "equity_hotspots", "access_text_frequency",
		"bundles", "bundle_rankings_balanced", "bundle_evidence", "coverage_summary", "bundle_indicators",
	} {
		if _, ok := res.Table(name); !ok {
			t.Errorf("output table %s missing", name)
		}
	}
	if got := res.Summary.OutputRows["dyads"]; got != 2 {
		t.Errorf("dyads rows = %d, want 2", got)
	}
	if res.Summary.DiagnosticsByKind[diag.KindUnresolvedJoin] == 0 {
		t.Error("unresolved join not reported")
	}
	if got := res.Summary.OutputRows["actors_overall"]; got != 4 {
		t.Errorf("actors_overall rows = %d, want 4", got)
	}
}

func TestRunBuildsPortfolio(t *testing.T) {
	t.Parallel()
	res := runFixture(t, fixture(t), Options{})

	if v, ok := res.Criticality.SCI("north", "SE1"); !ok || v < 0 || v > 1 {
		t.Errorf("SCI(north, SE1) = %v, %v", v, ok)
	}
	if diff := cmp.Diff([]string{"SE1"}, res.Criticality.ServicesOf["m1"]); diff != "" {
		t.Errorf("services of m1 (-want +got):\n%s", diff)
	}
	north, ok := res.Equity.EVI("north")
	if !ok {
		t.Fatal("north has no equity index")
	}
	south, _ := res.Equity.EVI("south")
	if north <= south {
		t.Errorf("EVI north %v should exceed south %v: only north reports barriers and differentiated impacts", north, south)
	}

	var ids []string
	for _, b := range res.Portfolio.Bundles {
		ids = append(ids, b.ID)
	}
	if diff := cmp.Diff([]string{"north/m1", "south/m2"}, ids); diff != "" {
		t.Errorf("bundles (-want +got):\n%s", diff)
	}
	b := res.Portfolio.Bundles[0]
	if b.MdvName != "Cafe" || len(b.Services) != 1 || !near(b.Feasibility, 0.875) {
		t.Errorf("north bundle = %+v", b)
	}
	if res.Portfolio.Coverage[0].Group != join.Overall || res.Portfolio.Coverage[0].Bundles != 2 {
		t.Errorf("coverage = %+v", res.Portfolio.Coverage)
	}
}

func TestRunStrict(t *testing.T) {
	t.Parallel()

	t.Run("missing lookup", func(t *testing.T) {
		t.Parallel()
		_, err := Run(context.Background(), fixture(t, "LOOKUP_GEO"), nil, Options{Strict: true})
		var se *diag.SchemaError
		if !errors.As(err, &se) || se.Table != "LOOKUP_GEO" {
			t.Fatalf("err = %v, want SchemaError for LOOKUP_GEO", err)
		}
		if !errors.Is(err, diag.ErrSchema) {
			t.Error("schema error does not wrap ErrSchema")
		}
	})

	t.Run("missing column", func(t *testing.T) {
		t.Parallel()
		reg := fixture(t, "TIDY_5_1_RELACIONES")
		reg.Register(table.New("TIDY_5_1_RELACIONES", []string{"actor_id", "otro_actor_id"},
			table.Row{"actor_id": "a1", "otro_actor_id": "a2"}))
		_, err := Run(context.Background(), reg, nil, Options{Strict: true})
		var se *diag.SchemaError
		if !errors.As(err, &se) || se.Column != "rel_type" {
			t.Fatalf("err = %v, want SchemaError for rel_type", err)
		}
	})

	t.Run("complete inputs pass", func(t *testing.T) {
		t.Parallel()
		if _, err := Run(context.Background(), fixture(t), nil, Options{Strict: true}); err != nil {
			t.Fatalf("strict run failed: %v", err)
		}
	})
}

func TestRunNonStrictDegrades(t *testing.T) {
	t.Parallel()
	res := runFixture(t, fixture(t, "LOOKUP_CONTEXT", "LOOKUP_GEO"), Options{})

	if len(res.Summary.Groups) != 0 {
		t.Errorf("groups = %v, want none", res.Summary.Groups)
	}
	if res.Summary.DiagnosticsByKind[diag.KindMissingTable] == 0 {
		t.Error("missing lookups not reported")
	}
	f, ok := res.Table("feasibility")
	if !ok || f.Len() != 1 {
		t.Errorf("feasibility should hold only OVERALL, got %v", f.Rows())
	}
}

func TestRunParallelMatchesSequential(t *testing.T) {
	t.Parallel()
	seq := runFixture(t, fixture(t), Options{RunID: "x"})
	par := runFixture(t, fixture(t), Options{RunID: "x", Parallel: true})

	if diff := cmp.Diff(seq.TableNames(), par.TableNames()); diff != "" {
		t.Fatalf("table names (-seq +par):\n%s", diff)
	}
	for i, st := range seq.Tables {
		if diff := cmp.Diff(st.Rows(), par.Tables[i].Rows()); diff != "" {
			t.Errorf("%s differs (-seq +par):\n%s", st.Name(), diff)
		}
	}
	if diff := cmp.Diff(seq.Diagnostics, par.Diagnostics); diff != "" {
		t.Errorf("diagnostics (-seq +par):\n%s", diff)
	}
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, fixture(t), nil, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunEmitsTelemetry(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	em, err := telemetry.NewEmitter(path)
	if err != nil {
		t.Fatal(err)
	}
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	res := runFixture(t, fixture(t), Options{Events: em, Now: func() time.Time { return fixed }})
	em.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, kind := range []string{telemetry.KindRunStart, telemetry.KindStageDone, telemetry.KindDiagnostic, telemetry.KindRunDone} {
		if !strings.Contains(text, `"kind":"`+kind+`"`) {
			t.Errorf("no %s event in telemetry", kind)
		}
	}
	if !strings.Contains(text, res.Summary.RunID) {
		t.Error("events do not carry the run id")
	}
	if res.Summary.Duration() != 0 {
		t.Errorf("duration = %v with a fixed clock", res.Summary.Duration())
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()
	reg := fixture(t, "LOOKUP_CONTEXT")
	errs, ds := Check(reg)
	if len(errs) != 1 || len(ds) != 1 {
		t.Fatalf("Check = %v, %v; want one problem", errs, ds)
	}
	if ds[0].Kind != diag.KindMissingTable {
		t.Errorf("kind = %s", ds[0].Kind)
	}
}
