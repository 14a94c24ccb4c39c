package join

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/table"
)

func lookups(t *testing.T) *Dimension {
	t.Helper()
	ctx := table.New(TableContext, []string{ColContextID, ColGeoID, "fecha_iso"},
		table.Row{ColContextID: "c1", ColGeoID: "g1", "fecha_iso": "2024-03-01"},
		table.Row{ColContextID: "c2", ColGeoID: "g2", "fecha_iso": "2024-04-01"},
		table.Row{ColContextID: "c3", ColGeoID: "missing-geo"},
		table.Row{ColContextID: "c1", ColGeoID: "g2"},
	)
	geo := table.New(TableGeo, []string{ColGeoID, ColAdmin0, ColPaisaje, ColGrupo},
		table.Row{ColGeoID: "g1", ColAdmin0: "CO", ColPaisaje: "Alto", ColGrupo: "Norte"},
		table.Row{ColGeoID: "g2", ColAdmin0: "CO", ColPaisaje: "Bajo", ColGrupo: "Sur"},
	)
	res := BuildDimension(ctx, geo)
	if res.Diagnostics.Count(diag.KindDuplicateKey) != 1 {
		t.Fatalf("want duplicate context_id reported, got %v", res.Diagnostics)
	}
	return res.Value
}

func facts() *table.Table {
	return table.New("TIDY_3_2_PRIORIZACION", []string{ColContextID, "mdv_id", "i_total", ColGrupo},
		table.Row{ColContextID: "c1", "mdv_id": "m1", "i_total": 4.0, ColGrupo: "stale"},
		table.Row{ColContextID: "c2", "mdv_id": "m1", "i_total": 2.0},
		table.Row{ColContextID: "c2", "mdv_id": "m2", "i_total": 3.0},
		table.Row{ColContextID: "c3", "mdv_id": "m2", "i_total": 1.0},
		table.Row{ColContextID: "nope", "mdv_id": "m3", "i_total": 5.0},
		table.Row{"mdv_id": "m3", "i_total": 5.0},
	)
}

func TestEnrichPreservesCardinality(t *testing.T) {
	t.Parallel()
	d := lookups(t)
	in := facts()
	res := d.Enrich(in)
	j := res.Value

	if j.Table.Len() != in.Len() {
		t.Fatalf("joined %d rows, want %d", j.Table.Len(), in.Len())
	}
	if j.Unresolved != 3 {
		t.Errorf("unresolved = %d, want 3", j.Unresolved)
	}
	if res.Diagnostics.Count(diag.KindUnresolvedJoin) != 1 {
		t.Errorf("want unresolved join diagnostic, got %v", res.Diagnostics)
	}

	var groups []any
	j.Table.Each(func(_ int, r table.Row) { groups = append(groups, r[ColGrupo]) })
	want := []any{"Norte", "Sur", "Sur", nil, nil, nil}
	if diff := cmp.Diff(want, groups); diff != "" {
		t.Errorf("grupo column (-want +got):\n%s", diff)
	}

	first := j.Table.Row(0)
	if first["observation_date"] != "2024-03-01" || first[ColPaisaje] != "Alto" {
		t.Errorf("row 0 attrs = %v", first)
	}
	if v, _ := first.Float("i_total"); v != 4 {
		t.Errorf("fact columns not preserved: %v", first)
	}
}

func TestSplitCounts(t *testing.T) {
	t.Parallel()
	d := lookups(t)
	in := facts()
	j := d.Enrich(in).Value
	res := Split(j)
	p := res.Value
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}

	total := p.Unresolved
	for _, g := range p.GroupNames() {
		total += p.Groups[g].Len()
	}
	if total != in.Len() {
		t.Errorf("unresolved + Σ group rows = %d, want %d", total, in.Len())
	}
	if p.Overall.Len() != in.Len() {
		t.Errorf("overall has %d rows, want %d", p.Overall.Len(), in.Len())
	}
	if diff := cmp.Diff([]string{"Norte", "Sur"}, p.GroupNames()); diff != "" {
		t.Errorf("groups (-want +got):\n%s", diff)
	}
	if p.Groups["Sur"].Len() != 2 {
		t.Errorf("Sur rows = %d, want 2", p.Groups["Sur"].Len())
	}
}

func TestEnrichWithoutContextColumn(t *testing.T) {
	t.Parallel()
	d := lookups(t)
	resp := table.New("TIDY_7_1_RESPONDENTS", []string{"respondent_id", ColGrupo},
		table.Row{"respondent_id": "r1", ColGrupo: "Norte"},
		table.Row{"respondent_id": "r2"},
	)
	res := d.Enrich(resp)
	if res.Value.Unresolved != 1 {
		t.Errorf("unresolved = %d, want 1", res.Value.Unresolved)
	}
	if res.Diagnostics.Count(diag.KindMissingColumn) != 1 {
		t.Errorf("want missing column diagnostic, got %v", res.Diagnostics)
	}
}

func TestBuildDimensionMissingTables(t *testing.T) {
	t.Parallel()
	res := BuildDimension(nil, nil)
	if res.Diagnostics.Count(diag.KindMissingTable) != 2 {
		t.Fatalf("want two missing table diagnostics, got %v", res.Diagnostics)
	}
	j := res.Value.Enrich(facts()).Value
	if j.Unresolved != facts().Len() {
		t.Errorf("unresolved = %d", j.Unresolved)
	}
	if len(res.Value.Groups()) != 0 {
		t.Errorf("groups = %v, want none", res.Value.Groups())
	}
}
