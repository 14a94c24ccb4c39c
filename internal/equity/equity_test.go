package equity

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/table"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func fixture() Tables {
	return Tables{
		ServiceLivelihood: table.New(TableServiceLivelihood,
			[]string{ColMdvID, ColMdvName, ColBarriers, ColInclusion, join.ColGrupo},
			table.Row{ColMdvID: "m1", ColMdvName: "Cafe", ColBarriers: "Distancia, costo y tiempo", ColInclusion: "mujeres", join.ColGrupo: "g1"},
			table.Row{ColMdvID: "m1", ColBarriers: "", join.ColGrupo: "g1"},
			table.Row{ColMdvID: "m2", ColBarriers: "costo", join.ColGrupo: "g1"},
			table.Row{ColMdvID: "m3", join.ColGrupo: "g2"},
		),
		DifLivelihoods: table.New(TableDifLivelihoods, []string{ColDifGroup, ColThreatRef, join.ColGrupo},
			table.Row{ColDifGroup: "Mujeres", ColThreatRef: "a1", join.ColGrupo: "g1"},
			table.Row{ColDifGroup: "mujeres ", ColThreatRef: "a1", join.ColGrupo: "g1"},
			table.Row{ColDifGroup: "Jóvenes", ColThreatRef: "a2", join.ColGrupo: "g1"},
			table.Row{ColDifGroup: "Mujeres", ColThreatRef: "a3", join.ColGrupo: "g2"},
		),
		DifServices: table.New(TableDifServices, []string{ColDifGroup, ColThreatRef, join.ColGrupo},
			table.Row{ColDifGroup: "Indígenas", ColThreatRef: "s1", join.ColGrupo: "g2"},
		),
	}
}

func capacity() map[string]float64 { return map[string]float64{"g1": 0.6, "g2": 0.2} }

func TestSplitItems(t *testing.T) {
	t.Parallel()
	got := SplitItems("Distancia, costo y tiempo; costo / a")
	if diff := cmp.Diff([]string{"costo", "distancia", "tiempo"}, got); diff != "" {
		t.Errorf("SplitItems mismatch (-want +got):\n%s", diff)
	}
	if got := SplitItems(""); len(got) != 0 {
		t.Errorf("SplitItems(\"\") = %v, want none", got)
	}
}

func TestComputeEVI(t *testing.T) {
	t.Parallel()
	out := Compute(fixture(), Options{CapacityGap: capacity()})
	res := out.Value

	if res.Primary != "base" {
		t.Errorf("primary = %q, want base", res.Primary)
	}
	if len(res.Groups) != 2 || res.Groups[0].Group != "g1" || res.Groups[0].Rank != 1 {
		t.Fatalf("groups = %+v, want g1 first", res.Groups)
	}
	g1, g2 := res.Groups[0], res.Groups[1]
	if g1.DifRecords != 3 || g2.DifRecords != 2 {
		t.Errorf("dif records g1=%d g2=%d, want 3 and 2", g1.DifRecords, g2.DifRecords)
	}
	if !approx(g1.BarrierRate, 2.0/3) || !approx(g1.InclusionRate, 1.0/3) || g1.Rows != 3 {
		t.Errorf("g1 access = %+v", g1)
	}
	if g1.DifNorm != 1 || g1.BarrierNorm != 1 || g1.InclusionNorm != 1 || g1.CapacityNorm != 1 {
		t.Errorf("g1 should lead every component: %+v", g1)
	}
	if !approx(g1.EVI, 1) || g2.EVI != 0 {
		t.Errorf("EVI g1=%v g2=%v, want 1 and 0", g1.EVI, g2.EVI)
	}
	if v, ok := res.EVI(join.Overall); !ok || !approx(v, 0.5) {
		t.Errorf("OVERALL EVI = %v, %v; want the mean 0.5", v, ok)
	}
	if out.Diagnostics.Count(diag.KindMissingTable) != 0 {
		t.Errorf("unexpected missing-table diagnostics: %v", out.Diagnostics)
	}
}

func TestHotspots(t *testing.T) {
	t.Parallel()
	res := Compute(fixture(), Options{CapacityGap: capacity()}).Value
	var got []string
	for _, h := range res.Hotspots {
		got = append(got, h.Group+"/"+h.MdvID)
	}
	if diff := cmp.Diff([]string{"g1/m2", "g1/m1"}, got); diff != "" {
		t.Errorf("hotspots mismatch (-want +got):\n%s", diff)
	}
	if h := res.Hotspots[1]; !approx(h.Score, 0.5) || h.MdvName != "Cafe" || h.Rank != 2 {
		t.Errorf("second hotspot = %+v", h)
	}

	capped := Compute(fixture(), Options{CapacityGap: capacity(), TopN: 1}).Value
	if len(capped.Hotspots) != 1 {
		t.Errorf("TopN 1 kept %d hotspots", len(capped.Hotspots))
	}
}

func TestDifferentiatedLabelsAreCanonical(t *testing.T) {
	t.Parallel()
	res := Compute(fixture(), Options{}).Value
	overall := map[string]Differentiated{}
	for _, d := range res.Differentiated {
		if d.Group == join.Overall {
			overall[d.Label] = d
		}
	}
	m := overall["mujeres"]
	if m.Records != 3 || m.Threats != 2 || m.BySource[SourceLivelihood] != 3 {
		t.Errorf("mujeres = %+v", m)
	}
	if overall["jovenes"].Records != 1 || overall["indigenas"].BySource[SourceService] != 1 {
		t.Errorf("labels = %+v", overall)
	}
	if res.Differentiated[0].Group != join.Overall || res.Differentiated[0].Label != "mujeres" {
		t.Errorf("first = %+v, want OVERALL mujeres", res.Differentiated[0])
	}
}

func TestFrequencies(t *testing.T) {
	t.Parallel()
	res := Compute(fixture(), Options{}).Value
	var first *Frequency
	byGroup := map[string]int{}
	for i, f := range res.Frequencies {
		if f.Topic != TopicBarriers {
			continue
		}
		if first == nil {
			first = &res.Frequencies[i]
		}
		byGroup[f.Group] += f.Count
	}
	if first == nil || first.Group != join.Overall || first.Item != "costo" || first.Count != 2 || first.Rate != 0.5 {
		t.Errorf("first barrier item = %+v, want OVERALL costo 2 (0.5)", first)
	}
	if byGroup["g1"] != 4 || byGroup["g2"] != 0 {
		t.Errorf("barrier mentions by group = %v", byGroup)
	}
}

func TestMissingCapacityAndExtraGroups(t *testing.T) {
	t.Parallel()
	out := Compute(fixture(), Options{Groups: []string{"g3"}, CapacityGap: capacity()})
	if len(out.Value.Groups) != 3 {
		t.Fatalf("groups = %+v, want g3 included", out.Value.Groups)
	}
	for _, g := range out.Value.Groups {
		if g.Group == "g3" && (g.HasCapacity || g.Rows != 0) {
			t.Errorf("g3 = %+v, want empty", g)
		}
	}
	if out.Diagnostics.CountByKind()[diag.KindMissingValue] == 0 {
		t.Error("want a diagnostic for the group without capacity responses")
	}
}

func TestUnknownPrimaryFallsBack(t *testing.T) {
	t.Parallel()
	out := Compute(fixture(), Options{Primary: "nope"})
	if out.Value.Primary != "base" {
		t.Errorf("primary = %q, want base", out.Value.Primary)
	}
	if out.Diagnostics.CountByKind()[diag.KindRejectedScenario] != 1 {
		t.Errorf("want one rejected-scenario diagnostic, got %v", out.Diagnostics)
	}
}

func TestComputeWithoutTables(t *testing.T) {
	t.Parallel()
	out := Compute(Tables{}, Options{})
	if got := out.Diagnostics.CountByKind()[diag.KindMissingTable]; got != 3 {
		t.Errorf("missing-table diagnostics = %d, want 3", got)
	}
	if len(out.Value.Groups) != 0 || len(out.Value.Hotspots) != 0 {
		t.Errorf("want an empty result, got %+v", out.Value)
	}
	if _, ok := out.Value.EVI(join.Overall); ok {
		t.Error("OVERALL EVI should be unavailable without groups")
	}
}

func TestTables(t *testing.T) {
	t.Parallel()
	res := Compute(fixture(), Options{CapacityGap: capacity()}).Value
	if tb := res.GroupTable(); tb.Len() != 2 || !tb.HasColumn("evi_access_first") {
		t.Errorf("%s: %d rows, columns %v", tb.Name(), tb.Len(), tb.Columns())
	}
	if tb := res.OverallTable(); tb.Len() != 3 {
		t.Errorf("%s has %d rows, want one per scenario", tb.Name(), tb.Len())
	}
	var names []string
	for _, tb := range res.RankingTables() {
		names = append(names, tb.Name())
	}
	want := []string{"evi_rankings_base", "evi_rankings_access_first", "evi_rankings_capacity_first"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("ranking tables mismatch (-want +got):\n%s", diff)
	}
	do, dg := res.DifferentiatedTables()
	if do.Len() != 3 || dg.Len() != 4 {
		t.Errorf("dif tables = %d/%d rows, want 3/4", do.Len(), dg.Len())
	}
	if tb := res.AccessTable(); tb.Len() != 6 {
		t.Errorf("%s has %d rows, want 3 OVERALL + 3 by grupo", tb.Name(), tb.Len())
	}
	if tb := res.HotspotTable(); tb.Len() != 2 {
		t.Errorf("%s has %d rows, want 2", tb.Name(), tb.Len())
	}
	if tb := res.StabilityTable(); tb.Len() != 2 {
		t.Errorf("%s has %d rows, want 2", tb.Name(), tb.Len())
	}
}
