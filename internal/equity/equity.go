// Package equity scores the Equity Vulnerability Index of every grupo from
// differentiated impacts, service access barriers, exclusion and adaptive
// capacity gap, and locates the livelihood hotspots where a vulnerable
// grupo meets frequent barriers.
package equity

import (
	"sort"

	"github.com/papapumpkin/pares/internal/composite"
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/normalize"
	"github.com/papapumpkin/pares/internal/table"
)

const stage = "equity"

// Input table names.
const (
	TableDifLivelihoods    = "TIDY_4_2_1_DIFERENCIADO"
	TableDifServices       = "TIDY_4_2_2_DIFERENCIADO"
	TableServiceLivelihood = "TIDY_3_5_SE_MDV"
)

// Canonical column names.
const (
	ColDifGroup  = "dif_group"
	ColThreatRef = "threat_id"
	ColMdvID     = "mdv_id"
	ColMdvName   = "mdv_name"
	ColBarriers  = "barreras"
	ColAccess    = "accesso"
	ColInclusion = "inclusion"
)

// Component names weighted by equity scenarios.
const (
	CompDifferentiated = "differentiated_impacts"
	CompBarriers       = "access_barriers"
	CompExclusion      = "inclusion_exclusion"
	CompCapacityGap    = "capacity_gap"
)

// Components lists every equity component.
var Components = []string{CompDifferentiated, CompBarriers, CompExclusion, CompCapacityGap}

// DefaultScenarios are used when Options.Scenarios is empty.
func DefaultScenarios() []composite.Scenario {
	mk := func(name string, d, b, i, c float64) composite.Scenario {
		return composite.Scenario{Name: name, Weights: map[string]float64{
			CompDifferentiated: d, CompBarriers: b, CompExclusion: i, CompCapacityGap: c,
		}}
	}
	return []composite.Scenario{
		mk("base", 0.45, 0.25, 0.15, 0.15),
		mk("access_first", 0.25, 0.45, 0.15, 0.15),
		mk("capacity_first", 0.30, 0.20, 0.15, 0.35),
	}
}

// Tables are the joined inputs. Any of them may be nil.
type Tables struct {
	DifLivelihoods    *table.Table
	DifServices       *table.Table
	ServiceLivelihood *table.Table
}

// Options tunes Compute.
type Options struct {
	Scenarios []composite.Scenario
	// Primary names the scenario used for hotspots and the EVI column;
	// defaults to the first accepted scenario.
	Primary string
	// CapacityGap maps grupo to its adaptive capacity gap in [0,1].
	CapacityGap map[string]float64
	// TopN bounds the hotspot list and the stability comparison.
	TopN int
	// Groups adds groups to the universe even when they have no rows.
	Groups   []string
	Parallel bool
}

// Group is one grupo's equity components and primary EVI.
type Group struct {
	Group         string
	DifRecords    int
	Rows          int
	BarrierRate   float64
	InclusionRate float64
	CapacityGap   float64
	HasCapacity   bool

	DifNorm       float64
	BarrierNorm   float64
	InclusionNorm float64
	CapacityNorm  float64
	EVI           float64
	Rank          int
}

// Result is the output of Compute.
type Result struct {
	Primary     string
	Groups      []Group
	Evaluation  composite.Evaluation
	Stability   composite.Stability
	Sensitivity []composite.Shift
	// Overall is the mean EVI over the groups, per scenario.
	Overall        map[string]float64
	Differentiated []Differentiated
	Access         []Access
	Hotspots       []Hotspot
	Frequencies    []Frequency
}

// EVI returns the primary-scenario index of group; OVERALL is the mean
// over every grupo.
func (r Result) EVI(group string) (float64, bool) {
	if group == join.Overall {
		v, ok := r.Overall[r.Primary]
		return v, ok
	}
	for _, g := range r.Groups {
		if g.Group == group {
			return g.EVI, true
		}
	}
	return 0, false
}

// Compute scores every grupo under every scenario. Components are
// normalized across the groups.
func Compute(t Tables, opts Options) diag.Outcome[Result] {
	var ds diag.List
	scenarios := opts.Scenarios
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = 10
	}

	checkColumns(t, &ds)
	groups := universe(t, opts.Groups)
	dif := differentiated(t, &ds)
	access := accessRates(t.ServiceLivelihood)

	raw := map[string]map[string]float64{}
	for _, c := range Components {
		raw[c] = make(map[string]float64, len(groups))
	}
	byGroup := make(map[string]*Group, len(groups))
	var noCapacity []string
	for _, g := range groups {
		eg := &Group{Group: g, DifRecords: dif.records[g]}
		if a, ok := access.byGroup[g]; ok {
			eg.Rows, eg.BarrierRate, eg.InclusionRate = a.Rows, a.BarrierRate, a.InclusionRate
		}
		eg.CapacityGap, eg.HasCapacity = opts.CapacityGap[g]
		if !eg.HasCapacity {
			noCapacity = append(noCapacity, g)
		}
		raw[CompDifferentiated][g] = float64(eg.DifRecords)
		raw[CompBarriers][g] = eg.BarrierRate
		raw[CompExclusion][g] = eg.InclusionRate
		raw[CompCapacityGap][g] = eg.CapacityGap
		byGroup[g] = eg
	}
	if len(noCapacity) > 0 {
		ds.Add(stage, "", diag.KindMissingValue, "%d groups have no capacity responses; gap counted as 0", len(noCapacity))
	}

	components := make(map[string]composite.Scores, len(Components))
	for _, c := range Components {
		components[c] = composite.Scores{}
		if len(raw[c]) > 0 {
			components[c] = normalize.Map(c, raw[c]).Unwrap(&ds)
		}
	}
	for _, g := range groups {
		eg := byGroup[g]
		eg.DifNorm = components[CompDifferentiated][g]
		eg.BarrierNorm = components[CompBarriers][g]
		eg.InclusionNorm = components[CompExclusion][g]
		eg.CapacityNorm = components[CompCapacityGap][g]
	}

	eval := composite.Evaluate(components, scenarios, composite.Options{Label: stage, Parallel: opts.Parallel}).Unwrap(&ds)
	out := Result{Evaluation: eval, Overall: make(map[string]float64, len(eval.Rankings))}
	primary, ok := eval.Ranking(opts.Primary)
	if !ok && len(eval.Rankings) > 0 {
		if opts.Primary != "" {
			ds.Add(stage, "", diag.KindRejectedScenario, "primary scenario %q unavailable; using %q", opts.Primary, eval.Rankings[0].Scenario)
		}
		primary = eval.Rankings[0]
	}
	out.Primary = primary.Scenario
	for _, e := range primary.Entries {
		eg := byGroup[e.EntityID]
		eg.EVI, eg.Rank = e.Score, e.Rank
		out.Groups = append(out.Groups, *eg)
	}
	for _, rk := range eval.Rankings {
		if len(rk.Entries) == 0 {
			continue
		}
		sum := 0.0
		for _, e := range rk.Entries {
			sum += e.Score
		}
		out.Overall[rk.Scenario] = sum / float64(len(rk.Entries))
	}

	out.Stability = composite.TopNStability(eval.Rankings, topN)
	out.Sensitivity = composite.Sensitivity(eval.Rankings)
	out.Differentiated = dif.list
	out.Access = access.byMdv
	out.Hotspots = hotspots(out, topN)
	out.Frequencies = frequencies(t.ServiceLivelihood, groups)
	return diag.Ok(out, ds...)
}

func checkColumns(t Tables, ds *diag.List) {
	required := []struct {
		t    *table.Table
		name string
		cols []string
	}{
		{t.DifLivelihoods, TableDifLivelihoods, []string{ColDifGroup}},
		{t.DifServices, TableDifServices, []string{ColDifGroup}},
		{t.ServiceLivelihood, TableServiceLivelihood, []string{ColMdvID}},
	}
	for _, r := range required {
		if r.t == nil {
			ds.Add(stage, r.name, diag.KindMissingTable, "table absent; its component is scored 0")
			continue
		}
		if err := r.t.Require(r.cols...); err != nil {
			ds.Add(stage, r.name, diag.KindMissingColumn, "%v", err)
		}
	}
	if sl := t.ServiceLivelihood; sl != nil && !sl.HasColumn(ColBarriers) && !sl.HasColumn(ColInclusion) {
		ds.Add(stage, TableServiceLivelihood, diag.KindMissingColumn, "no %s or %s column; access rates are 0", ColBarriers, ColInclusion)
	}
}

// universe returns every concrete grupo seen in the inputs or requested,
// sorted. OVERALL is never part of it.
func universe(t Tables, extra []string) []string {
	seen := map[string]bool{}
	add := func(g string) {
		if g != "" && g != join.Overall {
			seen[g] = true
		}
	}
	for _, tbl := range []*table.Table{t.DifLivelihoods, t.DifServices, t.ServiceLivelihood} {
		tbl.Each(func(_ int, r table.Row) {
			g, _ := r.Str(join.ColGrupo)
			add(g)
		})
	}
	for _, g := range extra {
		add(g)
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Hotspot is a livelihood within a vulnerable grupo that reports frequent
// access barriers.
type Hotspot struct {
	Rank        int
	Group       string
	MdvID       string
	MdvName     string
	EVI         float64
	BarrierRate float64
	Score       float64
}

// hotspots scores every grupo × livelihood pair as the grupo's EVI times
// the pair's barrier rate and keeps the topN highest non-zero scores.
func hotspots(r Result, topN int) []Hotspot {
	var out []Hotspot
	for _, a := range r.Access {
		if a.Group == join.Overall {
			continue
		}
		evi, ok := r.EVI(a.Group)
		if !ok {
			continue
		}
		if s := evi * a.BarrierRate; s > 0 {
			out = append(out, Hotspot{Group: a.Group, MdvID: a.MdvID, MdvName: a.MdvName, EVI: evi, BarrierRate: a.BarrierRate, Score: s})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].MdvID < out[j].MdvID
	})
	if len(out) > topN {
		out = out[:topN]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
