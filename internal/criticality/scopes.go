package criticality

import (
	"sort"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/table"
)

func checkColumns(t Tables, ds *diag.List) {
	required := []struct {
		t    *table.Table
		name string
		cols []string
	}{
		{t.ServiceLivelihood, TableServiceLivelihood, []string{ColServiceID, ColMdvID}},
		{t.Ecosystems, TableEcosystems, []string{ColEcosystem}},
		{t.EcoServices, TableEcoServices, []string{ColObservationID, ColServiceID}},
		{t.EcoLivelihoods, TableEcoLivelihoods, []string{ColObservationID, ColMdvID}},
		{t.ThreatServices, TableThreatServices, []string{ColThreatID, ColServiceID}},
	}
	for _, r := range required {
		if r.t == nil {
			ds.Add(stage, r.name, diag.KindMissingTable, "table absent; its measures are empty")
			continue
		}
		if err := r.t.Require(r.cols...); err != nil {
			ds.Add(stage, r.name, diag.KindMissingColumn, "%v", err)
		}
	}
}

// scopes returns OVERALL followed by every grupo seen in the inputs or
// requested, sorted.
func scopes(t Tables, extra []string) []string {
	seen := map[string]bool{join.Overall: true}
	var groups []string
	add := func(g string) {
		if g != "" && !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}
	for _, tbl := range []*table.Table{t.ServiceLivelihood, t.Ecosystems, t.ThreatServices} {
		tbl.Each(func(_ int, r table.Row) {
			g, _ := r.Str(join.ColGrupo)
			add(g)
		})
	}
	for _, g := range extra {
		add(g)
	}
	sort.Strings(groups)
	return append([]string{join.Overall}, groups...)
}

// scopesOf returns the scopes a row counts toward: OVERALL, plus its
// grupo when it has one.
func scopesOf(r table.Row) []string {
	if g, ok := r.Str(join.ColGrupo); ok {
		return []string{join.Overall, g}
	}
	return []string{join.Overall}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// overallFirst orders scope names with OVERALL ahead of every grupo.
func overallFirst(a, b string) (less, decided bool) {
	oa, ob := a == join.Overall, b == join.Overall
	if oa != ob {
		return oa, true
	}
	if a != b {
		return a < b, true
	}
	return false, false
}
