package criticality

import (
	"sort"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/normalize"
	"github.com/papapumpkin/pares/internal/table"
)

// fallbackSeverity weights a threat that has no severity record.
const fallbackSeverity = 1.0

type pressureKey struct{ group, threat, service string }

// threatPressure sums impact_total × suma_norm per threat and service in
// every scope. Without impact columns every record counts as impact 1.
func threatPressure(t Tables, groups []string, ds *diag.List) []Pressure {
	if t.ThreatServices == nil {
		return nil
	}
	inUniverse := make(map[string]bool, len(groups))
	for _, g := range groups {
		inUniverse[g] = true
	}
	var impactCols []string
	for _, c := range ImpactColumns {
		if t.ThreatServices.HasColumn(c) {
			impactCols = append(impactCols, c)
		}
	}
	if len(impactCols) == 0 {
		ds.Add(stage, TableThreatServices, diag.KindMissingColumn, "no impact columns; every record counts as impact 1")
	}
	severity, names := threatSeverity(t.Threats, ds)

	sums := make(map[pressureKey]*mean)
	var unrated, incomplete int
	t.ThreatServices.Each(func(_ int, r table.Row) {
		threat, okT := r.Str(ColThreatID)
		se, okS := r.Str(ColServiceID)
		if !okT || !okS {
			incomplete++
			return
		}
		if n, ok := r.Str(ColThreatName); ok && names[threat] == "" {
			names[threat] = n
		}
		impact := 1.0
		if len(impactCols) > 0 {
			impact = 0
			for _, c := range impactCols {
				if v, ok := r.Float(c); ok {
					impact += v
				}
			}
		}
		for _, g := range scopesOf(r) {
			if !inUniverse[g] {
				continue
			}
			w, ok := severity[g][threat]
			if !ok {
				w = fallbackSeverity
				if isOverall(g) {
					unrated++
				}
			}
			k := pressureKey{g, threat, se}
			if sums[k] == nil {
				sums[k] = &mean{}
			}
			sums[k].add(impact * w)
		}
	})
	if incomplete > 0 {
		ds.Add(stage, TableThreatServices, diag.KindMissingValue, "%d rows lack a threat or service id", incomplete)
	}
	if unrated > 0 && t.Threats != nil {
		ds.Add(stage, TableThreatServices, diag.KindMissingValue, "%d rows reference threats without severity; weighted %.0f", unrated, fallbackSeverity)
	}

	out := make([]Pressure, 0, len(sums))
	for k, m := range sums {
		out = append(out, Pressure{Group: k.group, ThreatID: k.threat, Threat: names[k.threat], ServiceID: k.service, Sum: m.sum, N: m.n})
	}
	sortPressures(out)
	keys := make([]string, len(out))
	values := make([]float64, len(out))
	for i, p := range out {
		keys[i], values[i] = p.Group, p.Sum
	}
	norm := normalize.ByGroup("tps", keys, values).Unwrap(ds)
	for i := range out {
		out[i].Norm = norm[i]
	}
	return out
}

// threatSeverity normalizes the mean suma of every threat within each
// scope, and collects threat names.
func threatSeverity(t *table.Table, ds *diag.List) (map[string]map[string]float64, map[string]string) {
	raw := make(map[string]map[string]*mean)
	names := make(map[string]string)
	t.Each(func(_ int, r table.Row) {
		id, ok := r.Str(ColThreatID)
		if !ok {
			return
		}
		if n, ok := r.Str(ColThreatName); ok && names[id] == "" {
			names[id] = n
		}
		v, ok := r.Float(ColSuma)
		if !ok {
			return
		}
		for _, g := range scopesOf(r) {
			if raw[g] == nil {
				raw[g] = make(map[string]*mean)
			}
			if raw[g][id] == nil {
				raw[g][id] = &mean{}
			}
			raw[g][id].add(v)
		}
	})
	out := make(map[string]map[string]float64, len(raw))
	for _, g := range sortedKeys(raw) {
		values := make(map[string]float64, len(raw[g]))
		for id, m := range raw[g] {
			values[id] = m.value()
		}
		out[g] = normalize.Map("threat_severity@"+g, values).Unwrap(ds)
	}
	return out, names
}

func sortPressures(ps []Pressure) {
	sort.Slice(ps, func(i, j int) bool {
		if less, ok := overallFirst(ps[i].Group, ps[j].Group); ok {
			return less
		}
		if ps[i].Sum != ps[j].Sum {
			return ps[i].Sum > ps[j].Sum
		}
		if ps[i].ThreatID != ps[j].ThreatID {
			return ps[i].ThreatID < ps[j].ThreatID
		}
		return ps[i].ServiceID < ps[j].ServiceID
	})
}

type vulnerabilityKey struct{ group, mdv, threat string }

// indirectVulnerability carries each service's pressure on to every
// livelihood linked to the service in the same scope.
func indirectVulnerability(pressures []Pressure, l links, ds *diag.List) []Vulnerability {
	sums := make(map[vulnerabilityKey]float64)
	names := make(map[string]string)
	for _, p := range pressures {
		names[p.ThreatID] = p.Threat
		for mdv := range l.byScope[p.Group][p.ServiceID] {
			sums[vulnerabilityKey{p.Group, mdv, p.ThreatID}] += p.Sum
		}
	}
	out := make([]Vulnerability, 0, len(sums))
	for k, v := range sums {
		out = append(out, Vulnerability{
			Group: k.group, MdvID: k.mdv, MdvName: l.names[k.mdv],
			ThreatID: k.threat, Threat: names[k.threat], Pressure: v,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if less, ok := overallFirst(out[i].Group, out[j].Group); ok {
			return less
		}
		if out[i].Pressure != out[j].Pressure {
			return out[i].Pressure > out[j].Pressure
		}
		if out[i].MdvID != out[j].MdvID {
			return out[i].MdvID < out[j].MdvID
		}
		return out[i].ThreatID < out[j].ThreatID
	})
	keys := make([]string, len(out))
	values := make([]float64, len(out))
	for i, v := range out {
		keys[i], values[i] = v.Group, v.Pressure
	}
	norm := normalize.ByGroup("ivl", keys, values).Unwrap(ds)
	for i := range out {
		out[i].Norm = norm[i]
	}
	return out
}
