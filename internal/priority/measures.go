package priority

import (
	"sort"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/table"
)

type measures struct {
	livelihoods []Livelihood
	threats     []Threat
	drivers     []Driver
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

type driverKey struct{ mdv, threat string }

// measure computes the three components of every livelihood in one scope.
func measure(group string, t Tables, responses []response, names map[string]string, topDrivers int, ds *diag.List) measures {
	var out measures
	byID := make(map[string]*Livelihood)
	get := func(id string) *Livelihood {
		l, ok := byID[id]
		if !ok {
			name := names[id]
			if name == "" {
				name = id
			}
			l = &Livelihood{MdvID: id, Name: name, Has: make(map[string]bool)}
			byID[id] = l
		}
		return l
	}

	// Field priority: mean i_total per livelihood.
	itotal := make(map[string]*mean)
	eachIn(t.Priorization, group, func(r table.Row) {
		id, ok := r.Str(ColMdvID)
		v, okV := r.Float(ColITotal)
		if !ok || !okV {
			return
		}
		if itotal[id] == nil {
			itotal[id] = &mean{}
		}
		itotal[id].add(v)
	})
	raw := make(map[string]float64, len(itotal))
	for id, m := range itotal {
		raw[id] = m.value()
	}
	for id, v := range normalized(CompPriority+"@"+group, raw, ds) {
		l := get(id)
		l.MeanITotal, l.Records, l.Priority = raw[id], itotal[id].n, v
		l.Has[CompPriority] = true
	}

	// Threat severity: mean suma per threat.
	suma := make(map[string]*mean)
	threatNames := make(map[string]string)
	eachIn(t.Threats, group, func(r table.Row) {
		id, ok := r.Str(ColThreatID)
		v, okV := r.Float(ColSuma)
		if !ok || !okV {
			return
		}
		if suma[id] == nil {
			suma[id] = &mean{}
		}
		suma[id].add(v)
		if n, ok := r.Str(ColThreatName); ok && threatNames[id] == "" {
			threatNames[id] = n
		}
	})
	rawSuma := make(map[string]float64, len(suma))
	for id, m := range suma {
		rawSuma[id] = m.value()
	}
	sumaNorm := normalized("threat_severity@"+group, rawSuma, ds)
	for _, id := range sortedKeys(suma) {
		out.threats = append(out.threats, Threat{
			Group: group, ThreatID: id, Name: threatNames[id],
			MeanSuma: rawSuma[id], N: suma[id].n, SumaNorm: sumaNorm[id],
		})
	}

	// Risk: Σ impact_total × suma_norm; a threat without severity adds 0.
	weighted := make(map[string]float64)
	drivers := make(map[driverKey]float64)
	var unrated int
	eachIn(t.Impacts, group, func(r table.Row) {
		mdv, ok := r.Str(ColMdvID)
		if !ok {
			return
		}
		threat, _ := r.Str(ColThreatID)
		total := 0.0
		for _, c := range ImpactColumns {
			if v, ok := r.Float(c); ok {
				total += v
			}
		}
		sn, ok := sumaNorm[threat]
		if !ok {
			unrated++
		}
		weighted[mdv] += total * sn
		if threat != "" {
			drivers[driverKey{mdv, threat}] += total * sn
		}
	})
	if unrated > 0 {
		ds.Add(stage, TableThreatImpacts, diag.KindMissingValue, "%s: %d impact rows reference threats without severity; weighted as 0", group, unrated)
	}
	for id, v := range normalized(CompRisk+"@"+group, weighted, ds) {
		l := get(id)
		l.WeightedImpact, l.Risk = weighted[id], v
		l.Has[CompRisk] = true
	}
	out.drivers = rankDrivers(group, drivers, threatNames, topDrivers)

	// Capacity gap: 1 - mean response on the 0-1 scale.
	answers := make(map[string]*mean)
	for _, r := range responses {
		if group != join.Overall && r.group != group {
			continue
		}
		if answers[r.mdvID] == nil {
			answers[r.mdvID] = &mean{}
		}
		answers[r.mdvID].add(r.value)
	}
	gap := make(map[string]float64, len(answers))
	for id, m := range answers {
		gap[id] = 1 - m.value()
	}
	for id, v := range normalized(CompCapacityGap+"@"+group, gap, ds) {
		l := get(id)
		l.MeanResponse, l.Responses, l.CapacityGap = answers[id].value(), answers[id].n, v
		l.Has[CompCapacityGap] = true
	}

	for _, id := range sortedKeys(byID) {
		out.livelihoods = append(out.livelihoods, *byID[id])
	}
	return out
}

func rankDrivers(group string, drivers map[driverKey]float64, names map[string]string, limit int) []Driver {
	byMdv := make(map[string][]Driver)
	for k, v := range drivers {
		byMdv[k.mdv] = append(byMdv[k.mdv], Driver{Group: group, MdvID: k.mdv, ThreatID: k.threat, Threat: names[k.threat], WeightedImpact: v})
	}
	var out []Driver
	for _, mdv := range sortedKeys(byMdv) {
		list := byMdv[mdv]
		sort.Slice(list, func(i, j int) bool {
			if list[i].WeightedImpact != list[j].WeightedImpact {
				return list[i].WeightedImpact > list[j].WeightedImpact
			}
			return list[i].ThreatID < list[j].ThreatID
		})
		if len(list) > limit {
			list = list[:limit]
		}
		for i := range list {
			list[i].Rank = i + 1
		}
		out = append(out, list...)
	}
	return out
}

func eachIn(t *table.Table, group string, fn func(r table.Row)) {
	if t == nil {
		return
	}
	t.Each(func(_ int, r table.Row) {
		if inScope(r, group) {
			fn(r)
		}
	})
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
