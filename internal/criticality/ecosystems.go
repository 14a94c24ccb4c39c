package criticality

import (
	"strconv"

	"github.com/papapumpkin/pares/internal/composite"
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/normalize"
	"github.com/papapumpkin/pares/internal/table"
)

type ecoAgg struct {
	observations set
	degradation  int
	services     set
	livelihoods  set
}

type ecosystems struct {
	byScope      map[string]map[string]*ecoAgg
	ecosystemsOf map[string][]string
}

type observation struct {
	ecosystem string
	row       table.Row
}

// measureEcosystems counts observations, degradation causes and the
// distinct services and livelihoods linked to every ecosystem, per scope.
// Link rows reach their ecosystem and grupo through the observation id.
func measureEcosystems(t Tables, groups []string, ds *diag.List) ecosystems {
	out := ecosystems{byScope: make(map[string]map[string]*ecoAgg), ecosystemsOf: make(map[string][]string)}
	for _, g := range groups {
		out.byScope[g] = make(map[string]*ecoAgg)
	}
	get := func(scope, eco string) *ecoAgg {
		byEco, ok := out.byScope[scope]
		if !ok {
			return nil
		}
		a := byEco[eco]
		if a == nil {
			a = &ecoAgg{observations: make(set), services: make(set), livelihoods: make(set)}
			byEco[eco] = a
		}
		return a
	}

	obs := make(map[string]observation)
	var unnamed int
	t.Ecosystems.Each(func(i int, r table.Row) {
		eco, ok := r.Str(ColEcosystem)
		if !ok {
			unnamed++
			return
		}
		id, ok := r.Str(ColObservationID)
		if !ok {
			id = "row:" + strconv.Itoa(i)
		}
		if _, seen := obs[id]; !seen {
			obs[id] = observation{ecosystem: eco, row: r.Clone()}
		}
		_, degraded := r.Str(ColDegradation)
		for _, g := range scopesOf(r) {
			a := get(g, eco)
			if a == nil {
				continue
			}
			a.observations[id] = true
			if degraded {
				a.degradation++
			}
		}
	})
	if unnamed > 0 {
		ds.Add(stage, TableEcosystems, diag.KindMissingValue, "%d observations have no ecosystem name", unnamed)
	}

	provides := make(map[string]set)
	link := func(tbl *table.Table, name, col string, pick func(*ecoAgg) set) {
		var orphan int
		tbl.Each(func(_ int, r table.Row) {
			id, _ := r.Str(ColObservationID)
			v, ok := r.Str(col)
			if !ok {
				return
			}
			o, ok := obs[id]
			if !ok {
				orphan++
				return
			}
			if col == ColServiceID {
				if provides[v] == nil {
					provides[v] = make(set)
				}
				provides[v][o.ecosystem] = true
			}
			for _, g := range scopesOf(o.row) {
				if a := get(g, o.ecosystem); a != nil {
					pick(a)[v] = true
				}
			}
		})
		if orphan > 0 {
			ds.Add(stage, name, diag.KindUnresolvedJoin, "%d rows reference unknown ecosystem observations", orphan)
		}
	}
	link(t.EcoServices, TableEcoServices, ColServiceID, func(a *ecoAgg) set { return a.services })
	link(t.EcoLivelihoods, TableEcoLivelihoods, ColMdvID, func(a *ecoAgg) set { return a.livelihoods })

	for se, ecos := range provides {
		out.ecosystemsOf[se] = ecos.sorted()
	}
	return out
}

// leverageIndex scores every ecosystem of one scope: connectivity and the
// mean primary criticality of the services it provides, both normalized
// within the scope, weighted by the leverage scenario.
func leverageIndex(group string, aggs map[string]*ecoAgg, r Result, leverage composite.Scenario, parallel bool, ds *diag.List) []Ecosystem {
	names := sortedKeys(aggs)
	if len(names) == 0 {
		return nil
	}
	var unscored int
	list := make([]Ecosystem, len(names))
	connectivity := make(map[string]float64, len(names))
	meanSCI := make(map[string]float64, len(names))
	for i, name := range names {
		a := aggs[name]
		e := Ecosystem{
			Name:         name,
			Observations: len(a.observations),
			Degradation:  a.degradation,
			Services:     len(a.services),
			Livelihoods:  len(a.livelihoods),
		}
		var m mean
		for _, se := range a.services.sorted() {
			if v, ok := r.SCI(group, se); ok {
				m.add(v)
			}
		}
		e.MeanSCI = m.value()
		if m.n == 0 {
			e.MeanSCI = fallbackPriority
			unscored++
		}
		connectivity[name] = float64(e.Connectivity())
		meanSCI[name] = e.MeanSCI
		list[i] = e
	}
	if unscored > 0 {
		ds.Add(stage, TableEcoServices, diag.KindMissingValue, "%s: %d ecosystems provide no scored service; mean criticality %.1f", group, unscored, fallbackPriority)
	}

	connN := normalize.Map(CompConnectivity+"@"+group, connectivity).Unwrap(ds)
	sciN := normalize.Map(CompCriticalServices+"@"+group, meanSCI).Unwrap(ds)
	eval := composite.Evaluate(map[string]composite.Scores{
		CompConnectivity:     connN,
		CompCriticalServices: sciN,
	}, []composite.Scenario{leverage}, composite.Options{Label: "eli@" + group, Parallel: parallel}).Unwrap(ds)

	eli := make(map[string]float64, len(names))
	if len(eval.Rankings) > 0 {
		for _, e := range eval.Rankings[0].Entries {
			eli[e.EntityID] = e.Score
		}
	}
	eliN := normalize.Map("eli@"+group, eli).Unwrap(ds)
	for i := range list {
		e := &list[i]
		e.ConnectivityNorm = connN[e.Name]
		e.MeanSCINorm = sciN[e.Name]
		e.ELI = eli[e.Name]
		e.ELINorm = eliN[e.Name]
	}
	return list
}

func isOverall(group string) bool { return group == join.Overall }
