package criticality

import (
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/normalize"
	"github.com/papapumpkin/pares/internal/table"
)

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

type set map[string]bool

func (s set) sorted() []string { return sortedKeys(s) }

// links is every (livelihood, service) pair of the service-livelihood
// table, per scope.
type links struct {
	byScope map[string]map[string]set // scope -> service -> livelihoods
	names   map[string]string
}

func serviceLinks(t *table.Table) links {
	l := links{byScope: make(map[string]map[string]set), names: make(map[string]string)}
	t.Each(func(_ int, r table.Row) {
		se, okS := r.Str(ColServiceID)
		mdv, okM := r.Str(ColMdvID)
		if !okS || !okM {
			return
		}
		if n, ok := r.Str(ColMdvName); ok && l.names[mdv] == "" {
			l.names[mdv] = n
		}
		for _, g := range scopesOf(r) {
			if l.byScope[g] == nil {
				l.byScope[g] = make(map[string]set)
			}
			if l.byScope[g][se] == nil {
				l.byScope[g][se] = make(set)
			}
			l.byScope[g][se][mdv] = true
		}
	})
	return l
}

// servicesOf inverts the OVERALL links: livelihood -> sorted services.
func (l links) servicesOf() map[string][]string {
	out := make(map[string][]string)
	overall := l.byScope[join.Overall]
	for _, se := range sortedKeys(overall) {
		for mdv := range overall[se] {
			out[mdv] = append(out[mdv], se)
		}
	}
	return out
}

type serviceAgg struct {
	records     int
	livelihoods set
	users       float64
	seasonality mean
	priority    mean
}

// measureServices aggregates the four criticality components of every
// service in every scope and normalizes each within its scope.
func measureServices(t Tables, groups []string, ds *diag.List) map[string][]Service {
	prio := livelihoodPriority(t.Priorization, ds)

	aggs := make(map[string]map[string]*serviceAgg)
	for _, g := range groups {
		aggs[g] = make(map[string]*serviceAgg)
	}
	var noPriority, noUsers int
	t.ServiceLivelihood.Each(func(_ int, r table.Row) {
		se, ok := r.Str(ColServiceID)
		if !ok {
			return
		}
		mdv, hasMdv := r.Str(ColMdvID)
		u, hasUsers := users(r)
		if _, written := r.Str(ColUsers); written && !hasUsers {
			noUsers++
		}
		fragility := 0.0
		if raw, ok := r.Str(ColMonthsLacking); ok {
			fragility = Fragility(raw)
		}
		for _, g := range scopesOf(r) {
			byService, ok := aggs[g]
			if !ok {
				continue
			}
			a := byService[se]
			if a == nil {
				a = &serviceAgg{livelihoods: make(set)}
				byService[se] = a
			}
			a.records++
			if hasMdv {
				a.livelihoods[mdv] = true
			}
			a.users += u
			a.seasonality.add(fragility)
			p, ok := prio[g][mdv]
			if !ok {
				p = fallbackPriority
				if g == join.Overall {
					noPriority++
				}
			}
			a.priority.add(p)
		}
	})
	if noUsers > 0 {
		ds.Add(stage, TableServiceLivelihood, diag.KindMissingValue, "%d rows have a user count without a number; counted as 0", noUsers)
	}
	if noPriority > 0 && t.Priorization != nil {
		ds.Add(stage, TableServiceLivelihood, diag.KindMissingValue, "%d rows link livelihoods without a priority record; weighted %.1f", noPriority, fallbackPriority)
	}

	// Flatten every scope so each component is normalized per scope in one
	// pass.
	var keys []string
	var list []Service
	for _, g := range groups {
		for _, se := range sortedKeys(aggs[g]) {
			a := aggs[g][se]
			keys = append(keys, g)
			list = append(list, Service{
				ServiceID:   se,
				Records:     a.records,
				Links:       len(a.livelihoods),
				Users:       a.users,
				Seasonality: a.seasonality.value(),
				Priority:    a.priority.value(),
			})
		}
	}
	column := func(f func(Service) float64) []float64 {
		out := make([]float64, len(list))
		for i, s := range list {
			out[i] = f(s)
		}
		return out
	}
	linksN := normalize.ByGroup(CompLinks, keys, column(func(s Service) float64 { return float64(s.Links) })).Unwrap(ds)
	usersN := normalize.ByGroup(CompUsers, keys, column(func(s Service) float64 { return s.Users })).Unwrap(ds)
	season := normalize.ByGroup(CompSeasonality, keys, column(func(s Service) float64 { return s.Seasonality })).Unwrap(ds)
	priority := normalize.ByGroup(CompPriority, keys, column(func(s Service) float64 { return s.Priority })).Unwrap(ds)

	out := make(map[string][]Service, len(groups))
	for i, s := range list {
		s.LinksNorm, s.UsersNorm, s.SeasonalityNorm, s.PriorityNorm = linksN[i], usersN[i], season[i], priority[i]
		out[keys[i]] = append(out[keys[i]], s)
	}
	return out
}

// livelihoodPriority normalizes the mean i_total of every livelihood within
// each scope.
func livelihoodPriority(t *table.Table, ds *diag.List) map[string]map[string]float64 {
	raw := make(map[string]map[string]*mean)
	t.Each(func(_ int, r table.Row) {
		mdv, ok := r.Str(ColMdvID)
		v, okV := r.Float(ColITotal)
		if !ok || !okV {
			return
		}
		for _, g := range scopesOf(r) {
			if raw[g] == nil {
				raw[g] = make(map[string]*mean)
			}
			if raw[g][mdv] == nil {
				raw[g][mdv] = &mean{}
			}
			raw[g][mdv].add(v)
		}
	})
	out := make(map[string]map[string]float64, len(raw))
	for _, g := range sortedKeys(raw) {
		values := make(map[string]float64, len(raw[g]))
		for mdv, m := range raw[g] {
			values[mdv] = m.value()
		}
		out[g] = normalize.Map("livelihood_priority@"+g, values).Unwrap(ds)
	}
	return out
}
