// Package criticality ranks ecosystem services by how much livelihoods
// depend on them (the Service Criticality Index), ranks ecosystems by their
// leverage over critical services and livelihoods, and traces threat
// pressure from services on to the livelihoods that use them.
package criticality

import (
	"github.com/papapumpkin/pares/internal/composite"
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/table"
)

const stage = "criticality"

// Input table names.
const (
	TableServiceLivelihood = "TIDY_3_5_SE_MDV"
	TableEcosystems        = "TIDY_3_4_ECOSISTEMAS"
	TableEcoServices       = "TIDY_3_4_ECO_SE"
	TableEcoLivelihoods    = "TIDY_3_4_ECO_MDV"
	TableThreatServices    = "TIDY_4_2_2_AMENAZA_SE"
	TableThreats           = "TIDY_4_1_AMENAZAS"
	TablePriorization      = "TIDY_3_2_PRIORIZACION"
)

// Canonical column names.
const (
	ColServiceID     = "se_code"
	ColMdvID         = "mdv_id"
	ColMdvName       = "mdv_name"
	ColUsers         = "nr_usuarios"
	ColMonthsLacking = "mes_falta"
	ColObservationID = "ecosistema_obs_id"
	ColEcosystem     = "ecosistema"
	ColDegradation   = "causas_deg"
	ColThreatID      = "amenaza_id"
	ColThreatName    = "amenaza"
	ColSuma          = "suma"
	ColITotal        = "i_total"
)

// ImpactColumns are summed into a threat's total impact on a service. Both
// generations of the survey form are accepted.
var ImpactColumns = []string{
	"i_economia", "i_alimentaria", "i_sanitaria", "i_ambiental",
	"i_personal", "i_comunitaria", "i_politica",
	"i_sociedad", "i_salud", "i_educacion", "i_politico", "i_conflictos", "i_migracion",
}

// Component names weighted by service criticality scenarios.
const (
	CompLinks       = "links_mdv"
	CompUsers       = "users"
	CompSeasonality = "seasonality"
	CompPriority    = "priority"
)

// Component names weighted by the ecosystem leverage scenario.
const (
	CompConnectivity     = "connectivity"
	CompCriticalServices = "critical_services"
)

// fallbackPriority stands in for a livelihood without a priority record,
// and for an ecosystem whose services carry no criticality score.
const fallbackPriority = 0.5

// DefaultScenarios are used when Options.Scenarios is empty.
func DefaultScenarios() []composite.Scenario {
	mk := func(name string, l, u, s, p float64) composite.Scenario {
		return composite.Scenario{Name: name, Weights: map[string]float64{
			CompLinks: l, CompUsers: u, CompSeasonality: s, CompPriority: p,
		}}
	}
	return []composite.Scenario{
		mk("balanced", 0.40, 0.25, 0.15, 0.20),
		mk("demand_first", 0.30, 0.40, 0.10, 0.20),
		mk("fragility_first", 0.30, 0.15, 0.35, 0.20),
	}
}

// DefaultLeverage is used when Options.Leverage has no weights.
func DefaultLeverage() composite.Scenario {
	return composite.Scenario{Name: "eli", Weights: map[string]float64{
		CompConnectivity: 0.60, CompCriticalServices: 0.40,
	}}
}

// Tables are the joined inputs. Any of them may be nil.
type Tables struct {
	ServiceLivelihood *table.Table
	Ecosystems        *table.Table
	EcoServices       *table.Table
	EcoLivelihoods    *table.Table
	ThreatServices    *table.Table
	Threats           *table.Table
	Priorization      *table.Table
}

// Options tunes Compute.
type Options struct {
	Scenarios []composite.Scenario
	// Primary names the scenario whose score feeds ecosystem leverage; the
	// first accepted scenario when empty or unknown.
	Primary  string
	Leverage composite.Scenario
	TopN     int
	// Groups adds groups to the universe even when they have no rows.
	Groups   []string
	Parallel bool
}

// Service carries one service's measures within one scope.
type Service struct {
	ServiceID string
	Records   int
	Links     int
	Users     float64
	// Seasonality is the mean share of the year the service is lacking.
	Seasonality float64
	// Priority is the mean normalized priority of the linked livelihoods.
	Priority float64

	LinksNorm       float64
	UsersNorm       float64
	SeasonalityNorm float64
	PriorityNorm    float64
}

func (s Service) component(c string) float64 {
	switch c {
	case CompLinks:
		return s.LinksNorm
	case CompUsers:
		return s.UsersNorm
	case CompSeasonality:
		return s.SeasonalityNorm
	case CompPriority:
		return s.PriorityNorm
	}
	return 0
}

// Ecosystem carries one ecosystem's connectivity and leverage within one
// scope.
type Ecosystem struct {
	Name         string
	Observations int
	Degradation  int
	Services     int
	Livelihoods  int
	MeanSCI      float64

	ConnectivityNorm float64
	MeanSCINorm      float64
	ELI              float64
	ELINorm          float64
}

// Connectivity is the number of distinct services and livelihoods linked
// to the ecosystem.
func (e Ecosystem) Connectivity() int { return e.Services + e.Livelihoods }

// Pressure is the pressure one threat puts on one service within one scope.
type Pressure struct {
	Group     string
	ThreatID  string
	Threat    string
	ServiceID string
	Sum       float64
	N         int
	Norm      float64
}

// Mean is the mean pressure per record.
func (p Pressure) Mean() float64 {
	if p.N == 0 {
		return 0
	}
	return p.Sum / float64(p.N)
}

// Vulnerability is the pressure a threat puts on a livelihood through the
// services the livelihood uses.
type Vulnerability struct {
	Group    string
	MdvID    string
	MdvName  string
	ThreatID string
	Threat   string
	Pressure float64
	Norm     float64
}

// Scope is every measure computed over OVERALL or one grupo.
type Scope struct {
	Group      string
	Services   []Service
	Evaluation composite.Evaluation
	Stability  composite.Stability
	Ecosystems []Ecosystem
}

// Result holds every scope plus threat pressure and indirect
// vulnerability, and the service links used to build them.
type Result struct {
	TopN            int
	Primary         string
	Scopes          []Scope
	Pressures       []Pressure
	Vulnerabilities []Vulnerability
	// ServicesOf maps a livelihood to the services it uses, over every row.
	ServicesOf map[string][]string
	// EcosystemsOf maps a service to the ecosystems that provide it.
	EcosystemsOf map[string][]string
}

// Scope returns the named scope.
func (r Result) Scope(group string) (Scope, bool) {
	for _, s := range r.Scopes {
		if s.Group == group {
			return s, true
		}
	}
	return Scope{}, false
}

// SCI returns the service's primary-scenario criticality in group.
func (r Result) SCI(group, service string) (float64, bool) {
	sc, ok := r.Scope(group)
	if !ok {
		return 0, false
	}
	rk, ok := primaryRanking(sc.Evaluation, r.Primary)
	if !ok {
		return 0, false
	}
	return rk.Score(service)
}

// ELI returns the ecosystem's leverage index in group.
func (r Result) ELI(group, ecosystem string) (float64, bool) {
	sc, ok := r.Scope(group)
	if !ok {
		return 0, false
	}
	for _, e := range sc.Ecosystems {
		if e.Name == ecosystem {
			return e.ELI, true
		}
	}
	return 0, false
}

// Compute derives every measure in every scope. Components are normalized
// within their scope.
func Compute(t Tables, opts Options) diag.Outcome[Result] {
	var ds diag.List
	scenarios := opts.Scenarios
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	leverage := opts.Leverage
	if len(leverage.Weights) == 0 {
		leverage = DefaultLeverage()
	}
	if err := leverage.Validate(); err != nil {
		ds.Add(stage, "eli", diag.KindRejectedScenario, "%v; using the default leverage weights", err)
		leverage = DefaultLeverage()
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = 10
	}

	checkColumns(t, &ds)
	groups := scopes(t, opts.Groups)
	links := serviceLinks(t.ServiceLivelihood)

	out := Result{TopN: topN, Primary: opts.Primary, ServicesOf: links.servicesOf()}
	services := measureServices(t, groups, &ds)
	for _, group := range groups {
		list := services[group]
		components := map[string]composite.Scores{}
		for _, c := range []string{CompLinks, CompUsers, CompSeasonality, CompPriority} {
			components[c] = composite.Scores{}
			for _, s := range list {
				components[c][s.ServiceID] = s.component(c)
			}
		}
		eval := composite.Evaluate(components, scenarios, composite.Options{Label: stage + "@" + group, Parallel: opts.Parallel}).Unwrap(&ds)
		out.Scopes = append(out.Scopes, Scope{
			Group:      group,
			Services:   list,
			Evaluation: eval,
			Stability:  composite.TopNStability(eval.Rankings, topN),
		})
	}
	if len(out.Scopes) > 0 {
		if _, ok := out.Scopes[0].Evaluation.Ranking(opts.Primary); !ok && len(out.Scopes[0].Evaluation.Rankings) > 0 {
			out.Primary = out.Scopes[0].Evaluation.Rankings[0].Scenario
		}
	}

	eco := measureEcosystems(t, groups, &ds)
	out.EcosystemsOf = eco.ecosystemsOf
	for i := range out.Scopes {
		sc := &out.Scopes[i]
		sc.Ecosystems = leverageIndex(sc.Group, eco.byScope[sc.Group], out, leverage, opts.Parallel, &ds)
	}

	out.Pressures = threatPressure(t, groups, &ds)
	out.Vulnerabilities = indirectVulnerability(out.Pressures, links, &ds)
	return diag.Ok(out, ds...)
}

func primaryRanking(e composite.Evaluation, primary string) (composite.Ranking, bool) {
	if rk, ok := e.Ranking(primary); ok {
		return rk, true
	}
	if len(e.Rankings) == 0 {
		return composite.Ranking{}, false
	}
	return e.Rankings[0], true
}
