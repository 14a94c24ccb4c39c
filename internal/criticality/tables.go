package criticality

import (
	"strings"

	"github.com/papapumpkin/pares/internal/table"
)

// Output table names.
const (
	TableSCIOverall = "sci_components_overall"
	TableSCIByGrupo = "sci_components_by_grupo"
	TableStability  = "sci_stability"
	TableELIOverall = "ecosystem_eli_overall"
	TableELIByGrupo = "ecosystem_eli_by_grupo"
	TableTPSOverall = "tps_overall"
	TableTPSByGrupo = "tps_by_grupo"
	TableIVLOverall = "ivl_overall"
	TableIVLByGrupo = "ivl_by_grupo"
	rankingsPrefix  = "sci_rankings_"
)

func scenarioColumn(name string) string { return "sci_" + name }

func split(overall, byGrupo *table.Builder, group string) *table.Builder {
	if isOverall(group) {
		return overall
	}
	return byGrupo
}

// ServiceTables renders every service's raw and normalized components and
// its score under each scenario, OVERALL and by grupo.
func (r Result) ServiceTables() (overall, byGrupo *table.Table) {
	var scenarios []string
	if len(r.Scopes) > 0 {
		for _, rk := range r.Scopes[0].Evaluation.Rankings {
			scenarios = append(scenarios, rk.Scenario)
		}
	}
	cols := []string{"grupo", ColServiceID, "n_records", "links_mdv", "users", "seasonality_fragility", "priority_weight",
		CompLinks + "_norm", CompUsers + "_norm", CompSeasonality + "_norm", CompPriority + "_norm"}
	for _, s := range scenarios {
		cols = append(cols, scenarioColumn(s))
	}
	ob := table.NewBuilder(TableSCIOverall, cols...)
	gb := table.NewBuilder(TableSCIByGrupo, cols...)
	for _, sc := range r.Scopes {
		b := split(ob, gb, sc.Group)
		for _, s := range sc.Services {
			row := table.Row{
				"grupo":                   sc.Group,
				ColServiceID:              s.ServiceID,
				"n_records":               s.Records,
				"links_mdv":               s.Links,
				"users":                   s.Users,
				"seasonality_fragility":   s.Seasonality,
				"priority_weight":         s.Priority,
				CompLinks + "_norm":       s.LinksNorm,
				CompUsers + "_norm":       s.UsersNorm,
				CompSeasonality + "_norm": s.SeasonalityNorm,
				CompPriority + "_norm":    s.PriorityNorm,
			}
			for _, rk := range sc.Evaluation.Rankings {
				if v, ok := rk.Score(s.ServiceID); ok {
					row[scenarioColumn(rk.Scenario)] = v
				}
			}
			b.Add(row)
		}
	}
	return ob.Build(), gb.Build()
}

// RankingTables renders one table per scenario with the Top-N services of
// every scope.
func (r Result) RankingTables() []*table.Table {
	var order []string
	builders := map[string]*table.Builder{}
	for _, sc := range r.Scopes {
		for _, rk := range sc.Evaluation.Rankings {
			b, ok := builders[rk.Scenario]
			if !ok {
				b = table.NewBuilder(rankingsPrefix+rk.Scenario,
					"grupo", "rank", ColServiceID, CompLinks, CompUsers, CompSeasonality, CompPriority, "sci", "scenario")
				builders[rk.Scenario] = b
				order = append(order, rk.Scenario)
			}
			for _, e := range rk.Top(r.TopN) {
				b.Add(table.Row{
					"grupo":         sc.Group,
					"rank":          e.Rank,
					ColServiceID:    e.EntityID,
					CompLinks:       e.Components[CompLinks],
					CompUsers:       e.Components[CompUsers],
					CompSeasonality: e.Components[CompSeasonality],
					CompPriority:    e.Components[CompPriority],
					"sci":           e.Score,
					"scenario":      rk.Scenario,
				})
			}
		}
	}
	out := make([]*table.Table, 0, len(order))
	for _, s := range order {
		out = append(out, builders[s].Build())
	}
	return out
}

// StabilityTable renders Top-N service stability per scope.
func (r Result) StabilityTable() *table.Table {
	b := table.NewBuilder(TableStability, "grupo", "top_n", "scenarios", "common", "stability")
	for _, sc := range r.Scopes {
		st := sc.Stability
		b.Add(table.Row{
			"grupo":     sc.Group,
			"top_n":     st.N,
			"scenarios": strings.Join(st.Scenarios, ","),
			"common":    strings.Join(st.Common, ","),
			"stability": st.Fraction,
		})
	}
	return b.Build()
}

// EcosystemTables renders connectivity and leverage per ecosystem, OVERALL
// and by grupo.
func (r Result) EcosystemTables() (overall, byGrupo *table.Table) {
	cols := []string{"grupo", ColEcosystem, "n_obs", "n_causes_deg", "n_services", "n_livelihoods",
		"connectivity_raw", "connectivity_norm", "mean_sci", "mean_sci_norm", "eli", "eli_norm"}
	ob := table.NewBuilder(TableELIOverall, cols...)
	gb := table.NewBuilder(TableELIByGrupo, cols...)
	for _, sc := range r.Scopes {
		b := split(ob, gb, sc.Group)
		for _, e := range sc.Ecosystems {
			b.Add(table.Row{
				"grupo":             sc.Group,
				ColEcosystem:        e.Name,
				"n_obs":             e.Observations,
				"n_causes_deg":      e.Degradation,
				"n_services":        e.Services,
				"n_livelihoods":     e.Livelihoods,
				"connectivity_raw":  e.Connectivity(),
				"connectivity_norm": e.ConnectivityNorm,
				"mean_sci":          e.MeanSCI,
				"mean_sci_norm":     e.MeanSCINorm,
				"eli":               e.ELI,
				"eli_norm":          e.ELINorm,
			})
		}
	}
	return ob.Build(), gb.Build()
}

// PressureTables renders threat pressure per threat and service, OVERALL
// and by grupo.
func (r Result) PressureTables() (overall, byGrupo *table.Table) {
	cols := []string{"grupo", ColThreatID, ColThreatName, ColServiceID, "sum_pressure", "mean_pressure", "n_rows", "pressure_norm"}
	ob := table.NewBuilder(TableTPSOverall, cols...)
	gb := table.NewBuilder(TableTPSByGrupo, cols...)
	for _, p := range r.Pressures {
		split(ob, gb, p.Group).Add(table.Row{
			"grupo":         p.Group,
			ColThreatID:     p.ThreatID,
			ColThreatName:   nullable(p.Threat),
			ColServiceID:    p.ServiceID,
			"sum_pressure":  p.Sum,
			"mean_pressure": p.Mean(),
			"n_rows":        p.N,
			"pressure_norm": p.Norm,
		})
	}
	return ob.Build(), gb.Build()
}

// VulnerabilityTables renders indirect livelihood vulnerability per
// livelihood and threat, OVERALL and by grupo.
func (r Result) VulnerabilityTables() (overall, byGrupo *table.Table) {
	cols := []string{"grupo", ColMdvID, ColMdvName, ColThreatID, ColThreatName, "sum_pressure_via_services", "ivl_norm"}
	ob := table.NewBuilder(TableIVLOverall, cols...)
	gb := table.NewBuilder(TableIVLByGrupo, cols...)
	for _, v := range r.Vulnerabilities {
		split(ob, gb, v.Group).Add(table.Row{
			"grupo":                     v.Group,
			ColMdvID:                    v.MdvID,
			ColMdvName:                  nullable(v.MdvName),
			ColThreatID:                 v.ThreatID,
			ColThreatName:               nullable(v.Threat),
			"sum_pressure_via_services": v.Pressure,
			"ivl_norm":                  v.Norm,
		})
	}
	return ob.Build(), gb.Build()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
