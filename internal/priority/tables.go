package priority

import (
	"strings"

	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/table"
)

// Output table names.
const (
	TableOverall          = "priority_overall"
	TableByGrupo          = "priority_by_grupo"
	TableStability        = "api_stability"
	TableSeverity         = "threat_severity"
	TableDrivers          = "threat_drivers"
	TableQuestionsOverall = "capacity_questions_overall"
	TableQuestionsByGrupo = "capacity_questions_by_grupo"
	rankingsPrefix        = "api_rankings_"
)

func scenarioColumn(name string) string { return "api_" + name }

// MeasureTables renders every livelihood's components and scenario
// scores, OVERALL and by grupo.
func (r Result) MeasureTables() (overall, byGrupo *table.Table) {
	var scenarios []string
	if len(r.Scopes) > 0 {
		for _, rk := range r.Scopes[0].Evaluation.Rankings {
			scenarios = append(scenarios, rk.Scenario)
		}
	}
	cols := []string{"grupo", ColMdvID, ColMdvName, "mean_i_total", "n_records",
		"sum_weighted_impact", "mean_response_0_1", "n_responses",
		CompPriority, CompRisk, CompCapacityGap}
	for _, s := range scenarios {
		cols = append(cols, scenarioColumn(s))
	}
	ob := table.NewBuilder(TableOverall, cols...)
	gb := table.NewBuilder(TableByGrupo, cols...)
	for _, sc := range r.Scopes {
		b := gb
		if sc.Group == join.Overall {
			b = ob
		}
		for _, l := range sc.Livelihoods {
			row := table.Row{
				"grupo":               sc.Group,
				ColMdvID:              l.MdvID,
				ColMdvName:            l.Name,
				"mean_i_total":        present(l.Has[CompPriority], l.MeanITotal),
				"n_records":           l.Records,
				"sum_weighted_impact": present(l.Has[CompRisk], l.WeightedImpact),
				"mean_response_0_1":   present(l.Has[CompCapacityGap], l.MeanResponse),
				"n_responses":         l.Responses,
				CompPriority:          l.Priority,
				CompRisk:              l.Risk,
				CompCapacityGap:       l.CapacityGap,
			}
			for _, rk := range sc.Evaluation.Rankings {
				if s, ok := rk.Score(l.MdvID); ok {
					row[scenarioColumn(rk.Scenario)] = s
				}
			}
			b.Add(row)
		}
	}
	return ob.Build(), gb.Build()
}

// RankingTables renders one table per scenario with the Top-N livelihoods
// of every scope.
func (r Result) RankingTables() []*table.Table {
	order := []string{}
	builders := map[string]*table.Builder{}
	names := map[string]string{}
	for _, sc := range r.Scopes {
		for _, l := range sc.Livelihoods {
			names[l.MdvID] = l.Name
		}
		for _, rk := range sc.Evaluation.Rankings {
			b, ok := builders[rk.Scenario]
			if !ok {
				b = table.NewBuilder(rankingsPrefix+rk.Scenario,
					"grupo", "rank", ColMdvID, ColMdvName, CompPriority, CompRisk, CompCapacityGap, "api_score", "scenario")
				builders[rk.Scenario] = b
				order = append(order, rk.Scenario)
			}
			for _, e := range rk.Top(r.TopN) {
				b.Add(table.Row{
					"grupo":         sc.Group,
					"rank":          e.Rank,
					ColMdvID:        e.EntityID,
					ColMdvName:      names[e.EntityID],
					CompPriority:    e.Components[CompPriority],
					CompRisk:        e.Components[CompRisk],
					CompCapacityGap: e.Components[CompCapacityGap],
					"api_score":     e.Score,
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

// StabilityTable renders Top-N stability per scope.
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

// SeverityTable renders threat severity per scope.
func (r Result) SeverityTable() *table.Table {
	b := table.NewBuilder(TableSeverity, "grupo", ColThreatID, ColThreatName, "mean_suma", "n", "suma_norm")
	for _, t := range r.Threats {
		b.Add(table.Row{
			"grupo":       t.Group,
			ColThreatID:   t.ThreatID,
			ColThreatName: nullable(t.Name),
			"mean_suma":   t.MeanSuma,
			"n":           t.N,
			"suma_norm":   t.SumaNorm,
		})
	}
	return b.Build()
}

// DriverTable renders the top threat drivers per livelihood and scope.
func (r Result) DriverTable() *table.Table {
	b := table.NewBuilder(TableDrivers, "grupo", ColMdvID, "driver_rank", ColThreatID, ColThreatName, "sum_weighted_impact")
	for _, d := range r.Drivers {
		b.Add(table.Row{
			"grupo":               d.Group,
			ColMdvID:              d.MdvID,
			"driver_rank":         d.Rank,
			ColThreatID:           d.ThreatID,
			ColThreatName:         nullable(d.Threat),
			"sum_weighted_impact": d.WeightedImpact,
		})
	}
	return b.Build()
}

// QuestionTables renders the mean answer per capacity question, OVERALL
// and by grupo, weakest question first within each scope.
func (r Result) QuestionTables() (overall, byGrupo *table.Table) {
	cols := []string{"grupo", ColQuestionID, ColQuestionText, "mean_response_0_1", "n_responses", "bottleneck_rank"}
	ob := table.NewBuilder(TableQuestionsOverall, cols...)
	gb := table.NewBuilder(TableQuestionsByGrupo, cols...)
	rank := make(map[string]int)
	for _, q := range r.Questions {
		b := gb
		if q.Group == join.Overall {
			b = ob
		}
		rank[q.Group]++
		b.Add(table.Row{
			"grupo":             q.Group,
			ColQuestionID:       q.QuestionID,
			ColQuestionText:     nullable(q.Text),
			"mean_response_0_1": q.MeanResponse,
			"n_responses":       q.N,
			"bottleneck_rank":   rank[q.Group],
		})
	}
	return ob.Build(), gb.Build()
}

func present(ok bool, v float64) any {
	if !ok {
		return nil
	}
	return v
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
