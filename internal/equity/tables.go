package equity

import (
	"github.com/papapumpkin/pares/internal/composite"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/table"
)

// Output table names.
const (
	TableEVIByGrupo     = "evi_by_grupo"
	TableEVIOverall     = "evi_overall"
	TableStability      = "evi_stability"
	TableDifOverall     = "dif_groups_overall"
	TableDifByGrupo     = "dif_groups_by_grupo"
	TableAccessByMdv    = "access_rates_by_mdv"
	TableHotspots       = "equity_hotspots"
	TableTextFrequency  = "access_text_frequency"
	rankingsPrefix      = "evi_rankings_"
	scenarioColumnStart = "evi_"
)

// GroupTable renders every grupo's raw and normalized components with its
// score under each scenario, best primary EVI first.
func (r Result) GroupTable() *table.Table {
	cols := []string{"grupo", "rank", "n_dif_records", "n_rows", "barriers_rate", "inclusion_rate", "capacity_gap",
		"dif_norm", "bar_norm", "inc_norm", "cap_norm", "evi"}
	for _, rk := range r.Evaluation.Rankings {
		cols = append(cols, scenarioColumnStart+rk.Scenario)
	}
	b := table.NewBuilder(TableEVIByGrupo, cols...)
	for _, g := range r.Groups {
		row := table.Row{
			"grupo":          g.Group,
			"rank":           g.Rank,
			"n_dif_records":  g.DifRecords,
			"n_rows":         g.Rows,
			"barriers_rate":  g.BarrierRate,
			"inclusion_rate": g.InclusionRate,
			"capacity_gap":   nil,
			"dif_norm":       g.DifNorm,
			"bar_norm":       g.BarrierNorm,
			"inc_norm":       g.InclusionNorm,
			"cap_norm":       g.CapacityNorm,
			"evi":            g.EVI,
		}
		if g.HasCapacity {
			row["capacity_gap"] = g.CapacityGap
		}
		for _, rk := range r.Evaluation.Rankings {
			if v, ok := rk.Score(g.Group); ok {
				row[scenarioColumnStart+rk.Scenario] = v
			}
		}
		b.Add(row)
	}
	return b.Build()
}

// OverallTable renders the mean EVI per scenario.
func (r Result) OverallTable() *table.Table {
	b := table.NewBuilder(TableEVIOverall, "grupo", "scenario", "evi_mean", "n_groups", "primary")
	for _, rk := range r.Evaluation.Rankings {
		v, ok := r.Overall[rk.Scenario]
		if !ok {
			continue
		}
		b.Add(table.Row{
			"grupo":    join.Overall,
			"scenario": rk.Scenario,
			"evi_mean": v,
			"n_groups": len(rk.Entries),
			"primary":  rk.Scenario == r.Primary,
		})
	}
	return b.Build()
}

// RankingTables renders one table per accepted scenario.
func (r Result) RankingTables() []*table.Table {
	return composite.RankingTables(rankingsPrefix, r.Evaluation, Components)
}

// StabilityTable renders Top-N stability and per-group rank shifts.
func (r Result) StabilityTable() *table.Table {
	return composite.StabilityTable(TableStability, r.Stability, r.Sensitivity)
}

// DifferentiatedTables renders record counts per affected population,
// OVERALL and by grupo.
func (r Result) DifferentiatedTables() (overall, byGrupo *table.Table) {
	cols := []string{"grupo", ColDifGroup, "count_records", "n_unique_threats", "n_from_mdv", "n_from_se"}
	ob := table.NewBuilder(TableDifOverall, cols...)
	gb := table.NewBuilder(TableDifByGrupo, cols...)
	for _, d := range r.Differentiated {
		b := gb
		if d.Group == join.Overall {
			b = ob
		}
		b.Add(table.Row{
			"grupo":            d.Group,
			ColDifGroup:        d.Label,
			"count_records":    d.Records,
			"n_unique_threats": d.Threats,
			"n_from_mdv":       d.BySource[SourceLivelihood],
			"n_from_se":        d.BySource[SourceService],
		})
	}
	return ob.Build(), gb.Build()
}

// AccessTable renders barrier and inclusion rates per grupo × livelihood,
// OVERALL first.
func (r Result) AccessTable() *table.Table {
	b := table.NewBuilder(TableAccessByMdv, "grupo", ColMdvID, ColMdvName, "n_rows", "barriers_rate", "inclusion_rate")
	for _, a := range r.Access {
		b.Add(table.Row{
			"grupo":          a.Group,
			ColMdvID:         a.MdvID,
			ColMdvName:       nullable(a.MdvName),
			"n_rows":         a.Rows,
			"barriers_rate":  a.BarrierRate,
			"inclusion_rate": a.InclusionRate,
		})
	}
	return b.Build()
}

// HotspotTable renders the ranked equity hotspots.
func (r Result) HotspotTable() *table.Table {
	b := table.NewBuilder(TableHotspots, "rank", "grupo", ColMdvID, ColMdvName, "evi", "barriers_rate", "hotspot_score")
	for _, h := range r.Hotspots {
		b.Add(table.Row{
			"rank":          h.Rank,
			"grupo":         h.Group,
			ColMdvID:        h.MdvID,
			ColMdvName:      nullable(h.MdvName),
			"evi":           h.EVI,
			"barriers_rate": h.BarrierRate,
			"hotspot_score": h.Score,
		})
	}
	return b.Build()
}

// FrequencyTable renders free-text item counts per topic and scope.
func (r Result) FrequencyTable() *table.Table {
	b := table.NewBuilder(TableTextFrequency, "topic", "grupo", "item", "count", "rate")
	for _, f := range r.Frequencies {
		b.Add(table.Row{"topic": f.Topic, "grupo": f.Group, "item": f.Item, "count": f.Count, "rate": f.Rate})
	}
	return b.Build()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
