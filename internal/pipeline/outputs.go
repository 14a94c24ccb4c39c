package pipeline

import (
	"github.com/papapumpkin/pares/internal/network"
	"github.com/papapumpkin/pares/internal/table"
)

func outputTables(r *Result) []*table.Table {
	var out []*table.Table
	overall, byGrupo := r.Priority.MeasureTables()
	out = append(out, overall, byGrupo)
	out = append(out, r.Priority.RankingTables()...)
	out = append(out, r.Priority.StabilityTable(), r.Priority.SeverityTable(), r.Priority.DriverTable())
	overall, byGrupo = r.Priority.QuestionTables()
	out = append(out, overall, byGrupo)

	overall, byGrupo = r.Criticality.ServiceTables()
	out = append(out, overall, byGrupo)
	out = append(out, r.Criticality.RankingTables()...)
	out = append(out, r.Criticality.StabilityTable())
	overall, byGrupo = r.Criticality.EcosystemTables()
	out = append(out, overall, byGrupo)
	overall, byGrupo = r.Criticality.PressureTables()
	out = append(out, overall, byGrupo)
	overall, byGrupo = r.Criticality.VulnerabilityTables()
	out = append(out, overall, byGrupo)

	overall, byGrupo = network.SnapshotTables(r.Actors)
	out = append(out, overall, byGrupo)
	out = append(out, r.Network.CentralityTable(), r.Graph.DyadTable(), r.Network.StrengthTable())
	out = append(out, r.Conflict.RiskTable(), r.Conflict.ActorTable(), r.Conflict.BlockerTable(),
		r.Conflict.TimelineTable(), r.Conflict.LinkTable())
	out = append(out, r.Dialogue.CoverageTable(), r.Dialogue.ParticipationTable(), r.Dialogue.ActorTable())

	out = append(out, r.Equity.GroupTable(), r.Equity.OverallTable())
	out = append(out, r.Equity.RankingTables()...)
	out = append(out, r.Equity.StabilityTable())
	overall, byGrupo = r.Equity.DifferentiatedTables()
	out = append(out, overall, byGrupo)
	out = append(out, r.Equity.AccessTable(), r.Equity.HotspotTable(), r.Equity.FrequencyTable())

	out = append(out, r.Feasibility.FeasibilityTable())
	out = append(out, r.Feasibility.RankingTables()...)
	out = append(out, r.Feasibility.StabilityTable(), r.Feasibility.MonitoringTable())

	out = append(out, r.Portfolio.BundleTable())
	out = append(out, r.Portfolio.RankingTables()...)
	out = append(out, r.Portfolio.StabilityTable(), r.Portfolio.EvidenceTable(),
		r.Portfolio.CoverageTable(), r.Portfolio.IndicatorTable())
	return out
}

// TableNames lists the output table names of a result, in output order.
func (r *Result) TableNames() []string {
	names := make([]string, len(r.Tables))
	for i, t := range r.Tables {
		names[i] = t.Name()
	}
	return names
}
