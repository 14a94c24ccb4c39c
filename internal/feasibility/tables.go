package feasibility

import (
	"strings"

	"github.com/papapumpkin/pares/internal/composite"
	"github.com/papapumpkin/pares/internal/table"
)

// Output table names.
const (
	TableFeasibility = "feasibility"
	TableStability   = "feasibility_stability"
	TableMonitoring  = "monitoring_plan"
	rankingsPrefix   = "feasibility_rankings_"

	TableBundles          = "bundles"
	TableBundleEvidence   = "bundle_evidence"
	TableBundleStability  = "bundle_stability"
	TableBundleIndicators = "bundle_indicators"
	TableCoverage         = "coverage_summary"
	bundleRankingsPrefix  = "bundle_rankings_"
)

// Evidence kinds linking a bundle to what it addresses.
const (
	EvidenceService   = "service"
	EvidenceEcosystem = "ecosystem"
	EvidenceThreat    = "threat"
)

// FeasibilityTable renders the primary-scenario scores, OVERALL first.
func (r Result) FeasibilityTable() *table.Table {
	b := table.NewBuilder(TableFeasibility,
		"grupo", "scenario", "rank", CompNetwork, CompDialogue, "conflict_risk",
		"feasibility", "tier", "tier_downgraded", "weakest_component", "na")
	for _, g := range r.Groups {
		row := table.Row{
			"grupo":             g.Group,
			"scenario":          r.Primary,
			"rank":              nil,
			CompNetwork:         g.NetworkStrength,
			CompDialogue:        g.DialogueCoverage,
			"conflict_risk":     g.ConflictRisk,
			"feasibility":       g.Score,
			"tier":              nil,
			"tier_downgraded":   g.Downgraded,
			"weakest_component": g.Weakest,
			"na":                g.NA,
		}
		if g.NA {
			row["tier"] = g.Tier
		}
		if g.Rank > 0 {
			row["rank"] = g.Rank
			row["tier"] = g.Tier
		}
		b.Add(row)
	}
	return b.Build()
}

// RankingTables renders one table per accepted scenario.
func (r Result) RankingTables() []*table.Table {
	return composite.RankingTables(rankingsPrefix, r.Evaluation, []string{CompNetwork, CompDialogue, CompSafety})
}

// StabilityTable renders Top-N stability and per-group rank shifts.
func (r Result) StabilityTable() *table.Table {
	return composite.StabilityTable(TableStability, r.Stability, r.Sensitivity)
}

// MonitoringTable renders the monitoring plan.
func (r Result) MonitoringTable() *table.Table {
	b := table.NewBuilder(TableMonitoring, "grupo", "component", "indicator_id", "indicator_name", "indicator_type", "unit", "frequency")
	for _, m := range r.Monitoring {
		b.Add(table.Row{
			"grupo":          m.Group,
			"component":      m.Component,
			"indicator_id":   m.Indicator.ID,
			"indicator_name": m.Indicator.Name,
			"indicator_type": m.Indicator.Type,
			"unit":           m.Indicator.Unit,
			"frequency":      m.Indicator.Frequency,
		})
	}
	return b.Build()
}

// BundleTable renders the kept bundles in portfolio order.
func (p Portfolio) BundleTable() *table.Table {
	b := table.NewBuilder(TableBundles,
		"bundle_id", "rank", "grupo", "grupo_rank", "mdv_id", "mdv_name", "scenario",
		CompImpact, CompLeverage, CompEquity, CompFeasible, "conflict_risk",
		"bundle_score", "tier", "tier_downgraded", "weakest_component",
		"n_services", "n_ecosystems", "n_threats")
	for _, bd := range p.Bundles {
		var name any
		if bd.MdvName != "" {
			name = bd.MdvName
		}
		b.Add(table.Row{
			"bundle_id":         bd.ID,
			"rank":              bd.Rank,
			"grupo":             bd.Group,
			"grupo_rank":        bd.GroupRank,
			"mdv_id":            bd.MdvID,
			"mdv_name":          name,
			"scenario":          p.Primary,
			CompImpact:          bd.Impact,
			CompLeverage:        bd.Leverage,
			CompEquity:          bd.Equity,
			CompFeasible:        bd.Feasibility,
			"conflict_risk":     bd.ConflictRisk,
			"bundle_score":      bd.Score,
			"tier":              bd.Tier,
			"tier_downgraded":   bd.Downgraded,
			"weakest_component": bd.Weakest,
			"n_services":        len(bd.Services),
			"n_ecosystems":      len(bd.Ecosystems),
			"n_threats":         len(bd.Threats),
		})
	}
	return b.Build()
}

// RankingTables renders one table per accepted scenario over every
// candidate.
func (p Portfolio) RankingTables() []*table.Table {
	return composite.RankingTables(bundleRankingsPrefix, p.Evaluation, PortfolioComponents)
}

// StabilityTable renders Top-N stability and per-bundle rank shifts.
func (p Portfolio) StabilityTable() *table.Table {
	return composite.StabilityTable(TableBundleStability, p.Stability, p.Sensitivity)
}

// EvidenceTable lists one row per service, ecosystem and threat a bundle
// addresses.
func (p Portfolio) EvidenceTable() *table.Table {
	b := table.NewBuilder(TableBundleEvidence, "bundle_id", "grupo", "evidence_type", "ref_id", "order")
	for _, bd := range p.Bundles {
		for _, ev := range []struct {
			kind string
			refs []string
		}{{EvidenceService, bd.Services}, {EvidenceEcosystem, bd.Ecosystems}, {EvidenceThreat, bd.Threats}} {
			for i, ref := range ev.refs {
				b.Add(table.Row{"bundle_id": bd.ID, "grupo": bd.Group, "evidence_type": ev.kind, "ref_id": ref, "order": i + 1})
			}
		}
	}
	return b.Build()
}

// CoverageTable renders the coverage summary, OVERALL first.
func (p Portfolio) CoverageTable() *table.Table {
	cols := []string{"grupo", "n_candidates", "n_bundles", "services_covered", "ecosystems_covered", "threats_addressed", "mean_bundle_score"}
	for _, t := range tierOrder {
		cols = append(cols, tierColumn(t))
	}
	b := table.NewBuilder(TableCoverage, cols...)
	for _, c := range p.Coverage {
		row := table.Row{
			"grupo":              c.Group,
			"n_candidates":       c.Candidates,
			"n_bundles":          c.Bundles,
			"services_covered":   c.Services,
			"ecosystems_covered": c.Ecosystems,
			"threats_addressed":  c.Threats,
			"mean_bundle_score":  nil,
		}
		if c.Bundles > 0 {
			row["mean_bundle_score"] = c.MeanScore
		}
		for _, t := range tierOrder {
			row[tierColumn(t)] = c.Tiers[t]
		}
		b.Add(row)
	}
	return b.Build()
}

// IndicatorTable renders the indicators attached to each bundle.
func (p Portfolio) IndicatorTable() *table.Table {
	b := table.NewBuilder(TableBundleIndicators, "bundle_id", "grupo", "component", "indicator_id", "indicator_name", "indicator_type", "unit", "frequency")
	for _, m := range p.Indicators {
		b.Add(table.Row{
			"bundle_id":      m.BundleID,
			"grupo":          m.Group,
			"component":      m.Component,
			"indicator_id":   m.Indicator.ID,
			"indicator_name": m.Indicator.Name,
			"indicator_type": m.Indicator.Type,
			"unit":           m.Indicator.Unit,
			"frequency":      m.Indicator.Frequency,
		})
	}
	return b.Build()
}

// tierColumn turns "Do now" into "n_do_now".
func tierColumn(tier string) string {
	return "n_" + strings.ReplaceAll(strings.ToLower(tier), " ", "_")
}
