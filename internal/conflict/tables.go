package conflict

import "github.com/papapumpkin/pares/internal/table"

// Output table names.
const (
	TableRisk     = "conflict_risk"
	TableActor    = "actor_conflict_risk"
	TableBlockers = "conflict_blockers"
	TableTimeline = "conflict_timeline"
	TableLinks    = "threat_conflict_links"
)

// RiskTable renders per-group risk.
func (a Assessment) RiskTable() *table.Table {
	b := table.NewBuilder(TableRisk, "grupo", "events", "raw_risk", "conflict_risk", "as_of", "half_life_days")
	for _, g := range a.Groups {
		b.Add(table.Row{
			"grupo":          g.Group,
			"events":         g.Events,
			"raw_risk":       g.Raw,
			"conflict_risk":  g.Risk,
			"as_of":          a.AsOf,
			"half_life_days": a.HalfLife.Hours() / 24,
		})
	}
	return b.Build()
}

// ActorTable renders per-actor risk.
func (a Assessment) ActorTable() *table.Table {
	b := table.NewBuilder(TableActor, ColActorID, "events", "raw_risk", "conflict_risk")
	for _, r := range a.Actors {
		b.Add(table.Row{ColActorID: r.ActorID, "events": r.Events, "raw_risk": r.Raw, "conflict_risk": r.Risk})
	}
	return b.Build()
}

// BlockerTable renders the ranked blockers of every group.
func (a Assessment) BlockerTable() *table.Table {
	b := table.NewBuilder(TableBlockers, "grupo", "rank", ColActorID, "events", "contribution")
	for _, bl := range a.Blockers {
		b.Add(table.Row{"grupo": bl.Group, "rank": bl.Rank, ColActorID: bl.ActorID, "events": bl.Events, "contribution": bl.Contribution})
	}
	return b.Build()
}

// TimelineTable renders events per year per group.
func (a Assessment) TimelineTable() *table.Table {
	b := table.NewBuilder(TableTimeline, "grupo", "year", "events", "weighted")
	for _, p := range a.Timeline {
		b.Add(table.Row{"grupo": p.Group, "year": p.Year, "events": p.Events, "weighted": p.Weighted})
	}
	return b.Build()
}

// LinkTable renders threat ↔ conflict linkage counts.
func (a Assessment) LinkTable() *table.Table {
	b := table.NewBuilder(TableLinks, ColThreatID, "conflicts", "events", "contribution")
	for _, l := range a.Links {
		b.Add(table.Row{ColThreatID: l.ThreatID, "conflicts": l.Conflicts, "events": l.Events, "contribution": l.Contribution})
	}
	return b.Build()
}
