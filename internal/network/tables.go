package network

import (
	"github.com/papapumpkin/pares/internal/table"
)

// Output table names.
const (
	TableCentrality = "actor_centrality"
	TableStrength   = "network_strength"
	TableDyads      = "dyads"
)

// CentralityTable renders per-actor centrality.
func (a Analysis) CentralityTable() *table.Table {
	b := table.NewBuilder(TableCentrality,
		"grupo", ColActorID, ColActorType, "collaborators", "conflicts",
		"collaboration_degree", "conflict_degree", "isolated")
	for _, c := range a.Centrality {
		b.Add(table.Row{
			"grupo":                c.Group,
			ColActorID:             c.ActorID,
			ColActorType:           nullable(c.Type),
			"collaborators":        c.Collaborators,
			"conflicts":            c.Conflicts,
			"collaboration_degree": c.CollaborationDegree,
			"conflict_degree":      c.ConflictDegree,
			"isolated":             c.Isolated,
		})
	}
	return b.Build()
}

// StrengthTable renders Network Strength per group.
func (a Analysis) StrengthTable() *table.Table {
	b := table.NewBuilder(TableStrength, "grupo", "actors", "isolated", "network_strength", "power_weighted", "na")
	for _, s := range a.Strength {
		b.Add(table.Row{
			"grupo":            s.Group,
			"actors":           s.Actors,
			"isolated":         s.Isolated,
			"network_strength": s.Value,
			"power_weighted":   s.Weighted,
			"na":               s.NA,
		})
	}
	return b.Build()
}

// DyadTable renders the coalesced edges of both subgraphs.
func (g *Graph) DyadTable() *table.Table {
	b := table.NewBuilder(TableDyads, "rel_kind", "actor_a", "actor_b", "count", "weight")
	for _, k := range Kinds {
		for _, d := range g.Dyads(k) {
			b.Add(table.Row{
				"rel_kind": string(d.Kind),
				"actor_a":  d.A,
				"actor_b":  d.B,
				"count":    d.Count,
				"weight":   d.Weight,
			})
		}
	}
	return b.Build()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
