package network

import (
	"sort"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
)

const stage = "network"

// Centrality is one actor's degree in both subgraphs within one group.
type Centrality struct {
	ActorID string
	Group   string
	Type    string
	// Collaborators and Conflicts count distinct neighbors inside the group.
	Collaborators       int
	Conflicts           int
	CollaborationDegree float64
	ConflictDegree      float64
	// Isolated is set when the actor has no collaborator in the group.
	Isolated bool
}

// Strength is the Network Strength of one group: the mean collaboration
// degree of its actors.
type Strength struct {
	Group    string
	Actors   int
	Isolated int
	Value    float64
	// Weighted is set when the mean was weighted by actor power.
	Weighted bool
	// NA marks a group with no known actors; Value is 0.
	NA bool
}

// Options tunes Analyze.
type Options struct {
	// PowerWeighted weights the Network Strength mean by actor power.
	PowerWeighted bool
	// Groups adds groups to the universe even when no actor belongs to
	// them, so they are reported as empty rather than omitted.
	Groups []string
}

// Analysis holds per-actor centrality and per-group strength. Rows are
// ordered OVERALL first, then groups by name; actors by id within a group.
type Analysis struct {
	Centrality []Centrality
	Strength   []Strength
}

// StrengthOf returns the strength computed for group.
func (a Analysis) StrengthOf(group string) (Strength, bool) {
	for _, s := range a.Strength {
		if s.Group == group {
			return s, true
		}
	}
	return Strength{Group: group, NA: true}, false
}

// CentralityOf returns one actor's centrality in group.
func (a Analysis) CentralityOf(actorID, group string) (Centrality, bool) {
	for _, c := range a.Centrality {
		if c.ActorID == actorID && c.Group == group {
			return c, true
		}
	}
	return Centrality{}, false
}

// Analyze computes centrality for every actor of every group, plus
// OVERALL over all actors. Degree is the number of distinct neighbors
// inside the group divided by N-1, N being the group's actor count; a
// group with N ≤ 1 yields degree 0.
func Analyze(g *Graph, opts Options) diag.Outcome[Analysis] {
	var ds diag.List
	var out Analysis

	for _, group := range universe(g, opts.Groups) {
		members := g.Members(group)
		if len(members) == 0 {
			ds.Add(stage, group, diag.KindEmptyGroup, "no known actors; network strength is 0")
			out.Strength = append(out.Strength, Strength{Group: group, NA: true})
			continue
		}

		inGroup := make(map[string]bool, len(members))
		for _, id := range members {
			inGroup[id] = true
		}
		rows := make([]Centrality, 0, len(members))
		for _, id := range members {
			collab := g.countWithin(id, Collaboration, inGroup)
			conf := g.countWithin(id, Conflict, inGroup)
			c := Centrality{
				ActorID:             id,
				Group:               group,
				Type:                g.actors[id].Type,
				Collaborators:       collab,
				Conflicts:           conf,
				CollaborationDegree: degree(collab, len(members)),
				ConflictDegree:      degree(conf, len(members)),
			}
			c.Isolated = c.CollaborationDegree == 0
			rows = append(rows, c)
		}
		out.Centrality = append(out.Centrality, rows...)
		out.Strength = append(out.Strength, g.strength(group, rows, opts.PowerWeighted))
	}
	return diag.Ok(out, ds...)
}

func (g *Graph) countWithin(id string, kind Kind, members map[string]bool) int {
	n := 0
	for nb := range g.adjacency[kind][id] {
		if members[nb] {
			n++
		}
	}
	return n
}

func degree(neighbors, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(neighbors) / float64(n-1)
}

// strength averages collaboration degree. With power weighting, actors
// without a positive power carry no weight; if no actor has one the plain
// mean is used.
func (g *Graph) strength(group string, rows []Centrality, powerWeighted bool) Strength {
	s := Strength{Group: group, Actors: len(rows)}
	sum, wsum, wtotal := 0.0, 0.0, 0.0
	for _, c := range rows {
		if c.Isolated {
			s.Isolated++
		}
		sum += c.CollaborationDegree
		if a := g.actors[c.ActorID]; a.HasPower && a.Power > 0 {
			wsum += a.Power * c.CollaborationDegree
			wtotal += a.Power
		}
	}
	if powerWeighted && wtotal > 0 {
		s.Value = wsum / wtotal
		s.Weighted = true
		return s
	}
	s.Value = sum / float64(len(rows))
	return s
}

func universe(g *Graph, extra []string) []string {
	seen := map[string]bool{join.Overall: true}
	var groups []string
	for _, grp := range append(g.Groups(), extra...) {
		if grp == "" || seen[grp] {
			continue
		}
		seen[grp] = true
		groups = append(groups, grp)
	}
	sort.Strings(groups)
	return append([]string{join.Overall}, groups...)
}
