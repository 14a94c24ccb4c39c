// Package dialogue measures how much of each group's actor universe takes
// part in dialogue spaces.
package dialogue

import (
	"sort"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
)

const stage = "dialogue"

// Roster is the actor universe coverage is measured against.
type Roster interface {
	// Groups returns the grupo values actors belong to.
	Groups() []string
	// Members returns the actors of a group; OVERALL selects all actors.
	Members(group string) []string
	// ActorType returns an actor's type, empty when unknown.
	ActorType(id string) string
}

// Space is a dialogue space and its participants.
type Space struct {
	ID           string
	Name         string
	Type         string
	Group        string
	Participants []string
}

// Options tunes Compute.
type Options struct {
	// Inclusiveness multiplies coverage by the mean actor-type diversity
	// of the spaces the group's actors take part in.
	Inclusiveness bool
	// Groups adds groups to the universe even when they have no actors.
	Groups []string
}

// Coverage is the dialogue coverage of one group.
type Coverage struct {
	Group        string
	Actors       int
	Participants int
	// Spaces counts the spaces with at least one participant from the group.
	Spaces int
	// Base is participants / actors.
	Base float64
	// Diversity is the inclusiveness factor, 1 when not applied.
	Diversity float64
	// Value is the coverage after the optional inclusiveness adjustment.
	Value float64
	NA    bool
}

// SpaceStat summarizes one space.
type SpaceStat struct {
	SpaceID      string
	Name         string
	Group        string
	Participants int
	Types        int
	Diversity    float64
}

// ActorStat counts the spaces one actor takes part in.
type ActorStat struct {
	ActorID string
	Spaces  int
}

// Result holds coverage per group and participation statistics.
type Result struct {
	Coverage []Coverage
	Spaces   []SpaceStat
	Actors   []ActorStat
}

// ValueOf returns the coverage of group, 0 when unknown.
func (r Result) ValueOf(group string) float64 {
	c, _ := r.CoverageOf(group)
	return c.Value
}

// CoverageOf returns the coverage computed for group. An unknown group
// comes back N/A.
func (r Result) CoverageOf(group string) (Coverage, bool) {
	for _, c := range r.Coverage {
		if c.Group == group {
			return c, true
		}
	}
	return Coverage{Group: group, NA: true}, false
}

// Compute measures coverage = |actors in ≥1 space| / |actors in group| for
// OVERALL and every group. A group with no known actors has coverage 0
// and is reported.
func Compute(spaces []Space, roster Roster, opts Options) diag.Outcome[Result] {
	var ds diag.List
	var out Result

	known := make(map[string]bool)
	for _, id := range roster.Members(join.Overall) {
		known[id] = true
	}
	types := knownTypes(roster)

	spacesOf := make(map[string][]int)
	unknown := make(map[string]bool)
	for i, s := range spaces {
		ps := dedupe(s.Participants)
		stat := SpaceStat{SpaceID: s.ID, Name: s.Name, Group: s.Group, Participants: len(ps)}
		stat.Types, stat.Diversity = diversity(ps, roster, len(types))
		out.Spaces = append(out.Spaces, stat)
		for _, p := range ps {
			spacesOf[p] = append(spacesOf[p], i)
			if !known[p] {
				unknown[p] = true
			}
		}
	}
	if len(unknown) > 0 {
		ds.Add(stage, "", diag.KindImplicitActor, "%d participants are not declared actors; excluded from coverage", len(unknown))
	}
	if opts.Inclusiveness && len(types) == 0 {
		ds.Add(stage, "", diag.KindMissingValue, "no actor types known; inclusiveness adjustment skipped")
	}

	for _, a := range sortedKeys(spacesOf) {
		out.Actors = append(out.Actors, ActorStat{ActorID: a, Spaces: len(spacesOf[a])})
	}

	for _, group := range universe(roster, opts.Groups) {
		members := roster.Members(group)
		c := Coverage{Group: group, Actors: len(members), Diversity: 1}
		if len(members) == 0 {
			c.NA = true
			c.Diversity = 0
			ds.Add(stage, group, diag.KindEmptyGroup, "no known actors; dialogue coverage is 0")
			out.Coverage = append(out.Coverage, c)
			continue
		}
		touched := make(map[int]bool)
		for _, m := range members {
			if len(spacesOf[m]) > 0 {
				c.Participants++
			}
			for _, i := range spacesOf[m] {
				touched[i] = true
			}
		}
		c.Spaces = len(touched)
		c.Base = float64(c.Participants) / float64(c.Actors)
		c.Value = c.Base
		if opts.Inclusiveness && len(types) > 0 {
			c.Diversity = 0
			for i := range touched {
				c.Diversity += out.Spaces[i].Diversity
			}
			if len(touched) > 0 {
				c.Diversity /= float64(len(touched))
			}
			c.Value = clamp01(c.Base * c.Diversity)
		}
		out.Coverage = append(out.Coverage, c)
	}
	return diag.Ok(out, ds...)
}

// diversity returns the distinct types among participants and their share
// of all known types.
func diversity(participants []string, roster Roster, known int) (int, float64) {
	seen := make(map[string]bool)
	for _, p := range participants {
		if t := roster.ActorType(p); t != "" {
			seen[t] = true
		}
	}
	if known == 0 {
		return len(seen), 0
	}
	return len(seen), clamp01(float64(len(seen)) / float64(known))
}

func knownTypes(roster Roster) map[string]bool {
	types := make(map[string]bool)
	for _, id := range roster.Members(join.Overall) {
		if t := roster.ActorType(id); t != "" {
			types[t] = true
		}
	}
	return types
}

func universe(roster Roster, extra []string) []string {
	seen := map[string]bool{join.Overall: true}
	var groups []string
	for _, g := range append(roster.Groups(), extra...) {
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return append([]string{join.Overall}, groups...)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
