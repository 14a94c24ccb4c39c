// Package composite combines normalized component scores into weighted
// composite indices, one per weight scenario, and measures how much the
// resulting rankings depend on the choice of weights.
package composite

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/papapumpkin/pares/internal/diag"
)

// Tolerance bounds how far a scenario's weight sum may stray from 1.
const Tolerance = 1e-6

const stage = "composite"

// Scenario is a named set of component weights.
type Scenario struct {
	Name    string
	Weights map[string]float64
}

// Components returns the weighted component names, sorted.
func (s Scenario) Components() []string {
	names := make([]string, 0, len(s.Weights))
	for c := range s.Weights {
		names = append(names, c)
	}
	sort.Strings(names)
	return names
}

// Validate returns a ConfigError unless every weight is a finite
// non-negative number and the weights sum to 1 within Tolerance.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &diag.ConfigError{Reason: "scenario has no name"}
	}
	if len(s.Weights) == 0 {
		return &diag.ConfigError{Scenario: s.Name, Reason: "no weights"}
	}
	sum := 0.0
	for _, c := range s.Components() {
		w := s.Weights[c]
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return &diag.ConfigError{Scenario: s.Name, Reason: fmt.Sprintf("weight %s is not finite", c)}
		}
		if w < 0 {
			return &diag.ConfigError{Scenario: s.Name, Reason: fmt.Sprintf("weight %s is negative (%g)", c, w)}
		}
		sum += w
	}
	if math.Abs(sum-1) > Tolerance {
		return &diag.ConfigError{Scenario: s.Name, Reason: fmt.Sprintf("weights sum to %.9g, want 1", sum)}
	}
	return nil
}

// Score computes Σ weight × value over the scenario's components. Missing
// components contribute 0 and are returned in sorted order.
func (s Scenario) Score(values map[string]float64) (float64, []string) {
	var missing []string
	score := 0.0
	for _, c := range s.Components() {
		v, ok := values[c]
		if !ok {
			missing = append(missing, c)
			continue
		}
		score += s.Weights[c] * v
	}
	return clampUnit(score), missing
}

// Scores maps entity id to a normalized component value.
type Scores map[string]float64

// Entry is one ranked entity under one scenario.
type Entry struct {
	Rank       int
	EntityID   string
	Score      float64
	Components map[string]float64
}

// Ranking is every entity under one scenario, best first.
type Ranking struct {
	Scenario string
	Entries  []Entry
}

// Top returns the first n entries, or all of them when n exceeds the count.
func (r Ranking) Top(n int) []Entry {
	if n < 0 {
		n = 0
	}
	if n > len(r.Entries) {
		n = len(r.Entries)
	}
	return r.Entries[:n]
}

// Score returns the entity's score under this ranking's scenario.
func (r Ranking) Score(entityID string) (float64, bool) {
	for _, e := range r.Entries {
		if e.EntityID == entityID {
			return e.Score, true
		}
	}
	return 0, false
}

// Rejection records a scenario that failed validation.
type Rejection struct {
	Scenario string
	Err      error
}

// Evaluation is the result of scoring every accepted scenario.
type Evaluation struct {
	Entities []string
	Rankings []Ranking
	Rejected []Rejection
}

// Ranking returns the ranking for the named scenario.
func (e Evaluation) Ranking(name string) (Ranking, bool) {
	for _, r := range e.Rankings {
		if r.Scenario == name {
			return r, true
		}
	}
	return Ranking{}, false
}

// Options tunes Evaluate.
type Options struct {
	// Label names the index in diagnostics.
	Label string
	// Parallel scores scenarios concurrently. Results are identical to
	// sequential evaluation.
	Parallel bool
}

// Evaluate scores every entity under every valid scenario. Invalid
// scenarios are rejected individually; the rest still compute. A component
// value missing for an entity counts as 0 and is reported once per
// component. Rankings follow the order of scenarios.
func Evaluate(components map[string]Scores, scenarios []Scenario, opts Options) diag.Outcome[Evaluation] {
	var ds diag.List
	label := opts.Label

	entities := entityUniverse(components)
	eval := Evaluation{Entities: entities}

	var accepted []Scenario
	for _, s := range scenarios {
		if err := s.Validate(); err != nil {
			eval.Rejected = append(eval.Rejected, Rejection{Scenario: s.Name, Err: err})
			ds.Add(stage, label, diag.KindRejectedScenario, "%v", err)
			continue
		}
		accepted = append(accepted, s)
	}

	weighted := make(map[string]bool)
	for _, s := range accepted {
		for _, c := range s.Components() {
			if _, ok := components[c]; !ok && !weighted[c] {
				ds.Add(stage, label, diag.KindMissingComponent, "component %s has no scores; counted as 0 for every entity", c)
			}
			weighted[c] = true
		}
	}
	for _, c := range sortedKeys(weighted) {
		scores, ok := components[c]
		if !ok {
			continue
		}
		var absent []string
		for _, e := range entities {
			if _, ok := scores[e]; !ok {
				absent = append(absent, e)
			}
		}
		if len(absent) > 0 {
			ds.Add(stage, label, diag.KindMissingValue, "component %s missing for %d entities (%s); counted as 0", c, len(absent), abbreviate(absent, 5))
		}
	}

	eval.Rankings = make([]Ranking, len(accepted))
	if opts.Parallel && len(accepted) > 1 {
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i, s := range accepted {
			g.Go(func() error {
				eval.Rankings[i] = rank(s, entities, components)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, s := range accepted {
			eval.Rankings[i] = rank(s, entities, components)
		}
	}
	return diag.Ok(eval, ds...)
}

func rank(s Scenario, entities []string, components map[string]Scores) Ranking {
	entries := make([]Entry, 0, len(entities))
	for _, e := range entities {
		values := make(map[string]float64, len(s.Weights))
		for _, c := range s.Components() {
			if v, ok := components[c][e]; ok {
				values[c] = v
			}
		}
		score, _ := s.Score(values)
		for _, c := range s.Components() {
			if _, ok := values[c]; !ok {
				values[c] = 0
			}
		}
		entries = append(entries, Entry{EntityID: e, Score: score, Components: values})
	}
	SortEntries(entries)
	return Ranking{Scenario: s.Name, Entries: entries}
}

// SortEntries orders entries by descending score, ties by ascending id,
// and assigns 1-based ranks.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].EntityID < entries[j].EntityID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

func entityUniverse(components map[string]Scores) []string {
	set := make(map[string]bool)
	for _, scores := range components {
		for e := range scores {
			set[e] = true
		}
	}
	return sortedKeys(set)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func abbreviate(items []string, max int) string {
	if len(items) <= max {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:max], ", ") + fmt.Sprintf(", +%d more", len(items)-max)
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
