// Package feasibility composes Network Strength, Dialogue Coverage and
// conflict safety (1 - Conflict Risk) into the Feasibility index of every
// group, ranks the groups per weight scenario, tiers them and attaches
// monitoring indicators.
package feasibility

import (
	"sort"

	"github.com/papapumpkin/pares/internal/composite"
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
)

const stage = "feasibility"

// Component names weighted by feasibility scenarios.
const (
	CompNetwork  = "network_strength"
	CompDialogue = "dialogue_coverage"
	CompSafety   = "conflict_safety"
)

// DefaultScenario is the reference weighting 0.35 / 0.25 / 0.40.
func DefaultScenario() composite.Scenario {
	return composite.Scenario{Name: "base", Weights: map[string]float64{
		CompNetwork:  0.35,
		CompDialogue: 0.25,
		CompSafety:   0.40,
	}}
}

// Inputs are the per-group component values. Maps are keyed by grupo and
// may hold OVERALL; a group absent from a map scores 0 for that component.
type Inputs struct {
	Groups   []string
	Strength map[string]float64
	Coverage map[string]float64
	Risk     map[string]float64
	// NA marks groups with neither network nor dialogue data. They are
	// kept with zero scores but left out of rankings and tiers.
	NA map[string]bool
}

// Indicator is a monitoring indicator template.
type Indicator struct {
	ID        string
	Name      string
	Type      string
	Unit      string
	Frequency string
	// Component is the feasibility component the indicator tracks.
	Component string
}

// Options tunes Compose.
type Options struct {
	// Scenarios defaults to DefaultScenario when empty.
	Scenarios []composite.Scenario
	// Primary names the scenario used for tiers; defaults to the first
	// accepted scenario.
	Primary    string
	TopN       int
	Tiers      TierPolicy
	Indicators []Indicator
	Parallel   bool
}

// GroupScore is one group's feasibility with its components retained.
type GroupScore struct {
	Group            string
	NetworkStrength  float64
	DialogueCoverage float64
	ConflictRisk     float64
	Score            float64
	// Rank is 0 for OVERALL, which is scored but not ranked.
	Rank       int
	Tier       string
	Downgraded bool
	// Weakest is the component with the lowest value.
	Weakest string
	// NA is set for a group with no network or dialogue data; its Score
	// is 0 and its Tier is TierNoData.
	NA bool
}

// MonitoringItem pairs a group with an indicator tracking its weakest
// component.
type MonitoringItem struct {
	Group     string
	Component string
	Indicator Indicator
}

// Result is the output of Compose.
type Result struct {
	Primary     string
	Groups      []GroupScore
	Evaluation  composite.Evaluation
	Stability   composite.Stability
	Sensitivity []composite.Shift
	Monitoring  []MonitoringItem
}

// ScoreOf returns the primary-scenario feasibility of group.
func (r Result) ScoreOf(group string) (GroupScore, bool) {
	for _, g := range r.Groups {
		if g.Group == group {
			return g, true
		}
	}
	return GroupScore{}, false
}

// Compose scores every group, OVERALL included, under every scenario.
// Concrete groups are ranked, except N/A groups, which follow the ranked
// ones with zero scores.
func Compose(in Inputs, opts Options) diag.Outcome[Result] {
	var ds diag.List
	scenarios := opts.Scenarios
	if len(scenarios) == 0 {
		scenarios = []composite.Scenario{DefaultScenario()}
	}

	groups := concrete(in.Groups)
	components := map[string]composite.Scores{
		CompNetwork:  {},
		CompDialogue: {},
		CompSafety:   {},
	}
	var na []string
	for _, g := range groups {
		if in.NA[g] {
			na = append(na, g)
			continue
		}
		components[CompNetwork][g] = in.Strength[g]
		components[CompDialogue][g] = in.Coverage[g]
		components[CompSafety][g] = 1 - clamp01(in.Risk[g])
	}

	eval := composite.Evaluate(components, scenarios, composite.Options{Label: stage, Parallel: opts.Parallel}).Unwrap(&ds)
	out := Result{Evaluation: eval}
	if len(eval.Rankings) == 0 {
		ds.Add(stage, "", diag.KindRejectedScenario, "no valid feasibility scenario; groups are unscored")
	}

	primary, ok := pick(eval, opts.Primary)
	if !ok && opts.Primary != "" && len(eval.Rankings) > 0 {
		ds.Add(stage, "", diag.KindRejectedScenario, "primary scenario %q unavailable; using %q", opts.Primary, eval.Rankings[0].Scenario)
		primary, ok = pick(eval, "")
	}
	out.Primary = primary.Scenario

	overall := GroupScore{
		Group:            join.Overall,
		NetworkStrength:  in.Strength[join.Overall],
		DialogueCoverage: in.Coverage[join.Overall],
		ConflictRisk:     clamp01(in.Risk[join.Overall]),
	}
	if ok {
		var s composite.Scenario
		for _, sc := range scenarios {
			if sc.Name == primary.Scenario {
				s = sc
			}
		}
		overall.Score, _ = s.Score(map[string]float64{
			CompNetwork:  overall.NetworkStrength,
			CompDialogue: overall.DialogueCoverage,
			CompSafety:   1 - overall.ConflictRisk,
		})
	}
	overall.Weakest = weakest(overall)
	out.Groups = append(out.Groups, overall)

	ranked := make([]GroupScore, 0, len(primary.Entries))
	for _, e := range primary.Entries {
		g := GroupScore{
			Group:            e.EntityID,
			NetworkStrength:  e.Components[CompNetwork],
			DialogueCoverage: e.Components[CompDialogue],
			ConflictRisk:     1 - e.Components[CompSafety],
			Score:            e.Score,
			Rank:             e.Rank,
		}
		g.Weakest = weakest(g)
		ranked = append(ranked, g)
	}
	AssignTiers(ranked, opts.Tiers).Unwrap(&ds)
	out.Groups = append(out.Groups, ranked...)
	for _, g := range na {
		ds.Add(stage, g, diag.KindEmptyGroup, "no network or dialogue data; marked N/A")
		out.Groups = append(out.Groups, GroupScore{Group: g, ConflictRisk: clamp01(in.Risk[g]), Tier: TierNoData, NA: true})
	}

	topN := opts.TopN
	if topN <= 0 {
		topN = 3
	}
	out.Stability = composite.TopNStability(eval.Rankings, topN)
	out.Sensitivity = composite.Sensitivity(eval.Rankings)
	out.Monitoring = plan(ranked, opts.Indicators)
	return diag.Ok(out, ds...)
}

func pick(eval composite.Evaluation, name string) (composite.Ranking, bool) {
	if name != "" {
		return eval.Ranking(name)
	}
	if len(eval.Rankings) == 0 {
		return composite.Ranking{}, false
	}
	return eval.Rankings[0], true
}

// weakest returns the component with the lowest value; ties resolve in
// the order network, dialogue, safety.
func weakest(g GroupScore) string {
	name, low := CompNetwork, g.NetworkStrength
	if g.DialogueCoverage < low {
		name, low = CompDialogue, g.DialogueCoverage
	}
	if 1-g.ConflictRisk < low {
		name = CompSafety
	}
	return name
}

func plan(groups []GroupScore, indicators []Indicator) []MonitoringItem {
	byComponent := make(map[string][]Indicator)
	for _, ind := range indicators {
		byComponent[ind.Component] = append(byComponent[ind.Component], ind)
	}
	var out []MonitoringItem
	for _, g := range groups {
		for _, ind := range byComponent[g.Weakest] {
			out = append(out, MonitoringItem{Group: g.Group, Component: g.Weakest, Indicator: ind})
		}
	}
	return out
}

func concrete(groups []string) []string {
	seen := make(map[string]bool, len(groups))
	var out []string
	for _, g := range groups {
		if g == "" || g == join.Overall || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	sort.Strings(out)
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
