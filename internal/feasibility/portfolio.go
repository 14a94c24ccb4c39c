package feasibility

import (
	"sort"

	"github.com/papapumpkin/pares/internal/composite"
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/normalize"
)

// Component names weighted by portfolio scenarios.
const (
	CompImpact   = "impact_potential"
	CompLeverage = "leverage"
	CompEquity   = "equity_urgency"
	CompFeasible = "feasibility"
)

// PortfolioComponents lists every bundle component in tie-break order.
var PortfolioComponents = []string{CompImpact, CompLeverage, CompEquity, CompFeasible}

// DefaultPortfolioScenarios are used when PortfolioOptions.Scenarios is
// empty.
func DefaultPortfolioScenarios() []composite.Scenario {
	mk := func(name string, i, l, e, f float64) composite.Scenario {
		return composite.Scenario{Name: name, Weights: map[string]float64{
			CompImpact: i, CompLeverage: l, CompEquity: e, CompFeasible: f,
		}}
	}
	return []composite.Scenario{
		mk("balanced", 0.35, 0.25, 0.20, 0.20),
		mk("equity_first", 0.25, 0.20, 0.35, 0.20),
		mk("feasibility_first", 0.25, 0.20, 0.20, 0.35),
	}
}

// neutralLeverage stands in for a livelihood with no scored services.
const neutralLeverage = 0.5

// Candidate is a livelihood within one grupo proposed as an intervention
// bundle.
type Candidate struct {
	Group   string
	MdvID   string
	MdvName string
	// Impact is the livelihood's priority score within its grupo.
	Impact float64
	// Leverage blends the criticality of the services the livelihood uses
	// and the leverage of the ecosystems behind them.
	Leverage    float64
	HasLeverage bool
	Services    []string
	Ecosystems  []string
	// Threats are ordered by driver rank, strongest first.
	Threats []string
}

// PortfolioInputs carries the candidates and the grupo-level scores.
type PortfolioInputs struct {
	Candidates []Candidate
	// Equity maps grupo to its equity vulnerability index.
	Equity      map[string]float64
	Feasibility Result
}

// PortfolioOptions tunes BuildPortfolio.
type PortfolioOptions struct {
	Scenarios []composite.Scenario
	Primary   string
	// PerGroup bounds the bundles kept per grupo. Defaults to 5.
	PerGroup int
	// MaxThreats bounds the threats attached to a bundle. Defaults to 3.
	MaxThreats int
	TopN       int
	Tiers      TierPolicy
	Indicators []Indicator
	Parallel   bool
}

// Bundle is a ranked intervention bundle: one livelihood in one grupo with
// the services, ecosystems and threats it addresses.
type Bundle struct {
	ID      string
	Group   string
	MdvID   string
	MdvName string

	Impact       float64
	Leverage     float64
	Equity       float64
	Feasibility  float64
	ConflictRisk float64
	Score        float64

	Rank       int
	GroupRank  int
	Tier       string
	Downgraded bool
	Weakest    string

	Services   []string
	Ecosystems []string
	Threats    []string
}

// Coverage summarizes what the kept bundles of one scope address.
type Coverage struct {
	Group      string
	Candidates int
	Bundles    int
	Services   int
	Ecosystems int
	Threats    int
	MeanScore  float64
	Tiers      map[string]int
}

// BundleIndicator attaches a monitoring indicator to a bundle.
type BundleIndicator struct {
	BundleID  string
	Group     string
	Component string
	Indicator Indicator
}

// Portfolio is the output of BuildPortfolio.
type Portfolio struct {
	Primary     string
	Bundles     []Bundle
	Evaluation  composite.Evaluation
	Stability   composite.Stability
	Sensitivity []composite.Shift
	Coverage    []Coverage
	Indicators  []BundleIndicator
}

// BundleID identifies the bundle of livelihood mdv in group.
func BundleID(group, mdv string) string { return group + "/" + mdv }

// BuildPortfolio scores every candidate under every scenario. Impact and
// leverage are normalized within the grupo; equity urgency and
// feasibility are the grupo's own scores. The primary ranking keeps the
// best PerGroup bundles of each grupo, which are then tiered with the
// grupo's conflict risk feeding the gate.
func BuildPortfolio(in PortfolioInputs, opts PortfolioOptions) diag.Outcome[Portfolio] {
	var ds diag.List
	scenarios := opts.Scenarios
	if len(scenarios) == 0 {
		scenarios = DefaultPortfolioScenarios()
	}
	perGroup := opts.PerGroup
	if perGroup <= 0 {
		perGroup = 5
	}
	maxThreats := opts.MaxThreats
	if maxThreats <= 0 {
		maxThreats = 3
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = 10
	}

	cands := candidates(in.Candidates, &ds)
	groups := make([]string, len(cands))
	impactRaw := make([]float64, len(cands))
	leverageRaw := make([]float64, len(cands))
	noLeverage := 0
	for i, c := range cands {
		groups[i] = c.Group
		impactRaw[i] = c.Impact
		leverageRaw[i] = c.Leverage
		if !c.HasLeverage {
			leverageRaw[i] = neutralLeverage
			noLeverage++
		}
	}
	if noLeverage > 0 {
		ds.Add(stage, "", diag.KindMissingValue, "%d candidates have no scored services; leverage set to %.1f", noLeverage, neutralLeverage)
	}
	impact := normalize.ByGroup(CompImpact, groups, impactRaw).Unwrap(&ds)
	leverage := normalize.ByGroup(CompLeverage, groups, leverageRaw).Unwrap(&ds)

	equity, feasible, risk := groupScores(cands, in, &ds)
	components := make(map[string]composite.Scores, len(PortfolioComponents))
	for _, c := range PortfolioComponents {
		components[c] = composite.Scores{}
	}
	byID := make(map[string]int, len(cands))
	for i, c := range cands {
		id := BundleID(c.Group, c.MdvID)
		byID[id] = i
		components[CompImpact][id] = impact[i]
		components[CompLeverage][id] = leverage[i]
		components[CompEquity][id] = equity[c.Group]
		components[CompFeasible][id] = feasible[c.Group]
	}

	eval := composite.Evaluate(components, scenarios, composite.Options{Label: "portfolio", Parallel: opts.Parallel}).Unwrap(&ds)
	out := Portfolio{Evaluation: eval}
	primary, ok := pick(eval, opts.Primary)
	if !ok && opts.Primary != "" && len(eval.Rankings) > 0 {
		ds.Add(stage, "", diag.KindRejectedScenario, "primary portfolio scenario %q unavailable; using %q", opts.Primary, eval.Rankings[0].Scenario)
		primary, _ = pick(eval, "")
	}
	out.Primary = primary.Scenario

	kept := make(map[string]int)
	for _, e := range primary.Entries {
		c := cands[byID[e.EntityID]]
		if kept[c.Group] >= perGroup {
			continue
		}
		kept[c.Group]++
		b := Bundle{
			ID:           e.EntityID,
			Group:        c.Group,
			MdvID:        c.MdvID,
			MdvName:      c.MdvName,
			Impact:       e.Components[CompImpact],
			Leverage:     e.Components[CompLeverage],
			Equity:       e.Components[CompEquity],
			Feasibility:  e.Components[CompFeasible],
			ConflictRisk: risk[c.Group],
			Score:        e.Score,
			Rank:         len(out.Bundles) + 1,
			GroupRank:    kept[c.Group],
			Services:     c.Services,
			Ecosystems:   c.Ecosystems,
			Threats:      c.Threats,
		}
		if len(b.Threats) > maxThreats {
			b.Threats = b.Threats[:maxThreats]
		}
		b.Weakest = weakestOf(b)
		out.Bundles = append(out.Bundles, b)
	}

	items := make([]Placement, len(out.Bundles))
	for i, b := range out.Bundles {
		items[i] = Placement{ID: b.ID, Score: b.Score, ConflictRisk: b.ConflictRisk}
	}
	Place(items, opts.Tiers).Unwrap(&ds)
	for i := range out.Bundles {
		out.Bundles[i].Tier, out.Bundles[i].Downgraded = items[i].Tier, items[i].Downgraded
	}

	out.Stability = composite.TopNStability(eval.Rankings, topN)
	out.Sensitivity = composite.Sensitivity(eval.Rankings)
	out.Coverage = coverage(cands, out.Bundles)
	out.Indicators = bundleIndicators(out.Bundles, in.Feasibility, opts.Indicators)
	return diag.Ok(out, ds...)
}

// candidates drops OVERALL and repeated grupo × livelihood pairs and sorts
// the rest.
func candidates(in []Candidate, ds *diag.List) []Candidate {
	seen := make(map[string]bool, len(in))
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if c.Group == "" || c.Group == join.Overall || c.MdvID == "" {
			continue
		}
		id := BundleID(c.Group, c.MdvID)
		if seen[id] {
			ds.Add(stage, "", diag.KindDuplicateKey, "candidate %s repeated; first kept", id)
			continue
		}
		seen[id] = true
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].MdvID < out[j].MdvID
	})
	return out
}

// groupScores looks up equity urgency, feasibility and conflict risk for
// every candidate grupo. Absent scores and N/A feasibility count as 0.
func groupScores(cands []Candidate, in PortfolioInputs, ds *diag.List) (equity, feasible, risk map[string]float64) {
	equity = make(map[string]float64)
	feasible = make(map[string]float64)
	risk = make(map[string]float64)
	var noEquity, noFeasibility int
	for _, c := range cands {
		g := c.Group
		if _, done := equity[g]; done {
			continue
		}
		e, ok := in.Equity[g]
		if !ok {
			noEquity++
		}
		equity[g] = clamp01(e)
		f, ok := in.Feasibility.ScoreOf(g)
		if !ok || f.NA {
			noFeasibility++
			f = GroupScore{}
		}
		feasible[g] = f.Score
		risk[g] = f.ConflictRisk
	}
	if noEquity > 0 {
		ds.Add(stage, "", diag.KindMissingValue, "%d groups have no equity index; urgency counted as 0", noEquity)
	}
	if noFeasibility > 0 {
		ds.Add(stage, "", diag.KindMissingValue, "%d groups have no feasibility score; counted as 0", noFeasibility)
	}
	return equity, feasible, risk
}

// weakestOf returns the lowest bundle component; ties resolve in
// PortfolioComponents order.
func weakestOf(b Bundle) string {
	values := map[string]float64{CompImpact: b.Impact, CompLeverage: b.Leverage, CompEquity: b.Equity, CompFeasible: b.Feasibility}
	name := PortfolioComponents[0]
	for _, c := range PortfolioComponents[1:] {
		if values[c] < values[name] {
			name = c
		}
	}
	return name
}
