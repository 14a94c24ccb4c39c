package feasibility

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
)

func portfolioInputs() PortfolioInputs {
	return PortfolioInputs{
		Candidates: []Candidate{
			{Group: "g1", MdvID: "m1", MdvName: "Cafe", Impact: 0.9, Leverage: 0.8, HasLeverage: true,
				Services: []string{"s1", "s2"}, Ecosystems: []string{"bosque"}, Threats: []string{"t1", "t2", "t3", "t4"}},
			{Group: "g1", MdvID: "m2", Impact: 0.3, Leverage: 0.2, HasLeverage: true, Services: []string{"s2"}},
			{Group: "g2", MdvID: "m3", Impact: 0.5, Threats: []string{"t1"}},
			{Group: "g1", MdvID: "m1", Impact: 0.1},
			{Group: join.Overall, MdvID: "m1", Impact: 1},
		},
		Equity:      map[string]float64{"g1": 1, "g2": 0.4},
		Feasibility: Compose(inputs(), Options{}).Value,
	}
}

func bundleIDs(p Portfolio) []string {
	var out []string
	for _, b := range p.Bundles {
		out = append(out, b.ID)
	}
	return out
}

func TestBuildPortfolio(t *testing.T) {
	t.Parallel()
	out := BuildPortfolio(portfolioInputs(), PortfolioOptions{})
	p := out.Value

	if p.Primary != "balanced" {
		t.Errorf("primary = %q, want balanced", p.Primary)
	}
	if diff := cmp.Diff([]string{"g1/m1", "g1/m2", "g2/m3"}, bundleIDs(p)); diff != "" {
		t.Fatalf("bundles (-want +got):\n%s", diff)
	}
	b := p.Bundles[0]
	if want := 0.35 + 0.25 + 0.20 + 0.20*0.595; !approx(b.Score, want) {
		t.Errorf("g1/m1 score = %v, want %v", b.Score, want)
	}
	if b.Impact != 1 || b.Leverage != 1 || !approx(b.ConflictRisk, 0.2) || b.Weakest != CompFeasible {
		t.Errorf("g1/m1 = %+v", b)
	}
	if diff := cmp.Diff([]string{"t1", "t2", "t3"}, b.Threats); diff != "" {
		t.Errorf("threats not capped (-want +got):\n%s", diff)
	}
	if m3 := p.Bundles[2]; !approx(m3.Score, 0.20*0.4+0.20*0.34) || m3.GroupRank != 1 {
		t.Errorf("g2/m3 = %+v", m3)
	}

	tiers := map[string]string{}
	for _, b := range p.Bundles {
		tiers[b.ID] = b.Tier
	}
	want := map[string]string{"g1/m1": TierDoNow, "g1/m2": TierDoNext, "g2/m3": TierDoLater}
	if diff := cmp.Diff(want, tiers); diff != "" {
		t.Errorf("tiers (-want +got):\n%s", diff)
	}
	if got := out.Diagnostics.Count(diag.KindDuplicateKey); got != 1 {
		t.Errorf("duplicate diagnostics = %d, want 1", got)
	}
	if got := out.Diagnostics.Count(diag.KindMissingValue); got != 1 {
		t.Errorf("missing-value diagnostics = %d, want 1 for the candidate without leverage", got)
	}
}

func TestBuildPortfolioPerGroupCap(t *testing.T) {
	t.Parallel()
	p := BuildPortfolio(portfolioInputs(), PortfolioOptions{PerGroup: 1}).Value
	if diff := cmp.Diff([]string{"g1/m1", "g2/m3"}, bundleIDs(p)); diff != "" {
		t.Errorf("bundles (-want +got):\n%s", diff)
	}
	if p.Bundles[1].Rank != 2 || p.Bundles[1].GroupRank != 1 {
		t.Errorf("second bundle = %+v", p.Bundles[1])
	}
	if got := len(p.RankingTables()); got != 3 {
		t.Errorf("ranking tables = %d, want 3", got)
	}
	if got := p.RankingTables()[0].Len(); got != 3 {
		t.Errorf("ranking rows = %d, want every candidate", got)
	}
}

func TestBuildPortfolioConflictGate(t *testing.T) {
	t.Parallel()
	out := BuildPortfolio(portfolioInputs(), PortfolioOptions{Tiers: TierPolicy{Gate: true, MaxConflictRisk: 0.1}})
	b := out.Value.Bundles[0]
	if b.Tier != TierDoNext || !b.Downgraded {
		t.Errorf("g1/m1 = %+v, want downgraded to Do next", b)
	}
	if out.Diagnostics.Count(diag.KindTierDowngrade) != 1 {
		t.Errorf("diagnostics = %v", out.Diagnostics)
	}
}

func TestPortfolioCoverageAndEvidence(t *testing.T) {
	t.Parallel()
	p := BuildPortfolio(portfolioInputs(), PortfolioOptions{}).Value
	overall := p.Coverage[0]
	if overall.Group != join.Overall || overall.Candidates != 3 || overall.Bundles != 3 ||
		overall.Services != 2 || overall.Ecosystems != 1 || overall.Threats != 3 || overall.Tiers[TierDoNow] != 1 {
		t.Errorf("OVERALL coverage = %+v", overall)
	}
	if g1 := p.Coverage[1]; g1.Group != "g1" || g1.Bundles != 2 || !approx(g1.MeanScore, (0.919+0.319)/2) {
		t.Errorf("g1 coverage = %+v", g1)
	}
	if got := p.EvidenceTable().Len(); got != 8 {
		t.Errorf("evidence rows = %d, want 8", got)
	}
	cov := p.CoverageTable()
	if cov.Len() != 3 || !cov.HasColumn("n_do_now") {
		t.Errorf("coverage table: %d rows, columns %v", cov.Len(), cov.Columns())
	}
	if p.BundleTable().Len() != 3 {
		t.Errorf("bundle rows = %d", p.BundleTable().Len())
	}
}

func TestBundleIndicators(t *testing.T) {
	t.Parallel()
	indicators := []Indicator{
		{ID: "IND-1", Component: CompDialogue},
		{ID: "IND-3", Component: CompImpact},
	}
	p := BuildPortfolio(portfolioInputs(), PortfolioOptions{Indicators: indicators}).Value
	got := map[string]string{}
	for _, m := range p.Indicators {
		got[m.BundleID] = m.Indicator.ID
	}
	// g1/m1 is held back by feasibility, whose weakest g1 component is dialogue.
	want := map[string]string{"g1/m1": "IND-1", "g1/m2": "IND-3", "g2/m3": "IND-3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("indicators (-want +got):\n%s", diff)
	}
	if p.IndicatorTable().Len() != 3 {
		t.Errorf("indicator rows = %d", p.IndicatorTable().Len())
	}
}

func TestBuildPortfolioEmpty(t *testing.T) {
	t.Parallel()
	out := BuildPortfolio(PortfolioInputs{}, PortfolioOptions{})
	if len(out.Value.Bundles) != 0 || len(out.Value.Coverage) != 0 {
		t.Errorf("want an empty portfolio, got %+v", out.Value)
	}
}

func TestPlaceKeepsIDsInDiagnostics(t *testing.T) {
	t.Parallel()
	items := []Placement{{ID: "x", Score: 1, ConflictRisk: 0.9}, {ID: "y", Score: 0}}
	res := Place(items, TierPolicy{Gate: true})
	if res.Value != 1 || items[0].Tier != TierDoNext || items[1].Tier != TierDoLater {
		t.Errorf("placements = %+v", items)
	}
	if d := res.Diagnostics[0]; d.Table != "x" {
		t.Errorf("diagnostic = %+v, want table x", d)
	}
}

func TestPortfolioIgnoresNAFeasibility(t *testing.T) {
	t.Parallel()
	in := PortfolioInputs{
		Candidates: []Candidate{
			{Group: "g1", MdvID: "m1", Impact: 0.9, Leverage: 0.8, HasLeverage: true},
			{Group: "empty", MdvID: "m9", Impact: 0.5, Leverage: 0.5, HasLeverage: true},
		},
		Equity:      map[string]float64{"g1": 1, "empty": 1},
		Feasibility: Compose(inputs(), Options{}).Value,
	}
	out := BuildPortfolio(in, PortfolioOptions{})
	var got *Bundle
	for i, b := range out.Value.Bundles {
		if b.ID == "empty/m9" {
			got = &out.Value.Bundles[i]
		}
	}
	if got == nil {
		t.Fatalf("bundles = %v, want empty/m9 kept", bundleIDs(out.Value))
	}
	if got.Feasibility != 0 || got.ConflictRisk != 0 {
		t.Errorf("empty/m9 = %+v, want zero feasibility", *got)
	}
	if out.Diagnostics.Count(diag.KindMissingValue) != 1 {
		t.Errorf("want one missing-value diagnostic for the N/A group, got %v", out.Diagnostics)
	}
}
