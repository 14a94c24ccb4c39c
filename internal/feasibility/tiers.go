package feasibility

import (
	"math"
	"sort"

	"github.com/papapumpkin/pares/internal/diag"
)

// Tier labels, best first.
const (
	TierDoNow   = "Do now"
	TierDoNext  = "Do next"
	TierDoLater = "Do later"
	// TierNoData is given to N/A groups instead of a placement.
	TierNoData = "No data"
)

var tierOrder = []string{TierDoNow, TierDoNext, TierDoLater}

// TierPolicy controls tier assignment and the conflict gate.
type TierPolicy struct {
	// TopPct is the share of groups in the top tier; the same share of the
	// lowest scores marks the bottom tier. Defaults to 0.33.
	TopPct float64
	// Gate enables the conflict gate.
	Gate bool
	// MaxConflictRisk is the highest risk a Do now group may carry.
	// Defaults to 0.70.
	MaxConflictRisk float64
	// DowngradeSteps is how many tiers a gated group drops. Defaults to 1.
	DowngradeSteps int
}

func (p TierPolicy) withDefaults() TierPolicy {
	if p.TopPct <= 0 || p.TopPct >= 1 {
		p.TopPct = 0.33
	}
	if p.MaxConflictRisk <= 0 {
		p.MaxConflictRisk = 0.70
	}
	if p.DowngradeSteps <= 0 {
		p.DowngradeSteps = 1
	}
	return p
}

// Placement is one scored item to tier. Groups and bundles are both
// placed through it.
type Placement struct {
	ID           string
	Score        float64
	ConflictRisk float64
	Tier         string
	Downgraded   bool
}

// AssignTiers sets Tier on every group through Place.
func AssignTiers(groups []GroupScore, p TierPolicy) diag.Outcome[int] {
	items := make([]Placement, len(groups))
	for i, g := range groups {
		items[i] = Placement{ID: g.Group, Score: g.Score, ConflictRisk: g.ConflictRisk}
	}
	out := Place(items, p)
	for i := range groups {
		groups[i].Tier, groups[i].Downgraded = items[i].Tier, items[i].Downgraded
	}
	return out
}

// Place sets Tier from score quantiles: scores at or above the (1-TopPct)
// quantile are Do now, those at or above the TopPct quantile Do next, the
// rest Do later. With the gate enabled, a Do now item whose conflict risk
// exceeds MaxConflictRisk is downgraded. The outcome value is the number
// of downgrades.
func Place(items []Placement, p TierPolicy) diag.Outcome[int] {
	var ds diag.List
	if len(items) == 0 {
		return diag.Ok(0)
	}
	p = p.withDefaults()

	scores := make([]float64, len(items))
	for i, it := range items {
		scores[i] = it.Score
	}
	sort.Float64s(scores)
	high := Quantile(scores, 1-p.TopPct)
	low := Quantile(scores, p.TopPct)

	downgraded := 0
	for i := range items {
		it := &items[i]
		switch {
		case it.Score >= high:
			it.Tier = TierDoNow
		case it.Score >= low:
			it.Tier = TierDoNext
		default:
			it.Tier = TierDoLater
		}
		if p.Gate && it.Tier == TierDoNow && it.ConflictRisk > p.MaxConflictRisk {
			idx := min(p.DowngradeSteps, len(tierOrder)-1)
			it.Tier = tierOrder[idx]
			it.Downgraded = true
			downgraded++
			ds.Add(stage, it.ID, diag.KindTierDowngrade, "conflict risk %.2f exceeds %.2f; moved to %s", it.ConflictRisk, p.MaxConflictRisk, it.Tier)
		}
	}
	return diag.Ok(downgraded, ds...)
}

// Quantile returns the q-quantile of sorted values with linear
// interpolation between closest ranks.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := math.Floor(pos)
	frac := pos - lo
	i := int(lo)
	if i+1 >= n {
		return sorted[n-1]
	}
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}
