package feasibility

import (
	"sort"

	"github.com/papapumpkin/pares/internal/join"
)

// coverage counts, per grupo and OVERALL, the candidates, the kept
// bundles and the distinct services, ecosystems and threats they address.
func coverage(cands []Candidate, bundles []Bundle) []Coverage {
	type agg struct {
		Coverage
		services, ecosystems, threats map[string]bool
		sum                           float64
	}
	aggs := make(map[string]*agg)
	get := func(g string) *agg {
		a := aggs[g]
		if a == nil {
			a = &agg{
				Coverage: Coverage{Group: g, Tiers: make(map[string]int)},
				services: map[string]bool{}, ecosystems: map[string]bool{}, threats: map[string]bool{},
			}
			aggs[g] = a
		}
		return a
	}
	for _, c := range cands {
		get(join.Overall).Candidates++
		get(c.Group).Candidates++
	}
	for _, b := range bundles {
		for _, a := range []*agg{get(join.Overall), get(b.Group)} {
			a.Bundles++
			a.sum += b.Score
			a.Tiers[b.Tier]++
			for _, s := range b.Services {
				a.services[s] = true
			}
			for _, e := range b.Ecosystems {
				a.ecosystems[e] = true
			}
			for _, t := range b.Threats {
				a.threats[t] = true
			}
		}
	}
	out := make([]Coverage, 0, len(aggs))
	for _, a := range aggs {
		c := a.Coverage
		c.Services, c.Ecosystems, c.Threats = len(a.services), len(a.ecosystems), len(a.threats)
		if c.Bundles > 0 {
			c.MeanScore = a.sum / float64(c.Bundles)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if oi, oj := out[i].Group == join.Overall, out[j].Group == join.Overall; oi != oj {
			return oi
		}
		return out[i].Group < out[j].Group
	})
	return out
}

// bundleIndicators targets each bundle's weakest component. A bundle held
// back by feasibility gets the indicators of its grupo's weakest
// feasibility component instead.
func bundleIndicators(bundles []Bundle, feas Result, indicators []Indicator) []BundleIndicator {
	byComponent := make(map[string][]Indicator)
	for _, ind := range indicators {
		byComponent[ind.Component] = append(byComponent[ind.Component], ind)
	}
	var out []BundleIndicator
	for _, b := range bundles {
		comp := b.Weakest
		if comp == CompFeasible {
			if g, ok := feas.ScoreOf(b.Group); ok {
				comp = g.Weakest
			}
		}
		for _, ind := range byComponent[comp] {
			out = append(out, BundleIndicator{BundleID: b.ID, Group: b.Group, Component: comp, Indicator: ind})
		}
	}
	return out
}
