package pipeline

import (
	"github.com/papapumpkin/pares/internal/equity"
	"github.com/papapumpkin/pares/internal/feasibility"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/priority"
)

// Leverage blends mean service criticality with mean ecosystem leverage.
const (
	sciShare = 0.7
	eliShare = 0.3
)

// capacityGaps maps every concrete grupo with capacity responses to its gap.
func capacityGaps(r priority.Result) map[string]float64 {
	out := make(map[string]float64, len(r.Scopes))
	for _, sc := range r.Scopes {
		if sc.Group == join.Overall {
			continue
		}
		if gap, ok := sc.CapacityGap(); ok {
			out[sc.Group] = gap
		}
	}
	return out
}

func equityIndex(r equity.Result, groups []string) map[string]float64 {
	out := make(map[string]float64, len(groups))
	for _, g := range groups {
		if v, ok := r.EVI(g); ok {
			out[g] = v
		}
	}
	return out
}

// candidates proposes one bundle per livelihood ranked in a grupo's first
// priority scenario. Leverage comes from the criticality of the services
// the livelihood uses and the ecosystems providing them, within the same
// grupo; threats are its priority drivers in rank order.
func candidates(r *Result) []feasibility.Candidate {
	threats := make(map[[2]string][]string)
	for _, d := range r.Priority.Drivers {
		k := [2]string{d.Group, d.MdvID}
		threats[k] = append(threats[k], d.ThreatID)
	}

	var out []feasibility.Candidate
	for _, sc := range r.Priority.Scopes {
		if sc.Group == join.Overall || len(sc.Evaluation.Rankings) == 0 {
			continue
		}
		names := make(map[string]string, len(sc.Livelihoods))
		for _, l := range sc.Livelihoods {
			names[l.MdvID] = l.Name
		}
		for _, e := range sc.Evaluation.Rankings[0].Entries {
			c := feasibility.Candidate{
				Group:    sc.Group,
				MdvID:    e.EntityID,
				MdvName:  names[e.EntityID],
				Impact:   e.Score,
				Services: r.Criticality.ServicesOf[e.EntityID],
				Threats:  threats[[2]string{sc.Group, e.EntityID}],
			}
			c.Leverage, c.Ecosystems, c.HasLeverage = leverage(r, sc.Group, c.Services)
			out = append(out, c)
		}
	}
	return out
}

func leverage(r *Result, group string, services []string) (float64, []string, bool) {
	var sciSum, eliSum float64
	var sciN, eliN int
	seen := make(map[string]bool)
	var ecosystems []string
	for _, s := range services {
		if v, ok := r.Criticality.SCI(group, s); ok {
			sciSum += v
			sciN++
		}
		for _, eco := range r.Criticality.EcosystemsOf[s] {
			if seen[eco] {
				continue
			}
			seen[eco] = true
			ecosystems = append(ecosystems, eco)
			if v, ok := r.Criticality.ELI(group, eco); ok {
				eliSum += v
				eliN++
			}
		}
	}
	if sciN == 0 {
		return 0, ecosystems, false
	}
	sci := sciSum / float64(sciN)
	if eliN == 0 {
		return sci, ecosystems, true
	}
	return sciShare*sci + eliShare*eliSum/float64(eliN), ecosystems, true
}
