package composite

import "sort"

// Stability measures rank concordance across scenarios: the share of the
// Top-N slots filled by entities that are in the Top-N under every
// scenario.
type Stability struct {
	N         int
	Scenarios []string
	Common    []string
	Fraction  float64
}

// TopNStability computes Stability for the given rankings. N is capped at
// the size of the smallest ranking so that a short entity list can still
// reach 1. No rankings, or N ≤ 0, yields a zero fraction.
func TopNStability(rankings []Ranking, n int) Stability {
	st := Stability{N: n}
	if len(rankings) == 0 || n <= 0 {
		return st
	}
	for _, r := range rankings {
		st.Scenarios = append(st.Scenarios, r.Scenario)
		if len(r.Entries) < st.N {
			st.N = len(r.Entries)
		}
	}
	if st.N == 0 {
		return st
	}

	counts := make(map[string]int)
	for _, r := range rankings {
		for _, e := range r.Top(st.N) {
			counts[e.EntityID]++
		}
	}
	for id, c := range counts {
		if c == len(rankings) {
			st.Common = append(st.Common, id)
		}
	}
	sort.Strings(st.Common)
	st.Fraction = float64(len(st.Common)) / float64(st.N)
	return st
}

// Shift describes how an entity's rank moves across scenarios.
type Shift struct {
	EntityID  string
	BestRank  int
	WorstRank int
	Spread    int
	MeanScore float64
}

// Sensitivity reports, for every entity, its best and worst rank across
// the rankings. Output is sorted by spread descending, then entity id.
func Sensitivity(rankings []Ranking) []Shift {
	byID := make(map[string]*Shift)
	var order []string
	for _, r := range rankings {
		for _, e := range r.Entries {
			s, ok := byID[e.EntityID]
			if !ok {
				s = &Shift{EntityID: e.EntityID, BestRank: e.Rank, WorstRank: e.Rank}
				byID[e.EntityID] = s
				order = append(order, e.EntityID)
			}
			if e.Rank < s.BestRank {
				s.BestRank = e.Rank
			}
			if e.Rank > s.WorstRank {
				s.WorstRank = e.Rank
			}
			s.MeanScore += e.Score / float64(len(rankings))
		}
	}
	out := make([]Shift, 0, len(order))
	for _, id := range order {
		s := byID[id]
		s.Spread = s.WorstRank - s.BestRank
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Spread != out[j].Spread {
			return out[i].Spread > out[j].Spread
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}
