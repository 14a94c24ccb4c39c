package composite

import (
	"strings"

	"github.com/papapumpkin/pares/internal/table"
)

// RankingTables renders one table per ranking in eval, named prefix +
// scenario. The listed components are emitted alongside the score.
func RankingTables(prefix string, eval Evaluation, components []string) []*table.Table {
	out := make([]*table.Table, 0, len(eval.Rankings))
	for _, r := range eval.Rankings {
		cols := append([]string{"rank", "entity_id", "score"}, components...)
		b := table.NewBuilder(prefix+r.Scenario, cols...)
		for _, e := range r.Entries {
			row := table.Row{"rank": e.Rank, "entity_id": e.EntityID, "score": e.Score}
			for _, c := range components {
				row[c] = e.Components[c]
			}
			b.Add(row)
		}
		out = append(out, b.Build())
	}
	return out
}

// StabilityTable renders per-entity rank shifts with the Top-N stability
// of the scenario set repeated on every row.
func StabilityTable(name string, st Stability, shifts []Shift) *table.Table {
	common := make(map[string]bool, len(st.Common))
	for _, id := range st.Common {
		common[id] = true
	}
	b := table.NewBuilder(name,
		"entity_id", "best_rank", "worst_rank", "rank_spread", "mean_score",
		"in_common_top_n", "top_n", "stability", "scenarios")
	for _, s := range shifts {
		b.Add(table.Row{
			"entity_id":       s.EntityID,
			"best_rank":       s.BestRank,
			"worst_rank":      s.WorstRank,
			"rank_spread":     s.Spread,
			"mean_score":      s.MeanScore,
			"in_common_top_n": common[s.EntityID],
			"top_n":           st.N,
			"stability":       st.Fraction,
			"scenarios":       strings.Join(st.Scenarios, ","),
		})
	}
	return b.Build()
}
