package network

import (
	"sort"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/table"
)

// Output table names of the actor snapshot.
const (
	TableActorsOverall = "actors_overall"
	TableActorsByGrupo = "actors_by_grupo"
)

// Mention summarizes how an actor was reported within one scope.
type Mention struct {
	Group    string
	ActorID  string
	Type     string
	Mentions int
	// PowerMean and InterestMean are nil when no row carried a number.
	PowerMean    *float64
	InterestMean *float64
	// Groups counts the distinct grupo values the actor was reported in.
	Groups int
}

type mentionAgg struct {
	typ             string
	n               int
	power, interest mean
	groups          map[string]bool
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m mean) ptr() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

// Snapshot counts actor mentions in the (joined) actor table, OVERALL and
// per grupo, with mean power and interest. Rows without a grupo only count
// toward OVERALL.
func Snapshot(actors *table.Table) diag.Outcome[[]Mention] {
	var ds diag.List
	if actors == nil {
		return diag.Ok[[]Mention](nil)
	}
	if err := actors.Require(ColActorID); err != nil {
		ds.Add(stage, TableActors, diag.KindMissingColumn, "%v", err)
		return diag.Ok[[]Mention](nil, ds...)
	}

	type key struct{ group, actor string }
	aggs := make(map[key]*mentionAgg)
	get := func(k key) *mentionAgg {
		a, ok := aggs[k]
		if !ok {
			a = &mentionAgg{groups: make(map[string]bool)}
			aggs[k] = a
		}
		return a
	}
	actors.Each(func(_ int, r table.Row) {
		id, ok := r.Str(ColActorID)
		if !ok {
			return
		}
		grupo, hasGroup := r.Str(join.ColGrupo)
		scopes := []key{{join.Overall, id}}
		if hasGroup {
			scopes = append(scopes, key{grupo, id})
		}
		for _, k := range scopes {
			a := get(k)
			a.n++
			if t, ok := r.Str(ColActorType); ok && a.typ == "" {
				a.typ = t
			}
			if p, ok := r.Float(ColPower); ok {
				a.power.add(p)
			}
			if in, ok := r.Float(ColInterest); ok {
				a.interest.add(in)
			}
			if hasGroup {
				a.groups[grupo] = true
			}
		}
	})

	out := make([]Mention, 0, len(aggs))
	for k, a := range aggs {
		out = append(out, Mention{
			Group:        k.group,
			ActorID:      k.actor,
			Type:         a.typ,
			Mentions:     a.n,
			PowerMean:    a.power.ptr(),
			InterestMean: a.interest.ptr(),
			Groups:       len(a.groups),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := out[i].Group == join.Overall, out[j].Group == join.Overall
		if oi != oj {
			return oi
		}
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		if out[i].Mentions != out[j].Mentions {
			return out[i].Mentions > out[j].Mentions
		}
		return out[i].ActorID < out[j].ActorID
	})
	return diag.Ok(out, ds...)
}

// SnapshotTables renders mentions OVERALL and by grupo, most mentioned
// first.
func SnapshotTables(mentions []Mention) (overall, byGrupo *table.Table) {
	cols := []string{"grupo", ColActorID, ColActorType, "n_mentions", "power_mean", "interest_mean", "n_groups"}
	ob := table.NewBuilder(TableActorsOverall, cols...)
	gb := table.NewBuilder(TableActorsByGrupo, cols...)
	for _, m := range mentions {
		b := gb
		if m.Group == join.Overall {
			b = ob
		}
		row := table.Row{
			"grupo":         m.Group,
			ColActorID:      m.ActorID,
			ColActorType:    nullable(m.Type),
			"n_mentions":    m.Mentions,
			"power_mean":    nil,
			"interest_mean": nil,
			"n_groups":      m.Groups,
		}
		if m.PowerMean != nil {
			row["power_mean"] = *m.PowerMean
		}
		if m.InterestMean != nil {
			row["interest_mean"] = *m.InterestMean
		}
		b.Add(row)
	}
	return ob.Build(), gb.Build()
}
