package network

import (
	"sort"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/table"
)

// Input table names.
const (
	TableActors    = "TIDY_5_1_ACTORES"
	TableRelations = "TIDY_5_1_RELACIONES"
)

// Canonical column names read by Build.
const (
	ColActorID    = "actor_id"
	ColActorType  = "actor_type"
	ColPower      = "power"
	ColInterest   = "interest"
	ColOtherActor = "other_actor_id"
	ColRelType    = "rel_type"
	ColWeight     = "weight"
)

// Vocabulary maps canonical relation labels to a relation kind.
type Vocabulary map[string]Kind

// NewVocabulary builds a vocabulary from kind → accepted labels. Labels
// are matched on their canonical text; kinds other than collaboration and
// conflict are ignored.
func NewVocabulary(labels map[string][]string) Vocabulary {
	v := make(Vocabulary)
	for kind, ls := range labels {
		k := Kind(table.Canonical(kind))
		if !k.valid() {
			continue
		}
		v[string(k)] = k
		for _, l := range ls {
			v[table.Canonical(l)] = k
		}
	}
	return v
}

// Lookup resolves a raw relation label.
func (v Vocabulary) Lookup(label string) (Kind, bool) {
	k, ok := v[table.Canonical(label)]
	return k, ok
}

type actorAgg struct {
	typ               string
	groups            []string
	power, interest   float64
	nPower, nInterest int
}

// Build assembles the graph from the (joined) actor and relation tables.
// Actors appearing on several rows are merged: their groups are unioned
// and power and interest averaged. Either table may be nil.
//
// Relation rows are skipped, with a diagnostic, when they are self-loops,
// lack the other actor, or carry a label missing from vocab. An edge
// naming an undeclared actor registers that actor implicitly.
func Build(actors, relations *table.Table, vocab Vocabulary) diag.Outcome[*Graph] {
	var ds diag.List
	g := New()

	if actors == nil {
		ds.Add(stage, TableActors, diag.KindMissingTable, "no actor table; actors come from relations only")
	} else if err := actors.Require(ColActorID); err != nil {
		ds.Add(stage, TableActors, diag.KindMissingColumn, "%v", err)
	} else {
		addActors(g, actors, &ds)
	}

	if relations == nil {
		ds.Add(stage, TableRelations, diag.KindMissingTable, "no relation table; every actor is isolated")
		return diag.Ok(g, ds...)
	}
	if err := relations.Require(ColActorID, ColOtherActor, ColRelType); err != nil {
		ds.Add(stage, TableRelations, diag.KindMissingColumn, "%v", err)
		return diag.Ok(g, ds...)
	}

	unknown := make(map[string]int)
	var missing, selfLoops, implicit int
	relations.Each(func(_ int, r table.Row) {
		a, okA := r.Str(ColActorID)
		b, okB := r.Str(ColOtherActor)
		if !okA || !okB {
			missing++
			return
		}
		label, _ := r.Str(ColRelType)
		kind, ok := vocab.Lookup(label)
		if !ok {
			unknown[table.Canonical(label)]++
			return
		}
		if a == b {
			selfLoops++
			return
		}
		w, ok := r.Float(ColWeight)
		if !ok {
			w = 1
		}
		grupo, _ := r.Str(join.ColGrupo)
		for _, id := range []string{a, b} {
			if _, exists := g.Actor(id); !exists {
				_ = g.AddActor(Actor{ID: id, Implicit: true, Groups: []string{grupo}})
				implicit++
			} else if act, _ := g.Actor(id); act.Implicit {
				_ = g.JoinGroup(id, grupo)
			}
		}
		_ = g.AddEdge(a, b, kind, w)
	})

	if missing > 0 {
		ds.Add(stage, TableRelations, diag.KindMissingValue, "%d relation rows lack an actor id; skipped", missing)
	}
	if selfLoops > 0 {
		ds.Add(stage, TableRelations, diag.KindSelfLoop, "%d self-referencing relations skipped", selfLoops)
	}
	if implicit > 0 {
		ds.Add(stage, TableRelations, diag.KindImplicitActor, "%d actors referenced only by relations", implicit)
	}
	labels := make([]string, 0, len(unknown))
	for l := range unknown {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		ds.Add(stage, TableRelations, diag.KindUnknownRelation, "relation label %q on %d rows has no kind; ignored", l, unknown[l])
	}
	return diag.Ok(g, ds...)
}

func addActors(g *Graph, actors *table.Table, ds *diag.List) {
	aggs := make(map[string]*actorAgg)
	var order []string
	missing := 0
	actors.Each(func(_ int, r table.Row) {
		id, ok := r.Str(ColActorID)
		if !ok {
			missing++
			return
		}
		a, seen := aggs[id]
		if !seen {
			a = &actorAgg{}
			aggs[id] = a
			order = append(order, id)
		}
		if t, ok := r.Str(ColActorType); ok && a.typ == "" {
			a.typ = t
		}
		if grp, ok := r.Str(join.ColGrupo); ok {
			a.groups = append(a.groups, grp)
		}
		if p, ok := r.Float(ColPower); ok {
			a.power += p
			a.nPower++
		}
		if in, ok := r.Float(ColInterest); ok {
			a.interest += in
			a.nInterest++
		}
	})
	if missing > 0 {
		ds.Add(stage, TableActors, diag.KindMissingValue, "%d actor rows without actor_id; skipped", missing)
	}
	for _, id := range order {
		a := aggs[id]
		act := Actor{ID: id, Type: a.typ, Groups: a.groups}
		if a.nPower > 0 {
			act.Power = a.power / float64(a.nPower)
			act.HasPower = true
		}
		if a.nInterest > 0 {
			act.Interest = a.interest / float64(a.nInterest)
		}
		_ = g.AddActor(act)
	}
}
