package dialogue

import (
	"sort"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/table"
)

// Input table names.
const (
	TableSpaces  = "TIDY_5_2_DIALOGO"
	TableMembers = "TIDY_5_2_DIALOGO_ACTOR"
)

// Canonical column names read by Spaces.
const (
	ColSpaceID   = "space_id"
	ColSpaceName = "space_name"
	ColSpaceType = "space_type"
	ColActorID   = "actor_id"
)

// Output table names.
const (
	TableCoverage      = "dialogue_coverage"
	TableParticipation = "dialogue_participation"
	TableActorSpaces   = "actor_in_spaces"
)

// Spaces reads dialogue spaces and their participants. A space listed only
// in the membership table is still returned. Either table may be nil.
func Spaces(spaces, members *table.Table) diag.Outcome[[]Space] {
	var ds diag.List
	byID := make(map[string]*Space)

	if spaces == nil {
		ds.Add(stage, TableSpaces, diag.KindMissingTable, "no dialogue space table")
	} else if err := spaces.Require(ColSpaceID); err != nil {
		ds.Add(stage, TableSpaces, diag.KindMissingColumn, "%v", err)
	} else {
		spaces.Each(func(_ int, r table.Row) {
			id, ok := r.Str(ColSpaceID)
			if !ok {
				return
			}
			if _, dup := byID[id]; dup {
				return
			}
			s := &Space{ID: id}
			s.Name, _ = r.Str(ColSpaceName)
			s.Type, _ = r.Str(ColSpaceType)
			s.Group, _ = r.Str(join.ColGrupo)
			byID[id] = s
		})
	}

	if members == nil {
		ds.Add(stage, TableMembers, diag.KindMissingTable, "no dialogue membership table; coverage is 0")
	} else if err := members.Require(ColSpaceID, ColActorID); err != nil {
		ds.Add(stage, TableMembers, diag.KindMissingColumn, "%v", err)
	} else {
		members.Each(func(_ int, r table.Row) {
			id, ok1 := r.Str(ColSpaceID)
			actor, ok2 := r.Str(ColActorID)
			if !ok1 || !ok2 {
				return
			}
			s, ok := byID[id]
			if !ok {
				s = &Space{ID: id}
				byID[id] = s
			}
			s.Participants = append(s.Participants, actor)
		})
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Space, 0, len(ids))
	for _, id := range ids {
		out = append(out, *byID[id])
	}
	return diag.Ok(out, ds...)
}

// CoverageTable renders coverage per group.
func (r Result) CoverageTable() *table.Table {
	b := table.NewBuilder(TableCoverage, "grupo", "actors", "participants", "spaces", "coverage_base", "diversity", "dialogue_coverage", "na")
	for _, c := range r.Coverage {
		b.Add(table.Row{
			"grupo":             c.Group,
			"actors":            c.Actors,
			"participants":      c.Participants,
			"spaces":            c.Spaces,
			"coverage_base":     c.Base,
			"diversity":         c.Diversity,
			"dialogue_coverage": c.Value,
			"na":                c.NA,
		})
	}
	return b.Build()
}

// ParticipationTable renders per-space participant counts.
func (r Result) ParticipationTable() *table.Table {
	b := table.NewBuilder(TableParticipation, ColSpaceID, ColSpaceName, "grupo", "participants", "actor_types", "diversity")
	for _, s := range r.Spaces {
		b.Add(table.Row{
			ColSpaceID:     s.SpaceID,
			ColSpaceName:   nullable(s.Name),
			"grupo":        nullable(s.Group),
			"participants": s.Participants,
			"actor_types":  s.Types,
			"diversity":    s.Diversity,
		})
	}
	return b.Build()
}

// ActorTable renders how many spaces each actor takes part in.
func (r Result) ActorTable() *table.Table {
	b := table.NewBuilder(TableActorSpaces, ColActorID, "spaces")
	for _, a := range r.Actors {
		b.Add(table.Row{ColActorID: a.ActorID, "spaces": a.Spaces})
	}
	return b.Build()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
