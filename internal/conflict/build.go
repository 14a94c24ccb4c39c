package conflict

import (
	"fmt"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/table"
)

// Input table names.
const (
	TableEvents      = "TIDY_6_1_CONFLICT_EVENTS"
	TableEventActors = "TIDY_6_2_CONFLICTO_ACTOR"
	TableThreatMdv   = "TIDY_4_2_1_MAPEO_CONFLICTO"
	TableThreatSE    = "TIDY_4_2_2_MAPEO_CONFLICTO"
)

// Canonical column names read by Events.
const (
	ColConflictID = "conflict_id"
	ColEventDate  = "event_date"
	ColSeverity   = "severity"
	ColActorID    = "actor_id"
	ColThreatID   = "threat_id"
)

// Events reads conflict events from the joined event table and attaches
// involved actors and linked threats by conflict_id. Rows without an id
// get a positional one. A missing or negative severity counts as 1 and 0
// respectively and is reported. The actor and link tables may be nil.
func Events(events, actors *table.Table, links ...*table.Table) diag.Outcome[[]Event] {
	var ds diag.List
	if events == nil {
		ds.Add(stage, TableEvents, diag.KindMissingTable, "no conflict events; conflict risk is 0 everywhere")
		return diag.Ok([]Event(nil), ds...)
	}

	involved := index(actors, TableEventActors, ColActorID, &ds)
	threats := make(map[string][]string)
	for _, l := range links {
		for id, ths := range index(l, "", ColThreatID, &ds) {
			threats[id] = append(threats[id], ths...)
		}
	}

	out := make([]Event, 0, events.Len())
	var noSeverity, negative int
	events.Each(func(i int, r table.Row) {
		id, ok := r.Str(ColConflictID)
		if !ok {
			id = fmt.Sprintf("#%d", i+1)
		}
		e := Event{ID: id, Severity: 1, Actors: involved[id], Threats: threats[id]}
		e.Group, _ = r.Str(join.ColGrupo)
		e.Time, e.HasTime = r.Time(ColEventDate)
		if !e.HasTime {
			e.Time, e.HasTime = r.Time(join.ColDate)
		}
		if s, ok := r.Float(ColSeverity); !ok {
			noSeverity++
		} else if s < 0 {
			negative++
			e.Severity = 0
		} else {
			e.Severity = s
		}
		out = append(out, e)
	})
	if noSeverity > 0 && events.HasColumn(ColSeverity) {
		ds.Add(stage, TableEvents, diag.KindMissingValue, "%d events without severity; counted as 1", noSeverity)
	}
	if negative > 0 {
		ds.Add(stage, TableEvents, diag.KindMissingValue, "%d events with negative severity; counted as 0", negative)
	}
	return diag.Ok(out, ds...)
}

// index maps conflict_id to the values of col in a link table.
func index(t *table.Table, name, col string, ds *diag.List) map[string][]string {
	out := make(map[string][]string)
	if t == nil {
		return out
	}
	if name == "" {
		name = t.Name()
	}
	if err := t.Require(ColConflictID, col); err != nil {
		ds.Add(stage, name, diag.KindMissingColumn, "%v", err)
		return out
	}
	t.Each(func(_ int, r table.Row) {
		id, ok1 := r.Str(ColConflictID)
		v, ok2 := r.Str(col)
		if ok1 && ok2 {
			out[id] = append(out[id], v)
		}
	})
	return out
}
