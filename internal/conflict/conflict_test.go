package conflict

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/table"
)

const day = 24 * time.Hour

var epoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

func at(days int) time.Time { return epoch.Add(time.Duration(days) * day) }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDecay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		elapsed time.Duration
		want    float64
	}{
		{"same day", 0, 1},
		{"one half-life", 180 * day, 0.5},
		{"two half-lives", 360 * day, 0.25},
		{"future", -30 * day, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decay(tt.elapsed, 180*day); got != tt.want {
				t.Errorf("Decay(%v) = %v, want %v", tt.elapsed, got, tt.want)
			}
		})
	}
	if got := Decay(180*day, 0); got != 0.5 {
		t.Errorf("zero half-life should use the default, got %v", got)
	}
}

func TestAggregateHalfLifeScenario(t *testing.T) {
	t.Parallel()
	events := []Event{{ID: "c1", Group: "g1", Time: at(0), HasTime: true, Severity: 1}}
	res := Aggregate(events, Options{HalfLife: 180 * day, AsOf: at(180)})
	g := res.Value.Groups[1]
	if g.Group != "g1" || g.Raw != 0.5 {
		t.Errorf("g1 = %+v, want raw 0.5", g)
	}
}

func TestAggregateFutureEventsKeepFullWeight(t *testing.T) {
	t.Parallel()
	events := []Event{
		{ID: "past", Group: "g1", Time: at(0), HasTime: true, Severity: 2},
		{ID: "future", Group: "g1", Time: at(400), HasTime: true, Severity: 3},
	}
	res := Aggregate(events, Options{AsOf: at(180)})
	if res.Diagnostics.Count(diag.KindFutureEvent) != 1 {
		t.Errorf("diagnostics = %v, want one future event note", res.Diagnostics)
	}
	if got := res.Value.Groups[1].Raw; !approx(got, 2*0.5+3) {
		t.Errorf("raw = %v, want 4", got)
	}
}

func TestAggregateNormalizesAcrossGroups(t *testing.T) {
	t.Parallel()
	events := []Event{
		{ID: "a", Group: "g1", Severity: 2},
		{ID: "b", Group: "g2", Severity: 1},
		{ID: "c", Severity: 5},
	}
	res := Aggregate(events, Options{Groups: []string{"g1", "g2", "g3"}})

	got := make(map[string]float64)
	for _, g := range res.Value.Groups {
		got[g.Group] = g.Risk
	}
	want := map[string]float64{join.Overall: 0.5, "g1": 1, "g2": 0.5, "g3": 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("risk (-want +got):\n%s", diff)
	}
	if res.Value.Groups[0].Events != 3 {
		t.Errorf("OVERALL events = %d, want 3 including the ungrouped one", res.Value.Groups[0].Events)
	}
	if res.Diagnostics.Count(diag.KindMissingValue) != 1 {
		t.Errorf("undated events not reported: %v", res.Diagnostics)
	}
}

func TestAggregateNoEvents(t *testing.T) {
	t.Parallel()
	res := Aggregate(nil, Options{Groups: []string{"g1"}})
	for _, g := range res.Value.Groups {
		if g.Risk != 0 || math.IsNaN(g.Risk) {
			t.Errorf("%s risk = %v, want 0", g.Group, g.Risk)
		}
	}
	if res.Value.RiskOf("missing") != 0 {
		t.Error("unknown group should have risk 0")
	}
}

func TestAsOfDefaultsToLatestEvent(t *testing.T) {
	t.Parallel()
	events := []Event{
		{ID: "a", Group: "g", Time: at(10), HasTime: true, Severity: 1},
		{ID: "b", Group: "g", Time: at(190), HasTime: true, Severity: 1},
	}
	res := Aggregate(events, Options{})
	if !res.Value.AsOf.Equal(at(190)) {
		t.Errorf("as-of = %v, want %v", res.Value.AsOf, at(190))
	}
	if got := res.Value.Groups[1].Raw; !approx(got, 1.5) {
		t.Errorf("raw = %v, want 1.5", got)
	}
}

func TestBlockersTimelineAndLinks(t *testing.T) {
	t.Parallel()
	events := []Event{
		{ID: "c1", Group: "g1", Time: at(0), HasTime: true, Severity: 1, Actors: []string{"x", "y"}, Threats: []string{"t1"}},
		{ID: "c2", Group: "g1", Time: at(400), HasTime: true, Severity: 1, Actors: []string{"x"}, Threats: []string{"t1", "t2"}},
		{ID: "c3", Group: "g2", Time: at(400), HasTime: true, Severity: 2, Actors: []string{"y", "y"}},
	}
	res := Aggregate(events, Options{Blockers: 1})
	a := res.Value

	wantBlockers := []string{join.Overall + ":y", "g1:x", "g2:y"}
	var gotBlockers []string
	for _, b := range a.Blockers {
		gotBlockers = append(gotBlockers, b.Group+":"+b.ActorID)
	}
	if diff := cmp.Diff(wantBlockers, gotBlockers); diff != "" {
		t.Errorf("blockers (-want +got):\n%s", diff)
	}

	var years []int
	for _, p := range a.Timeline {
		if p.Group == join.Overall {
			years = append(years, p.Year)
		}
	}
	if diff := cmp.Diff([]int{2020, 2021}, years); diff != "" {
		t.Errorf("OVERALL timeline years (-want +got):\n%s", diff)
	}

	if len(a.Links) != 2 || a.Links[0].ThreatID != "t1" || a.Links[0].Conflicts != 2 {
		t.Errorf("links = %+v, want t1 linked to 2 conflicts", a.Links)
	}

	for _, ar := range a.Actors {
		if ar.ActorID == "y" && ar.Events != 2 {
			t.Errorf("y counted %d times, want 2", ar.Events)
		}
	}
}

func TestEventsFromTables(t *testing.T) {
	t.Parallel()
	events := table.New(TableEvents, []string{ColConflictID, ColEventDate, ColSeverity, join.ColGrupo},
		table.Row{ColConflictID: "c1", ColEventDate: "2021", ColSeverity: 3.0, join.ColGrupo: "g1"},
		table.Row{ColConflictID: "c2", ColEventDate: "2022-06-01", join.ColGrupo: "g2"},
		table.Row{ColSeverity: -1.0},
	)
	actors := table.New(TableEventActors, []string{ColConflictID, ColActorID},
		table.Row{ColConflictID: "c1", ColActorID: "a1"},
		table.Row{ColConflictID: "c1", ColActorID: "a2"},
	)
	links := table.New(TableThreatMdv, []string{ColConflictID, ColThreatID},
		table.Row{ColConflictID: "c2", ColThreatID: "t9"},
	)

	res := Events(events, actors, links)
	got := res.Value
	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}
	if got[0].Severity != 3 || !got[0].HasTime || got[0].Time.Year() != 2021 {
		t.Errorf("c1 = %+v", got[0])
	}
	if diff := cmp.Diff([]string{"a1", "a2"}, got[0].Actors); diff != "" {
		t.Errorf("c1 actors (-want +got):\n%s", diff)
	}
	if got[1].Severity != 1 || len(got[1].Threats) != 1 {
		t.Errorf("c2 = %+v, want default severity and one threat", got[1])
	}
	if got[2].ID != "#3" || got[2].Severity != 0 || got[2].HasTime {
		t.Errorf("third event = %+v", got[2])
	}
	if res.Diagnostics.Count(diag.KindMissingValue) != 2 {
		t.Errorf("diagnostics = %v", res.Diagnostics)
	}
}

func TestEventsWithoutTable(t *testing.T) {
	t.Parallel()
	res := Events(nil, nil)
	if len(res.Value) != 0 || res.Diagnostics.Count(diag.KindMissingTable) != 1 {
		t.Errorf("got %v, %v", res.Value, res.Diagnostics)
	}
}
