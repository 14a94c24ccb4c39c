// Package conflict aggregates conflict events into a time-decayed,
// severity-weighted risk per actor and per aggregation group.
//
// An event's weight halves every half-life: weight = 2^(-Δt/halfLife),
// where Δt is the time between the event and the as-of instant.
package conflict

import (
	"math"
	"sort"
	"time"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/normalize"
)

const stage = "conflict"

// DefaultHalfLife is used when Options.HalfLife is not positive.
const DefaultHalfLife = 180 * 24 * time.Hour

// DefaultBlockers is the number of blockers kept per group by default.
const DefaultBlockers = 10

// Event is one conflict occurrence.
type Event struct {
	ID    string
	Group string
	Time  time.Time
	// HasTime is false when the source row carried no usable date; such
	// events keep full weight.
	HasTime  bool
	Severity float64
	Actors   []string
	Threats  []string
}

// Options tunes Aggregate.
type Options struct {
	HalfLife time.Duration
	// AsOf is the reference instant. Zero means the latest event time.
	AsOf time.Time
	// Blockers caps the blocker list per group.
	Blockers int
	// Groups adds groups to the universe even when no event touches them.
	Groups []string
}

// Decay returns 2^(-elapsed/halfLife). Negative elapsed time counts as 0.
func Decay(elapsed, halfLife time.Duration) float64 {
	if elapsed <= 0 {
		return 1
	}
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}
	return math.Exp2(-float64(elapsed) / float64(halfLife))
}

// GroupRisk is the conflict risk of one aggregation group.
type GroupRisk struct {
	Group  string
	Events int
	// Raw is Σ weight × severity over the group's events.
	Raw  float64
	Risk float64
}

// ActorRisk is one actor's decayed contribution across all events.
type ActorRisk struct {
	ActorID string
	Events  int
	Raw     float64
	Risk    float64
}

// Blocker is an actor frequently implicated in a group's conflicts.
type Blocker struct {
	Group        string
	Rank         int
	ActorID      string
	Events       int
	Contribution float64
}

// TimelinePoint counts a group's events in one calendar year.
type TimelinePoint struct {
	Group    string
	Year     int
	Events   int
	Weighted float64
}

// ThreatLink counts the conflicts linked to one threat.
type ThreatLink struct {
	ThreatID     string
	Conflicts    int
	Events       int
	Contribution float64
}

// Assessment is the result of Aggregate.
type Assessment struct {
	AsOf     time.Time
	HalfLife time.Duration
	Groups   []GroupRisk
	Actors   []ActorRisk
	Blockers []Blocker
	Timeline []TimelinePoint
	Links    []ThreatLink
}

// RiskOf returns the normalized risk of group, 0 when unknown.
func (a Assessment) RiskOf(group string) float64 {
	for _, g := range a.Groups {
		if g.Group == group {
			return g.Risk
		}
	}
	return 0
}

type tally struct {
	events int
	raw    float64
}

// Aggregate weights every event by decay × severity and sums the result
// per group and per actor. Concrete groups are min-max normalized against
// each other; OVERALL is the mean of the group risks. Events dated after
// the as-of instant count with full weight and are reported.
func Aggregate(events []Event, opts Options) diag.Outcome[Assessment] {
	var ds diag.List
	halfLife := opts.HalfLife
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = latest(events)
	}
	out := Assessment{AsOf: asOf, HalfLife: halfLife}

	groups := make(map[string]*tally)
	for _, g := range opts.Groups {
		if g != "" && g != join.Overall {
			groups[g] = &tally{}
		}
	}
	actors := make(map[string]*tally)
	byGroupActor := map[string]map[string]*tally{join.Overall: {}}
	timeline := make(map[string]map[int]*tally)
	links := make(map[string]*linkTally)

	var future, undated int
	for _, e := range events {
		w := 1.0
		switch {
		case !e.HasTime:
			undated++
		case e.Time.After(asOf):
			future++
		default:
			w = Decay(asOf.Sub(e.Time), halfLife)
		}
		c := w * e.Severity

		scopes := []string{join.Overall}
		if e.Group != "" {
			scopes = append(scopes, e.Group)
			if groups[e.Group] == nil {
				groups[e.Group] = &tally{}
			}
			groups[e.Group].add(c)
		}
		for _, a := range dedupe(e.Actors) {
			if actors[a] == nil {
				actors[a] = &tally{}
			}
			actors[a].add(c)
			for _, s := range scopes {
				if byGroupActor[s] == nil {
					byGroupActor[s] = make(map[string]*tally)
				}
				if byGroupActor[s][a] == nil {
					byGroupActor[s][a] = &tally{}
				}
				byGroupActor[s][a].add(c)
			}
		}
		if e.HasTime {
			for _, s := range scopes {
				if timeline[s] == nil {
					timeline[s] = make(map[int]*tally)
				}
				y := e.Time.Year()
				if timeline[s][y] == nil {
					timeline[s][y] = &tally{}
				}
				timeline[s][y].add(c)
			}
		}
		for _, th := range dedupe(e.Threats) {
			if links[th] == nil {
				links[th] = &linkTally{conflicts: make(map[string]bool)}
			}
			links[th].conflicts[e.ID] = true
			links[th].add(c)
		}
	}
	if future > 0 {
		ds.Add(stage, "", diag.KindFutureEvent, "%d events dated after %s counted with full weight", future, asOf.Format("2006-01-02"))
	}
	if undated > 0 {
		ds.Add(stage, "", diag.KindMissingValue, "%d events without a date counted with full weight", undated)
	}

	out.Groups = groupRisks(groups, len(events), &ds)
	out.Actors = actorRisks(actors, &ds)
	out.Blockers = blockers(byGroupActor, opts.Blockers)
	out.Timeline = timelinePoints(timeline)
	out.Links = threatLinks(links)
	return diag.Ok(out, ds...)
}

func (t *tally) add(c float64) {
	t.events++
	t.raw += c
}

type linkTally struct {
	tally
	conflicts map[string]bool
}

func groupRisks(groups map[string]*tally, total int, ds *diag.List) []GroupRisk {
	raw := make(map[string]float64, len(groups))
	for g, t := range groups {
		raw[g] = t.raw
	}
	var norm map[string]float64
	if len(raw) > 0 {
		norm = normalize.Map("conflict_risk", raw).Unwrap(ds)
	}

	names := sortedKeys(groups)
	out := make([]GroupRisk, 0, len(names)+1)
	overall := GroupRisk{Group: join.Overall, Events: total}
	for _, g := range names {
		r := GroupRisk{Group: g, Events: groups[g].events, Raw: groups[g].raw, Risk: norm[g]}
		overall.Raw += r.Raw
		overall.Risk += r.Risk
		out = append(out, r)
	}
	if len(names) > 0 {
		overall.Risk /= float64(len(names))
	}
	return append([]GroupRisk{overall}, out...)
}

func actorRisks(actors map[string]*tally, ds *diag.List) []ActorRisk {
	raw := make(map[string]float64, len(actors))
	for a, t := range actors {
		raw[a] = t.raw
	}
	var norm map[string]float64
	if len(raw) > 0 {
		norm = normalize.Map("actor_conflict_risk", raw).Unwrap(ds)
	}
	out := make([]ActorRisk, 0, len(actors))
	for _, a := range sortedKeys(actors) {
		out = append(out, ActorRisk{ActorID: a, Events: actors[a].events, Raw: actors[a].raw, Risk: norm[a]})
	}
	return out
}

// blockers ranks actors within each scope by number of events, then by
// decayed contribution, then by id.
func blockers(scopes map[string]map[string]*tally, limit int) []Blocker {
	if limit <= 0 {
		limit = DefaultBlockers
	}
	var out []Blocker
	for _, s := range scopeOrder(scopes) {
		var bs []Blocker
		for a, t := range scopes[s] {
			bs = append(bs, Blocker{Group: s, ActorID: a, Events: t.events, Contribution: t.raw})
		}
		sort.Slice(bs, func(i, j int) bool {
			if bs[i].Events != bs[j].Events {
				return bs[i].Events > bs[j].Events
			}
			if bs[i].Contribution != bs[j].Contribution {
				return bs[i].Contribution > bs[j].Contribution
			}
			return bs[i].ActorID < bs[j].ActorID
		})
		if len(bs) > limit {
			bs = bs[:limit]
		}
		for i := range bs {
			bs[i].Rank = i + 1
		}
		out = append(out, bs...)
	}
	return out
}

func timelinePoints(timeline map[string]map[int]*tally) []TimelinePoint {
	var out []TimelinePoint
	for _, s := range scopeOrder(timeline) {
		years := make([]int, 0, len(timeline[s]))
		for y := range timeline[s] {
			years = append(years, y)
		}
		sort.Ints(years)
		for _, y := range years {
			t := timeline[s][y]
			out = append(out, TimelinePoint{Group: s, Year: y, Events: t.events, Weighted: t.raw})
		}
	}
	return out
}

func threatLinks(links map[string]*linkTally) []ThreatLink {
	ids := make([]string, 0, len(links))
	for id := range links {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]ThreatLink, 0, len(ids))
	for _, id := range ids {
		l := links[id]
		out = append(out, ThreatLink{ThreatID: id, Conflicts: len(l.conflicts), Events: l.events, Contribution: l.raw})
	}
	return out
}

// scopeOrder returns OVERALL first, then the other keys sorted.
func scopeOrder[V any](m map[string]V) []string {
	var rest []string
	_, hasOverall := m[join.Overall]
	for k := range m {
		if k != join.Overall {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	if hasOverall {
		return append([]string{join.Overall}, rest...)
	}
	return rest
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func latest(events []Event) time.Time {
	var t time.Time
	for _, e := range events {
		if e.HasTime && e.Time.After(t) {
			t = e.Time
		}
	}
	return t
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
