// Package network builds the collaboration and conflict subgraphs between
// actors and computes degree centrality, isolation and Network Strength
// per aggregation group.
//
// Both subgraphs are undirected and simple: an edge between the same pair
// of actors in the same relation kind is coalesced into one dyad that
// carries the number of source rows and their summed weight.
package network

import (
	"errors"
	"fmt"
	"sort"

	"github.com/papapumpkin/pares/internal/join"
)

// ErrSelfEdge is returned when an edge would connect an actor to itself.
var ErrSelfEdge = errors.New("self-referencing edge")

// ErrActorNotFound is returned when an operation references an unknown actor.
var ErrActorNotFound = errors.New("actor not found")

// ErrDuplicateActor is returned when adding an actor that already exists.
var ErrDuplicateActor = errors.New("duplicate actor")

// ErrUnknownKind is returned for a relation kind other than collaboration
// or conflict.
var ErrUnknownKind = errors.New("unknown relation kind")

// Kind is the relation kind of an edge.
type Kind string

const (
	Collaboration Kind = "collaboration"
	Conflict      Kind = "conflict"
)

// Kinds lists the relation kinds in output order.
var Kinds = []Kind{Collaboration, Conflict}

func (k Kind) valid() bool {
	return k == Collaboration || k == Conflict
}

// Actor is a node of the network.
type Actor struct {
	ID   string
	Type string
	// Groups are the grupo values the actor was observed in.
	Groups   []string
	Power    float64
	HasPower bool
	Interest float64
	// Implicit actors were referenced by an edge but never declared.
	Implicit bool
}

// InGroup reports whether the actor belongs to group.
func (a *Actor) InGroup(group string) bool {
	for _, g := range a.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Dyad is a coalesced undirected edge. A is always the smaller id.
type Dyad struct {
	Kind   Kind
	A, B   string
	Count  int
	Weight float64
}

// Graph is an arena of actors plus one adjacency index per relation kind.
type Graph struct {
	actors map[string]*Actor
	// adjacency maps kind → actor id → neighbor id → dyad.
	adjacency map[Kind]map[string]map[string]*Dyad
}

// New creates an empty graph.
func New() *Graph {
	g := &Graph{
		actors:    make(map[string]*Actor),
		adjacency: make(map[Kind]map[string]map[string]*Dyad, len(Kinds)),
	}
	for _, k := range Kinds {
		g.adjacency[k] = make(map[string]map[string]*Dyad)
	}
	return g
}

// AddActor adds an actor. Returns ErrDuplicateActor if the id is taken.
func (g *Graph) AddActor(a Actor) error {
	if _, exists := g.actors[a.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateActor, a.ID)
	}
	a.Groups = dedupe(a.Groups)
	g.actors[a.ID] = &a
	for _, k := range Kinds {
		g.adjacency[k][a.ID] = make(map[string]*Dyad)
	}
	return nil
}

// JoinGroup records that an existing actor belongs to group.
func (g *Graph) JoinGroup(id, group string) error {
	a, ok := g.actors[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrActorNotFound, id)
	}
	if group != "" && !a.InGroup(group) {
		a.Groups = dedupe(append(a.Groups, group))
	}
	return nil
}

// AddEdge adds an undirected edge of the given kind. A repeated pair is
// coalesced: its count grows by one and weight is added to its total.
func (g *Graph) AddEdge(a, b string, kind Kind, weight float64) error {
	if !kind.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if a == b {
		return fmt.Errorf("%w: %s", ErrSelfEdge, a)
	}
	if _, ok := g.actors[a]; !ok {
		return fmt.Errorf("%w: %s", ErrActorNotFound, a)
	}
	if _, ok := g.actors[b]; !ok {
		return fmt.Errorf("%w: %s", ErrActorNotFound, b)
	}
	adj := g.adjacency[kind]
	if d, ok := adj[a][b]; ok {
		d.Count++
		d.Weight += weight
		return nil
	}
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	d := &Dyad{Kind: kind, A: lo, B: hi, Count: 1, Weight: weight}
	adj[a][b] = d
	adj[b][a] = d
	return nil
}

// Actor returns the actor with the given id.
func (g *Graph) Actor(id string) (*Actor, bool) {
	a, ok := g.actors[id]
	return a, ok
}

// Len returns the number of actors.
func (g *Graph) Len() int { return len(g.actors) }

// Actors returns every actor id, sorted.
func (g *Graph) Actors() []string {
	ids := make([]string, 0, len(g.actors))
	for id := range g.actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActorType returns the declared type of an actor, empty when unknown.
func (g *Graph) ActorType(id string) string {
	if a, ok := g.actors[id]; ok {
		return a.Type
	}
	return ""
}

// Members returns the ids of actors in group, sorted. An empty group name
// or OVERALL selects every actor.
func (g *Graph) Members(group string) []string {
	if group == "" || group == join.Overall {
		return g.Actors()
	}
	var ids []string
	for id, a := range g.actors {
		if a.InGroup(group) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Groups returns every grupo any actor belongs to, sorted.
func (g *Graph) Groups() []string {
	seen := make(map[string]bool)
	for _, a := range g.actors {
		for _, grp := range a.Groups {
			seen[grp] = true
		}
	}
	out := make([]string, 0, len(seen))
	for grp := range seen {
		out = append(out, grp)
	}
	sort.Strings(out)
	return out
}

// Neighbors returns the distinct neighbors of id in the kind subgraph,
// sorted.
func (g *Graph) Neighbors(id string, kind Kind) []string {
	adj := g.adjacency[kind][id]
	out := make([]string, 0, len(adj))
	for n := range adj {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Dyads returns the coalesced edges of the kind subgraph ordered by
// (A, B).
func (g *Graph) Dyads(kind Kind) []Dyad {
	var out []Dyad
	for a, adj := range g.adjacency[kind] {
		for b, d := range adj {
			if a < b {
				out = append(out, *d)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

func dedupe(groups []string) []string {
	seen := make(map[string]bool, len(groups))
	out := groups[:0:0]
	for _, g := range groups {
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
