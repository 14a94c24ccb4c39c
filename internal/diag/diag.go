// Package diag carries the diagnostics every pipeline stage produces. A
// stage returns an Outcome pairing its value with the diagnostics raised
// while computing it, so warnings are never lost and always attributable
// to a stage and table.
package diag

import (
	"errors"
	"fmt"
	"sort"
)

// ErrSchema is the sentinel wrapped by every SchemaError.
var ErrSchema = errors.New("schema error")

// ErrConfig is the sentinel wrapped by every ConfigError.
var ErrConfig = errors.New("config error")

// Kind classifies a diagnostic.
type Kind string

const (
	KindUnresolvedJoin      Kind = "unresolved_join"
	KindDegenerateRange     Kind = "degenerate_range"
	KindEmptyGroup          Kind = "empty_group"
	KindMissingValue        Kind = "missing_value"
	KindMissingComponent    Kind = "missing_component"
	KindMissingTable        Kind = "missing_table"
	KindMissingColumn       Kind = "missing_column"
	KindRejectedScenario    Kind = "rejected_scenario"
	KindFutureEvent         Kind = "future_event"
	KindCardinalityMismatch Kind = "cardinality_mismatch"
	KindDuplicateKey        Kind = "duplicate_key"
	KindAliasCollision      Kind = "alias_collision"
	KindUnknownRelation     Kind = "unknown_relation"
	KindImplicitActor       Kind = "implicit_actor"
	KindSelfLoop            Kind = "self_loop"
	KindTierDowngrade       Kind = "tier_downgrade"
)

// notes are informational kinds; every other kind is a warning.
var notes = map[Kind]bool{
	KindTierDowngrade: true,
	KindImplicitActor: true,
}

// IsWarning reports whether diagnostics of this kind indicate a data or
// configuration problem rather than an informational note.
func (k Kind) IsWarning() bool {
	return !notes[k]
}

// Diagnostic is a single non-fatal finding raised by a stage.
type Diagnostic struct {
	Stage   string `json:"stage"`
	Table   string `json:"table,omitempty"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Table != "" {
		return fmt.Sprintf("[%s/%s] %s: %s", d.Stage, d.Table, d.Kind, d.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Stage, d.Kind, d.Message)
}

// New builds a diagnostic with a formatted message.
func New(stage, tbl string, kind Kind, format string, args ...any) Diagnostic {
	return Diagnostic{
		Stage:   stage,
		Table:   tbl,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// List is an ordered collection of diagnostics.
type List []Diagnostic

// Add appends a formatted diagnostic.
func (l *List) Add(stage, tbl string, kind Kind, format string, args ...any) {
	*l = append(*l, New(stage, tbl, kind, format, args...))
}

// Extend appends all diagnostics from other, preserving order.
func (l *List) Extend(other []Diagnostic) {
	*l = append(*l, other...)
}

// Count returns how many diagnostics have the given kind.
func (l List) Count(kind Kind) int {
	n := 0
	for _, d := range l {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// CountByKind tallies diagnostics per kind.
func (l List) CountByKind() map[Kind]int {
	out := make(map[Kind]int)
	for _, d := range l {
		out[d.Kind]++
	}
	return out
}

// Kinds returns the distinct kinds present, sorted.
func (l List) Kinds() []Kind {
	seen := make(map[Kind]bool)
	var kinds []Kind
	for _, d := range l {
		if !seen[d.Kind] {
			seen[d.Kind] = true
			kinds = append(kinds, d.Kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Outcome pairs a stage's value with the diagnostics it raised.
type Outcome[T any] struct {
	Value       T
	Diagnostics List
}

// Ok wraps a value with optional diagnostics.
func Ok[T any](v T, ds ...Diagnostic) Outcome[T] {
	return Outcome[T]{Value: v, Diagnostics: List(ds)}
}

// Unwrap returns the value and appends the outcome's diagnostics to into.
func (o Outcome[T]) Unwrap(into *List) T {
	if into != nil {
		into.Extend(o.Diagnostics)
	}
	return o.Value
}

// SchemaError reports a required table or column that is absent.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema error: required table %s is missing", e.Table)
	}
	return fmt.Sprintf("schema error: table %s is missing required column %s", e.Table, e.Column)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// ConfigError reports an invalid weight scenario or catalog entry.
type ConfigError struct {
	Scenario string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Scenario == "" {
		return "config error: " + e.Reason
	}
	return fmt.Sprintf("config error: scenario %q: %s", e.Scenario, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }
