package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/papapumpkin/pares/internal/composite"
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/table"
)

// Summary describes one run.
type Summary struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	InputTables []table.Shape
	Groups      []string
	// OutputRows maps output table name to row count.
	OutputRows map[string]int
	// Unresolved maps a fact table to its rows without grupo.
	Unresolved map[string]int
	// Rejected lists the scenarios dropped for invalid weights.
	Rejected          []string
	DiagnosticsByKind map[diag.Kind]int
	Warnings          int
	Notes             int
}

func (s *Summary) finish(r *Result, at time.Time) {
	s.FinishedAt = at
	s.OutputRows = make(map[string]int, len(r.Tables))
	for _, t := range r.Tables {
		s.OutputRows[t.Name()] = t.Len()
	}
	seen := make(map[string]bool)
	reject := func(module string, eval composite.Evaluation) {
		for _, rej := range eval.Rejected {
			name := module + "/" + rej.Scenario
			if !seen[name] {
				seen[name] = true
				s.Rejected = append(s.Rejected, name)
			}
		}
	}
	for _, sc := range r.Priority.Scopes {
		reject("priority", sc.Evaluation)
	}
	for _, sc := range r.Criticality.Scopes {
		reject("criticality", sc.Evaluation)
	}
	reject("equity", r.Equity.Evaluation)
	reject("feasibility", r.Feasibility.Evaluation)
	reject("portfolio", r.Portfolio.Evaluation)
	sort.Strings(s.Rejected)
	s.DiagnosticsByKind = r.Diagnostics.CountByKind()
	for _, d := range r.Diagnostics {
		if d.Kind.IsWarning() {
			s.Warnings++
		} else {
			s.Notes++
		}
	}
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// TotalUnresolved sums unresolved rows over all fact tables.
func (s Summary) TotalUnresolved() int {
	n := 0
	for _, v := range s.Unresolved {
		n += v
	}
	return n
}

func (s Summary) String() string {
	return fmt.Sprintf("run %s: %d input tables, %d groups, %d output tables, %d warnings",
		s.RunID, len(s.InputTables), len(s.Groups), len(s.OutputRows), s.Warnings)
}
