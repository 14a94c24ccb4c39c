package catalog

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/papapumpkin/pares/internal/criticality"
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/equity"
	"github.com/papapumpkin/pares/internal/feasibility"
	"github.com/papapumpkin/pares/internal/network"
	"github.com/papapumpkin/pares/internal/priority"
	"github.com/papapumpkin/pares/internal/table"
)

const leverageName = "eli"

var (
	priorityComponents    = []string{priority.CompPriority, priority.CompRisk, priority.CompCapacityGap}
	criticalityComponents = []string{criticality.CompLinks, criticality.CompUsers, criticality.CompSeasonality, criticality.CompPriority}
	leverageComponents    = []string{criticality.CompConnectivity, criticality.CompCriticalServices}
	feasibilityComponents = []string{feasibility.CompNetwork, feasibility.CompDialogue, feasibility.CompSafety}
	// Indicators track a feasibility component or the bundle component
	// that holds a bundle back.
	indicatorComponents = []string{
		feasibility.CompNetwork, feasibility.CompDialogue, feasibility.CompSafety,
		feasibility.CompImpact, feasibility.CompLeverage, feasibility.CompEquity,
	}
)

// Problems lists every invalid entry. Invalid scenarios are also rejected,
// with a diagnostic, when a run evaluates them; Problems reports them up
// front.
func (c *Catalog) Problems() []error {
	var errs []error
	errs = append(errs, checkScenarios(c.Priority.Scenarios, priorityComponents)...)
	errs = append(errs, checkScenarios(c.Criticality.Scenarios, criticalityComponents)...)
	errs = append(errs, checkScenarios(c.Equity.Scenarios, equity.Components)...)
	errs = append(errs, checkScenarios(c.Feasibility.Scenarios, feasibilityComponents)...)
	errs = append(errs, checkScenarios(c.Portfolio.Scenarios, feasibility.PortfolioComponents)...)
	if len(c.Criticality.Leverage) > 0 {
		errs = append(errs, checkScenarios([]Scenario{{Name: leverageName, Weights: c.Criticality.Leverage}}, leverageComponents)...)
	}

	for _, p := range []struct {
		section, primary string
		declared         []Scenario
	}{
		{"criticality", c.Criticality.Primary, c.Criticality.Scenarios},
		{"equity", c.Equity.Primary, c.Equity.Scenarios},
		{"feasibility", c.Feasibility.Primary, c.Feasibility.Scenarios},
		{"portfolio", c.Portfolio.Primary, c.Portfolio.Scenarios},
	} {
		if p.primary == "" || slices.ContainsFunc(p.declared, func(s Scenario) bool { return s.Name == p.primary }) {
			continue
		}
		errs = append(errs, &diag.ConfigError{Scenario: p.primary, Reason: fmt.Sprintf("primary %s scenario is not declared", p.section)})
	}
	if c.Priority.TopDrivers < 0 {
		errs = append(errs, &diag.ConfigError{Reason: fmt.Sprintf("priority.top_drivers is negative (%d)", c.Priority.TopDrivers)})
	}
	if c.Portfolio.BundlesPerGroup < 0 {
		errs = append(errs, &diag.ConfigError{Reason: fmt.Sprintf("portfolio.bundles_per_grupo is negative (%d)", c.Portfolio.BundlesPerGroup)})
	}
	if c.Portfolio.MaxThreats < 0 {
		errs = append(errs, &diag.ConfigError{Reason: fmt.Sprintf("portfolio.max_threats_per_bundle is negative (%d)", c.Portfolio.MaxThreats)})
	}
	if t := c.Feasibility.Tiers; t != nil {
		if t.TopPct < 0 || t.TopPct >= 1 {
			errs = append(errs, &diag.ConfigError{Reason: fmt.Sprintf("tiers.top_pct %g outside [0,1)", t.TopPct)})
		}
		if t.MaxConflictRisk < 0 || t.MaxConflictRisk > 1 {
			errs = append(errs, &diag.ConfigError{Reason: fmt.Sprintf("tiers.max_conflict_risk_for_do_now %g outside [0,1]", t.MaxConflictRisk)})
		}
	}

	kinds := make([]string, 0, len(c.Relations))
	for k := range c.Relations {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		if !validKind(k) {
			errs = append(errs, &diag.ConfigError{Reason: fmt.Sprintf("relation kind %q is not collaboration or conflict", k)})
		}
	}

	ids := make(map[string]bool, len(c.Indicators))
	for i, ind := range c.Indicators {
		switch {
		case ind.ID == "":
			errs = append(errs, &diag.ConfigError{Reason: fmt.Sprintf("indicator %d has no id", i)})
		case ids[ind.ID]:
			errs = append(errs, &diag.ConfigError{Reason: fmt.Sprintf("indicator %q declared twice", ind.ID)})
		}
		ids[ind.ID] = true
		if !slices.Contains(indicatorComponents, ind.Component) {
			errs = append(errs, &diag.ConfigError{Reason: fmt.Sprintf("indicator %q tracks unknown component %q", ind.ID, ind.Component)})
		}
	}
	return errs
}

// Validate joins Problems into one error, or returns nil.
func (c *Catalog) Validate() error {
	return errors.Join(c.Problems()...)
}

func checkScenarios(in []Scenario, components []string) []error {
	var errs []error
	seen := make(map[string]bool, len(in))
	for _, s := range scenarios(in) {
		if seen[s.Name] {
			errs = append(errs, &diag.ConfigError{Scenario: s.Name, Reason: "declared twice"})
			continue
		}
		seen[s.Name] = true
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		for _, comp := range s.Components() {
			if !slices.Contains(components, comp) {
				errs = append(errs, &diag.ConfigError{Scenario: s.Name, Reason: fmt.Sprintf("unknown component %q", comp)})
			}
		}
	}
	return errs
}

func validKind(k string) bool {
	for _, kind := range network.Kinds {
		if table.Canonical(k) == string(kind) {
			return true
		}
	}
	return false
}
