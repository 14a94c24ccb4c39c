// Package catalog holds the declarative inputs of a run: weight scenarios,
// portfolio limits, column aliases, the relation-kind vocabulary and the
// monitoring indicator templates. Catalogs are TOML documents; a built-in
// default is embedded.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/pares/internal/composite"
	"github.com/papapumpkin/pares/internal/feasibility"
	"github.com/papapumpkin/pares/internal/network"
	"github.com/papapumpkin/pares/internal/table"
)

//go:embed default.toml
var defaultTOML []byte

// ErrNoCatalog is returned by Load when the file does not exist.
var ErrNoCatalog = errors.New("catalog file not found")

// Scenario is a weight scenario as written in the catalog.
type Scenario struct {
	Name    string             `toml:"name"`
	Weights map[string]float64 `toml:"weights"`
}

// Priority configures the action priority module.
type Priority struct {
	TopDrivers int        `toml:"top_drivers"`
	Scenarios  []Scenario `toml:"scenarios"`
}

// Tiers configures feasibility tiering and the conflict gate.
type Tiers struct {
	TopPct          float64 `toml:"top_pct"`
	ConflictGate    bool    `toml:"conflict_gate"`
	MaxConflictRisk float64 `toml:"max_conflict_risk_for_do_now"`
	DowngradeSteps  int     `toml:"downgrade_steps"`
}

// Feasibility configures the feasibility composer.
type Feasibility struct {
	Primary   string     `toml:"primary"`
	Scenarios []Scenario `toml:"scenarios"`
	Tiers     *Tiers     `toml:"tiers"`
}

// Criticality configures service criticality and ecosystem leverage.
type Criticality struct {
	Primary   string     `toml:"primary"`
	Scenarios []Scenario `toml:"scenarios"`
	// Leverage weights connectivity and mean service criticality.
	Leverage map[string]float64 `toml:"leverage_weights"`
}

// Equity configures the equity vulnerability index.
type Equity struct {
	Primary   string     `toml:"primary"`
	Scenarios []Scenario `toml:"scenarios"`
}

// Portfolio configures intervention bundles.
type Portfolio struct {
	Primary         string     `toml:"primary"`
	BundlesPerGroup int        `toml:"bundles_per_grupo"`
	MaxThreats      int        `toml:"max_threats_per_bundle"`
	Scenarios       []Scenario `toml:"scenarios"`
}

// Indicator is a monitoring indicator template.
type Indicator struct {
	ID        string `toml:"id"`
	Name      string `toml:"name"`
	Type      string `toml:"type"`
	Unit      string `toml:"unit"`
	Frequency string `toml:"frequency"`
	Component string `toml:"component"`
}

// Catalog is a decoded catalog document.
type Catalog struct {
	Priority     Priority                       `toml:"priority"`
	Criticality  Criticality                    `toml:"criticality"`
	Equity       Equity                         `toml:"equity"`
	Feasibility  Feasibility                    `toml:"feasibility"`
	Portfolio    Portfolio                      `toml:"portfolio"`
	Aliases      map[string][]string            `toml:"aliases"`
	TableAliases map[string]map[string][]string `toml:"table_aliases"`
	Relations    map[string][]string            `toml:"relations"`
	Indicators   []Indicator                    `toml:"indicators"`
}

// Parse decodes a catalog document without applying defaults.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return &c, nil
}

// Default returns a fresh copy of the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultTOML)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// Load reads the catalog at path. Sections the file leaves empty are
// taken from the built-in catalog. An empty path returns Default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoCatalog, path)
		}
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	c.fill(Default())
	return c, nil
}

func (c *Catalog) fill(d *Catalog) {
	if c.Priority.TopDrivers == 0 {
		c.Priority.TopDrivers = d.Priority.TopDrivers
	}
	if len(c.Priority.Scenarios) == 0 {
		c.Priority.Scenarios = d.Priority.Scenarios
	}
	if len(c.Feasibility.Scenarios) == 0 {
		c.Feasibility.Scenarios = d.Feasibility.Scenarios
		if c.Feasibility.Primary == "" {
			c.Feasibility.Primary = d.Feasibility.Primary
		}
	}
	if len(c.Criticality.Scenarios) == 0 {
		c.Criticality.Scenarios = d.Criticality.Scenarios
		if c.Criticality.Primary == "" {
			c.Criticality.Primary = d.Criticality.Primary
		}
	}
	if c.Criticality.Leverage == nil {
		c.Criticality.Leverage = d.Criticality.Leverage
	}
	if len(c.Equity.Scenarios) == 0 {
		c.Equity.Scenarios = d.Equity.Scenarios
		if c.Equity.Primary == "" {
			c.Equity.Primary = d.Equity.Primary
		}
	}
	if len(c.Portfolio.Scenarios) == 0 {
		c.Portfolio.Scenarios = d.Portfolio.Scenarios
		if c.Portfolio.Primary == "" {
			c.Portfolio.Primary = d.Portfolio.Primary
		}
	}
	if c.Portfolio.BundlesPerGroup == 0 {
		c.Portfolio.BundlesPerGroup = d.Portfolio.BundlesPerGroup
	}
	if c.Portfolio.MaxThreats == 0 {
		c.Portfolio.MaxThreats = d.Portfolio.MaxThreats
	}
	if c.Feasibility.Tiers == nil {
		c.Feasibility.Tiers = d.Feasibility.Tiers
	}
	if c.Aliases == nil {
		c.Aliases = d.Aliases
	}
	if c.TableAliases == nil {
		c.TableAliases = d.TableAliases
	}
	if c.Relations == nil {
		c.Relations = d.Relations
	}
	if c.Indicators == nil {
		c.Indicators = d.Indicators
	}
}

// PriorityScenarios returns the action priority scenarios in catalog order.
func (c *Catalog) PriorityScenarios() []composite.Scenario {
	return scenarios(c.Priority.Scenarios)
}

// FeasibilityScenarios returns the feasibility scenarios in catalog order.
func (c *Catalog) FeasibilityScenarios() []composite.Scenario {
	return scenarios(c.Feasibility.Scenarios)
}

// CriticalityScenarios returns the service criticality scenarios.
func (c *Catalog) CriticalityScenarios() []composite.Scenario {
	return scenarios(c.Criticality.Scenarios)
}

// LeverageScenario returns the ecosystem leverage weighting, or the zero
// scenario when the catalog declares none.
func (c *Catalog) LeverageScenario() composite.Scenario {
	if len(c.Criticality.Leverage) == 0 {
		return composite.Scenario{}
	}
	return scenarios([]Scenario{{Name: leverageName, Weights: c.Criticality.Leverage}})[0]
}

// EquityScenarios returns the equity vulnerability scenarios.
func (c *Catalog) EquityScenarios() []composite.Scenario {
	return scenarios(c.Equity.Scenarios)
}

// PortfolioScenarios returns the bundle scoring scenarios.
func (c *Catalog) PortfolioScenarios() []composite.Scenario {
	return scenarios(c.Portfolio.Scenarios)
}

func scenarios(in []Scenario) []composite.Scenario {
	out := make([]composite.Scenario, len(in))
	for i, s := range in {
		w := make(map[string]float64, len(s.Weights))
		for k, v := range s.Weights {
			w[k] = v
		}
		out[i] = composite.Scenario{Name: s.Name, Weights: w}
	}
	return out
}

// TierPolicy converts the tier section. Zero fields fall back to the
// feasibility defaults.
func (c *Catalog) TierPolicy() feasibility.TierPolicy {
	t := c.Feasibility.Tiers
	if t == nil {
		return feasibility.TierPolicy{}
	}
	return feasibility.TierPolicy{
		TopPct:          t.TopPct,
		Gate:            t.ConflictGate,
		MaxConflictRisk: t.MaxConflictRisk,
		DowngradeSteps:  t.DowngradeSteps,
	}
}

// Vocabulary builds the relation-kind vocabulary.
func (c *Catalog) Vocabulary() network.Vocabulary {
	return network.NewVocabulary(c.Relations)
}

// MonitoringIndicators converts the indicator templates.
func (c *Catalog) MonitoringIndicators() []feasibility.Indicator {
	out := make([]feasibility.Indicator, len(c.Indicators))
	for i, ind := range c.Indicators {
		out[i] = feasibility.Indicator{
			ID:        ind.ID,
			Name:      ind.Name,
			Type:      ind.Type,
			Unit:      ind.Unit,
			Frequency: ind.Frequency,
			Component: ind.Component,
		}
	}
	return out
}

// NewRegistry returns a registry that applies the catalog's shared and
// per-table aliases.
func (c *Catalog) NewRegistry() *table.Registry {
	reg := table.NewRegistry(table.Aliases(c.Aliases))
	for name, a := range c.TableAliases {
		reg.ScopeAliases(name, table.Aliases(a))
	}
	return reg
}
