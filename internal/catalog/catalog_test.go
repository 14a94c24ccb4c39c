package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/pares/internal/composite"
	"github.com/papapumpkin/pares/internal/criticality"
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/equity"
	"github.com/papapumpkin/pares/internal/feasibility"
	"github.com/papapumpkin/pares/internal/network"
	"github.com/papapumpkin/pares/internal/table"
)

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func scenarioNames(c *Catalog) (priority, feasibility []string) {
	for _, s := range c.PriorityScenarios() {
		priority = append(priority, s.Name)
	}
	for _, s := range c.FeasibilityScenarios() {
		feasibility = append(feasibility, s.Name)
	}
	return priority, feasibility
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	c := Default()
	if errs := c.Problems(); len(errs) != 0 {
		t.Fatalf("built-in catalog has problems: %v", errs)
	}

	p, f := scenarioNames(c)
	if diff := cmp.Diff([]string{"balanced", "livelihood_first", "risk_first"}, p); diff != "" {
		t.Errorf("priority scenarios (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"base", "governance_first", "safety_first"}, f); diff != "" {
		t.Errorf("feasibility scenarios (-want +got):\n%s", diff)
	}
	if c.Feasibility.Primary != "base" {
		t.Errorf("primary = %q, want base", c.Feasibility.Primary)
	}
	if c.Priority.TopDrivers != 5 {
		t.Errorf("top_drivers = %d, want 5", c.Priority.TopDrivers)
	}

	want := feasibility.TierPolicy{TopPct: 0.33, Gate: true, MaxConflictRisk: 0.70, DowngradeSteps: 1}
	if diff := cmp.Diff(want, c.TierPolicy()); diff != "" {
		t.Errorf("tier policy (-want +got):\n%s", diff)
	}
}

func TestDefaultBundleSections(t *testing.T) {
	t.Parallel()
	c := Default()
	names := func(in []composite.Scenario) []string {
		var out []string
		for _, s := range in {
			out = append(out, s.Name)
		}
		return out
	}
	if diff := cmp.Diff([]string{"balanced", "demand_first", "fragility_first"}, names(c.CriticalityScenarios())); diff != "" {
		t.Errorf("criticality scenarios (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"base", "access_first", "capacity_first"}, names(c.EquityScenarios())); diff != "" {
		t.Errorf("equity scenarios (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"balanced", "equity_first", "feasibility_first"}, names(c.PortfolioScenarios())); diff != "" {
		t.Errorf("portfolio scenarios (-want +got):\n%s", diff)
	}
	lev := c.LeverageScenario()
	if err := lev.Validate(); err != nil || lev.Weights[criticality.CompConnectivity] != 0.60 {
		t.Errorf("leverage = %+v (%v)", lev, err)
	}
	if c.Portfolio.BundlesPerGroup != 5 || c.Portfolio.MaxThreats != 3 {
		t.Errorf("portfolio limits = %+v", c.Portfolio)
	}
}

func TestRegistryAliasesBundleInputs(t *testing.T) {
	t.Parallel()
	reg := Default().NewRegistry()
	reg.Register(table.New(equity.TableDifServices, []string{"Group_Label", "amenaza_se_id"},
		table.Row{"Group_Label": "Mujeres", "amenaza_se_id": "s1"}))
	reg.Register(table.New(criticality.TableServiceLivelihood, []string{"cod_se", "barrera", "acceso"},
		table.Row{"cod_se": "SE1", "barrera": "costo", "acceso": "no"}))

	dif, _ := reg.Get(equity.TableDifServices)
	if diff := cmp.Diff([]string{equity.ColDifGroup, equity.ColThreatRef}, dif.Columns()); diff != "" {
		t.Errorf("differentiated columns (-want +got):\n%s", diff)
	}
	sl, _ := reg.Get(criticality.TableServiceLivelihood)
	if diff := cmp.Diff([]string{criticality.ColServiceID, equity.ColBarriers, equity.ColAccess}, sl.Columns()); diff != "" {
		t.Errorf("service-livelihood columns (-want +got):\n%s", diff)
	}
}

func TestDefaultReturnsFreshCopy(t *testing.T) {
	t.Parallel()
	a := Default()
	a.Priority.Scenarios[0].Weights["risk"] = 0.9
	b := Default()
	if b.Priority.Scenarios[0].Weights["risk"] != 0.4 {
		t.Error("mutating one default catalog leaked into another")
	}
}

func TestVocabulary(t *testing.T) {
	t.Parallel()
	v := Default().Vocabulary()
	tests := []struct {
		label string
		want  network.Kind
		ok    bool
	}{
		{"Colaboración", network.Collaboration, true},
		{"  ALIANZA ", network.Collaboration, true},
		{"collaboration", network.Collaboration, true},
		{"Tensión", network.Conflict, true},
		{"conflict", network.Conflict, true},
		{"neutral", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			got, ok := v.Lookup(tt.label)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Lookup(%q) = %q, %v; want %q, %v", tt.label, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRegistryAppliesScopedAliases(t *testing.T) {
	t.Parallel()
	reg := Default().NewRegistry()
	reg.Register(table.New("TIDY_6_1_CONFLICT_EVENTS", []string{"cod_conflict", "Suma", "Fecha"},
		table.Row{"cod_conflict": "c1", "Suma": 2.0, "Fecha": "2024-03-01"}))
	reg.Register(table.New("TIDY_4_1_AMENAZAS", []string{"amenaza_id", "suma"},
		table.Row{"amenaza_id": "t1", "suma": 4.0}))

	events, _ := reg.Get("TIDY_6_1_CONFLICT_EVENTS")
	if diff := cmp.Diff([]string{"conflict_id", "severity", "event_date"}, events.Columns()); diff != "" {
		t.Errorf("event columns (-want +got):\n%s", diff)
	}
	threats, _ := reg.Get("TIDY_4_1_AMENAZAS")
	if diff := cmp.Diff([]string{"amenaza_id", "suma"}, threats.Columns()); diff != "" {
		t.Errorf("threat columns (-want +got):\n%s", diff)
	}
}

func TestMonitoringIndicatorsCoverEveryComponent(t *testing.T) {
	t.Parallel()
	seen := make(map[string]int)
	for _, ind := range Default().MonitoringIndicators() {
		seen[ind.Component]++
	}
	for _, comp := range []string{feasibility.CompNetwork, feasibility.CompDialogue, feasibility.CompSafety,
		feasibility.CompImpact, feasibility.CompLeverage, feasibility.CompEquity} {
		if seen[comp] == 0 {
			t.Errorf("no indicator tracks %s", comp)
		}
	}
}

func TestLoadFillsMissingSections(t *testing.T) {
	t.Parallel()
	path := writeCatalog(t, `
[[priority.scenarios]]
name = "only"
weights = { priority = 1.0 }
`)
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	p, f := scenarioNames(c)
	if diff := cmp.Diff([]string{"only"}, p); diff != "" {
		t.Errorf("priority scenarios (-want +got):\n%s", diff)
	}
	if len(f) != 3 {
		t.Errorf("feasibility scenarios = %v, want the built-in three", f)
	}
	if c.Feasibility.Primary != "base" {
		t.Errorf("primary = %q, want base", c.Feasibility.Primary)
	}
	if len(c.Indicators) == 0 || len(c.Relations) == 0 {
		t.Error("indicators and relations should come from the built-in catalog")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		if !errors.Is(err, ErrNoCatalog) {
			t.Errorf("err = %v, want ErrNoCatalog", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()
		_, err := Load(writeCatalog(t, "[priority\n"))
		if err == nil {
			t.Fatal("expected parse error")
		}
	})

	t.Run("empty path", func(t *testing.T) {
		t.Parallel()
		c, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if len(c.PriorityScenarios()) != 3 {
			t.Errorf("empty path should give the built-in catalog")
		}
	})
}

func TestProblems(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "weights do not sum to one",
			body: `
[[feasibility.scenarios]]
name = "base"
weights = { network_strength = 0.5, dialogue_coverage = 0.1, conflict_safety = 0.1 }
`,
			want: 1,
		},
		{
			name: "unknown component",
			body: `
[[priority.scenarios]]
name = "odd"
weights = { priority = 0.5, popularity = 0.5 }
`,
			want: 1,
		},
		{
			name: "duplicate scenario",
			body: `
[[priority.scenarios]]
name = "x"
weights = { priority = 1.0 }
[[priority.scenarios]]
name = "x"
weights = { risk = 1.0 }
`,
			want: 1,
		},
		{
			name: "undeclared primary",
			body: `
[feasibility]
primary = "nowhere"
`,
			want: 1,
		},
		{
			name: "unknown portfolio component",
			body: `
[[portfolio.scenarios]]
name = "x"
weights = { impact_potential = 0.5, popularity = 0.5 }
`,
			want: 1,
		},
		{
			name: "leverage weights do not sum to one",
			body: `
[criticality]
leverage_weights = { connectivity = 0.5 }
`,
			want: 1,
		},
		{
			name: "undeclared equity primary and negative bundle limit",
			body: `
[equity]
primary = "nowhere"

[portfolio]
bundles_per_grupo = -1
`,
			want: 2,
		},
		{
			name: "bad relation kind and indicator",
			body: `
[relations]
friendship = ["amistad"]

[[indicators]]
id = "I1"
name = "x"
component = "popularity"
`,
			want: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := Load(writeCatalog(t, tt.body))
			if err != nil {
				t.Fatal(err)
			}
			errs := c.Problems()
			if len(errs) != tt.want {
				t.Fatalf("got %d problems (%v), want %d", len(errs), errs, tt.want)
			}
			for _, err := range errs {
				if !errors.Is(err, diag.ErrConfig) {
					t.Errorf("%v does not wrap ErrConfig", err)
				}
			}
		})
	}
}
