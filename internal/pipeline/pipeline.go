// Package pipeline runs the stages of a batch over a table registry: the
// dimensional join, the action priority index, service criticality, the
// actor network, conflict risk and dialogue coverage, then equity,
// feasibility and finally the intervention portfolio.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/papapumpkin/pares/internal/catalog"
	"github.com/papapumpkin/pares/internal/conflict"
	"github.com/papapumpkin/pares/internal/criticality"
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/dialogue"
	"github.com/papapumpkin/pares/internal/equity"
	"github.com/papapumpkin/pares/internal/feasibility"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/logging"
	"github.com/papapumpkin/pares/internal/network"
	"github.com/papapumpkin/pares/internal/priority"
	"github.com/papapumpkin/pares/internal/table"
	"github.com/papapumpkin/pares/internal/telemetry"
)

const stage = "pipeline"

// Options tunes Run.
type Options struct {
	// Strict turns a missing required table or column into an error.
	Strict bool
	// TopN bounds ranking tables and stability comparisons.
	TopN          int
	HalfLife      time.Duration
	AsOf          time.Time
	PowerWeighted bool
	Inclusiveness bool
	// Parallel runs independent stages and scenarios concurrently.
	Parallel bool
	// RunID defaults to a random UUID.
	RunID  string
	Logger *log.Logger
	Events *telemetry.Emitter
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result is everything a run produced.
type Result struct {
	Summary     Summary
	Diagnostics diag.List
	// Tables are the output tables in a fixed order.
	Tables      []*table.Table
	Priority    priority.Result
	Criticality criticality.Result
	Network     network.Analysis
	Graph       *network.Graph
	Actors      []network.Mention
	Conflict    conflict.Assessment
	Dialogue    dialogue.Result
	Equity      equity.Result
	Feasibility feasibility.Result
	Portfolio   feasibility.Portfolio
}

// Table returns the named output table.
func (r *Result) Table(name string) (*table.Table, bool) {
	for _, t := range r.Tables {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Run executes every stage. In strict mode a schema problem is returned as
// a *diag.SchemaError before any stage runs; otherwise the affected
// metrics degrade to empty and the problem is reported as a diagnostic.
// Cancelling ctx stops the run between stages.
func Run(ctx context.Context, reg *table.Registry, cat *catalog.Catalog, opts Options) (*Result, error) {
	if cat == nil {
		cat = catalog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := logging.OrDiscard(opts.Logger)
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	res := &Result{Summary: Summary{RunID: runID, StartedAt: now().UTC(), InputTables: reg.Shapes()}}
	var ds diag.List

	emit := func(kind, st string, data any) {
		if err := opts.Events.Record(kind, runID, st, data); err != nil {
			logger.Warn("telemetry write failed", "err", err)
		}
	}
	emit(telemetry.KindRunStart, "", map[string]any{"tables": len(res.Summary.InputTables), "strict": opts.Strict})
	logger.Info("run started", "run", runID, "tables", len(res.Summary.InputTables))

	errs, schemaDiags := Check(reg)
	if opts.Strict && len(errs) > 0 {
		emit(telemetry.KindRunFailed, stage, errs[0].Error())
		return nil, errs[0]
	}
	ds.Extend(schemaDiags)

	// Join.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emit(telemetry.KindStageStart, "join", nil)
	j := joinInputs(reg)
	ds.Extend(j.diags)
	res.Summary.Groups = j.groups
	res.Summary.Unresolved = j.unresolved
	emit(telemetry.KindStageDone, "join", map[string]any{"groups": len(j.groups), "tables": len(j.tables)})

	// Priority, criticality, network + dialogue and conflict are
	// independent of each other; each writes only its own slot.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var prioDiags, critDiags, netDiags, dlgDiags, cnfDiags diag.List
	stages := []func() error{
		func() error {
			emit(telemetry.KindStageStart, "priority", nil)
			res.Priority = priority.Compute(priority.Tables{
				Livelihoods:  j.raw(reg, priority.TableLivelihoods),
				Priorization: j.raw(reg, priority.TablePriorization),
				Threats:      j.raw(reg, priority.TableThreats),
				Impacts:      j.raw(reg, priority.TableThreatImpacts),
				Respondents:  j.raw(reg, priority.TableRespondents),
				Responses:    j.raw(reg, priority.TableResponses),
				Questions:    j.raw(reg, priority.TableQuestions),
			}, priority.Options{
				Scenarios:  cat.PriorityScenarios(),
				TopN:       opts.TopN,
				TopDrivers: cat.Priority.TopDrivers,
				Groups:     j.groups,
				Parallel:   opts.Parallel,
			}).Unwrap(&prioDiags)
			emit(telemetry.KindStageDone, "priority", map[string]any{"scopes": len(res.Priority.Scopes)})
			return ctx.Err()
		},
		func() error {
			emit(telemetry.KindStageStart, "criticality", nil)
			res.Criticality = criticality.Compute(criticality.Tables{
				ServiceLivelihood: j.raw(reg, criticality.TableServiceLivelihood),
				Ecosystems:        j.raw(reg, criticality.TableEcosystems),
				EcoServices:       j.raw(reg, criticality.TableEcoServices),
				EcoLivelihoods:    j.raw(reg, criticality.TableEcoLivelihoods),
				ThreatServices:    j.raw(reg, criticality.TableThreatServices),
				Threats:           j.raw(reg, criticality.TableThreats),
				Priorization:      j.raw(reg, criticality.TablePriorization),
			}, criticality.Options{
				Scenarios: cat.CriticalityScenarios(),
				Primary:   cat.Criticality.Primary,
				Leverage:  cat.LeverageScenario(),
				TopN:      opts.TopN,
				Groups:    j.groups,
				Parallel:  opts.Parallel,
			}).Unwrap(&critDiags)
			emit(telemetry.KindStageDone, "criticality", map[string]any{"scopes": len(res.Criticality.Scopes), "pressures": len(res.Criticality.Pressures)})
			return ctx.Err()
		},
		func() error {
			emit(telemetry.KindStageStart, "network", nil)
			res.Actors = network.Snapshot(j.raw(reg, network.TableActors)).Unwrap(&netDiags)
			res.Graph = network.Build(j.raw(reg, network.TableActors), j.raw(reg, network.TableRelations), cat.Vocabulary()).Unwrap(&netDiags)
			res.Network = network.Analyze(res.Graph, network.Options{
				PowerWeighted: opts.PowerWeighted,
				Groups:        j.groups,
			}).Unwrap(&netDiags)
			emit(telemetry.KindStageDone, "network", map[string]any{"actors": res.Graph.Len()})
			if err := ctx.Err(); err != nil {
				return err
			}

			emit(telemetry.KindStageStart, "dialogue", nil)
			spaces := dialogue.Spaces(j.raw(reg, dialogue.TableSpaces), j.raw(reg, dialogue.TableMembers)).Unwrap(&dlgDiags)
			res.Dialogue = dialogue.Compute(spaces, res.Graph, dialogue.Options{
				Inclusiveness: opts.Inclusiveness,
				Groups:        j.groups,
			}).Unwrap(&dlgDiags)
			emit(telemetry.KindStageDone, "dialogue", map[string]any{"spaces": len(spaces)})
			return ctx.Err()
		},
		func() error {
			emit(telemetry.KindStageStart, "conflict", nil)
			events := conflict.Events(j.raw(reg, conflict.TableEvents), j.raw(reg, conflict.TableEventActors),
				j.raw(reg, conflict.TableThreatMdv), j.raw(reg, conflict.TableThreatSE)).Unwrap(&cnfDiags)
			res.Conflict = conflict.Aggregate(events, conflict.Options{
				HalfLife: opts.HalfLife,
				AsOf:     opts.AsOf,
				Groups:   j.groups,
			}).Unwrap(&cnfDiags)
			emit(telemetry.KindStageDone, "conflict", map[string]any{"events": len(events)})
			return ctx.Err()
		},
	}
	if err := runStages(opts.Parallel, stages); err != nil {
		return nil, err
	}
	ds.Extend(prioDiags)
	ds.Extend(critDiags)
	ds.Extend(netDiags)
	ds.Extend(dlgDiags)
	ds.Extend(cnfDiags)

	// Equity reads the capacity gap each grupo reported to priority.
	emit(telemetry.KindStageStart, "equity", nil)
	res.Equity = equity.Compute(equity.Tables{
		DifLivelihoods:    j.raw(reg, equity.TableDifLivelihoods),
		DifServices:       j.raw(reg, equity.TableDifServices),
		ServiceLivelihood: j.raw(reg, equity.TableServiceLivelihood),
	}, equity.Options{
		Scenarios:   cat.EquityScenarios(),
		Primary:     cat.Equity.Primary,
		CapacityGap: capacityGaps(res.Priority),
		TopN:        opts.TopN,
		Groups:      j.groups,
		Parallel:    opts.Parallel,
	}).Unwrap(&ds)
	emit(telemetry.KindStageDone, "equity", map[string]any{"groups": len(res.Equity.Groups), "hotspots": len(res.Equity.Hotspots)})

	// Feasibility.
	emit(telemetry.KindStageStart, "feasibility", nil)
	in := feasibility.Inputs{
		Groups:   append([]string{join.Overall}, j.groups...),
		Strength: make(map[string]float64),
		Coverage: make(map[string]float64),
		Risk:     make(map[string]float64),
		NA:       make(map[string]bool),
	}
	for _, g := range in.Groups {
		s, _ := res.Network.StrengthOf(g)
		c, _ := res.Dialogue.CoverageOf(g)
		in.Strength[g], in.Coverage[g] = s.Value, c.Value
		in.Risk[g] = res.Conflict.RiskOf(g)
		if s.NA && c.NA {
			in.NA[g] = true
		}
	}
	res.Feasibility = feasibility.Compose(in, feasibility.Options{
		Scenarios:  cat.FeasibilityScenarios(),
		Primary:    cat.Feasibility.Primary,
		TopN:       opts.TopN,
		Tiers:      cat.TierPolicy(),
		Indicators: cat.MonitoringIndicators(),
		Parallel:   opts.Parallel,
	}).Unwrap(&ds)
	emit(telemetry.KindStageDone, "feasibility", map[string]any{"groups": len(res.Feasibility.Groups)})

	// Portfolio.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emit(telemetry.KindStageStart, "portfolio", nil)
	res.Portfolio = feasibility.BuildPortfolio(feasibility.PortfolioInputs{
		Candidates:  candidates(res),
		Equity:      equityIndex(res.Equity, j.groups),
		Feasibility: res.Feasibility,
	}, feasibility.PortfolioOptions{
		Scenarios:  cat.PortfolioScenarios(),
		Primary:    cat.Portfolio.Primary,
		PerGroup:   cat.Portfolio.BundlesPerGroup,
		MaxThreats: cat.Portfolio.MaxThreats,
		TopN:       opts.TopN,
		Tiers:      cat.TierPolicy(),
		Indicators: cat.MonitoringIndicators(),
		Parallel:   opts.Parallel,
	}).Unwrap(&ds)
	emit(telemetry.KindStageDone, "portfolio", map[string]any{"bundles": len(res.Portfolio.Bundles)})

	res.Tables = outputTables(res)
	res.Diagnostics = ds
	res.Summary.finish(res, now().UTC())

	if err := opts.Events.Diagnostics(runID, ds); err != nil {
		logger.Warn("telemetry write failed", "err", err)
	}
	logging.Diagnostics(logger, ds)
	emit(telemetry.KindRunDone, "", map[string]any{"tables": len(res.Tables), "diagnostics": len(ds)})
	logger.Info("run finished", "run", runID, "tables", len(res.Tables), "warnings", res.Summary.Warnings)
	return res, nil
}

func runStages(parallel bool, stages []func() error) error {
	if !parallel {
		for _, fn := range stages {
			if err := fn(); err != nil {
				return err
			}
		}
		return nil
	}
	var g errgroup.Group
	for _, fn := range stages {
		g.Go(fn)
	}
	return g.Wait()
}

type joined struct {
	tables     map[string]*table.Table
	groups     []string
	unresolved map[string]int
	diags      diag.List
}

// raw returns the joined table when there is one, the registered table
// otherwise, or nil.
func (j joined) raw(reg *table.Registry, name string) *table.Table {
	if t, ok := j.tables[name]; ok {
		return t
	}
	t, _ := reg.Get(name)
	return t
}

// joinInputs enriches every TIDY_ fact table that carries context_id or
// grupo and verifies the partition of each.
func joinInputs(reg *table.Registry) joined {
	out := joined{tables: make(map[string]*table.Table), unresolved: make(map[string]int)}
	ctxTable, _ := reg.Get(join.TableContext)
	geoTable, _ := reg.Get(join.TableGeo)
	dim := join.BuildDimension(ctxTable, geoTable).Unwrap(&out.diags)
	out.groups = dim.Groups()

	for _, name := range reg.Names() {
		if !strings.HasPrefix(name, "TIDY_") {
			continue
		}
		t, _ := reg.Get(name)
		if !t.HasColumn(join.ColContextID) && !t.HasColumn(join.ColGrupo) {
			continue
		}
		jt := dim.Enrich(t).Unwrap(&out.diags)
		join.Split(jt).Unwrap(&out.diags)
		out.tables[name] = jt.Table
		if jt.Unresolved > 0 {
			out.unresolved[name] = jt.Unresolved
		}
	}
	return out
}
