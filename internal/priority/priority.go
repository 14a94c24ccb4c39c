// Package priority computes the Action Priority Index of livelihoods
// (medios de vida): a weighted composite of field priority, threat-driven
// risk and adaptive capacity gap, overall and within every grupo.
package priority

import (
	"sort"

	"github.com/papapumpkin/pares/internal/composite"
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/normalize"
	"github.com/papapumpkin/pares/internal/table"
)

const stage = "priority"

// Input table names.
const (
	TableLivelihoods   = "LOOKUP_MDV"
	TablePriorization  = "TIDY_3_2_PRIORIZACION"
	TableThreats       = "TIDY_4_1_AMENAZAS"
	TableThreatImpacts = "TIDY_4_2_1_AMENAZA_MDV"
	TableRespondents   = "TIDY_7_1_RESPONDENTS"
	TableResponses     = "TIDY_7_1_RESPONSES"
	TableQuestions     = "LOOKUP_CA_QUESTIONS"
)

// Canonical column names.
const (
	ColMdvID           = "mdv_id"
	ColMdvName         = "mdv_name"
	ColITotal          = "i_total"
	ColThreatID        = "amenaza_id"
	ColThreatName      = "amenaza"
	ColSuma            = "suma"
	ColRespondentID    = "respondent_id"
	ColQuestionID      = "question_id"
	ColQuestionText    = "question_text"
	ColResponseRaw     = "response_raw"
	ColResponseNumeric = "response_numeric"
)

// ImpactColumns are summed into a threat's total impact on a livelihood.
var ImpactColumns = []string{
	"i_economia", "i_alimentaria", "i_sanitaria", "i_ambiental",
	"i_personal", "i_comunitaria", "i_politica",
}

// Component names weighted by priority scenarios.
const (
	CompPriority    = "priority"
	CompRisk        = "risk"
	CompCapacityGap = "capacity_gap"
)

// DefaultScenarios are used when Options.Scenarios is empty.
func DefaultScenarios() []composite.Scenario {
	mk := func(name string, p, r, c float64) composite.Scenario {
		return composite.Scenario{Name: name, Weights: map[string]float64{CompPriority: p, CompRisk: r, CompCapacityGap: c}}
	}
	return []composite.Scenario{
		mk("balanced", 0.4, 0.4, 0.2),
		mk("livelihood_first", 0.5, 0.3, 0.2),
		mk("risk_first", 0.3, 0.5, 0.2),
	}
}

// Tables are the joined inputs. Any of them may be nil.
type Tables struct {
	Livelihoods  *table.Table
	Priorization *table.Table
	Threats      *table.Table
	Impacts      *table.Table
	Respondents  *table.Table
	Responses    *table.Table
	Questions    *table.Table
}

// Options tunes Compute.
type Options struct {
	Scenarios []composite.Scenario
	// TopN bounds the ranking tables and the stability comparison.
	TopN int
	// TopDrivers bounds the threat drivers kept per livelihood.
	TopDrivers int
	// Groups adds groups to the universe even when they have no rows.
	Groups   []string
	Parallel bool
}

// Livelihood carries one livelihood's measures within one scope.
type Livelihood struct {
	MdvID          string
	Name           string
	MeanITotal     float64
	Records        int
	WeightedImpact float64
	MeanResponse   float64
	Responses      int
	// Normalized components; absent measures stay 0.
	Priority    float64
	Risk        float64
	CapacityGap float64
	Has         map[string]bool
}

// Threat is one threat's severity within one scope.
type Threat struct {
	Group    string
	ThreatID string
	Name     string
	MeanSuma float64
	N        int
	SumaNorm float64
}

// Driver is a threat ranked by its weighted impact on a livelihood.
type Driver struct {
	Group          string
	MdvID          string
	ThreatID       string
	Threat         string
	WeightedImpact float64
	Rank           int
}

// Question is the mean answer to one capacity question within one scope.
// The lowest means are the capacity bottlenecks.
type Question struct {
	Group        string
	QuestionID   string
	Text         string
	MeanResponse float64
	N            int
}

// Scope is the index computed over OVERALL or one grupo.
type Scope struct {
	Group       string
	Livelihoods []Livelihood
	Evaluation  composite.Evaluation
	Stability   composite.Stability
	// MeanResponse is the mean capacity answer over every usable response
	// in the scope; Responses is 0 when there were none.
	MeanResponse float64
	Responses    int
}

// CapacityGap returns 1 - MeanResponse, or false when the scope has no
// usable responses.
func (s Scope) CapacityGap() (float64, bool) {
	if s.Responses == 0 {
		return 0, false
	}
	return 1 - s.MeanResponse, true
}

// Result holds every scope plus threat severity, drivers and capacity
// questions.
type Result struct {
	TopN      int
	Scopes    []Scope
	Threats   []Threat
	Drivers   []Driver
	Questions []Question
}

// Scope returns the named scope.
func (r Result) Scope(group string) (Scope, bool) {
	for _, s := range r.Scopes {
		if s.Group == group {
			return s, true
		}
	}
	return Scope{}, false
}

// Compute derives priority, risk and capacity gap for every livelihood in
// every scope, normalizing within the scope, and scores each scenario.
func Compute(t Tables, opts Options) diag.Outcome[Result] {
	var ds diag.List
	scenarios := opts.Scenarios
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = 10
	}
	topDrivers := opts.TopDrivers
	if topDrivers <= 0 {
		topDrivers = 5
	}

	checkColumns(t, &ds)
	names := livelihoodNames(t)
	responses := attachRespondents(t, &ds)
	questionText := questionTexts(t.Questions)

	out := Result{TopN: topN}
	for _, group := range scopes(t, responses, opts.Groups) {
		m := measure(group, t, responses, names, topDrivers, &ds)
		out.Threats = append(out.Threats, m.threats...)
		out.Drivers = append(out.Drivers, m.drivers...)

		components := map[string]composite.Scores{}
		for _, c := range []string{CompPriority, CompRisk, CompCapacityGap} {
			components[c] = composite.Scores{}
		}
		for _, l := range m.livelihoods {
			for c := range l.Has {
				components[c][l.MdvID] = l.component(c)
			}
		}
		label := stage + "@" + group
		eval := composite.Evaluate(components, scenarios, composite.Options{Label: label, Parallel: opts.Parallel}).Unwrap(&ds)
		sc := Scope{
			Group:       group,
			Livelihoods: m.livelihoods,
			Evaluation:  eval,
			Stability:   composite.TopNStability(eval.Rankings, topN),
		}
		sc.MeanResponse, sc.Responses = meanResponse(group, responses)
		out.Scopes = append(out.Scopes, sc)
		out.Questions = append(out.Questions, questions(group, responses, questionText)...)
	}
	return diag.Ok(out, ds...)
}

func (l Livelihood) component(c string) float64 {
	switch c {
	case CompPriority:
		return l.Priority
	case CompRisk:
		return l.Risk
	case CompCapacityGap:
		return l.CapacityGap
	}
	return 0
}

func checkColumns(t Tables, ds *diag.List) {
	required := []struct {
		t    *table.Table
		name string
		cols []string
	}{
		{t.Priorization, TablePriorization, []string{ColMdvID, ColITotal}},
		{t.Threats, TableThreats, []string{ColThreatID, ColSuma}},
		{t.Impacts, TableThreatImpacts, []string{ColMdvID, ColThreatID}},
		{t.Respondents, TableRespondents, []string{ColRespondentID, ColMdvID}},
		{t.Responses, TableResponses, []string{ColRespondentID}},
	}
	for _, r := range required {
		if r.t == nil {
			ds.Add(stage, r.name, diag.KindMissingTable, "table absent; its component is scored 0")
			continue
		}
		if err := r.t.Require(r.cols...); err != nil {
			ds.Add(stage, r.name, diag.KindMissingColumn, "%v", err)
		}
	}
}

// livelihoodNames collects mdv names from the lookup first, then from any
// fact table that carries them.
func livelihoodNames(t Tables) map[string]string {
	names := make(map[string]string)
	for _, tbl := range []*table.Table{t.Livelihoods, t.Priorization, t.Impacts, t.Respondents} {
		if tbl == nil {
			continue
		}
		tbl.Each(func(_ int, r table.Row) {
			id, ok := r.Str(ColMdvID)
			if !ok {
				return
			}
			if name, ok := r.Str(ColMdvName); ok && names[id] == "" {
				names[id] = name
			}
		})
	}
	return names
}

type response struct {
	mdvID    string
	group    string
	question string
	value    float64
}

// attachRespondents resolves each usable response to its respondent's
// livelihood and grupo.
func attachRespondents(t Tables, ds *diag.List) []response {
	if t.Respondents == nil || t.Responses == nil {
		return nil
	}
	type who struct{ mdv, group string }
	byID := make(map[string]who)
	t.Respondents.Each(func(_ int, r table.Row) {
		id, ok := r.Str(ColRespondentID)
		if !ok {
			return
		}
		if _, seen := byID[id]; seen {
			return
		}
		mdv, _ := r.Str(ColMdvID)
		group, _ := r.Str(join.ColGrupo)
		byID[id] = who{mdv: mdv, group: group}
	})

	var out []response
	var orphan, unusable int
	t.Responses.Each(func(_ int, r table.Row) {
		id, _ := r.Str(ColRespondentID)
		w, ok := byID[id]
		if !ok || w.mdv == "" {
			orphan++
			return
		}
		v, ok := responseUnit(r)
		if !ok {
			unusable++
			return
		}
		q, _ := r.Str(ColQuestionID)
		out = append(out, response{mdvID: w.mdv, group: w.group, question: q, value: v})
	})
	if orphan > 0 {
		ds.Add(stage, TableResponses, diag.KindUnresolvedJoin, "%d responses have no respondent livelihood", orphan)
	}
	if unusable > 0 {
		ds.Add(stage, TableResponses, diag.KindMissingValue, "%d responses are not numeric in [0,100]", unusable)
	}
	return out
}

// scopes returns OVERALL followed by every grupo seen in the inputs or
// requested, sorted.
func scopes(t Tables, responses []response, extra []string) []string {
	seen := map[string]bool{join.Overall: true}
	var groups []string
	add := func(g string) {
		if g != "" && !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}
	for _, tbl := range []*table.Table{t.Priorization, t.Threats, t.Impacts} {
		if tbl == nil {
			continue
		}
		tbl.Each(func(_ int, r table.Row) {
			g, _ := r.Str(join.ColGrupo)
			add(g)
		})
	}
	for _, r := range responses {
		add(r.group)
	}
	for _, g := range extra {
		add(g)
	}
	sort.Strings(groups)
	return append([]string{join.Overall}, groups...)
}

func inScope(r table.Row, group string) bool {
	if group == join.Overall {
		return true
	}
	g, ok := r.Str(join.ColGrupo)
	return ok && g == group
}

func normalized(label string, raw map[string]float64, ds *diag.List) map[string]float64 {
	if len(raw) == 0 {
		return map[string]float64{}
	}
	return normalize.Map(label, raw).Unwrap(ds)
}
