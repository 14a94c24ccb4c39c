// Package ui renders run results for the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/papapumpkin/pares/internal/catalog"
	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/feasibility"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/pipeline"
	"github.com/papapumpkin/pares/internal/priority"
	"github.com/papapumpkin/pares/internal/store"
	ptable "github.com/papapumpkin/pares/internal/table"
)

// Printer writes styled output to one writer.
type Printer struct {
	w io.Writer
}

// New returns a Printer writing to w, or to stderr when w is nil.
func New(w io.Writer) *Printer {
	if w == nil {
		w = os.Stderr
	}
	return &Printer{w: w}
}

func (p *Printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) Error(msg string) {
	p.line("%s %s", styleError.Render("error:"), msg)
}

func (p *Printer) Info(msg string) {
	p.line("%s", styleDim.Render(msg))
}

func (p *Printer) Success(msg string) {
	p.line("%s %s", styleOK.Render(iconOK), msg)
}

// Summary prints the run header: inputs, groups, outputs and diagnostic
// counts.
func (p *Printer) Summary(s pipeline.Summary) {
	p.line("%s", styleTitle.Render("run "+s.RunID))
	kv := func(label, value string) {
		p.line("  %s %s", styleLabel.Render(fmt.Sprintf("%-12s", label)), styleValue.Render(value))
	}
	kv("duration", s.Duration().Round(time.Millisecond).String())
	kv("inputs", fmt.Sprintf("%d tables", len(s.InputTables)))
	groups := "(none)"
	if len(s.Groups) > 0 {
		groups = strings.Join(s.Groups, ", ")
	}
	kv("groups", groups)
	kv("outputs", fmt.Sprintf("%d tables", len(s.OutputRows)))
	if n := s.TotalUnresolved(); n > 0 {
		kv("unresolved", styleWarn.Render(fmt.Sprintf("%d rows without grupo", n)))
	}
	if len(s.Rejected) > 0 {
		kv("rejected", styleWarn.Render(strings.Join(s.Rejected, ", ")))
	}
	status := styleOK.Render(iconOK + " no warnings")
	if s.Warnings > 0 {
		status = styleWarn.Render(fmt.Sprintf("%s %d warning(s)", iconWarning, s.Warnings))
	}
	kv("diagnostics", fmt.Sprintf("%s, %d note(s)", status, s.Notes))
	p.line("")
}

// Diagnostics lists diagnostics, warnings first, capped at limit lines.
// A limit of 0 prints all of them.
func (p *Printer) Diagnostics(ds diag.List, limit int) {
	if len(ds) == 0 {
		return
	}
	p.line("%s", styleTitle.Render("diagnostics"))
	ordered := make(diag.List, 0, len(ds))
	for _, d := range ds {
		if d.Kind.IsWarning() {
			ordered = append(ordered, d)
		}
	}
	for _, d := range ds {
		if !d.Kind.IsWarning() {
			ordered = append(ordered, d)
		}
	}
	for i, d := range ordered {
		if limit > 0 && i == limit {
			p.line("  %s", styleDim.Render(fmt.Sprintf("… %d more", len(ordered)-limit)))
			break
		}
		icon, style := iconWarning, styleWarn
		if !d.Kind.IsWarning() {
			icon, style = iconNote, styleDim
		}
		where := d.Stage
		if d.Table != "" {
			where += "/" + d.Table
		}
		p.line("  %s %s %s", style.Render(icon+" "+string(d.Kind)), styleLabel.Render(where), d.Message)
	}
	p.line("")
}

// Feasibility prints the primary-scenario feasibility of every group with
// its tier.
func (p *Printer) Feasibility(r feasibility.Result) {
	p.line("%s %s", styleTitle.Render("feasibility"), styleDim.Render("("+r.Primary+")"))
	rows := make([][]string, 0, len(r.Groups))
	for _, g := range r.Groups {
		rank, tier := fmt.Sprint(g.Rank), g.Tier
		if g.Group == join.Overall || g.NA {
			rank = "–"
		}
		if g.Downgraded {
			tier = iconGate + " " + tier
		}
		rows = append(rows, []string{
			rank, g.Group,
			score(g.NetworkStrength), score(g.DialogueCoverage), score(g.ConflictRisk),
			score(g.Score), tier, g.Weakest,
		})
	}
	const tierCol = 6
	p.line("%s", render(
		[]string{"rank", "grupo", "strength", "coverage", "risk", "score", "tier", "weakest"},
		rows,
		func(row, col int, cell string) lipgloss.Style {
			switch col {
			case 1:
				return styleCell.Foreground(colorBlue)
			case tierCol:
				return tierStyle(strings.TrimPrefix(cell, iconGate+" ")).Padding(0, 1)
			}
			return styleCell
		},
	))
}

// Portfolio prints the first n bundles in portfolio order with their
// tier.
func (p *Printer) Portfolio(r feasibility.Portfolio, n int) {
	p.line("%s %s", styleTitle.Render("intervention bundles"), styleDim.Render("("+r.Primary+")"))
	bundles := r.Bundles
	if n > 0 && len(bundles) > n {
		bundles = bundles[:n]
	}
	if len(bundles) == 0 {
		p.line("  %s", styleDim.Render("(no bundles)"))
		p.line("")
		return
	}
	rows := make([][]string, 0, len(bundles))
	for _, b := range bundles {
		tier := b.Tier
		if b.Downgraded {
			tier = iconGate + " " + tier
		}
		name := b.MdvID
		if b.MdvName != "" {
			name = b.MdvName
		}
		rows = append(rows, []string{
			fmt.Sprint(b.Rank), b.Group, name,
			score(b.Impact), score(b.Leverage), score(b.Equity), score(b.Feasibility),
			score(b.Score), tier, strings.Join(b.Threats, ", "),
		})
	}
	const tierCol = 8
	p.line("%s", render(
		[]string{"rank", "grupo", "livelihood", "impact", "leverage", "equity", "feasibility", "score", "tier", "threats"},
		rows,
		func(row, col int, cell string) lipgloss.Style {
			switch col {
			case 1:
				return styleCell.Foreground(colorBlue)
			case tierCol:
				return tierStyle(strings.TrimPrefix(cell, iconGate+" ")).Padding(0, 1)
			}
			return styleCell
		},
	))
}

// PriorityRankings prints the Top-N livelihoods of one scenario for every
// scope.
func (p *Printer) PriorityRankings(r priority.Result, scenario string, n int) {
	p.line("%s %s", styleTitle.Render("action priority"), styleDim.Render("("+scenario+")"))
	var rows [][]string
	for _, sc := range r.Scopes {
		rk, ok := sc.Evaluation.Ranking(scenario)
		if !ok {
			continue
		}
		names := make(map[string]string, len(sc.Livelihoods))
		for _, l := range sc.Livelihoods {
			names[l.MdvID] = l.Name
		}
		for _, e := range rk.Top(n) {
			rows = append(rows, []string{
				sc.Group, fmt.Sprint(e.Rank), e.EntityID, names[e.EntityID],
				score(e.Components[priority.CompPriority]),
				score(e.Components[priority.CompRisk]),
				score(e.Components[priority.CompCapacityGap]),
				score(e.Score),
			})
		}
	}
	if len(rows) == 0 {
		p.line("  %s", styleDim.Render("(no livelihoods ranked)"))
		p.line("")
		return
	}
	p.line("%s", render(
		[]string{"grupo", "rank", "mdv", "name", "priority", "risk", "gap", "api"},
		rows,
		func(row, col int, cell string) lipgloss.Style {
			if col == 0 {
				return styleCell.Foreground(colorBlue)
			}
			return styleCell
		},
	))
}

const catalogLeverage = "eli"

// Scenarios lists the weight scenarios of a catalog.
func (p *Printer) Scenarios(c *catalog.Catalog) {
	section := func(title string, primary string, scenarios []catalog.Scenario) {
		p.line("%s", styleTitle.Render(title))
		for _, s := range scenarios {
			name := styleGroup.Render(fmt.Sprintf("%-20s", s.Name))
			if s.Name == primary {
				name += styleOK.Render(" (primary)")
			}
			p.line("  %s", name)
			for _, comp := range sortedWeights(s.Weights) {
				p.line("    %s %s", styleLabel.Render(fmt.Sprintf("%-18s", comp)), styleValue.Render(fmt.Sprintf("%.2f", s.Weights[comp])))
			}
		}
		p.line("")
	}
	section("priority scenarios", "", c.Priority.Scenarios)
	section("criticality scenarios", c.Criticality.Primary, c.Criticality.Scenarios)
	section("ecosystem leverage", catalogLeverage, []catalog.Scenario{{Name: catalogLeverage, Weights: c.Criticality.Leverage}})
	section("equity scenarios", c.Equity.Primary, c.Equity.Scenarios)
	section("feasibility scenarios", c.Feasibility.Primary, c.Feasibility.Scenarios)
	section("portfolio scenarios", c.Portfolio.Primary, c.Portfolio.Scenarios)
}

// Problems prints validation problems, or a success line when there are
// none.
func (p *Printer) Problems(subject string, errs []error) {
	if len(errs) == 0 {
		p.line("%s %s", styleOK.Render(iconOK+" "+subject), styleDim.Render("no problems"))
		return
	}
	p.line("%s %s", styleError.Render(fmt.Sprintf("%s %s", iconFailed, subject)), fmt.Sprintf("%d problem(s):", len(errs)))
	for _, err := range errs {
		p.line("  %s %v", styleError.Render("•"), err)
	}
}

// Runs lists stored runs, newest first.
func (p *Printer) Runs(runs []store.Run) {
	if len(runs) == 0 {
		p.Info("no stored runs")
		return
	}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		strict := ""
		if r.Strict {
			strict = "strict"
		}
		rows[i] = []string{r.ID, r.StartedAt.Local().Format(time.DateTime),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(), r.InputDir, strict}
	}
	p.line("%s", render([]string{"run", "started", "took", "input", ""}, rows, nil))
}

// Table prints up to limit rows of a result table. A limit of 0 prints
// every row.
func (p *Printer) Table(t *ptable.Table, limit int) {
	cols := t.Columns()
	n := t.Len()
	if limit > 0 && n > limit {
		n = limit
	}
	rows := make([][]string, n)
	for i := range n {
		r := t.Row(i)
		rows[i] = make([]string, len(cols))
		for j, c := range cols {
			rows[i][j] = cell(r[c])
		}
	}
	p.line("%s %s", styleTitle.Render(t.Name()), styleDim.Render(fmt.Sprintf("(%d rows)", t.Len())))
	p.line("%s", render(cols, rows, nil))
	if n < t.Len() {
		p.line("  %s", styleDim.Render(fmt.Sprintf("… %d more", t.Len()-n)))
	}
}

// Rerun announces a watch-triggered run.
func (p *Printer) Rerun(files []string) {
	p.line("\n%s %s", styleTitle.Render("↻ inputs changed"), styleDim.Render(strings.Join(files, ", ")))
}

func render(headers []string, rows [][]string, style func(row, col int, cell string) lipgloss.Style) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			if style == nil || row < 0 || row >= len(rows) || col >= len(rows[row]) {
				return styleCell
			}
			return style(row, col, rows[row][col])
		})
	return t.String()
}

func sortedWeights(w map[string]float64) []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func score(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%.4g", x)
	case time.Time:
		return x.Format(time.DateOnly)
	default:
		return fmt.Sprint(x)
	}
}
