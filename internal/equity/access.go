package equity

import (
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/join"
	"github.com/papapumpkin/pares/internal/table"
)

// Sources of a differentiated impact record.
const (
	SourceLivelihood = "mdv"
	SourceService    = "se"
)

// Differentiated counts the impact records reported for one affected
// population within one scope.
type Differentiated struct {
	Group   string
	Label   string
	Records int
	Threats int
	// BySource counts records per source table.
	BySource map[string]int
}

type difResult struct {
	list    []Differentiated
	records map[string]int // grupo -> labelled records
}

// differentiated merges both differentiated impact tables and counts
// records per canonical population label, OVERALL and per grupo.
func differentiated(t Tables, ds *diag.List) difResult {
	type key struct{ group, label string }
	type agg struct {
		records  int
		threats  map[string]bool
		bySource map[string]int
	}
	aggs := make(map[key]*agg)
	out := difResult{records: make(map[string]int)}
	for _, src := range []struct {
		t      *table.Table
		name   string
		source string
	}{{t.DifLivelihoods, TableDifLivelihoods, SourceLivelihood}, {t.DifServices, TableDifServices, SourceService}} {
		var unlabelled int
		src.t.Each(func(_ int, r table.Row) {
			raw, ok := r.Str(ColDifGroup)
			if !ok {
				unlabelled++
				return
			}
			label := table.Canonical(raw)
			threat, hasThreat := r.Str(ColThreatRef)
			grupo, hasGroup := r.Str(join.ColGrupo)
			if hasGroup {
				out.records[grupo]++
			}
			scopes := []string{join.Overall}
			if hasGroup {
				scopes = append(scopes, grupo)
			}
			for _, g := range scopes {
				k := key{g, label}
				a := aggs[k]
				if a == nil {
					a = &agg{threats: make(map[string]bool), bySource: make(map[string]int)}
					aggs[k] = a
				}
				a.records++
				a.bySource[src.source]++
				if hasThreat {
					a.threats[src.source+":"+threat] = true
				}
			}
		})
		if unlabelled > 0 {
			ds.Add(stage, src.name, diag.KindMissingValue, "%d differentiated records have no population label", unlabelled)
		}
	}

	for k, a := range aggs {
		out.list = append(out.list, Differentiated{Group: k.group, Label: k.label, Records: a.records, Threats: len(a.threats), BySource: a.bySource})
	}
	sort.Slice(out.list, func(i, j int) bool {
		a, b := out.list[i], out.list[j]
		if oa, ob := a.Group == join.Overall, b.Group == join.Overall; oa != ob {
			return oa
		}
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Records != b.Records {
			return a.Records > b.Records
		}
		return a.Label < b.Label
	})
	return out
}

// Access is the share of service-livelihood records reporting barriers
// and inclusion remarks within one scope, optionally for one livelihood.
type Access struct {
	Group         string
	MdvID         string
	MdvName       string
	Rows          int
	Barriers      int
	Inclusion     int
	BarrierRate   float64
	InclusionRate float64
}

func (a *Access) add(r table.Row) {
	a.Rows++
	if _, ok := r.Str(ColBarriers); ok {
		a.Barriers++
	}
	if _, ok := r.Str(ColInclusion); ok {
		a.Inclusion++
	}
	a.BarrierRate = float64(a.Barriers) / float64(a.Rows)
	a.InclusionRate = float64(a.Inclusion) / float64(a.Rows)
}

type accessResult struct {
	byGroup map[string]Access
	byMdv   []Access
}

// accessRates computes barrier and inclusion rates per grupo, OVERALL
// included, and per grupo × livelihood.
func accessRates(t *table.Table) accessResult {
	out := accessResult{byGroup: make(map[string]Access)}
	type key struct{ group, mdv string }
	byMdv := make(map[key]*Access)
	t.Each(func(_ int, r table.Row) {
		scopes := []string{join.Overall}
		if g, ok := r.Str(join.ColGrupo); ok {
			scopes = append(scopes, g)
		}
		mdv, hasMdv := r.Str(ColMdvID)
		for _, g := range scopes {
			a := out.byGroup[g]
			a.Group = g
			a.add(r)
			out.byGroup[g] = a
			if !hasMdv {
				continue
			}
			k := key{g, mdv}
			m := byMdv[k]
			if m == nil {
				m = &Access{Group: g, MdvID: mdv}
				byMdv[k] = m
			}
			if n, ok := r.Str(ColMdvName); ok && m.MdvName == "" {
				m.MdvName = n
			}
			m.add(r)
		}
	})
	for _, a := range byMdv {
		out.byMdv = append(out.byMdv, *a)
	}
	sort.Slice(out.byMdv, func(i, j int) bool {
		a, b := out.byMdv[i], out.byMdv[j]
		if oa, ob := a.Group == join.Overall, b.Group == join.Overall; oa != ob {
			return oa
		}
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.MdvID < b.MdvID
	})
	return out
}

// Topics of the free-text frequency tables.
const (
	TopicBarriers  = "barriers"
	TopicAccess    = "access"
	TopicInclusion = "inclusion"
)

var topicColumns = []struct{ topic, col string }{
	{TopicBarriers, ColBarriers},
	{TopicAccess, ColAccess},
	{TopicInclusion, ColInclusion},
}

// Frequency is how often one free-text item was mentioned within one
// scope; Rate is its share of the scope's mentions for the topic.
type Frequency struct {
	Topic string
	Group string
	Item  string
	Count int
	Rate  float64
}

var (
	itemSeparator = regexp.MustCompile(`[,;|/\n\r]+`)
	itemAnd       = regexp.MustCompile(`(?i)\s+y\s+`)
)

// minItemLength drops stray letters left over from splitting.
const minItemLength = 2

// SplitItems breaks a free-text answer into distinct canonical items on
// list separators and the conjunction "y".
func SplitItems(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range itemSeparator.Split(raw, -1) {
		for _, sub := range itemAnd.Split(part, -1) {
			item := table.Canonical(sub)
			if utf8.RuneCountInString(item) < minItemLength || seen[item] {
				continue
			}
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}

// frequencies counts the items of every topic column, OVERALL and within
// each grupo.
func frequencies(t *table.Table, groups []string) []Frequency {
	if t == nil {
		return nil
	}
	scopes := map[string]*table.Table{join.Overall: t}
	order := []string{join.Overall}
	for _, g := range groups {
		scopes[g] = t.Filter(t.Name(), func(r table.Row) bool {
			v, ok := r.Str(join.ColGrupo)
			return ok && v == g
		})
		order = append(order, g)
	}

	var out []Frequency
	for _, tc := range topicColumns {
		if !t.HasColumn(tc.col) {
			continue
		}
		for _, g := range order {
			counts := make(map[string]int)
			total := 0
			scopes[g].Each(func(_ int, r table.Row) {
				raw, ok := r.Str(tc.col)
				if !ok {
					return
				}
				for _, item := range SplitItems(raw) {
					counts[item]++
					total++
				}
			})
			start := len(out)
			for item, n := range counts {
				out = append(out, Frequency{Topic: tc.topic, Group: g, Item: item, Count: n, Rate: float64(n) / float64(total)})
			}
			block := out[start:]
			sort.Slice(block, func(i, j int) bool {
				if block[i].Count != block[j].Count {
					return block[i].Count > block[j].Count
				}
				return block[i].Item < block[j].Item
			})
		}
	}
	return out
}
