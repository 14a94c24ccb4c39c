// Package join enriches fact tables with geography attributes through the
// context → geo lookup chain and partitions the result by grupo.
//
// Enrichment never drops or duplicates a fact row: rows whose context_id
// cannot be resolved keep their own fields, get null group attributes and
// are counted as unresolved.
package join

import (
	"sort"

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/table"
)

// Column names of the dimensional model.
const (
	ColContextID = "context_id"
	ColGeoID     = "geo_id"
	ColAdmin0    = "admin0"
	ColPaisaje   = "paisaje"
	ColGrupo     = "grupo"
	ColDate      = "observation_date"
)

// Overall is the AggregationGroup covering the whole dataset.
const Overall = "OVERALL"

// Lookup table names.
const (
	TableContext = "LOOKUP_CONTEXT"
	TableGeo     = "LOOKUP_GEO"
)

const stage = "join"

// GroupColumns are the attributes Enrich attaches to every fact row.
var GroupColumns = []string{ColGrupo, ColPaisaje, ColAdmin0, ColDate}

// Attrs are the group attributes resolved for one context.
type Attrs struct {
	GeoID   string
	Admin0  string
	Paisaje string
	Grupo   string
	Date    string
}

type geoAttrs struct {
	admin0, paisaje, grupo string
}

type contextLink struct {
	geoID string
	date  string
}

// Dimension resolves context_id to group attributes.
type Dimension struct {
	contexts map[string]contextLink
	geos     map[string]geoAttrs
	groups   []string
}

// BuildDimension indexes LOOKUP_CONTEXT and LOOKUP_GEO. Duplicate keys keep
// the first row and are reported. Either table may be nil, in which case
// every lookup is unresolved.
func BuildDimension(context, geo *table.Table) diag.Outcome[*Dimension] {
	var ds diag.List
	d := &Dimension{
		contexts: make(map[string]contextLink),
		geos:     make(map[string]geoAttrs),
	}

	if context == nil {
		ds.Add(stage, TableContext, diag.KindMissingTable, "context lookup absent; all joins unresolved")
	} else {
		context.Each(func(i int, r table.Row) {
			id, ok := r.Str(ColContextID)
			if !ok {
				ds.Add(stage, TableContext, diag.KindMissingValue, "row %d has no context_id", i)
				return
			}
			if _, dup := d.contexts[id]; dup {
				ds.Add(stage, TableContext, diag.KindDuplicateKey, "context_id %q repeated at row %d; keeping first", id, i)
				return
			}
			geoID, _ := r.Str(ColGeoID)
			date, _ := r.Str(ColDate)
			if date == "" {
				date, _ = r.Str("fecha_iso")
			}
			d.contexts[id] = contextLink{geoID: geoID, date: date}
		})
	}

	groupSet := make(map[string]bool)
	if geo == nil {
		ds.Add(stage, TableGeo, diag.KindMissingTable, "geo lookup absent; all joins unresolved")
	} else {
		geo.Each(func(i int, r table.Row) {
			id, ok := r.Str(ColGeoID)
			if !ok {
				ds.Add(stage, TableGeo, diag.KindMissingValue, "row %d has no geo_id", i)
				return
			}
			if _, dup := d.geos[id]; dup {
				ds.Add(stage, TableGeo, diag.KindDuplicateKey, "geo_id %q repeated at row %d; keeping first", id, i)
				return
			}
			var g geoAttrs
			g.admin0, _ = r.Str(ColAdmin0)
			g.paisaje, _ = r.Str(ColPaisaje)
			g.grupo, _ = r.Str(ColGrupo)
			d.geos[id] = g
			if g.grupo != "" {
				groupSet[g.grupo] = true
			}
		})
	}

	for g := range groupSet {
		d.groups = append(d.groups, g)
	}
	sort.Strings(d.groups)
	return diag.Ok(d, ds...)
}

// Groups returns the grupo universe declared by LOOKUP_GEO, sorted.
func (d *Dimension) Groups() []string {
	out := make([]string, len(d.groups))
	copy(out, d.groups)
	return out
}

// Resolve follows context_id → geo_id → attributes. It reports false when
// any link is missing or the geography has no grupo.
func (d *Dimension) Resolve(contextID string) (Attrs, bool) {
	link, ok := d.contexts[contextID]
	if !ok {
		return Attrs{}, false
	}
	g, ok := d.geos[link.geoID]
	if !ok {
		return Attrs{GeoID: link.geoID, Date: link.date}, false
	}
	a := Attrs{GeoID: link.geoID, Admin0: g.admin0, Paisaje: g.paisaje, Grupo: g.grupo, Date: link.date}
	return a, g.grupo != ""
}

// Joined is an enriched fact table together with its unresolved tally.
type Joined struct {
	Table      *table.Table
	Unresolved int
}

// Enrich attaches grupo, paisaje, admin0 and observation_date to every row
// of fact. Existing group columns are overwritten by the lookup result.
//
// A fact table without a context_id column keeps any grupo it already
// carries: rows with a non-blank grupo count as resolved, the rest as
// unresolved.
func (d *Dimension) Enrich(fact *table.Table) diag.Outcome[Joined] {
	var ds diag.List
	name := fact.Name()
	hasContext := fact.HasColumn(ColContextID)
	if !hasContext {
		ds.Add(stage, name, diag.KindMissingColumn, "no context_id column; using grupo carried by the table")
	}

	unresolved := 0
	out := fact.Extend(name, GroupColumns, func(i int, r table.Row) table.Row {
		if !hasContext {
			if g, ok := r.Str(ColGrupo); ok {
				r[ColGrupo] = g
			} else {
				r[ColGrupo] = nil
				unresolved++
			}
			for _, c := range GroupColumns[1:] {
				if _, ok := r[c]; !ok {
					r[c] = nil
				}
			}
			return r
		}

		id, _ := r.Str(ColContextID)
		a, ok := d.Resolve(id)
		if !ok {
			unresolved++
			for _, c := range GroupColumns {
				r[c] = nil
			}
			return r
		}
		r[ColGrupo] = a.Grupo
		r[ColPaisaje] = nullable(a.Paisaje)
		r[ColAdmin0] = nullable(a.Admin0)
		r[ColDate] = nullable(a.Date)
		return r
	})

	if unresolved > 0 {
		ds.Add(stage, name, diag.KindUnresolvedJoin, "%d of %d rows have no grupo", unresolved, fact.Len())
	}
	if out.Len() != fact.Len() {
		ds.Add(stage, name, diag.KindCardinalityMismatch, "enriched %d rows from %d input rows", out.Len(), fact.Len())
	}
	return diag.Ok(Joined{Table: out, Unresolved: unresolved}, ds...)
}

// Partition is the OVERALL table plus one sub-table per grupo.
type Partition struct {
	Overall    *table.Table
	Groups     map[string]*table.Table
	Unresolved int
}

// GroupNames returns the partition keys, sorted.
func (p Partition) GroupNames() []string {
	names := make([]string, 0, len(p.Groups))
	for g := range p.Groups {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}

// Split partitions a joined table by grupo. Rows with a null grupo stay in
// Overall and are excluded from every group.
func Split(j Joined) diag.Outcome[Partition] {
	var ds diag.List
	t := j.Table
	name := t.Name()

	buckets := make(map[string][]table.Row)
	unresolved := 0
	t.Each(func(_ int, r table.Row) {
		g, ok := r.Str(ColGrupo)
		if !ok {
			unresolved++
			return
		}
		buckets[g] = append(buckets[g], r)
	})

	p := Partition{Overall: t, Groups: make(map[string]*table.Table, len(buckets)), Unresolved: unresolved}
	total := unresolved
	for g, rows := range buckets {
		p.Groups[g] = table.New(name, t.Columns(), rows...)
		total += len(rows)
	}
	if total != t.Len() || unresolved != j.Unresolved {
		ds.Add(stage, name, diag.KindCardinalityMismatch,
			"partition holds %d rows (%d unresolved) for %d input rows (%d unresolved at join)", total, unresolved, t.Len(), j.Unresolved)
	}
	return diag.Ok(p, ds...)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
