package table

import (
	"sort"

	"github.com/papapumpkin/pares/internal/diag"
)

const stage = "registry"

// Aliases maps a canonical column name to the source headers accepted for
// it. Resolution happens once, when a table is registered.
type Aliases map[string][]string

// Shape summarizes a registered table.
type Shape struct {
	Name    string
	Rows    int
	Columns int
}

// Registry holds the named input tables of a run.
type Registry struct {
	aliases  Aliases
	perTable map[string]Aliases
	tables   map[string]*Table
}

// NewRegistry creates an empty registry that applies aliases on Register.
func NewRegistry(aliases Aliases) *Registry {
	return &Registry{
		aliases:  aliases,
		perTable: make(map[string]Aliases),
		tables:   make(map[string]*Table),
	}
}

// ScopeAliases adds aliases that apply only to the named table. For a
// canonical name present in both, the table's list replaces the shared one.
func (r *Registry) ScopeAliases(name string, aliases Aliases) {
	r.perTable[name] = aliases
}

func (r *Registry) aliasesFor(name string) Aliases {
	scoped, ok := r.perTable[name]
	if !ok {
		return r.aliases
	}
	merged := make(Aliases, len(r.aliases)+len(scoped))
	for k, v := range r.aliases {
		merged[k] = v
	}
	for k, v := range scoped {
		merged[k] = v
	}
	return merged
}

// Register stores t under its name, after canonicalizing its headers and
// renaming aliased columns to their canonical names. Registering a name
// twice replaces the earlier table and is reported.
func (r *Registry) Register(t *Table) diag.List {
	var ds diag.List
	if _, exists := r.tables[t.name]; exists {
		ds.Add(stage, t.name, diag.KindDuplicateKey, "table registered twice; keeping the latest")
	}
	resolved, rds := resolveAliases(t, r.aliasesFor(t.name))
	ds.Extend(rds)
	r.tables[t.name] = resolved
	return ds
}

// Get returns the named table.
func (r *Registry) Get(name string) (*Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}

// Has reports whether the named table is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tables[name]
	return ok
}

// Require returns a SchemaError when the table or any of cols is absent.
func (r *Registry) Require(name string, cols ...string) error {
	t, ok := r.tables[name]
	if !ok {
		return &diag.SchemaError{Table: name}
	}
	return t.Require(cols...)
}

// Names returns the registered table names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tables))
	for n := range r.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Shape returns the row and column counts of the named table.
func (r *Registry) Shape(name string) (Shape, bool) {
	t, ok := r.tables[name]
	if !ok {
		return Shape{Name: name}, false
	}
	return Shape{Name: name, Rows: t.Len(), Columns: len(t.columns)}, true
}

// Shapes returns the shape of every registered table, sorted by name.
func (r *Registry) Shapes() []Shape {
	out := make([]Shape, 0, len(r.tables))
	for _, n := range r.Names() {
		s, _ := r.Shape(n)
		out = append(out, s)
	}
	return out
}

func resolveAliases(t *Table, aliases Aliases) (*Table, diag.List) {
	var ds diag.List

	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		cols[i] = CanonicalColumn(c)
	}
	rename := make(map[string]string, len(cols))
	for i, c := range t.columns {
		rename[c] = cols[i]
	}

	present := make(map[string]bool, len(cols))
	for _, c := range cols {
		present[c] = true
	}

	canonicalNames := make([]string, 0, len(aliases))
	for name := range aliases {
		canonicalNames = append(canonicalNames, name)
	}
	sort.Strings(canonicalNames)

	claimed := make(map[string]bool)
	for _, name := range canonicalNames {
		if present[name] {
			claimed[name] = true
		}
	}
	for _, name := range canonicalNames {
		if present[name] {
			continue
		}
		accepted := make(map[string]bool, len(aliases[name]))
		for _, a := range aliases[name] {
			accepted[CanonicalColumn(a)] = true
		}
		var matched []int
		for i, c := range cols {
			if accepted[c] && !claimed[c] {
				matched = append(matched, i)
			}
		}
		if len(matched) == 0 {
			continue
		}
		winner := matched[0]
		for _, i := range matched[1:] {
			ds.Add(stage, t.name, diag.KindAliasCollision,
				"columns %q and %q both map to %q; using %q", t.columns[winner], t.columns[i], name, t.columns[winner])
		}
		claimed[cols[winner]] = true
		claimed[name] = true
		rename[t.columns[winner]] = name
		cols[winner] = name
		present[name] = true
	}

	seen := make(map[string]bool, len(cols))
	outCols := make([]string, 0, len(cols))
	for i, c := range cols {
		if seen[c] {
			ds.Add(stage, t.name, diag.KindAliasCollision, "duplicate column %q after canonicalization; dropping %q", c, t.columns[i])
			rename[t.columns[i]] = ""
			continue
		}
		seen[c] = true
		outCols = append(outCols, c)
	}

	out := &Table{name: t.name, columns: outCols, rows: make([]Row, len(t.rows))}
	for i, row := range t.rows {
		nr := make(Row, len(row))
		for k, v := range row {
			target, ok := rename[k]
			if !ok {
				target = CanonicalColumn(k)
			}
			if target == "" {
				continue
			}
			nr[target] = v
		}
		out.rows[i] = nr
	}
	return out, ds
}
