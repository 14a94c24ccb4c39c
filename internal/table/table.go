// Package table provides the immutable in-memory tables every stage reads
// and produces, and the Registry that holds the named input tables of a run.
package table

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/papapumpkin/pares/internal/diag"
)

// Row is a single record. Values are string, float64, int, bool, time.Time
// or nil; nil means the cell is null.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Str returns the cell as text. Null and blank cells report false.
func (r Row) Str(col string) (string, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch x := v.(type) {
	case string:
		s = strings.TrimSpace(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			s = strconv.FormatInt(int64(x), 10)
		} else {
			s = strconv.FormatFloat(x, 'f', -1, 64)
		}
	case int:
		s = strconv.Itoa(x)
	case bool:
		s = strconv.FormatBool(x)
	case time.Time:
		s = x.Format("2006-01-02")
	default:
		s = fmt.Sprint(x)
	}
	return s, s != ""
}

// Float returns the cell as a finite number. Text cells are parsed, with a
// comma accepted as decimal separator. Non-numeric, null and non-finite
// values report false.
func (r Row) Float(col string) (float64, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return 0, false
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// dateLayouts are the text date formats Time accepts, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
}

// Time returns the cell as a UTC instant. Besides time values and the
// layouts in dateLayouts, a bare year (number or text between 1000 and
// 9999) is read as January 1 of that year.
func (r Row) Time(col string) (time.Time, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return time.Time{}, false
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC(), !t.IsZero()
	}
	if f, ok := r.Float(col); ok {
		if f == math.Trunc(f) && f >= 1000 && f <= 9999 {
			return time.Date(int(f), time.January, 1, 0, 0, 0, 0, time.UTC), true
		}
		return time.Time{}, false
	}
	s, ok := r.Str(col)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Table is a named, ordered sequence of rows sharing a column schema.
// Tables are never mutated after construction; transforms return new tables.
type Table struct {
	name    string
	columns []string
	rows    []Row
}

// New builds a table, copying the column list and every row.
func New(name string, columns []string, rows ...Row) *Table {
	t := &Table{
		name:    name,
		columns: slices.Clone(columns),
		rows:    make([]Row, len(rows)),
	}
	for i, r := range rows {
		t.rows[i] = r.Clone()
	}
	return t
}

// Empty returns a table with a schema and no rows.
func Empty(name string, columns ...string) *Table {
	return New(name, columns)
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns a copy of the column list in declaration order.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// Len returns the number of rows. A nil table has zero rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// HasColumn reports whether col is part of the schema.
func (t *Table) HasColumn(col string) bool {
	return t != nil && slices.Contains(t.columns, col)
}

// Row returns a copy of row i.
func (t *Table) Row(i int) Row { return t.rows[i].Clone() }

// Rows returns copies of all rows in order.
func (t *Table) Rows() []Row {
	if t == nil {
		return nil
	}
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Clone()
	}
	return out
}

// Each calls fn for every row in order. fn receives a read-only view and
// must not retain or modify it.
func (t *Table) Each(fn func(i int, r Row)) {
	if t == nil {
		return
	}
	for i, r := range t.rows {
		fn(i, r)
	}
}

// Floats returns the column as numbers, with NaN where a cell is missing
// or non-numeric.
func (t *Table) Floats(col string) []float64 {
	out := make([]float64, t.Len())
	t.Each(func(i int, r Row) {
		f, ok := r.Float(col)
		if !ok {
			f = math.NaN()
		}
		out[i] = f
	})
	return out
}

// Require returns a SchemaError for the first column not in the schema.
func (t *Table) Require(cols ...string) error {
	for _, c := range cols {
		if !t.HasColumn(c) {
			return &diag.SchemaError{Table: t.name, Column: c}
		}
	}
	return nil
}

// Extend returns a new table named name with extra columns appended to the
// schema. fn receives a copy of each row and returns the row to keep.
func (t *Table) Extend(name string, extra []string, fn func(i int, r Row) Row) *Table {
	cols := t.Columns()
	for _, c := range extra {
		if !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}
	out := &Table{name: name, columns: cols, rows: make([]Row, len(t.rows))}
	for i, r := range t.rows {
		out.rows[i] = fn(i, r.Clone())
	}
	return out
}

// Filter returns a new table named name holding the rows pred accepts.
func (t *Table) Filter(name string, pred func(r Row) bool) *Table {
	out := &Table{name: name, columns: slices.Clone(t.columns)}
	for _, r := range t.rows {
		if pred(r) {
			out.rows = append(out.rows, r.Clone())
		}
	}
	return out
}

// Builder accumulates rows for a new table.
type Builder struct {
	name    string
	columns []string
	rows    []Row
}

// NewBuilder starts a table with the given schema.
func NewBuilder(name string, columns ...string) *Builder {
	return &Builder{name: name, columns: columns}
}

// Add appends a row. The row is owned by the builder afterwards.
func (b *Builder) Add(r Row) *Builder {
	b.rows = append(b.rows, r)
	return b
}

// Len returns the number of rows added so far.
func (b *Builder) Len() int { return len(b.rows) }

// Build returns the finished table.
func (b *Builder) Build() *Table {
	return &Table{name: b.name, columns: slices.Clone(b.columns), rows: b.rows}
}
