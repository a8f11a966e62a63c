// Package table provides the in-memory tabular model the rule engine
// operates on: an ordered set of named columns holding string cells
// with a uniform row count. All values are text regardless of their
// original type, and missing values are normalized to the empty string.
package table

import "fmt"

// Table holds named string columns in a fixed order.
type Table struct {
	names []string
	cols  map[string][]string
}

// New creates an empty table with the given column names.
func New(names []string) *Table {
	t := &Table{
		names: append([]string(nil), names...),
		cols:  make(map[string][]string, len(names)),
	}
	for _, name := range names {
		t.cols[name] = nil
	}
	return t
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.names...)
}

// Rows returns the number of rows.
func (t *Table) Rows() int {
	if len(t.names) == 0 {
		return 0
	}
	return len(t.cols[t.names[0]])
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns a copy of the named column's cells. The second return
// value is false when no such column exists.
func (t *Table) Column(name string) ([]string, bool) {
	values, ok := t.cols[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), values...), true
}

// SetColumn replaces the named column's cells. The replacement must
// have the same length as the current row count.
func (t *Table) SetColumn(name string, values []string) error {
	current, ok := t.cols[name]
	if !ok {
		return fmt.Errorf("unknown column %q", name)
	}
	if len(values) != len(current) {
		return fmt.Errorf("column %q: expected %d cells, got %d", name, len(current), len(values))
	}
	t.cols[name] = append([]string(nil), values...)
	return nil
}

// AppendRow adds one row of cells, one per column in order.
func (t *Table) AppendRow(cells []string) error {
	if len(cells) != len(t.names) {
		return fmt.Errorf("expected %d cells, got %d", len(t.names), len(cells))
	}
	for i, name := range t.names {
		t.cols[name] = append(t.cols[name], cells[i])
	}
	return nil
}

// Row returns a copy of the cells in row i, one per column in order.
func (t *Table) Row(i int) []string {
	row := make([]string, len(t.names))
	for j, name := range t.names {
		row[j] = t.cols[name][i]
	}
	return row
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := New(t.names)
	for _, name := range t.names {
		out.cols[name] = append([]string(nil), t.cols[name]...)
	}
	return out
}
