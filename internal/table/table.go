package table

import (
	"fmt"
	"strconv"
)

// Kind is the inferred type of a column.
type Kind int

const (
	KindFloat Kind = iota
	KindInteger
	KindBoolean
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Numeric reports whether statistics like mean and quartiles apply.
func (k Kind) Numeric() bool { return k == KindInteger || k == KindFloat }

// Column is a named, typed sequence of cells. A nil cell is missing; other
// cells hold int64, float64, bool or string according to Kind.
type Column struct {
	Name  string
	Kind  Kind
	cells []any
}

// NewColumn builds a column from already-typed cells.
func NewColumn(name string, kind Kind, cells []any) *Column {
	return &Column{Name: name, Kind: kind, cells: cells}
}

// Len returns the number of cells, missing ones included.
func (c *Column) Len() int { return len(c.cells) }

// At returns the cell at row i (nil when missing).
func (c *Column) At(i int) any { return c.cells[i] }

// IsNull reports whether row i is missing.
func (c *Column) IsNull(i int) bool { return c.cells[i] == nil }

// NullCount returns the number of missing cells.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.cells {
		if v == nil {
			n++
		}
	}
	return n
}

// Floats returns the non-missing cells of a numeric column as float64.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.cells))
	for _, v := range c.cells {
		switch x := v.(type) {
		case int64:
			out = append(out, float64(x))
		case float64:
			out = append(out, x)
		}
	}
	return out
}

// Format renders the cell at row i; missing cells render as an empty string.
func (c *Column) Format(i int) string { return FormatValue(c.cells[i]) }

// Table is an in-memory dataset. All columns have the same length and
// column names are unique.
type Table struct {
	cols []*Column
	rows int
}

// New assembles a table from columns, validating the table invariants.
func New(cols []*Column) (*Table, error) {
	t := &Table{cols: cols}
	seen := make(map[string]struct{}, len(cols))
	for i, c := range cols {
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), t.rows)
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return t, nil
}

// Shape returns (rows, columns).
func (t *Table) Shape() (int, int) { return t.rows, len(t.cols) }

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.cols) }

// Columns returns the columns in order. The slice must not be modified.
func (t *Table) Columns() []*Column { return t.cols }

// Names returns column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.cols {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Row returns the cells of row i in column order.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.cols))
	for j, c := range t.cols {
		out[j] = c.cells[i]
	}
	return out
}

// RowHasNull reports whether any cell of row i is missing.
func (t *Table) RowHasNull(i int) bool {
	for _, c := range t.cols {
		if c.cells[i] == nil {
			return true
		}
	}
	return false
}

// Head returns a table with the first n rows.
func (t *Table) Head(n int) *Table {
	if n > t.rows {
		n = t.rows
	}
	if n < 0 {
		n = 0
	}
	return t.slice(0, n)
}

// Tail returns a table with the last n rows.
func (t *Table) Tail(n int) *Table {
	if n > t.rows {
		n = t.rows
	}
	if n < 0 {
		n = 0
	}
	return t.slice(t.rows-n, t.rows)
}

func (t *Table) slice(from, to int) *Table {
	idx := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		idx = append(idx, i)
	}
	return t.take(idx)
}

// DropNull returns a new table holding only the rows without missing cells.
// Column kinds are kept; the receiver is not modified.
func (t *Table) DropNull() *Table {
	idx := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if !t.RowHasNull(i) {
			idx = append(idx, i)
		}
	}
	return t.take(idx)
}

func (t *Table) take(idx []int) *Table {
	cols := make([]*Column, len(t.cols))
	for j, c := range t.cols {
		cells := make([]any, len(idx))
		for k, i := range idx {
			cells[k] = c.cells[i]
		}
		cols[j] = &Column{Name: c.Name, Kind: c.Kind, cells: cells}
	}
	return &Table{cols: cols, rows: len(idx)}
}

// Records renders the table as string records, header first. Missing cells
// become empty fields.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, t.rows+1)
	out = append(out, t.Names())
	for i := 0; i < t.rows; i++ {
		rec := make([]string, len(t.cols))
		for j, c := range t.cols {
			rec[j] = c.Format(i)
		}
		out = append(out, rec)
	}
	return out
}

// FormatValue renders a single cell the way it is written to files.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return FormatFloat(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
