package table

import (
	"encoding/json"
	"fmt"
	"math"

	"gomediate/domain/core"
)

// Column names produced by every prediction capability, in addition to
// one column per grid variable.
const (
	ColEstimate = "estimate"
	ColConfLow  = "conf.low"
	ColConfHigh = "conf.high"
)

// Named pairs a table with the name it is stored and exported under.
type Named struct {
	Name  string `json:"name"`
	Table *Table `json:"table"`
}

// Table is an ordered set of named numeric columns of equal length.
// Row order is significant: assembled prediction tables are zipped with
// their source grids by row, so a Table never reorders rows on its own.
type Table struct {
	names   []string
	columns map[string][]float64
	rows    int
}

// New creates an empty table. The first AddColumn fixes the row count.
func New() *Table {
	return &Table{columns: make(map[string][]float64)}
}

// FromColumns builds a table with the given column order.
func FromColumns(names []string, columns map[string][]float64) (*Table, error) {
	t := New()
	for _, name := range names {
		values, ok := columns[name]
		if !ok {
			return nil, core.NewVariableLookupError(name)
		}
		if err := t.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddColumn appends a named column. The values slice is copied.
func (t *Table) AddColumn(name string, values []float64) error {
	if _, exists := t.columns[name]; exists {
		return core.ErrColumnExists
	}
	if len(t.names) > 0 && len(values) != t.rows {
		return core.ErrColumnLength
	}
	col := make([]float64, len(values))
	copy(col, values)
	t.columns[name] = col
	t.names = append(t.names, name)
	t.rows = len(col)
	return nil
}

// Column returns the values of a named column.
func (t *Table) Column(name string) ([]float64, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, core.NewVariableLookupError(name)
	}
	return col, nil
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Names returns the column names in insertion order.
func (t *Table) Names() []string {
	names := make([]string, len(t.names))
	copy(names, t.names)
	return names
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.names) }

// Value returns the cell at (row, column name).
func (t *Table) Value(row int, name string) (float64, error) {
	col, ok := t.columns[name]
	if !ok {
		return 0, core.NewVariableLookupError(name)
	}
	if row < 0 || row >= len(col) {
		return 0, fmt.Errorf("row %d out of range [0,%d)", row, len(col))
	}
	return col[row], nil
}

// Clone returns a deep copy preserving column order.
func (t *Table) Clone() *Table {
	out := New()
	for _, name := range t.names {
		// AddColumn copies the slice; errors impossible on a valid source
		_ = out.AddColumn(name, t.columns[name])
	}
	return out
}

// Equal reports whether two tables have identical column order and
// cell values. NaN cells compare equal so CI-less tables can be compared.
func (t *Table) Equal(o *Table) bool {
	if o == nil || len(t.names) != len(o.names) || t.rows != o.rows {
		return false
	}
	for i, name := range t.names {
		if o.names[i] != name {
			return false
		}
		a, b := t.columns[name], o.columns[name]
		for j := range a {
			if a[j] == b[j] {
				continue
			}
			if !(math.IsNaN(a[j]) && math.IsNaN(b[j])) {
				return false
			}
		}
	}
	return true
}

// tableJSON is the wire form. NaN cells travel as null so tables built
// without confidence intervals survive JSON and JSONB round trips.
type tableJSON struct {
	Names   []string              `json:"names"`
	Columns map[string][]*float64 `json:"columns"`
}

func (t *Table) MarshalJSON() ([]byte, error) {
	wire := tableJSON{
		Names:   t.Names(),
		Columns: make(map[string][]*float64, len(t.names)),
	}
	for _, name := range t.names {
		col := t.columns[name]
		cells := make([]*float64, len(col))
		for i := range col {
			if math.IsNaN(col[i]) {
				continue
			}
			v := col[i]
			cells[i] = &v
		}
		wire.Columns[name] = cells
	}
	return json.Marshal(wire)
}

func (t *Table) UnmarshalJSON(data []byte) error {
	var wire tableJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	rebuilt := New()
	for _, name := range wire.Names {
		cells, ok := wire.Columns[name]
		if !ok {
			return core.NewVariableLookupError(name)
		}
		col := make([]float64, len(cells))
		for i, cell := range cells {
			if cell == nil {
				col[i] = math.NaN()
				continue
			}
			col[i] = *cell
		}
		if err := rebuilt.AddColumn(name, col); err != nil {
			return err
		}
	}
	*t = *rebuilt
	return nil
}
