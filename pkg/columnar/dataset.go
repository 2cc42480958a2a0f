package columnar

import (
	"fmt"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// Dataset is an ordered collection of equal-length columns.
type Dataset struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New creates a dataset from columns. Names must be unique and lengths equal.
func New(columns ...*Column) (*Dataset, error) {
	d := &Dataset{index: make(map[string]int, len(columns))}
	for i, col := range columns {
		if _, dup := d.index[col.Name]; dup {
			return nil, etlerrors.Newf(etlerrors.ErrorTypeValidation, "duplicate column %q", col.Name)
		}
		if i > 0 && col.Len() != d.rows {
			return nil, etlerrors.Newf(etlerrors.ErrorTypeValidation,
				"column %q has %d rows, expected %d", col.Name, col.Len(), d.rows)
		}
		d.rows = col.Len()
		d.index[col.Name] = i
		d.columns = append(d.columns, col)
	}
	return d, nil
}

// Empty returns a dataset with the given schema and no rows.
func Empty(fields ...Field) *Dataset {
	cols := make([]*Column, len(fields))
	for i, f := range fields {
		cols[i] = &Column{Name: f.Name, Type: f.Type}
	}
	d, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return d
}

// NumRows returns the row count.
func (d *Dataset) NumRows() int { return d.rows }

// NumColumns returns the column count.
func (d *Dataset) NumColumns() int { return len(d.columns) }

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Schema returns the fields in column order.
func (d *Dataset) Schema() []Field {
	fields := make([]Field, len(d.columns))
	for i, c := range d.columns {
		fields[i] = Field{Name: c.Name, Type: c.Type}
	}
	return fields
}

// Columns returns the columns in order. Callers must not modify them.
func (d *Dataset) Columns() []*Column { return d.columns }

// Column returns the named column.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// Has reports whether the named column exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Row returns the values of row i in column order.
func (d *Dataset) Row(i int) []interface{} {
	row := make([]interface{}, len(d.columns))
	for j, c := range d.columns {
		row[j] = c.Values[i]
	}
	return row
}

// Clone returns a deep copy of the column vectors.
func (d *Dataset) Clone() *Dataset {
	cols := make([]*Column, len(d.columns))
	for i, c := range d.columns {
		cols[i] = c.Clone()
	}
	out, _ := New(cols...)
	return out
}

// SetColumn replaces the column with the same name in place, or appends it.
func (d *Dataset) SetColumn(col *Column) error {
	if len(d.columns) > 0 && col.Len() != d.rows {
		return etlerrors.Newf(etlerrors.ErrorTypeValidation,
			"column %q has %d rows, expected %d", col.Name, col.Len(), d.rows)
	}
	if i, ok := d.index[col.Name]; ok {
		d.columns[i] = col
		return nil
	}
	if len(d.columns) == 0 {
		d.rows = col.Len()
	}
	d.index[col.Name] = len(d.columns)
	d.columns = append(d.columns, col)
	return nil
}

// DropColumns removes the named columns. Unknown names are ignored.
func (d *Dataset) DropColumns(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := d.columns[:0:0]
	for _, c := range d.columns {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	d.reset(kept)
}

// RenameColumns renames columns by mapping old name to new name. Unmatched
// keys are ignored. A rename that would produce duplicate names fails and
// leaves d unchanged.
func (d *Dataset) RenameColumns(mapping map[string]string) error {
	names := d.ColumnNames()
	seen := make(map[string]bool, len(names))
	for i, n := range names {
		if to, ok := mapping[n]; ok {
			names[i] = to
		}
		if seen[names[i]] {
			return etlerrors.Newf(etlerrors.ErrorTypeValidation, "rename produces duplicate column %q", names[i])
		}
		seen[names[i]] = true
	}

	cols := make([]*Column, len(d.columns))
	for i, c := range d.columns {
		cols[i] = &Column{Name: names[i], Type: c.Type, Values: c.Values}
	}
	d.reset(cols)
	return nil
}

// Select returns a dataset with only the named columns, in the given order.
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := d.Column(n)
		if !ok {
			return nil, etlerrors.Newf(etlerrors.ErrorTypeValidation, "column %q not found", n)
		}
		cols = append(cols, c.Clone())
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		out.rows = d.rows
	}
	return out, nil
}

// Take returns a dataset with the given rows, in the given order.
func (d *Dataset) Take(rows []int) *Dataset {
	cols := make([]*Column, len(d.columns))
	for i, c := range d.columns {
		values := make([]interface{}, len(rows))
		for j, r := range rows {
			values[j] = c.Values[r]
		}
		cols[i] = &Column{Name: c.Name, Type: c.Type, Values: values}
	}
	out, _ := New(cols...)
	out.rows = len(rows)
	return out
}

// Filter returns the rows for which keep returns true.
func (d *Dataset) Filter(keep func(row int) bool) *Dataset {
	rows := make([]int, 0, d.rows)
	for i := 0; i < d.rows; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return d.Take(rows)
}

// ReplaceWith makes d hold the contents of other.
func (d *Dataset) ReplaceWith(other *Dataset) {
	d.reset(other.columns)
	d.rows = other.rows
}

func (d *Dataset) reset(cols []*Column) {
	d.columns = cols
	d.index = make(map[string]int, len(cols))
	for i, c := range cols {
		d.index[c.Name] = i
	}
	if len(cols) > 0 {
		d.rows = cols[0].Len()
	}
}

func (d *Dataset) String() string {
	return fmt.Sprintf("Dataset(%d rows x %d columns)", d.rows, len(d.columns))
}
