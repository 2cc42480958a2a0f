package columnar

import "fmt"

// Builder accumulates rows for a fixed schema.
type Builder struct {
	fields []Field
	values [][]interface{}
	rows   int
}

// NewBuilder creates a builder for the given schema.
func NewBuilder(fields ...Field) *Builder {
	return &Builder{fields: fields, values: make([][]interface{}, len(fields))}
}

// Append adds one row. Values are normalized to the field types.
func (b *Builder) Append(row ...interface{}) error {
	if len(row) != len(b.fields) {
		return fmt.Errorf("row has %d values, schema has %d fields", len(row), len(b.fields))
	}
	normalized := make([]interface{}, len(row))
	for i, v := range row {
		nv, err := Normalize(b.fields[i].Type, v)
		if err != nil {
			return fmt.Errorf("field %q: %w", b.fields[i].Name, err)
		}
		normalized[i] = nv
	}
	for i, v := range normalized {
		b.values[i] = append(b.values[i], v)
	}
	b.rows++
	return nil
}

// Len returns the number of appended rows.
func (b *Builder) Len() int { return b.rows }

// Build returns the dataset. The builder must not be reused.
func (b *Builder) Build() (*Dataset, error) {
	cols := make([]*Column, len(b.fields))
	for i, f := range b.fields {
		values := b.values[i]
		if values == nil {
			values = []interface{}{}
		}
		cols[i] = &Column{Name: f.Name, Type: f.Type, Values: values}
	}
	return New(cols...)
}
