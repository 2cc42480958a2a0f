package columnar

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// ColumnType represents the data type of a column
type ColumnType int

const (
	ColumnTypeString ColumnType = iota
	ColumnTypeInt
	ColumnTypeFloat
	ColumnTypeBool
	ColumnTypeTimestamp
)

func (t ColumnType) String() string {
	switch t {
	case ColumnTypeString:
		return "string"
	case ColumnTypeInt:
		return "int"
	case ColumnTypeFloat:
		return "float"
	case ColumnTypeBool:
		return "bool"
	case ColumnTypeTimestamp:
		return "timestamp"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// IsNumeric reports whether values of t can be ordered as float64.
func (t ColumnType) IsNumeric() bool {
	return t == ColumnTypeInt || t == ColumnTypeFloat
}

// Field is a column name and type.
type Field struct {
	Name string
	Type ColumnType
}

// Column is a named, typed, nullable vector.
type Column struct {
	Name   string
	Type   ColumnType
	Values []interface{}
}

// NewColumn creates a column, normalizing every value to the Go type of typ.
func NewColumn(name string, typ ColumnType, values []interface{}) (*Column, error) {
	col := &Column{Name: name, Type: typ, Values: make([]interface{}, len(values))}
	for i, v := range values {
		nv, err := Normalize(typ, v)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		col.Values[i] = nv
	}
	return col, nil
}

// MustColumn is NewColumn that panics on error. Intended for literals in tests.
func MustColumn(name string, typ ColumnType, values ...interface{}) *Column {
	col, err := NewColumn(name, typ, values)
	if err != nil {
		panic(err)
	}
	return col
}

func (c *Column) Len() int { return len(c.Values) }

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool { return c.Values[i] == nil }

// NullCount returns the number of null rows.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// Clone returns a copy that shares no slice with c.
func (c *Column) Clone() *Column {
	values := make([]interface{}, len(c.Values))
	copy(values, c.Values)
	return &Column{Name: c.Name, Type: c.Type, Values: values}
}

// Float returns row i as float64 for numeric columns.
func (c *Column) Float(i int) (float64, bool) {
	switch v := c.Values[i].(type) {
	case int64:
		return float64(v), true
	case float64:
		if math.IsNaN(v) {
			return 0, false
		}
		return v, true
	default:
		return 0, false
	}
}

// Normalize converts v to the canonical Go type for typ. nil stays nil.
func Normalize(typ ColumnType, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch typ {
	case ColumnTypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case *string:
			if s == nil {
				return nil, nil
			}
			return *s, nil
		}
	case ColumnTypeInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int16:
			return int64(n), nil
		case int8:
			return int64(n), nil
		case uint32:
			return int64(n), nil
		case uint16:
			return int64(n), nil
		case uint8:
			return int64(n), nil
		}
	case ColumnTypeFloat:
		switch f := v.(type) {
		case float64:
			if math.IsNaN(f) {
				return nil, nil
			}
			return f, nil
		case float32:
			return float64(f), nil
		case int64:
			return float64(f), nil
		case int:
			return float64(f), nil
		}
	case ColumnTypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case *bool:
			if b == nil {
				return nil, nil
			}
			return *b, nil
		}
	case ColumnTypeTimestamp:
		if t, ok := v.(time.Time); ok {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("value %v (%T) is not a %s", v, v, typ)
}

// Equal compares two normalized values. Nulls are equal to each other.
func Equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// FormatValue renders a normalized value as text. Nulls render as "".
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
