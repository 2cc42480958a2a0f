// Package columnar holds the in-memory tabular dataset passed between the
// extract, transform and load steps.
//
// A Dataset is an ordered list of named, typed, nullable columns of equal
// length. Values are stored as interface{} with nil meaning null; the
// non-null Go type of each value is fixed by the column type:
//
//	ColumnTypeString    string
//	ColumnTypeInt       int64
//	ColumnTypeFloat     float64
//	ColumnTypeBool      bool
//	ColumnTypeTimestamp time.Time (UTC)
//
// Operations that reshape a dataset either succeed completely or return an
// error and leave the receiver untouched.
package columnar
