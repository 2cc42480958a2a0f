package formats

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// WriteParquet writes ds as a single row group with snappy compression.
// Timestamps are stored with microsecond precision in UTC.
func WriteParquet(w io.Writer, ds *columnar.Dataset) error {
	schema, err := arrowSchema(ds)
	if err != nil {
		return err
	}

	pool := memory.NewGoAllocator()
	rb := array.NewRecordBuilder(pool, schema)
	defer rb.Release()

	for j, col := range ds.Columns() {
		if err := appendColumn(rb.Field(j), col); err != nil {
			return err
		}
	}
	rec := rb.NewRecord()
	defer rec.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(pool),
		pqarrow.WithStoreSchema(),
	)

	fw, err := pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to create Parquet writer")
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to write Parquet record")
	}
	if err := fw.Close(); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to close Parquet writer")
	}
	return nil
}

// ReadParquet decodes a whole Parquet file.
func ReadParquet(data []byte) (*columnar.Dataset, error) {
	fr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to open Parquet file")
	}
	defer fr.Close()

	pool := memory.NewGoAllocator()
	ar, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, pool)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to create Arrow reader")
	}

	tbl, err := ar.ReadTable(context.Background())
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to read Parquet table")
	}
	defer tbl.Release()

	cols := make([]*columnar.Column, 0, tbl.NumCols())
	for i := 0; i < int(tbl.NumCols()); i++ {
		field := tbl.Schema().Field(i)
		typ, err := columnType(field.Type)
		if err != nil {
			return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "unsupported Parquet column").
				WithDetail("column", field.Name)
		}

		values := make([]interface{}, 0, tbl.NumRows())
		for _, chunk := range tbl.Column(i).Data().Chunks() {
			for r := 0; r < chunk.Len(); r++ {
				values = append(values, arrowValue(chunk, r))
			}
		}
		cols = append(cols, &columnar.Column{Name: field.Name, Type: typ, Values: values})
	}

	ds, err := columnar.New(cols...)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "malformed Parquet file")
	}
	return ds, nil
}

func arrowSchema(ds *columnar.Dataset) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, ds.NumColumns())
	for _, f := range ds.Schema() {
		var dt arrow.DataType
		switch f.Type {
		case columnar.ColumnTypeString:
			dt = arrow.BinaryTypes.String
		case columnar.ColumnTypeInt:
			dt = arrow.PrimitiveTypes.Int64
		case columnar.ColumnTypeFloat:
			dt = arrow.PrimitiveTypes.Float64
		case columnar.ColumnTypeBool:
			dt = arrow.FixedWidthTypes.Boolean
		case columnar.ColumnTypeTimestamp:
			dt = arrow.FixedWidthTypes.Timestamp_us
		default:
			return nil, etlerrors.Newf(etlerrors.ErrorTypeData, "column %q has unsupported type %s", f.Name, f.Type)
		}
		fields = append(fields, arrow.Field{Name: f.Name, Type: dt, Nullable: true})
	}
	return arrow.NewSchema(fields, nil), nil
}

func appendColumn(b array.Builder, col *columnar.Column) error {
	for _, v := range col.Values {
		if v == nil {
			b.AppendNull()
			continue
		}
		switch bb := b.(type) {
		case *array.StringBuilder:
			bb.Append(v.(string))
		case *array.Int64Builder:
			bb.Append(v.(int64))
		case *array.Float64Builder:
			bb.Append(v.(float64))
		case *array.BooleanBuilder:
			bb.Append(v.(bool))
		case *array.TimestampBuilder:
			bb.Append(arrow.Timestamp(v.(time.Time).UnixMicro()))
		default:
			return fmt.Errorf("unsupported builder type: %T", b)
		}
	}
	return nil
}

func columnType(dt arrow.DataType) (columnar.ColumnType, error) {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING, arrow.BINARY:
		return columnar.ColumnTypeString, nil
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32:
		return columnar.ColumnTypeInt, nil
	case arrow.FLOAT32, arrow.FLOAT64:
		return columnar.ColumnTypeFloat, nil
	case arrow.BOOL:
		return columnar.ColumnTypeBool, nil
	case arrow.TIMESTAMP:
		return columnar.ColumnTypeTimestamp, nil
	default:
		return 0, fmt.Errorf("arrow type %s", dt)
	}
}

func arrowValue(arr arrow.Array, i int) interface{} {
	if arr.IsNull(i) {
		return nil
	}
	switch c := arr.(type) {
	case *array.String:
		return c.Value(i)
	case *array.LargeString:
		return c.Value(i)
	case *array.Binary:
		return string(c.Value(i))
	case *array.Int8:
		return int64(c.Value(i))
	case *array.Int16:
		return int64(c.Value(i))
	case *array.Int32:
		return int64(c.Value(i))
	case *array.Int64:
		return c.Value(i)
	case *array.Uint8:
		return int64(c.Value(i))
	case *array.Uint16:
		return int64(c.Value(i))
	case *array.Uint32:
		return int64(c.Value(i))
	case *array.Float32:
		return float64(c.Value(i))
	case *array.Float64:
		return c.Value(i)
	case *array.Boolean:
		return c.Value(i)
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return c.Value(i).ToTime(unit).UTC()
	default:
		return nil
	}
}
