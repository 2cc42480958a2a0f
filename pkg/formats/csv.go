package formats

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// WriteCSV writes a header row followed by one record per row. Nulls are
// written as empty fields and timestamps as RFC 3339 in UTC.
func WriteCSV(w io.Writer, ds *columnar.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.ColumnNames()); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to write CSV header")
	}

	record := make([]string, ds.NumColumns())
	cols := ds.Columns()
	for i := 0; i < ds.NumRows(); i++ {
		for j, c := range cols {
			record[j] = columnar.FormatValue(c.Values[i])
		}
		if err := cw.Write(record); err != nil {
			return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to write CSV record").WithDetail("row", i)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to flush CSV")
	}
	return nil
}

// ReadCSV parses a CSV document with a header row. Empty fields are null.
// Column types are inferred from the non-null fields, trying int, float, bool
// and RFC 3339 timestamp before falling back to string.
func ReadCSV(r io.Reader) (*columnar.Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, etlerrors.New(etlerrors.ErrorTypeData, "CSV document has no header")
	}
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to read CSV header")
	}
	cr.FieldsPerRecord = len(header)

	raw := make([][]string, len(header))
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to read CSV record")
		}
		for j, field := range rec {
			raw[j] = append(raw[j], field)
		}
	}

	cols := make([]*columnar.Column, len(header))
	for j, name := range header {
		cols[j] = inferColumn(name, raw[j])
	}
	ds, err := columnar.New(cols...)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "malformed CSV document")
	}
	return ds, nil
}

type parser func(string) (interface{}, bool)

var inference = []struct {
	typ   columnar.ColumnType
	parse parser
}{
	{columnar.ColumnTypeInt, parseInt},
	{columnar.ColumnTypeFloat, parseFloat},
	{columnar.ColumnTypeBool, parseBool},
	{columnar.ColumnTypeTimestamp, parseTimestamp},
}

func inferColumn(name string, fields []string) *columnar.Column {
	values := make([]interface{}, len(fields))

	nonNull := 0
	for _, f := range fields {
		if f != "" {
			nonNull++
		}
	}

	if nonNull > 0 {
	candidates:
		for _, cand := range inference {
			for i, f := range fields {
				if f == "" {
					values[i] = nil
					continue
				}
				v, ok := cand.parse(f)
				if !ok {
					continue candidates
				}
				values[i] = v
			}
			return &columnar.Column{Name: name, Type: cand.typ, Values: values}
		}
	}

	for i, f := range fields {
		if f == "" {
			values[i] = nil
		} else {
			values[i] = f
		}
	}
	return &columnar.Column{Name: name, Type: columnar.ColumnTypeString, Values: values}
}

func parseInt(s string) (interface{}, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func parseFloat(s string) (interface{}, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || strings.EqualFold(s, "nan") {
		return nil, false
	}
	return f, true
}

func parseBool(s string) (interface{}, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return nil, false
}

func parseTimestamp(s string) (interface{}, bool) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, false
	}
	return t.UTC(), true
}
