// Package formats encodes and decodes datasets as CSV, gzip-compressed CSV and
// Parquet artifacts. The format of an artifact is chosen by its key extension.
package formats

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// Format is an artifact encoding.
type Format string

const (
	// CSV is comma separated text with a header row
	CSV Format = "csv"
	// CSVGzip is CSV compressed with gzip
	CSVGzip Format = "csv.gz"
	// Parquet is Apache Parquet with snappy pages
	Parquet Format = "parquet"
)

// Extension returns the key extension without the leading dot.
func (f Format) Extension() string { return string(f) }

// ContentType returns the MIME type used when uploading.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv"
	case CSVGzip:
		return "application/gzip"
	case Parquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}

// ParseFormat parses a configured format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(name, "."))); f {
	case CSV, CSVGzip, Parquet:
		return f, nil
	default:
		return "", etlerrors.Newf(etlerrors.ErrorTypeValidation, "unsupported file format %q", name)
	}
}

// FromKey picks the format from an object key's extension.
func FromKey(key string) (Format, error) {
	lower := strings.ToLower(key)
	switch {
	case strings.HasSuffix(lower, ".csv.gz"):
		return CSVGzip, nil
	case strings.HasSuffix(lower, ".csv"):
		return CSV, nil
	case strings.HasSuffix(lower, ".parquet"):
		return Parquet, nil
	default:
		return "", etlerrors.Newf(etlerrors.ErrorTypeValidation, "unsupported file extension for key %q", key).
			WithDetail("key", key)
	}
}

// Encode writes ds to w in format f.
func Encode(w io.Writer, ds *columnar.Dataset, f Format) error {
	switch f {
	case CSV:
		return WriteCSV(w, ds)
	case CSVGzip:
		zw := gzip.NewWriter(w)
		if err := WriteCSV(zw, ds); err != nil {
			_ = zw.Close()
			return err
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to finish gzip stream: %w", err)
		}
		return nil
	case Parquet:
		return WriteParquet(w, ds)
	default:
		return etlerrors.Newf(etlerrors.ErrorTypeValidation, "unsupported file format %q", f)
	}
}

// EncodeBytes is Encode into memory.
func EncodeBytes(ds *columnar.Dataset, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, ds, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses data in format f.
func Decode(data []byte, f Format) (*columnar.Dataset, error) {
	switch f {
	case CSV:
		return ReadCSV(bytes.NewReader(data))
	case CSVGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to open gzip stream")
		}
		defer zr.Close()
		return ReadCSV(zr)
	case Parquet:
		return ReadParquet(data)
	default:
		return nil, etlerrors.Newf(etlerrors.ErrorTypeValidation, "unsupported file format %q", f)
	}
}
