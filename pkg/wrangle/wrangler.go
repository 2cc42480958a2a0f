// Package wrangle implements the cleaning and reshaping operations applied to
// raw post and comment datasets before they are loaded.
//
// A Wrangler owns one dataset. Every operation either applies to the whole
// dataset or returns an error and leaves it as it was.
package wrangle

import (
	"encoding/binary"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/config"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// DefaultNullThreshold is the null fraction at which DropNullColumns drops a column.
const DefaultNullThreshold = 0.5

// Wrangler applies in-place transformations to a dataset.
type Wrangler struct {
	ds       *columnar.Dataset
	registry *Registry
	logger   *zap.Logger
}

// New wraps ds. A nil registry uses the built-in functions; a nil logger discards.
func New(ds *columnar.Dataset, registry *Registry, logger *zap.Logger) *Wrangler {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wrangler{ds: ds, registry: registry, logger: logger}
}

// Dataset returns the wrapped dataset.
func (w *Wrangler) Dataset() *columnar.Dataset { return w.ds }

// CorrectDataTypes casts each listed column to its target type. Columns absent
// from the dataset are skipped. A failed cast leaves every column unchanged.
func (w *Wrangler) CorrectDataTypes(types map[string]config.TypeSpec) error {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	replaced := make([]*columnar.Column, 0, len(names))
	for _, name := range names {
		col, ok := w.ds.Column(name)
		if !ok {
			continue
		}
		spec := types[name]
		typ, err := targetType(spec.Kind)
		if err != nil {
			return etlerrors.Wrap(err, etlerrors.ErrorTypeValidation, "invalid target type").WithDetail("column", name)
		}

		values := make([]interface{}, col.Len())
		for i, v := range col.Values {
			cv, err := castValue(v, typ, spec.Unit)
			if err != nil {
				return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to correct data type").
					WithDetail("column", name).
					WithDetail("row", i)
			}
			values[i] = cv
		}
		replaced = append(replaced, &columnar.Column{Name: name, Type: typ, Values: values})
	}

	w.setColumns(replaced)
	return nil
}

// CleanString replaces every match of pattern in a string column with
// replacement, then trims surrounding whitespace. Nulls stay null.
func (w *Wrangler) CleanString(column, pattern, replacement string) error {
	col, err := w.stringColumn(column)
	if err != nil {
		return err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeValidation, "invalid regular expression pattern").
			WithDetail("pattern", pattern)
	}
	w.cleanString(col, re, replacement)
	return nil
}

func (w *Wrangler) cleanString(col *columnar.Column, re *regexp.Regexp, replacement string) {
	values := make([]interface{}, col.Len())
	for i, v := range col.Values {
		if v == nil {
			continue
		}
		values[i] = strings.TrimSpace(re.ReplaceAllString(v.(string), replacement))
	}
	w.setColumns([]*columnar.Column{{Name: col.Name, Type: col.Type, Values: values}})
}

// RemoveDuplicates drops rows identical to an earlier row, keeping the first
// occurrence and the original order.
func (w *Wrangler) RemoveDuplicates() error {
	before := w.ds.NumRows()
	seen := make(map[uint64][]int, before)
	keep := make([]int, 0, before)

	for i := 0; i < before; i++ {
		h := hashRow(w.ds, i)
		dup := false
		for _, j := range seen[h] {
			if rowsEqual(w.ds, i, j) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[h] = append(seen[h], i)
		keep = append(keep, i)
	}

	if len(keep) == before {
		return nil
	}
	w.ds.ReplaceWith(w.ds.Take(keep))
	w.logger.Debug("removed duplicate rows", zap.Int("removed", before-len(keep)))
	return nil
}

// DropNullColumns drops every column whose null fraction is at least
// threshold. An empty dataset is left as is.
func (w *Wrangler) DropNullColumns(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return etlerrors.Newf(etlerrors.ErrorTypeValidation, "threshold %v must be within [0, 1]", threshold)
	}
	rows := w.ds.NumRows()
	if rows == 0 {
		return nil
	}

	var drop []string
	for _, col := range w.ds.Columns() {
		if float64(col.NullCount())/float64(rows) >= threshold {
			drop = append(drop, col.Name)
		}
	}
	if len(drop) > 0 {
		w.ds.DropColumns(drop...)
		w.logger.Debug("dropped null columns", zap.Strings("columns", drop), zap.Float64("threshold", threshold))
	}
	return nil
}

// DropColumns removes the named columns. Unknown names are ignored.
func (w *Wrangler) DropColumns(names []string) error {
	w.ds.DropColumns(names...)
	return nil
}

// RenameColumns renames columns. Unmatched keys are ignored.
func (w *Wrangler) RenameColumns(mapping map[string]string) error {
	return w.ds.RenameColumns(mapping)
}

// ApplyFunc derives newColumn by applying the registered function name to
// every non-null value of column.
func (w *Wrangler) ApplyFunc(name, column, newColumn string, params Params) error {
	fn, err := w.registry.Resolve(name, params)
	if err != nil {
		return err
	}
	return w.applyFunc(name, fn, column, newColumn, params)
}

func (w *Wrangler) applyFunc(name string, fn Func, column, newColumn string, params Params) error {
	col, ok := w.ds.Column(column)
	if !ok {
		return etlerrors.Newf(etlerrors.ErrorTypeValidation, "column %q not found", column)
	}
	if !fn.accepts(col.Type) {
		return etlerrors.Newf(etlerrors.ErrorTypeValidation, "function %q does not accept %s column %q", name, col.Type, column)
	}

	values := make([]interface{}, col.Len())
	for i, v := range col.Values {
		if v == nil {
			continue
		}
		out, err := fn.Apply(v, params)
		if err != nil {
			return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "transform function failed").
				WithDetail("function", name).
				WithDetail("column", column).
				WithDetail("row", i)
		}
		nv, err := columnar.Normalize(fn.Output, out)
		if err != nil {
			return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "transform function returned wrong type").
				WithDetail("function", name)
		}
		values[i] = nv
	}
	return w.ds.SetColumn(&columnar.Column{Name: newColumn, Type: fn.Output, Values: values})
}

// RemoveOutliers keeps the rows whose value in column lies within the
// [lower, upper] empirical quantile band, bounds included. Rows with a null
// value are removed.
func (w *Wrangler) RemoveOutliers(column string, lower, upper float64) error {
	if lower < 0 || upper > 1 || lower > upper {
		return etlerrors.Newf(etlerrors.ErrorTypeValidation, "quantile band [%v, %v] is invalid", lower, upper)
	}
	col, ok := w.ds.Column(column)
	if !ok {
		return etlerrors.Newf(etlerrors.ErrorTypeValidation, "column %q not found", column)
	}
	if !col.Type.IsNumeric() && col.Type != columnar.ColumnTypeTimestamp {
		return etlerrors.Newf(etlerrors.ErrorTypeValidation, "column %q is not numeric", column)
	}
	if w.ds.NumRows() == 0 {
		return nil
	}

	values := make([]float64, col.Len())
	valid := make([]bool, col.Len())
	sorted := make([]float64, 0, col.Len())
	for i := range col.Values {
		f, ok := orderValue(col, i)
		if !ok {
			continue
		}
		values[i], valid[i] = f, true
		sorted = append(sorted, f)
	}
	sort.Float64s(sorted)

	low, high := Quantile(sorted, lower), Quantile(sorted, upper)
	before := w.ds.NumRows()
	w.ds.ReplaceWith(w.ds.Filter(func(i int) bool {
		return valid[i] && values[i] >= low && values[i] <= high
	}))
	w.logger.Debug("removed outliers",
		zap.String("column", column),
		zap.Float64("low", low),
		zap.Float64("high", high),
		zap.Int("removed", before-w.ds.NumRows()))
	return nil
}

// RemoveOutliersColumns applies RemoveOutliers to each column in turn, so each
// band is computed on the rows left by the previous column.
func (w *Wrangler) RemoveOutliersColumns(columns []string, lower, upper float64) error {
	snapshot := w.ds.Clone()
	for _, c := range columns {
		if err := w.RemoveOutliers(c, lower, upper); err != nil {
			w.ds.ReplaceWith(snapshot)
			return err
		}
	}
	return nil
}

// SplitColumn splits a string column on separator and stores part index in
// newColumn. Rows with fewer parts get null. An index beyond the largest
// number of parts is an error.
func (w *Wrangler) SplitColumn(column, newColumn, separator string, index int) error {
	col, err := w.stringColumn(column)
	if err != nil {
		return err
	}
	if separator == "" {
		return etlerrors.New(etlerrors.ErrorTypeValidation, "separator cannot be empty")
	}

	maxParts := 0
	values := make([]interface{}, col.Len())
	for i, v := range col.Values {
		if v == nil {
			continue
		}
		parts := strings.Split(v.(string), separator)
		if len(parts) > maxParts {
			maxParts = len(parts)
		}
		if index >= 0 && index < len(parts) {
			values[i] = parts[index]
		}
	}
	if index < 0 || index >= maxParts {
		return etlerrors.Newf(etlerrors.ErrorTypeValidation,
			"index %d out of range after splitting column %q", index, column)
	}
	return w.ds.SetColumn(&columnar.Column{Name: newColumn, Type: columnar.ColumnTypeString, Values: values})
}

// FillNulls replaces nulls in column with value cast to the column type.
func (w *Wrangler) FillNulls(column string, value interface{}) error {
	col, ok := w.ds.Column(column)
	if !ok {
		return etlerrors.Newf(etlerrors.ErrorTypeValidation, "column %q not found", column)
	}
	if value == nil {
		return nil
	}
	if n, ok := value.(int); ok {
		value = int64(n)
	}
	fill, err := castValue(value, col.Type, "s")
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeValidation, "fill value does not match column type").
			WithDetail("column", column)
	}

	values := make([]interface{}, col.Len())
	for i, v := range col.Values {
		if v == nil {
			values[i] = fill
		} else {
			values[i] = v
		}
	}
	w.setColumns([]*columnar.Column{{Name: col.Name, Type: col.Type, Values: values}})
	return nil
}

// ExtractDatetimeComponents adds <column>_year, _month, _day, _hour, _minute
// and _second integer columns derived from a timestamp column.
func (w *Wrangler) ExtractDatetimeComponents(column string) error {
	col, ok := w.ds.Column(column)
	if !ok {
		return etlerrors.Newf(etlerrors.ErrorTypeValidation, "column %q not found", column)
	}
	if col.Type != columnar.ColumnTypeTimestamp {
		return etlerrors.Newf(etlerrors.ErrorTypeValidation, "column %q is not a timestamp", column)
	}

	parts := []struct {
		suffix string
		get    func(t time.Time) int
	}{
		{"_year", func(t time.Time) int { return t.Year() }},
		{"_month", func(t time.Time) int { return int(t.Month()) }},
		{"_day", func(t time.Time) int { return t.Day() }},
		{"_hour", func(t time.Time) int { return t.Hour() }},
		{"_minute", func(t time.Time) int { return t.Minute() }},
		{"_second", func(t time.Time) int { return t.Second() }},
	}
	cols := make([]*columnar.Column, 0, len(parts))
	for _, p := range parts {
		values := make([]interface{}, col.Len())
		for i, v := range col.Values {
			if v != nil {
				values[i] = int64(p.get(v.(time.Time)))
			}
		}
		cols = append(cols, &columnar.Column{Name: column + p.suffix, Type: columnar.ColumnTypeInt, Values: values})
	}
	w.setColumns(cols)
	return nil
}

func (w *Wrangler) stringColumn(column string) (*columnar.Column, error) {
	col, ok := w.ds.Column(column)
	if !ok {
		return nil, etlerrors.Newf(etlerrors.ErrorTypeValidation, "column %q not found", column)
	}
	if col.Type != columnar.ColumnTypeString {
		return nil, etlerrors.Newf(etlerrors.ErrorTypeValidation, "column %q is not a string column", column).
			WithDetail("type", col.Type.String())
	}
	return col, nil
}

// setColumns installs pre-computed columns; lengths always match.
func (w *Wrangler) setColumns(cols []*columnar.Column) {
	for _, c := range cols {
		_ = w.ds.SetColumn(c)
	}
}

func orderValue(col *columnar.Column, i int) (float64, bool) {
	if t, ok := col.Values[i].(time.Time); ok {
		return float64(t.UnixNano()), true
	}
	return col.Float(i)
}

// Quantile returns the q-quantile of sorted using linear interpolation between
// closest ranks. It returns NaN for an empty slice.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

func hashRow(ds *columnar.Dataset, row int) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, c := range ds.Columns() {
		switch v := c.Values[row].(type) {
		case nil:
			_, _ = d.Write([]byte{0})
		case string:
			_, _ = d.Write([]byte{1})
			_, _ = d.WriteString(v)
		case int64:
			_, _ = d.Write([]byte{2})
			binary.LittleEndian.PutUint64(buf[:], uint64(v))
			_, _ = d.Write(buf[:])
		case float64:
			_, _ = d.Write([]byte{3})
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			_, _ = d.Write(buf[:])
		case bool:
			if v {
				_, _ = d.Write([]byte{4, 1})
			} else {
				_, _ = d.Write([]byte{4, 0})
			}
		case time.Time:
			_, _ = d.Write([]byte{5})
			binary.LittleEndian.PutUint64(buf[:], uint64(v.UnixNano()))
			_, _ = d.Write(buf[:])
		}
		_, _ = d.Write([]byte{0xff})
	}
	return d.Sum64()
}

func rowsEqual(ds *columnar.Dataset, a, b int) bool {
	for _, c := range ds.Columns() {
		if !columnar.Equal(c.Values[a], c.Values[b]) {
			return false
		}
	}
	return true
}
