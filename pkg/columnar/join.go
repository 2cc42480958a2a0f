package columnar

import (
	"time"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// Suffixes disambiguate non-key columns present on both sides of a join.
type Suffixes struct {
	Left  string
	Right string
}

// DefaultSuffixes are used for the comments/posts fact table.
var DefaultSuffixes = Suffixes{Left: "_cmt", Right: "_pst"}

// InnerJoin joins left and right on key. Output rows follow left order, and
// for each left row the matching right rows in right order. The key column
// appears once, taken from left. Null keys never match. When the key types
// differ, keys are compared by their text form.
func InnerJoin(left, right *Dataset, key string, suffixes Suffixes) (*Dataset, error) {
	lk, ok := left.Column(key)
	if !ok {
		return nil, etlerrors.Newf(etlerrors.ErrorTypeValidation, "join key %q missing from left dataset", key)
	}
	rk, ok := right.Column(key)
	if !ok {
		return nil, etlerrors.Newf(etlerrors.ErrorTypeValidation, "join key %q missing from right dataset", key)
	}
	asText := lk.Type != rk.Type

	matches := make(map[interface{}][]int, rk.Len())
	for i, v := range rk.Values {
		if v == nil {
			continue
		}
		k := joinKey(v, asText)
		matches[k] = append(matches[k], i)
	}

	var leftRows, rightRows []int
	for i, v := range lk.Values {
		if v == nil {
			continue
		}
		for _, j := range matches[joinKey(v, asText)] {
			leftRows = append(leftRows, i)
			rightRows = append(rightRows, j)
		}
	}

	lt := left.Take(leftRows)
	rt := right.Take(rightRows)

	cols := make([]*Column, 0, lt.NumColumns()+rt.NumColumns()-1)
	for _, c := range lt.Columns() {
		name := c.Name
		if name != key && right.Has(name) {
			name += suffixes.Left
		}
		cols = append(cols, &Column{Name: name, Type: c.Type, Values: c.Values})
	}
	for _, c := range rt.Columns() {
		if c.Name == key {
			continue
		}
		name := c.Name
		if left.Has(name) {
			name += suffixes.Right
		}
		cols = append(cols, &Column{Name: name, Type: c.Type, Values: c.Values})
	}

	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type timeKey int64

func joinKey(v interface{}, asText bool) interface{} {
	if asText {
		return FormatValue(v)
	}
	if t, ok := v.(time.Time); ok {
		return timeKey(t.UnixNano())
	}
	return v
}
