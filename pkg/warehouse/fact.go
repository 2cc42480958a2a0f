package warehouse

import (
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/config"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// Tables are the three datasets written by the load step.
type Tables struct {
	Posts    *columnar.Dataset
	Comments *columnar.Dataset
	Fact     *columnar.Dataset
}

// BuildTables drops the configured columns from each side and joins
// comments with posts on the merge key. Comment rows come first in the
// fact table; clashing names get the _cmt and _pst suffixes. The inputs are
// not modified.
func BuildTables(posts, comments *columnar.Dataset, p config.LoadParams) (*Tables, error) {
	key := p.MergeKey
	if key == "" {
		return nil, etlerrors.New(etlerrors.ErrorTypeConfig, "params_load.merge_key is required")
	}
	if !posts.Has(key) {
		return nil, etlerrors.Newf(etlerrors.ErrorTypeValidation, "posts dataset has no merge key column %q", key)
	}
	if !comments.Has(key) {
		return nil, etlerrors.Newf(etlerrors.ErrorTypeValidation, "comments dataset has no merge key column %q", key)
	}

	pst := posts.Clone()
	pst.DropColumns(without(p.DropColumnsPst, key)...)
	cmt := comments.Clone()
	cmt.DropColumns(without(p.DropColumnsCmt, key)...)

	cmtSide, err := project(cmt, p.MergedColumnsCmt, key)
	if err != nil {
		return nil, err
	}
	pstSide, err := project(pst, p.MergedColumnsPst, key)
	if err != nil {
		return nil, err
	}

	fact, err := columnar.InnerJoin(cmtSide, pstSide, key, columnar.DefaultSuffixes)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to join comments with posts")
	}
	return &Tables{Posts: pst, Comments: cmt, Fact: fact}, nil
}

// project selects columns plus key; no columns means all of them.
func project(ds *columnar.Dataset, columns []string, key string) (*columnar.Dataset, error) {
	if len(columns) == 0 {
		return ds, nil
	}
	cols := append([]string(nil), columns...)
	found := false
	for _, c := range cols {
		if c == key {
			found = true
			break
		}
	}
	if !found {
		cols = append([]string{key}, cols...)
	}
	out, err := ds.Select(cols...)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeValidation, "merged columns not found")
	}
	return out, nil
}

func without(names []string, drop string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != drop {
			out = append(out, n)
		}
	}
	return out
}
