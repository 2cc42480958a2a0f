package columnar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

func sample(t *testing.T) *Dataset {
	t.Helper()
	ds, err := New(
		MustColumn("post_id", ColumnTypeString, "p1", "p2", "p3"),
		MustColumn("score", ColumnTypeInt, 10, nil, 3),
		MustColumn("ratio", ColumnTypeFloat, 0.5, 0.9, nil),
	)
	require.NoError(t, err)
	return ds
}

func TestNewValidates(t *testing.T) {
	_, err := New(MustColumn("a", ColumnTypeInt, 1), MustColumn("a", ColumnTypeInt, 2))
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeValidation))

	_, err = New(MustColumn("a", ColumnTypeInt, 1), MustColumn("b", ColumnTypeInt, 2, 3))
	assert.Error(t, err)
}

func TestNewColumnNormalizes(t *testing.T) {
	col, err := NewColumn("n", ColumnTypeInt, []interface{}{int(1), int32(2), nil})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), int64(2), nil}, col.Values)
	assert.Equal(t, 1, col.NullCount())

	_, err = NewColumn("n", ColumnTypeInt, []interface{}{"one"})
	assert.Error(t, err)

	ts := time.Date(2024, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600))
	tcol := MustColumn("t", ColumnTypeTimestamp, ts)
	assert.Equal(t, time.UTC, tcol.Values[0].(time.Time).Location())
}

func TestDropColumnsIgnoresUnknown(t *testing.T) {
	ds := sample(t)
	ds.DropColumns("ratio", "nope")
	assert.Equal(t, []string{"post_id", "score"}, ds.ColumnNames())
	assert.Equal(t, 3, ds.NumRows())
}

func TestRenameColumns(t *testing.T) {
	ds := sample(t)
	require.NoError(t, ds.RenameColumns(map[string]string{"score": "points", "ghost": "x"}))
	assert.Equal(t, []string{"post_id", "points", "ratio"}, ds.ColumnNames())

	err := ds.RenameColumns(map[string]string{"points": "post_id"})
	assert.Error(t, err)
	assert.Equal(t, []string{"post_id", "points", "ratio"}, ds.ColumnNames(), "failed rename leaves dataset unchanged")
}

func TestSelectTakeFilter(t *testing.T) {
	ds := sample(t)

	sel, err := ds.Select("score", "post_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"score", "post_id"}, sel.ColumnNames())

	_, err = ds.Select("missing")
	assert.Error(t, err)

	taken := ds.Take([]int{2, 0})
	assert.Equal(t, []interface{}{"p3", int64(3), nil}, taken.Row(0))

	filtered := ds.Filter(func(i int) bool { return !ds.Columns()[1].IsNull(i) })
	assert.Equal(t, 2, filtered.NumRows())
}

func TestSetColumn(t *testing.T) {
	ds := sample(t)
	require.NoError(t, ds.SetColumn(MustColumn("score", ColumnTypeFloat, 1.0, 2.0, 3.0)))
	col, _ := ds.Column("score")
	assert.Equal(t, ColumnTypeFloat, col.Type)
	assert.Equal(t, []string{"post_id", "score", "ratio"}, ds.ColumnNames())

	assert.Error(t, ds.SetColumn(MustColumn("extra", ColumnTypeInt, 1)))
	require.NoError(t, ds.SetColumn(MustColumn("extra", ColumnTypeInt, 1, 2, 3)))
	assert.Equal(t, 4, ds.NumColumns())
}

func TestCloneIsIndependent(t *testing.T) {
	ds := sample(t)
	cp := ds.Clone()
	cp.Columns()[0].Values[0] = "changed"
	assert.Equal(t, "p1", ds.Columns()[0].Values[0])
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(Field{"id", ColumnTypeString}, Field{"n", ColumnTypeInt})
	require.NoError(t, b.Append("a", 1))
	require.NoError(t, b.Append(nil, nil))
	assert.Error(t, b.Append("a"))
	assert.Error(t, b.Append("a", "b"))

	ds, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NumRows())
	assert.Equal(t, []interface{}{nil, nil}, ds.Row(1))

	empty, err := NewBuilder(Field{"id", ColumnTypeString}).Build()
	require.NoError(t, err)
	assert.Equal(t, 0, empty.NumRows())
}

func TestInnerJoin(t *testing.T) {
	comments, err := New(
		MustColumn("comment_id", ColumnTypeString, "c1", "c2", "c3", "c4"),
		MustColumn("post_id", ColumnTypeString, "p1", "p1", "p2", "p9"),
		MustColumn("score", ColumnTypeInt, 1, 2, 3, 4),
	)
	require.NoError(t, err)
	posts, err := New(
		MustColumn("post_id", ColumnTypeString, "p2", "p1"),
		MustColumn("title", ColumnTypeString, "second", "first"),
		MustColumn("score", ColumnTypeInt, 20, 10),
	)
	require.NoError(t, err)

	fact, err := InnerJoin(comments, posts, "post_id", DefaultSuffixes)
	require.NoError(t, err)

	assert.Equal(t, 3, fact.NumRows())
	assert.Equal(t, []string{"comment_id", "post_id", "score_cmt", "title", "score_pst"}, fact.ColumnNames())
	assert.Equal(t, []interface{}{"c1", "p1", int64(1), "first", int64(10)}, fact.Row(0))
	assert.Equal(t, []interface{}{"c3", "p2", int64(3), "second", int64(20)}, fact.Row(2))

	_, err = InnerJoin(comments, posts, "missing", DefaultSuffixes)
	assert.Error(t, err)
}

func TestInnerJoinMixedKeyTypes(t *testing.T) {
	left, _ := New(MustColumn("k", ColumnTypeInt, 1, 2, nil))
	right, _ := New(MustColumn("k", ColumnTypeString, "2", "3"), MustColumn("v", ColumnTypeString, "two", "three"))

	out, err := InnerJoin(left, right, "k", DefaultSuffixes)
	require.NoError(t, err)
	require.Equal(t, 1, out.NumRows())
	assert.Equal(t, []interface{}{int64(2), "two"}, out.Row(0))
}

func TestEqualAndFormat(t *testing.T) {
	a := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, Equal(a, a.In(time.FixedZone("Y", 7200))))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, ""))
	assert.Equal(t, "2024-01-01T00:00:00Z", FormatValue(a))
	assert.Equal(t, "0.25", FormatValue(0.25))
	assert.Equal(t, "", FormatValue(nil))
}
