package formats

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

func sampleDataset(t *testing.T) *columnar.Dataset {
	t.Helper()
	created := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	ds, err := columnar.New(
		columnar.MustColumn("post_id", columnar.ColumnTypeString, "p1", "p2", "p3"),
		columnar.MustColumn("title", columnar.ColumnTypeString, "Hello, world", "multi\nline", nil),
		columnar.MustColumn("score", columnar.ColumnTypeInt, 10, nil, -3),
		columnar.MustColumn("upvote_ratio", columnar.ColumnTypeFloat, 0.97, 0.5, nil),
		columnar.MustColumn("over_18", columnar.ColumnTypeBool, false, true, nil),
		columnar.MustColumn("created", columnar.ColumnTypeTimestamp, created, nil, created.Add(time.Hour)),
	)
	require.NoError(t, err)
	return ds
}

func TestFromKey(t *testing.T) {
	tests := []struct {
		key  string
		want Format
		ok   bool
	}{
		{"post_folder/pst_2024-05-06.csv", CSV, true},
		{"post_folder/pst_2024-05-06.CSV", CSV, true},
		{"post_folder/pst_2024-05-06.csv.gz", CSVGzip, true},
		{"post_folder/pst_2024-05-06.parquet", Parquet, true},
		{"post_folder/pst_2024-05-06.json", "", false},
		{"post_folder/pst_2024-05-06", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := FromKey(tt.key)
			if !tt.ok {
				require.Error(t, err)
				assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(".Parquet")
	require.NoError(t, err)
	assert.Equal(t, Parquet, f)

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	for _, f := range []Format{CSV, CSVGzip, Parquet} {
		t.Run(string(f), func(t *testing.T) {
			ds := sampleDataset(t)
			data, err := EncodeBytes(ds, f)
			require.NoError(t, err)

			got, err := Decode(data, f)
			require.NoError(t, err)

			assert.Equal(t, ds.ColumnNames(), got.ColumnNames())
			assert.Equal(t, ds.NumRows(), got.NumRows())
			for _, name := range ds.ColumnNames() {
				want, _ := ds.Column(name)
				have, _ := got.Column(name)
				assert.Equal(t, want.Type, have.Type, name)
				for i := range want.Values {
					assert.True(t, columnar.Equal(want.Values[i], have.Values[i]),
						"%s[%d]: %v != %v", name, i, want.Values[i], have.Values[i])
				}
			}
		})
	}
}

func TestReadCSVInference(t *testing.T) {
	doc := "a,b,c,d,e\n1,1.5,true,x,\n2,,False,2024-01-02T03:04:05Z,\n"
	ds, err := ReadCSV(strings.NewReader(doc))
	require.NoError(t, err)

	types := map[string]columnar.ColumnType{}
	for _, f := range ds.Schema() {
		types[f.Name] = f.Type
	}
	assert.Equal(t, columnar.ColumnTypeInt, types["a"])
	assert.Equal(t, columnar.ColumnTypeFloat, types["b"])
	assert.Equal(t, columnar.ColumnTypeBool, types["c"])
	assert.Equal(t, columnar.ColumnTypeString, types["d"], "mixed text and timestamp stays string")
	assert.Equal(t, columnar.ColumnTypeString, types["e"], "all-null column")

	e, _ := ds.Column("e")
	assert.Equal(t, 2, e.NullCount())
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeData))

	_, err = ReadCSV(strings.NewReader("a,b\n1\n"))
	assert.True(t, etlerrors.IsType(err, etlerrors.ErrorTypeData))
}

func TestHeaderOnlyCSV(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("post_id,title\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, ds.NumRows())
	assert.Equal(t, []string{"post_id", "title"}, ds.ColumnNames())
}
