package wrangle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
)

func TestGetValue(t *testing.T) {
	params := Params{"index": 0, "key": "t"}
	tests := []struct {
		name  string
		input string
		want  interface{}
	}{
		{"json", `[{"e": "text", "t": "Discussion"}]`, "Discussion"},
		{"python literal", `[{'e': 'text', 't': "Help"}, {'e': 'emoji', 'a': None}]`, "Help"},
		{"empty list", `[]`, nil},
		{"empty string", ``, nil},
		{"missing key", `[{"e": "text"}]`, nil},
		{"non-string value", `[{"t": 3}]`, "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := getValue(tt.input, params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := getValue("not a list", params)
	assert.Error(t, err)

	got, err := getValue(`[{"t": "a"}]`, Params{"index": 3, "key": "t"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBuiltins(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"get_value", "length", "lower", "upper", "url_domain"}, r.Names())

	domain, _ := r.Lookup("url_domain")
	got, err := domain.Apply("https://www.Example.com/r/golang?x=1", nil)
	require.NoError(t, err)
	assert.Equal(t, "example.com", got)

	got, err = domain.Apply("/r/golang/comments/abc", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	length, _ := r.Lookup("length")
	got, _ = length.Apply("héllo", nil)
	assert.Equal(t, int64(5), got)
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	double := Func{
		Input:  []columnar.ColumnType{columnar.ColumnTypeInt},
		Output: columnar.ColumnTypeInt,
		Apply:  func(v interface{}, _ Params) (interface{}, error) { return v.(int64) * 2, nil },
	}
	require.NoError(t, r.Register("double", double))
	assert.Error(t, r.Register("double", double))
	assert.Error(t, r.Register("nil_apply", Func{}))

	ds, _ := columnar.New(columnar.MustColumn("score", columnar.ColumnTypeInt, 2, nil))
	w := New(ds, r, nil)
	require.NoError(t, w.ApplyFunc("double", "score", "score2", nil))
	col, _ := ds.Column("score2")
	assert.Equal(t, []interface{}{int64(4), nil}, col.Values)

	assert.Error(t, w.ApplyFunc("lower", "score", "x", nil), "lower rejects int input")
	assert.Error(t, w.ApplyFunc("nope", "score", "x", nil))
}
