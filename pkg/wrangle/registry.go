package wrangle

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/columnar"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// Params are the named arguments of a registered function.
type Params map[string]interface{}

// Int returns an integer parameter.
func (p Params) Int(key string) (int, error) {
	switch v := p[key].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, nil
		}
	case nil:
		return 0, fmt.Errorf("parameter %q is required", key)
	}
	return 0, fmt.Errorf("parameter %q must be an integer, got %v", key, p[key])
}

// String returns a string parameter.
func (p Params) String(key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", fmt.Errorf("parameter %q is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string, got %v", key, v)
	}
	return s, nil
}

// Func is a per-value function that derives a new column from an existing one.
// Apply is never called with a null value; nulls map to nulls.
type Func struct {
	Input  []columnar.ColumnType
	Output columnar.ColumnType
	Check  func(p Params) error
	Apply  func(v interface{}, p Params) (interface{}, error)
}

func (f Func) accepts(t columnar.ColumnType) bool {
	if len(f.Input) == 0 {
		return true
	}
	for _, in := range f.Input {
		if in == t {
			return true
		}
	}
	return false
}

// Registry maps function names to functions. Names are resolved when a plan
// is compiled, never at row time.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns a registry holding the built-in functions.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.funcs["get_value"] = Func{
		Input:  []columnar.ColumnType{columnar.ColumnTypeString},
		Output: columnar.ColumnTypeString,
		Check: func(p Params) error {
			if _, err := p.Int("index"); err != nil {
				return err
			}
			_, err := p.String("key")
			return err
		},
		Apply: getValue,
	}
	r.funcs["lower"] = Func{
		Input:  []columnar.ColumnType{columnar.ColumnTypeString},
		Output: columnar.ColumnTypeString,
		Apply:  func(v interface{}, _ Params) (interface{}, error) { return strings.ToLower(v.(string)), nil },
	}
	r.funcs["upper"] = Func{
		Input:  []columnar.ColumnType{columnar.ColumnTypeString},
		Output: columnar.ColumnTypeString,
		Apply:  func(v interface{}, _ Params) (interface{}, error) { return strings.ToUpper(v.(string)), nil },
	}
	r.funcs["length"] = Func{
		Input:  []columnar.ColumnType{columnar.ColumnTypeString},
		Output: columnar.ColumnTypeInt,
		Apply: func(v interface{}, _ Params) (interface{}, error) {
			return int64(utf8.RuneCountInString(v.(string))), nil
		},
	}
	r.funcs["url_domain"] = Func{
		Input:  []columnar.ColumnType{columnar.ColumnTypeString},
		Output: columnar.ColumnTypeString,
		Apply:  urlDomain,
	}
	return r
}

// Register adds a function. Registering an existing name fails.
func (r *Registry) Register(name string, f Func) error {
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("function %q already registered", name)
	}
	if f.Apply == nil {
		return fmt.Errorf("function %q has no Apply", name)
	}
	r.funcs[name] = f
	return nil
}

// Lookup returns the named function.
func (r *Registry) Lookup(name string) (Func, bool) {
	f, ok := r.funcs[name]
	return f, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up name and checks params, failing with a config error.
func (r *Registry) Resolve(name string, params Params) (Func, error) {
	f, ok := r.funcs[name]
	if !ok {
		return Func{}, etlerrors.Newf(etlerrors.ErrorTypeConfig, "unknown transform function %q", name).
			WithDetail("known", r.Names())
	}
	if f.Check != nil {
		if err := f.Check(params); err != nil {
			return Func{}, etlerrors.Wrapf(err, etlerrors.ErrorTypeConfig, "invalid parameters for %q", name)
		}
	}
	return f, nil
}

// getValue reads key from the index-th object of a serialized list of objects,
// e.g. the flair text of a link_flair_richtext cell. Missing entries give null.
func getValue(v interface{}, p Params) (interface{}, error) {
	index, _ := p.Int("index")
	key, _ := p.String("key")

	text := strings.TrimSpace(v.(string))
	if text == "" {
		return nil, nil
	}

	var items []map[string]interface{}
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		if err2 := json.Unmarshal([]byte(pythonLiteralToJSON(text)), &items); err2 != nil {
			return nil, fmt.Errorf("value is not a list of objects: %w", err)
		}
	}
	if index < 0 || index >= len(items) {
		return nil, nil
	}
	switch got := items[index][key].(type) {
	case nil:
		return nil, nil
	case string:
		return got, nil
	default:
		out, err := json.Marshal(got)
		if err != nil {
			return nil, err
		}
		return string(out), nil
	}
}

// pythonLiteralToJSON rewrites a Python literal list of dicts, as written by
// older CSV exports, into JSON.
func pythonLiteralToJSON(s string) string {
	var b strings.Builder
	inString := false
	var quote rune
	for i, r := range s {
		switch {
		case inString && r == '\\':
			b.WriteRune(r)
		case inString && r == quote && (i == 0 || s[i-1] != '\\'):
			inString = false
			b.WriteByte('"')
		case inString && r == '"':
			b.WriteString(`\"`)
		case !inString && (r == '\'' || r == '"'):
			inString = true
			quote = r
			b.WriteByte('"')
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	for py, js := range map[string]string{"None": "null", "True": "true", "False": "false"} {
		out = replaceBareWord(out, py, js)
	}
	return out
}

func replaceBareWord(s, word, with string) string {
	var b strings.Builder
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' && (i == 0 || s[i-1] != '\\') {
			inString = !inString
		}
		if !inString && strings.HasPrefix(s[i:], word) {
			b.WriteString(with)
			i += len(word) - 1
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func urlDomain(v interface{}, _ Params) (interface{}, error) {
	u, err := url.Parse(strings.TrimSpace(v.(string)))
	if err != nil || u.Hostname() == "" {
		return nil, nil
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), nil
}
