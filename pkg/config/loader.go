package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// Load reads, substitutes, defaults and validates the configuration at filePath.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*Config, error) {
	content := substituteEnvVars(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(content)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConfig, "failed to parse YAML")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}

// TypeSpec is a target column type. In YAML it is either a scalar
// (int, float, str, bool) or a two-item sequence [datetime, unit].
type TypeSpec struct {
	Kind string
	Unit string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *TypeSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		t.Kind = node.Value
		return nil
	case yaml.SequenceNode:
		var parts []string
		if err := node.Decode(&parts); err != nil {
			return err
		}
		if len(parts) != 2 {
			return fmt.Errorf("line %d: type sequence must be [datetime, unit]", node.Line)
		}
		t.Kind, t.Unit = parts[0], parts[1]
		return nil
	default:
		return fmt.Errorf("line %d: type must be a scalar or a sequence", node.Line)
	}
}

func (t TypeSpec) validate() error {
	switch t.Kind {
	case "int", "float", "str", "string", "bool":
		if t.Unit != "" {
			return fmt.Errorf("type %q takes no unit", t.Kind)
		}
	case "datetime":
		switch t.Unit {
		case "s", "ms", "us", "ns":
		default:
			return fmt.Errorf("datetime unit %q is not one of s, ms, us, ns", t.Unit)
		}
	default:
		return fmt.Errorf("unknown type %q", t.Kind)
	}
	return nil
}
