package mapping

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a mapping serialization format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name. Returns FormatJSON if unrecognized.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) Format {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

// Marshal serializes m in the given format.
func Marshal(m *Mapping, f Format) ([]byte, error) {
	switch f {
	case FormatYAML:
		return yaml.Marshal(m)
	default:
		return json.MarshalIndent(m, "", "  ")
	}
}

// Unmarshal parses data as one mapping or a list of mappings.
func Unmarshal(data []byte, f Format) ([]*Mapping, error) {
	var list []*Mapping
	var single Mapping

	switch f {
	case FormatYAML:
		var probe yaml.Node
		if err := yaml.Unmarshal(data, &probe); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if len(probe.Content) > 0 && probe.Content[0].Kind == yaml.SequenceNode {
			if err := probe.Decode(&list); err != nil {
				return nil, fmt.Errorf("failed to parse YAML: %w", err)
			}
			return list, nil
		}
		if err := probe.Decode(&single); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "[") {
			if err := json.Unmarshal(data, &list); err != nil {
				return nil, fmt.Errorf("failed to parse JSON: %w", err)
			}
			return list, nil
		}
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	}
	return []*Mapping{&single}, nil
}
