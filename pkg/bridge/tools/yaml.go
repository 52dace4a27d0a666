package tools

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type toolsFile struct {
	Tools []toolsFileEntry `yaml:"tools"`
}

type toolsFileEntry struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Hidden      bool           `yaml:"hidden"`
	Parameters  map[string]any `yaml:"parameters"`
	Response    map[string]any `yaml:"response"`
}

// LoadToolsFile reads extra webhook tool declarations from a YAML file.
// Only webhook tools can be declared this way; local tools need code.
func LoadToolsFile(path string) ([]Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools file: %w", err)
	}
	return ParseToolsYAML(data)
}

func ParseToolsYAML(data []byte) ([]Tool, error) {
	var file toolsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tools file: %w", err)
	}

	out := make([]Tool, 0, len(file.Tools))
	for i, entry := range file.Tools {
		if entry.Name == "" {
			return nil, fmt.Errorf("tools[%d]: name is required", i)
		}
		tool := Tool{
			Kind:        KindWebhook,
			Name:        entry.Name,
			Description: entry.Description,
			Hidden:      entry.Hidden,
		}
		if entry.Parameters != nil {
			schema, err := schemaFromYAMLValue(entry.Parameters)
			if err != nil {
				return nil, fmt.Errorf("tools[%d] %s: parameters: %w", i, entry.Name, err)
			}
			tool.Parameters = schema
		}
		if entry.Response != nil {
			schema, err := schemaFromYAMLValue(entry.Response)
			if err != nil {
				return nil, fmt.Errorf("tools[%d] %s: response: %w", i, entry.Name, err)
			}
			tool.Response = schema
		}
		out = append(out, tool)
	}
	return out, nil
}

// schemaFromYAMLValue goes through JSON because the schema parser speaks
// JSON and yaml.v3 already produces string-keyed maps.
func schemaFromYAMLValue(value map[string]any) (*Schema, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return SchemaFromJSON(data)
}
