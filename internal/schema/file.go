package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileDefinition struct {
	Tables []Table `yaml:"tables"`
}

// LoadFile reads a YAML schema definition. The file is read exactly once;
// there is no reloading during the process lifetime.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	var definition fileDefinition
	if err := yaml.Unmarshal(raw, &definition); err != nil {
		return nil, fmt.Errorf("parse schema file %s: %w", path, err)
	}
	registry, err := New(definition.Tables)
	if err != nil {
		return nil, fmt.Errorf("schema file %s: %w", path, err)
	}
	return registry, nil
}
