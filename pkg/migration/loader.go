// pkg/migration/loader.go
package migration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile loads, parses and validates a migration table from the given path
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration file %s: %w", path, err)
	}

	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("migration file %s: %w", path, err)
	}
	return t, nil
}

// Parse parses and validates YAML migration data
func Parse(data []byte) (*Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse migration YAML: %w", err)
	}

	applyDefaults(&f)

	return Compile(&f)
}

// applyDefaults fills in default values for optional fields
func applyDefaults(f *File) {
	if len(f.Fields) == 0 {
		f.Fields = []string{"name", "reference product", "location"}
	}
}

// Marshal serializes a migration file to YAML
func Marshal(f *File) ([]byte, error) {
	return yaml.Marshal(f)
}

// WriteFile writes a migration file to the given path
func WriteFile(f *File, path string) error {
	data, err := Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal migration: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write migration file %s: %w", path, err)
	}

	return nil
}
