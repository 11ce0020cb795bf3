// pkg/config/metadata.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

// LoadMetadata reads and validates a metadata document
func LoadMetadata(path string) (*model.InventoryMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata %s: %w", path, err)
	}
	return ParseMetadata(data)
}

// ParseMetadata decodes and validates a metadata document
func ParseMetadata(data []byte) (*model.InventoryMetadata, error) {
	var m model.InventoryMetadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
