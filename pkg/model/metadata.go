// pkg/model/metadata.go
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMetadata is returned when a metadata document fails validation
var ErrInvalidMetadata = errors.New("invalid metadata")

// InventoryMetadata carries the per-conversion document exported alongside datasets
type InventoryMetadata struct {
	Project              string                `yaml:"project"`
	Author               string                `yaml:"author"`
	SystemDescriptions   []SystemDescription   `yaml:"system_description"`
	LiteratureReferences []LiteratureReference `yaml:"literature"`
	Defaults             map[string]string     `yaml:"defaults"` // Per-field overrides applied to every dataset
}

// SystemDescription is a named description of the modelled system
type SystemDescription struct {
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
	CutOffRules string `yaml:"cut_off_rules"`
	Allocation  string `yaml:"allocation"`
}

// LiteratureReference is a named bibliographic source
type LiteratureReference struct {
	Name          string `yaml:"name"`
	Category      string `yaml:"category"`
	Description   string `yaml:"description"`
	Documentation string `yaml:"documentation_link"`
}

// Validate checks required keys and that entry names are unique per section
func (m *InventoryMetadata) Validate() error {
	var errs []error

	seen := make(map[string]bool)
	for i, sd := range m.SystemDescriptions {
		if err := requireNamed("system_description", i, sd.Name, sd.Category); err != nil {
			errs = append(errs, err)
			continue
		}
		key := strings.ToLower(sd.Name)
		if seen[key] {
			errs = append(errs, fmt.Errorf("%w: system_description %q is defined twice", ErrInvalidMetadata, sd.Name))
		}
		seen[key] = true
	}

	seen = make(map[string]bool)
	for i, lr := range m.LiteratureReferences {
		if err := requireNamed("literature", i, lr.Name, lr.Category); err != nil {
			errs = append(errs, err)
			continue
		}
		key := strings.ToLower(lr.Name)
		if seen[key] {
			errs = append(errs, fmt.Errorf("%w: literature %q is defined twice", ErrInvalidMetadata, lr.Name))
		}
		seen[key] = true
	}

	return errors.Join(errs...)
}

// DatasetDefaults returns a copy of the built-in dataset defaults, keyed by
// lower-case field name
func DatasetDefaults() map[string]string {
	return map[string]string{
		"location":         "GLO",
		"simapro category": "Others",
		"type":             "Unit process",
		"infrastructure":   "No",
		"status":           "Draft",
	}
}

// OverlayDefaults returns base overlaid with the document's defaults. Field
// names are folded to lower case; base is left untouched.
func (m *InventoryMetadata) OverlayDefaults(base map[string]string) map[string]string {
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[strings.ToLower(k)] = v
	}
	if m == nil {
		return out
	}
	for k, v := range m.Defaults {
		out[strings.ToLower(k)] = v
	}
	return out
}

func requireNamed(section string, index int, name, category string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %s[%d] is missing name", ErrInvalidMetadata, section, index)
	}
	if strings.TrimSpace(category) == "" {
		return fmt.Errorf("%w: %s %q is missing category", ErrInvalidMetadata, section, name)
	}
	return nil
}
