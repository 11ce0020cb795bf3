// pkg/tables/tables.go
package tables

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

// File names of the individual tables, relative to a tables directory
const (
	UnitsFile                   = "units.yaml"
	SubcompartmentsFile         = "subcompartments.yaml"
	SubcompartmentFallbacksFile = "subcompartment_fallbacks.yaml"
	WasteTermsFile              = "waste_terms.yaml"
	BlacklistFile               = "blacklist.yaml"
	LocationsFile               = "locations.yaml"
	BiosphereFile               = "biosphere.yaml"
	BiosphereCorrespondenceFile = "biosphere_correspondence.yaml"
	TechnosphereFile            = "technosphere.yaml"
	FieldsFile                  = "fields.yaml"
	HeadersFile                 = "headers.yaml"
)

// ErrDuplicateValue is returned when a table meant to be inverted maps two keys to one value
var ErrDuplicateValue = errors.New("table maps two keys to the same value")

// TechnosphereName maps an ecoinvent activity in a location to its SimaPro process name
type TechnosphereName struct {
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
	Simapro  string `yaml:"simapro"`
}

// Tables holds the static reference tables used by normalization and export.
// All tables are read-only after Load returns.
type Tables struct {
	Units                   map[string]string
	Subcompartments         map[string]string
	SubcompartmentFallbacks map[string][]string
	WasteTerms              mapset.Set[string]
	Blacklist               mapset.Set[string]
	Locations               map[string]string
	Biosphere               map[string]BiosphereName
	BiosphereCorrespondence map[string]map[string]string
	Technosphere            map[[2]string]string
	Fields                  []string
	Headers                 []string

	reverseUnits           map[string]string
	reverseSubcompartments map[string]string
	reverseBiosphere       map[string]string
}

// Default returns the tables shipped with the binary
func Default() (*Tables, error) {
	return Load("")
}

// Load reads the tables, preferring files found in dir over the embedded defaults.
// An empty dir loads only the embedded tables.
func Load(dir string) (*Tables, error) {
	t := &Tables{}
	var technosphere []TechnosphereName
	var wasteTerms, blacklist []string

	targets := []struct {
		file string
		out  interface{}
	}{
		{UnitsFile, &t.Units},
		{SubcompartmentsFile, &t.Subcompartments},
		{SubcompartmentFallbacksFile, &t.SubcompartmentFallbacks},
		{WasteTermsFile, &wasteTerms},
		{BlacklistFile, &blacklist},
		{LocationsFile, &t.Locations},
		{BiosphereFile, &t.Biosphere},
		{BiosphereCorrespondenceFile, &t.BiosphereCorrespondence},
		{TechnosphereFile, &technosphere},
		{FieldsFile, &t.Fields},
		{HeadersFile, &t.Headers},
	}

	for _, target := range targets {
		data, err := readTable(dir, target.file)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, target.out); err != nil {
			return nil, fmt.Errorf("failed to parse table %s: %w", target.file, err)
		}
	}

	t.WasteTerms = mapset.NewSet[string]()
	for _, term := range wasteTerms {
		t.WasteTerms.Add(strings.ToLower(term))
	}
	t.Blacklist = mapset.NewSet[string](blacklist...)

	t.Technosphere = make(map[[2]string]string, len(technosphere))
	for _, row := range technosphere {
		t.Technosphere[[2]string{row.Name, row.Location}] = row.Simapro
	}

	if err := t.index(); err != nil {
		return nil, err
	}
	return t, nil
}

func readTable(dir, name string) ([]byte, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read table %s: %w", name, err)
		}
	}
	data, err := embedded.ReadFile("data/" + name)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded table %s: %w", name, err)
	}
	return data, nil
}

// index builds the reverse lookups used when importing from SimaPro
func (t *Tables) index() error {
	var err error
	if t.reverseUnits, err = invert(t.Units); err != nil {
		return fmt.Errorf("%s: %w", UnitsFile, err)
	}
	if t.reverseSubcompartments, err = invert(t.Subcompartments); err != nil {
		return fmt.Errorf("%s: %w", SubcompartmentsFile, err)
	}

	// Location-keyed biosphere names cannot be inverted unambiguously; only
	// plain mappings and the fallback entry take part.
	t.reverseBiosphere = make(map[string]string, len(t.Biosphere))
	for _, ecoName := range sortedKeys(t.Biosphere) {
		if sp := t.Biosphere[ecoName].Default; sp != "" {
			if _, taken := t.reverseBiosphere[sp]; !taken {
				t.reverseBiosphere[sp] = ecoName
			}
		}
	}
	return nil
}

func invert(m map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(m))
	for _, k := range sortedKeys(m) {
		v := m[k]
		if prev, ok := out[v]; ok {
			return nil, fmt.Errorf("%w: %q and %q both map to %q", ErrDuplicateValue, prev, k, v)
		}
		out[v] = k
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SimaproUnit converts a Brightway unit, returning it unchanged when unmapped
func (t *Tables) SimaproUnit(unit string) (string, bool) {
	v, ok := t.Units[unit]
	if !ok {
		return unit, false
	}
	return v, true
}

// BrightwayUnit converts a SimaPro unit, returning it unchanged when unmapped
func (t *Tables) BrightwayUnit(unit string) (string, bool) {
	v, ok := t.reverseUnits[unit]
	if !ok {
		return unit, false
	}
	return v, true
}

// SimaproSubcompartment converts a Brightway subcategory
func (t *Tables) SimaproSubcompartment(sub string) (string, bool) {
	v, ok := t.Subcompartments[sub]
	if !ok {
		return sub, false
	}
	return v, true
}

// BrightwaySubcompartment converts a SimaPro subcompartment
func (t *Tables) BrightwaySubcompartment(sub string) (string, bool) {
	v, ok := t.reverseSubcompartments[sub]
	if !ok {
		return sub, false
	}
	return v, true
}

// BrightwayBiosphereName converts a SimaPro flow name back to its ecoinvent name
func (t *Tables) BrightwayBiosphereName(name string) (string, bool) {
	v, ok := t.reverseBiosphere[name]
	if !ok {
		return name, false
	}
	return v, true
}

// CorrectLocation applies the location corrections table
func (t *Tables) CorrectLocation(location string) (string, bool) {
	v, ok := t.Locations[location]
	if !ok || v == location {
		return location, false
	}
	return v, true
}

// IsWasteTreatment reports whether an exchange or activity name denotes a waste treatment
func (t *Tables) IsWasteTreatment(name string) bool {
	lower := strings.ToLower(name)
	found := false
	t.WasteTerms.Each(func(term string) bool {
		if strings.Contains(lower, term) {
			found = true
			return true
		}
		return false
	})
	return found
}

// IsBlacklisted reports whether a flow must be left out of SimaPro exports
func (t *Tables) IsBlacklisted(name string) bool {
	return t.Blacklist.Contains(name)
}

// SimaproProcessName looks up a known SimaPro name for an activity in a location
func (t *Tables) SimaproProcessName(name, location string) (string, bool) {
	v, ok := t.Technosphere[[2]string{name, location}]
	return v, ok
}

// CorrespondingFlowName maps a legacy flow name within a compartment
func (t *Tables) CorrespondingFlowName(compartment, name string) (string, bool) {
	byName, ok := t.BiosphereCorrespondence[compartment]
	if !ok {
		return name, false
	}
	v, ok := byName[name]
	if !ok {
		return name, false
	}
	return v, true
}
