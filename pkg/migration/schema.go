// pkg/migration/schema.go
package migration

// File is the on-disk form of a migration table
type File struct {
	Name         string              `yaml:"name"`
	Description  string              `yaml:"description,omitempty"`
	Fields       []string            `yaml:"fields,omitempty"`
	Replace      []ReplaceEntry      `yaml:"replace,omitempty"`
	Disaggregate []DisaggregateEntry `yaml:"disaggregate,omitempty"`
	Biosphere    []BiosphereEntry    `yaml:"biosphere,omitempty"`
}

// ReplaceEntry rewrites one key tuple into another
type ReplaceEntry struct {
	From []string `yaml:"from,flow"`
	To   []string `yaml:"to,flow"`
}

// DisaggregateEntry splits one key tuple into weighted targets
type DisaggregateEntry struct {
	From []string     `yaml:"from,flow"`
	To   []Allocation `yaml:"to"`
}

// Allocation is one target of a disaggregation and its share of the amount
type Allocation struct {
	Key        []string `yaml:"key,flow"`
	Allocation float64  `yaml:"allocation"`
}

// BiosphereEntry renames a biosphere flow and links it to a catalogue entry
type BiosphereEntry struct {
	From     string `yaml:"from"`
	Name     string `yaml:"name,omitempty"`
	ID       string `yaml:"id"`
	Database string `yaml:"database,omitempty"`
}
