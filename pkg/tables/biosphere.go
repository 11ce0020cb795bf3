// pkg/tables/biosphere.go
package tables

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// GlobalLocation is tried after the exchange and activity locations
const GlobalLocation = "GLO"

// BiosphereName is the SimaPro name of an ecoinvent flow, either a single
// name or a set of names keyed by location.
type BiosphereName struct {
	Default    string
	ByLocation map[string]string
}

// UnmarshalYAML accepts a plain string or a location map
func (b *BiosphereName) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		b.Default = value.Value
		return nil
	case yaml.MappingNode:
		m := make(map[string]string)
		if err := value.Decode(&m); err != nil {
			return err
		}
		b.ByLocation = m
		b.Default = m[""]
		return nil
	default:
		return fmt.Errorf("line %d: biosphere name must be a string or a location map", value.Line)
	}
}

// Resolve picks the name for an exchange, trying in order: the exchange
// location, its parents ("CH-01" then "CH"), the activity location, GLO
// and the fallback entry.
func (b BiosphereName) Resolve(exchangeLocation, activityLocation string) (string, bool) {
	if b.ByLocation == nil {
		return b.Default, b.Default != ""
	}

	for _, loc := range locationCandidates(exchangeLocation, activityLocation) {
		if v, ok := b.ByLocation[loc]; ok && v != "" {
			return v, true
		}
	}
	if b.Default != "" {
		return b.Default, true
	}
	return "", false
}

func locationCandidates(exchangeLocation, activityLocation string) []string {
	var out []string
	if exchangeLocation != "" {
		out = append(out, exchangeLocation)
		loc := exchangeLocation
		for {
			i := strings.LastIndex(loc, "-")
			if i <= 0 {
				break
			}
			loc = loc[:i]
			out = append(out, loc)
		}
	}
	if activityLocation != "" {
		out = append(out, activityLocation)
	}
	return append(out, GlobalLocation)
}

// SimaproBiosphereName resolves the SimaPro name of an ecoinvent flow,
// returning the original name when the table has no usable entry.
func (t *Tables) SimaproBiosphereName(name, exchangeLocation, activityLocation string) (string, bool) {
	entry, ok := t.Biosphere[name]
	if !ok {
		return name, false
	}
	if v, ok := entry.Resolve(exchangeLocation, activityLocation); ok {
		return v, true
	}
	return name, false
}
