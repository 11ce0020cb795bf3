// pkg/migration/table.go
package migration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

var (
	// ErrAmbiguousKey is returned when a source key appears more than once
	ErrAmbiguousKey = errors.New("ambiguous migration key")
	// ErrInvalidTable is returned for structural problems in a migration file
	ErrInvalidTable = errors.New("invalid migration table")
	// ErrNotInvertible is returned when two replace entries share a target
	ErrNotInvertible = errors.New("migration table is not invertible")
)

// Table is a validated migration table ready to be applied
type Table struct {
	Name        string
	Description string

	fields       []model.Field
	file         File
	replace      map[model.Key]int
	disaggregate map[model.Key]int
	biosphere    map[model.Key]int
}

// Compile validates a migration file and indexes its entries.
// Every problem found is reported, joined into one error.
func Compile(f *File) (*Table, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: file is nil", ErrInvalidTable)
	}

	labels := f.Fields
	if len(labels) == 0 {
		labels = []string{"name", "reference product", "location"}
	}
	fields, err := model.ParseFields(labels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	t := &Table{
		Name:         f.Name,
		Description:  f.Description,
		fields:       fields,
		file:         *f,
		replace:      make(map[model.Key]int, len(f.Replace)),
		disaggregate: make(map[model.Key]int, len(f.Disaggregate)),
		biosphere:    make(map[model.Key]int, len(f.Biosphere)),
	}
	t.file.Fields = labels

	var errs []error
	arity := func(section string, i int, what string, tuple []string) bool {
		if len(tuple) != len(fields) {
			errs = append(errs, fmt.Errorf("%w: %s[%d].%s has %d values, fields declare %d",
				ErrInvalidTable, section, i, what, len(tuple), len(fields)))
			return false
		}
		return true
	}

	for i, e := range f.Replace {
		okFrom := arity("replace", i, "from", e.From)
		okTo := arity("replace", i, "to", e.To)
		if !okFrom || !okTo {
			continue
		}
		key := model.NewKey(e.From...)
		if _, dup := t.replace[key]; dup {
			errs = append(errs, fmt.Errorf("%w: replace source %s is listed twice", ErrAmbiguousKey, key))
			continue
		}
		t.replace[key] = i
	}

	for i, e := range f.Disaggregate {
		if !arity("disaggregate", i, "from", e.From) {
			continue
		}
		if len(e.To) == 0 {
			errs = append(errs, fmt.Errorf("%w: disaggregate[%d] has no targets", ErrInvalidTable, i))
			continue
		}
		valid := true
		for j, a := range e.To {
			if !arity("disaggregate", i, fmt.Sprintf("to[%d].key", j), a.Key) {
				valid = false
			}
			if a.Allocation < 0 {
				errs = append(errs, fmt.Errorf("%w: disaggregate[%d].to[%d] has negative allocation %g",
					ErrInvalidTable, i, j, a.Allocation))
				valid = false
			}
		}
		if !valid {
			continue
		}
		key := model.NewKey(e.From...)
		if _, dup := t.disaggregate[key]; dup {
			errs = append(errs, fmt.Errorf("%w: disaggregate source %s is listed twice", ErrAmbiguousKey, key))
			continue
		}
		if _, both := t.replace[key]; both {
			errs = append(errs, fmt.Errorf("%w: %s is both replaced and disaggregated", ErrAmbiguousKey, key))
			continue
		}
		t.disaggregate[key] = i
	}

	for i, e := range f.Biosphere {
		if strings.TrimSpace(e.From) == "" {
			errs = append(errs, fmt.Errorf("%w: biosphere[%d] is missing from", ErrInvalidTable, i))
			continue
		}
		if strings.TrimSpace(e.ID) == "" {
			errs = append(errs, fmt.Errorf("%w: biosphere[%d] %q is missing id", ErrInvalidTable, i, e.From))
			continue
		}
		key := model.NewKey(e.From)
		if _, dup := t.biosphere[key]; dup {
			errs = append(errs, fmt.Errorf("%w: biosphere source %q is listed twice", ErrAmbiguousKey, e.From))
			continue
		}
		t.biosphere[key] = i
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return t, nil
}

// Fields returns the key fields of the technosphere sections
func (t *Table) Fields() []model.Field {
	return append([]model.Field(nil), t.fields...)
}

// File returns a copy of the file the table was compiled from
func (t *Table) File() File {
	return t.file
}

// Len returns the number of entries across all sections
func (t *Table) Len() int {
	return len(t.replace) + len(t.disaggregate) + len(t.biosphere)
}

// ReplaceTarget returns the replacement tuple for key
func (t *Table) ReplaceTarget(key model.Key) ([]string, bool) {
	i, ok := t.replace[key]
	if !ok {
		return nil, false
	}
	return t.file.Replace[i].To, true
}

// Disaggregation returns the weighted targets for key
func (t *Table) Disaggregation(key model.Key) ([]Allocation, bool) {
	i, ok := t.disaggregate[key]
	if !ok {
		return nil, false
	}
	return t.file.Disaggregate[i].To, true
}

// BiosphereTarget returns the biosphere entry for a flow name
func (t *Table) BiosphereTarget(name string) (BiosphereEntry, bool) {
	i, ok := t.biosphere[model.NewKey(name)]
	if !ok {
		return BiosphereEntry{}, false
	}
	return t.file.Biosphere[i], true
}

// Inverse builds the table that undoes the replace section.
// Disaggregation and biosphere links are one-way and are not carried over.
func (t *Table) Inverse() (*Table, error) {
	inv := File{
		Name:        t.Name + " (inverse)",
		Description: t.Description,
		Fields:      t.file.Fields,
	}

	seen := make(map[model.Key][]string, len(t.file.Replace))
	for _, e := range t.file.Replace {
		key := model.NewKey(e.To...)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s and %s both map to %s",
				ErrNotInvertible, model.NewKey(prev...), model.NewKey(e.From...), key)
		}
		seen[key] = e.From
		inv.Replace = append(inv.Replace, ReplaceEntry{From: e.To, To: e.From})
	}

	return Compile(&inv)
}

// AllocationSums reports the total allocation of every disaggregated key
func (t *Table) AllocationSums() map[model.Key]float64 {
	sums := make(map[model.Key]float64, len(t.file.Disaggregate))
	for key, i := range t.disaggregate {
		var sum float64
		for _, a := range t.file.Disaggregate[i].To {
			sum += a.Allocation
		}
		sums[key] = sum
	}
	return sums
}
