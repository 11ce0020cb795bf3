// pkg/match/index.go
package match

import (
	"github.com/brightpath-lca/brightpath/pkg/model"
)

// Index is a lookup table from a key tuple to the identifier of a dataset or flow.
// Keys that occur more than once in the reference data are ambiguous and
// left out of the index.
type Index struct {
	domain    model.ExchangeType
	database  string
	fields    []model.Field
	entries   map[model.Key]model.Link
	ambiguous map[model.Key]int
}

func newIndex(domain model.ExchangeType, database string, fields []model.Field) *Index {
	return &Index{
		domain:    domain,
		database:  database,
		fields:    append([]model.Field(nil), fields...),
		entries:   make(map[model.Key]model.Link),
		ambiguous: make(map[model.Key]int),
	}
}

// NewTechnosphereIndex indexes activities by the given fields, defaulting to
// (name, reference product, location).
func NewTechnosphereIndex(database string, activities []*model.Activity, fields ...model.Field) *Index {
	if len(fields) == 0 {
		fields = model.DefaultTechnosphereFields
	}
	ix := newIndex(model.Technosphere, database, fields)
	for _, a := range activities {
		link := a.Link()
		if database != "" && link.Database == "" {
			link.Database = database
		}
		ix.add(a.Key(ix.fields), link)
	}
	return ix
}

// NewBiosphereIndex indexes elementary flows by the given fields, defaulting
// to (name, categories).
func NewBiosphereIndex(database string, flows []model.Flow, fields ...model.Field) *Index {
	if len(fields) == 0 {
		fields = model.DefaultBiosphereFields
	}
	ix := newIndex(model.Biosphere, database, fields)
	for _, f := range flows {
		link := f.Link()
		if link.Database == "" {
			link.Database = database
		}
		ix.add(f.Key(ix.fields), link)
	}
	return ix
}

func (ix *Index) add(key model.Key, link model.Link) {
	if n, ok := ix.ambiguous[key]; ok {
		ix.ambiguous[key] = n + 1
		return
	}
	if prev, ok := ix.entries[key]; ok {
		if prev == link {
			return
		}
		delete(ix.entries, key)
		ix.ambiguous[key] = 2
		return
	}
	ix.entries[key] = link
}

// Lookup returns the link stored under key
func (ix *Index) Lookup(key model.Key) (model.Link, bool) {
	link, ok := ix.entries[key]
	return link, ok
}

// Domain returns the exchange type this index resolves
func (ix *Index) Domain() model.ExchangeType {
	return ix.domain
}

// Database returns the name of the reference database
func (ix *Index) Database() string {
	return ix.database
}

// Fields returns the key fields of the index
func (ix *Index) Fields() []model.Field {
	return append([]model.Field(nil), ix.fields...)
}

// Len returns the number of resolvable keys
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Ambiguous returns the number of keys dropped because they occur more than once
func (ix *Index) Ambiguous() int {
	return len(ix.ambiguous)
}

// AmbiguousKeys lists the keys dropped from the index
func (ix *Index) AmbiguousKeys() []model.Key {
	keys := make([]model.Key, 0, len(ix.ambiguous))
	for k := range ix.ambiguous {
		keys = append(keys, k)
	}
	return keys
}
