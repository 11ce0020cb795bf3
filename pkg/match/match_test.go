package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

func refActivity(name, product, location, unit string) *model.Activity {
	return &model.Activity{
		Database:         "ecoinvent",
		Name:             name,
		ReferenceProduct: product,
		Location:         location,
		Unit:             unit,
	}
}

func TestMatchExactTuple(t *testing.T) {
	ref := refActivity("electricity", "electricity", "RER", "kilowatt hour")
	ix := NewTechnosphereIndex("ecoinvent", []*model.Activity{ref})

	hit := &model.Exchange{Type: model.Technosphere, Name: "electricity", ReferenceProduct: "electricity", Location: "RER", Unit: "kilowatt hour", Amount: 1}
	miss := &model.Exchange{Type: model.Technosphere, Name: "electricity", ReferenceProduct: "electricity", Location: "CH", Unit: "kilowatt hour", Amount: 1}

	n := Match([]*model.Exchange{hit, miss}, ix)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.Link{Database: "ecoinvent", Code: ref.ComputeCode()}, hit.Input)
	assert.False(t, miss.Linked())
}

func TestMatchIsIdempotent(t *testing.T) {
	ref := refActivity("electricity", "electricity", "RER", "kilowatt hour")
	ix := NewTechnosphereIndex("ecoinvent", []*model.Activity{ref})

	e := &model.Exchange{Type: model.Technosphere, Name: "Electricity ", ReferenceProduct: "electricity", Location: "rer", Unit: "kilowatt hour"}
	exchanges := []*model.Exchange{e}

	assert.Equal(t, 1, Match(exchanges, ix))
	first := *e
	assert.Equal(t, 0, Match(exchanges, ix))
	assert.Equal(t, first, *e)
}

func TestMatchSkipsOtherDomains(t *testing.T) {
	flows := []model.Flow{{Database: "biosphere3", Code: "co2", Name: "electricity", Categories: []string{"air"}, Unit: "kilogram"}}
	ix := NewBiosphereIndex("biosphere3", flows)

	techno := &model.Exchange{Type: model.Technosphere, Name: "electricity", Categories: []string{"air"}}
	bio := &model.Exchange{Type: model.Biosphere, Name: "electricity", Categories: []string{"air"}}

	assert.Equal(t, 1, Match([]*model.Exchange{techno, bio}, ix))
	assert.False(t, techno.Linked())
	assert.Equal(t, "co2", bio.Input.Code)
	assert.Equal(t, "biosphere3", bio.Input.Database)
}

func TestAmbiguousKeysAreDropped(t *testing.T) {
	a := refActivity("heat production", "heat", "CH", "megajoule")
	b := refActivity("heat production", "heat", "CH", "kilowatt hour")
	c := refActivity("heat production", "heat", "DE", "megajoule")

	ix := NewTechnosphereIndex("ecoinvent", []*model.Activity{a, b, c})
	assert.Equal(t, 1, ix.Ambiguous())
	assert.Equal(t, 1, ix.Len())

	e := &model.Exchange{Type: model.Technosphere, Name: "heat production", ReferenceProduct: "heat", Location: "CH", Unit: "megajoule"}
	assert.Equal(t, 0, Match([]*model.Exchange{e}, ix))

	// with unit in the key the two datasets are distinguishable
	withUnit := NewTechnosphereIndex("ecoinvent", []*model.Activity{a, b, c},
		model.FieldName, model.FieldReferenceProduct, model.FieldLocation, model.FieldUnit)
	assert.Equal(t, 0, withUnit.Ambiguous())
	assert.Equal(t, 1, Match([]*model.Exchange{e}, withUnit))
}

func TestMatcherRunAppliesStrategiesInOrder(t *testing.T) {
	internal := refActivity("wafer production", "wafer", "CN", "square meter")
	internal.Database = "pv"
	internal.Exchanges = []*model.Exchange{
		{Type: model.Production, Name: "wafer production", ReferenceProduct: "wafer", Location: "CN", Unit: "square meter", Amount: 1},
	}

	user := refActivity("panel production", "panel", "CN", "unit")
	user.Database = "pv"
	user.Exchanges = []*model.Exchange{
		{Type: model.Production, Name: "panel production", ReferenceProduct: "panel", Location: "CN", Unit: "unit", Amount: 1},
		{Type: model.Technosphere, Name: "wafer production", ReferenceProduct: "wafer", Location: "CN", Unit: "square meter", Amount: 2},
		{Type: model.Technosphere, Name: "electricity", ReferenceProduct: "electricity", Location: "RER", Unit: "kilowatt hour", Amount: 5},
		{Type: model.Biosphere, Name: "Carbon dioxide, fossil", Categories: []string{"air"}, Unit: "kilogram", Amount: 0.1},
	}
	inventory := []*model.Activity{internal, user}

	ecoinvent := NewTechnosphereIndex("ecoinvent", []*model.Activity{refActivity("electricity", "electricity", "RER", "kilowatt hour")})
	bio := NewBiosphereIndex("biosphere3", []model.Flow{{Code: "co2", Name: "Carbon dioxide, fossil", Categories: []string{"air"}, Unit: "kilogram"}})

	m := NewMatcher(nil,
		InternalStrategy("pv", inventory),
		Strategy{Name: "ecoinvent", Index: ecoinvent},
	)
	m.AddStrategy(Strategy{Name: "biosphere", Index: bio})

	assert.Equal(t, 2, LinkProduction(inventory))
	results := m.Run(inventory)
	require.Len(t, results, 3)
	assert.Equal(t, Result{Strategy: "internal", Domain: model.Technosphere, Linked: 1}, results[0])
	assert.Equal(t, Result{Strategy: "ecoinvent", Domain: model.Technosphere, Linked: 1}, results[1])
	assert.Equal(t, Result{Strategy: "biosphere", Domain: model.Biosphere, Linked: 1}, results[2])

	assert.Equal(t, internal.ComputeCode(), user.Exchanges[1].Input.Code)
	for _, e := range user.Exchanges {
		assert.True(t, e.Linked(), e.Name)
	}

	again := m.Run(inventory)
	for _, r := range again {
		assert.Zero(t, r.Linked)
	}
}
