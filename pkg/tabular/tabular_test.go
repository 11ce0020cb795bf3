package tabular

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-lca/brightpath/pkg/issue"
	"github.com/brightpath-lca/brightpath/pkg/model"
)

const inventory = `activity,activity product,activity location,activity unit,type,name,reference product,location,unit,categories,amount,uncertainty type,loc,scale,minimum,maximum,comment,activity simapro category
panel assembly,photovoltaic panel,CH,unit,production,panel assembly,photovoltaic panel,CH,unit,,1,,,,,,,Energy
panel assembly,photovoltaic panel,CH,unit,technosphere,market for electricity,electricity,RER,kilowatt hour,,12.5,2,2.526,0.1,,,grid mix,
panel assembly,photovoltaic panel,CH,unit,biosphere,"Carbon dioxide, fossil",,,kilogram,air::urban air close to ground,0.3,,,,,,,
panel assembly,photovoltaic panel,CH,unit,technosphere,market for glass,,RER,kilogram,,4,,,,,,,
panel assembly,photovoltaic panel,CH,unit,technosphere,market for steel,steel,GLO,kilogram,,not-a-number,,,,,,,
panel assembly,photovoltaic panel,CH,unit,waste,market for steel,steel,GLO,kilogram,,1,,,,,,,
inverter production,inverter,RER,unit,technosphere,market for copper,copper,GLO,kilogram,,1.2,,,,,,,
`

func TestReadGroupsRowsIntoActivities(t *testing.T) {
	tracker := issue.NewTracker(nil)

	activities, err := NewReader(tracker, nil).Read(strings.NewReader(inventory), "inventory.csv", "pv")
	require.NoError(t, err)
	require.Len(t, activities, 2)

	panel := activities[0]
	assert.Equal(t, "pv", panel.Database)
	assert.Equal(t, "panel assembly", panel.Name)
	assert.Equal(t, "Energy", panel.Fields["simapro category"])
	require.Len(t, panel.Exchanges, 3)

	prod, err := panel.Production()
	require.NoError(t, err)
	assert.Equal(t, 1.0, prod.Amount)

	elec := panel.Exchanges[1]
	assert.Equal(t, model.Technosphere, elec.Type)
	assert.Equal(t, model.UncertaintyLognormal, elec.Uncertainty.Type)
	assert.InDelta(t, 0.1, elec.Uncertainty.Scale, 1e-12)
	assert.Equal(t, "grid mix", elec.Comment)

	co2 := panel.Exchanges[2]
	assert.Equal(t, []string{"air", "urban air close to ground"}, co2.Categories)

	// missing product, bad amount, unknown type
	assert.Equal(t, 3, tracker.Count(issue.CategoryMalformedRow))
}

func TestReadSynthesizesProduction(t *testing.T) {
	tracker := issue.NewTracker(nil)

	activities, err := NewReader(tracker, nil).Read(strings.NewReader(inventory), "inventory.csv", "pv")
	require.NoError(t, err)

	inverter := activities[1]
	require.Len(t, inverter.Exchanges, 2)
	prod, err := inverter.Production()
	require.NoError(t, err)
	assert.Same(t, prod, inverter.Exchanges[0])
	assert.Equal(t, "inverter", prod.ReferenceProduct)
	assert.Equal(t, "RER", prod.Location)
	assert.Equal(t, 1.0, prod.Amount)
	assert.Equal(t, 1, tracker.Count(issue.CategoryWarning))
	assert.Equal(t, 1, tracker.DatasetCounts()["inverter production"])
}

func TestReadWasteTreatment(t *testing.T) {
	in := `activity,activity product,activity location,activity unit,type,name,amount
treatment of scrap,scrap,CH,kilogram,production,,-1
`
	activities, err := NewReader(nil, nil).Read(strings.NewReader(in), "waste.csv", "w")
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, model.WasteTreatmentActivity, activities[0].Type)
}

func TestReadMissingColumns(t *testing.T) {
	_, err := NewReader(nil, nil).Read(strings.NewReader("activity,type,name\n"), "bad.csv", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "activity product")
}

func TestReadSemicolon(t *testing.T) {
	in := "activity;activity product;activity location;activity unit;type;name;amount\n" +
		"a;p;GLO;kg;production;a;1\n"
	activities, err := NewReader(nil, nil).WithComma(';').Read(strings.NewReader(in), "semi.csv", "x")
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "kg", activities[0].Unit)
}

func TestWriteReadRoundTrip(t *testing.T) {
	activities, err := NewReader(nil, nil).Read(strings.NewReader(inventory), "inventory.csv", "pv")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, activities))
	assert.True(t, strings.HasPrefix(buf.String(), strings.Join(Columns, ",")+",activity simapro category\n"))

	tracker := issue.NewTracker(nil)
	again, err := NewReader(tracker, nil).Read(&buf, "again.csv", "pv")
	require.NoError(t, err)
	assert.Zero(t, tracker.Total())
	require.Len(t, again, len(activities))

	for i := range activities {
		assert.Equal(t, activities[i].Key([]model.Field{model.FieldName, model.FieldLocation}),
			again[i].Key([]model.Field{model.FieldName, model.FieldLocation}))
		require.Len(t, again[i].Exchanges, len(activities[i].Exchanges))
		for j, e := range activities[i].Exchanges {
			got := again[i].Exchanges[j]
			assert.Equal(t, e.Type, got.Type)
			assert.Equal(t, e.Categories, got.Categories)
			assert.Equal(t, e.Amount, got.Amount)
			assert.Equal(t, e.Uncertainty, got.Uncertainty)
		}
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	a := &model.Activity{Name: "a", ReferenceProduct: "p", Location: "GLO", Unit: "kg"}
	prod, err := model.NewProduction("a", "p", "GLO", "kg", 1)
	require.NoError(t, err)
	a.Exchanges = []*model.Exchange{prod}

	require.NoError(t, WriteFile(path, []*model.Activity{a}))

	got, err := NewReader(nil, nil).ReadFile(path, "x")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].Database)
}

const flowTable = `code,name,categories,unit
co2-air,"Carbon dioxide, fossil",air::urban air close to ground,kilogram
water-river,Water,water::surface water,cubic meter
,Methane,air,kilogram
co2-air,Carbon dioxide,air,kilogram
`

func TestReadFlows(t *testing.T) {
	tracker := issue.NewTracker(nil)

	flows, err := NewReader(tracker, nil).ReadFlows(strings.NewReader(flowTable), "flows.csv", "biosphere3")
	require.NoError(t, err)
	require.Len(t, flows, 2)

	assert.Equal(t, "co2-air", flows[0].Code)
	assert.Equal(t, "Carbon dioxide, fossil", flows[0].Name)
	assert.Equal(t, []string{"air", "urban air close to ground"}, flows[0].Categories)
	assert.Equal(t, model.Link{Database: "biosphere3", Code: "water-river"}, flows[1].Link())
	assert.Equal(t, 2, tracker.Count(issue.CategoryMalformedRow))
}

func TestReadFlowsMissingColumns(t *testing.T) {
	_, err := NewReader(nil, nil).ReadFlows(strings.NewReader("name,unit\n"), "flows.csv", "biosphere3")
	assert.ErrorIs(t, err, ErrMissingColumn)
}
