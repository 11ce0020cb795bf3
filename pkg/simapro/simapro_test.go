package simapro

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-lca/brightpath/pkg/issue"
	"github.com/brightpath-lca/brightpath/pkg/tables"
)

func fixedClock() time.Time {
	return time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
}

func testFields(t *testing.T) []string {
	t.Helper()
	tb, err := tables.Default()
	require.NoError(t, err)
	return tb.Fields
}

func sampleDocument() *Document {
	p := NewProcess()
	p.Fields[FieldCategoryType] = "material"
	p.Fields[FieldType] = "Unit process"
	p.Fields[FieldProcessName] = "Photovoltaic panel {CH}| panel assembly | Cut-off, U"
	p.Fields[FieldGeography] = "CH"
	p.Fields[FieldInfrastructure] = "No"
	p.Fields[FieldComment] = "Assembled from\nimported cells"
	p.Products = []ProductRow{{
		Name:     "Photovoltaic panel {CH}| panel assembly | Cut-off, U",
		Unit:     "p",
		Amount:   1,
		Category: "Others",
	}}
	p.Technosphere = []TechnosphereRow{
		{
			Section:      SectionMaterials,
			Name:         "Aluminium, primary {GLO}| market for | Cut-off, U",
			Unit:         "kg",
			Amount:       2.5,
			Distribution: Distribution{Name: DistributionLognormal, SD2: 1.21},
		},
		{
			Section:      SectionElectricity,
			Name:         "Electricity, low voltage {CH}| market for | Cut-off, U",
			Unit:         "kWh",
			Amount:       12,
			Distribution: Distribution{Name: DistributionUndefined},
		},
	}
	p.Biosphere = []BiosphereRow{{
		Section:        SectionEmissionsAir,
		Name:           "Carbon dioxide, fossil",
		Subcompartment: "high. pop.",
		Unit:           "kg",
		Amount:         0.25,
		Distribution:   Distribution{Name: DistributionUniform, Min: 0.2, Max: 0.3},
	}}

	return &Document{
		Headers:   []string{"{SimaPro 9.5.0.0}", "{Date: today_date}"},
		Processes: []*Process{p},
		Blocks: []Block{{
			Kind: BlockSystemDescription,
			Entries: []Entry{
				{Name: "Name", Value: "Rooftop PV"},
				{Name: "Category", Value: "Others"},
				{Name: "Description", Value: ""},
			},
		}},
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	fields := testFields(t)

	var buf bytes.Buffer
	require.NoError(t, NewWriter(fields).WithClock(fixedClock).Write(&buf, sampleDocument()))

	out := buf.String()
	assert.Contains(t, out, "{Date: 05.03.2024}")
	assert.Contains(t, out, "Assembled from imported cells")
	assert.NotContains(t, out, "Waste treatment\n")

	tracker := issue.NewTracker(nil)
	doc, err := NewReader(fields, tracker, nil).Read(strings.NewReader(out), "roundtrip.csv")
	require.NoError(t, err)
	assert.Zero(t, tracker.Total())

	assert.Equal(t, []string{"{SimaPro 9.5.0.0}", "{Date: 05.03.2024}"}, doc.Headers)
	require.Len(t, doc.Processes, 1)
	p := doc.Processes[0]

	assert.Equal(t, "material", p.Field(FieldCategoryType))
	assert.Equal(t, "CH", p.Field(FieldGeography))
	assert.Equal(t, "05.03.2024", p.Field(FieldDate))
	assert.False(t, p.IsWasteTreatment())

	out0, ok := p.Output()
	require.True(t, ok)
	assert.Equal(t, "p", out0.Unit)
	assert.Equal(t, 100.0, out0.Allocation)
	assert.Equal(t, "not defined", out0.WasteType)

	require.Len(t, p.Technosphere, 2)
	assert.Equal(t, SectionMaterials, p.Technosphere[0].Section)
	assert.InDelta(t, 2.5, p.Technosphere[0].Amount, 1e-9)
	assert.Equal(t, DistributionLognormal, p.Technosphere[0].Distribution.Name)
	assert.InDelta(t, 1.21, p.Technosphere[0].Distribution.SD2, 1e-9)
	assert.Equal(t, SectionElectricity, p.Technosphere[1].Section)

	require.Len(t, p.Biosphere, 1)
	b := p.Biosphere[0]
	assert.Equal(t, "air", b.Section.Compartment())
	assert.Equal(t, "high. pop.", b.Subcompartment)
	assert.InDelta(t, 0.2, b.Distribution.Min, 1e-9)
	assert.InDelta(t, 0.3, b.Distribution.Max, 1e-9)

	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, BlockSystemDescription, doc.Blocks[0].Kind)
	assert.Equal(t, []Entry{{Name: "Name", Value: "Rooftop PV"}, {Name: "Category", Value: "Others"}}, doc.Blocks[0].Entries)
}

func TestWriterWasteTreatment(t *testing.T) {
	doc := sampleDocument()
	p := doc.Processes[0]
	p.Products = nil
	p.WasteTreatment = &ProductRow{Name: "Waste plastic {CH}| treatment of | Cut-off, U", Unit: "kg", Amount: 1, Category: "Others"}

	rows := NewWriter(testFields(t)).WithClock(fixedClock).Rows(doc)

	var heads []string
	for _, r := range rows {
		if len(r) > 0 {
			heads = append(heads, r[0])
		}
	}
	assert.Contains(t, heads, string(SectionWasteTreatment))
	assert.NotContains(t, heads, string(SectionProducts))
}

func TestReaderRecordsMalformedRows(t *testing.T) {
	input := strings.Join([]string{
		"{SimaPro 9.5.0.0}",
		"",
		"Process",
		"",
		"Process name",
		"Broken process",
		"",
		"Products",
		"Broken process;kg;1;100;not defined;Others",
		"",
		"Materials/fuels",
		"Steel {GLO}| market for | Cut-off, U;kg;lots;Undefined;0;0;0;",
		"Copper {GLO}| market for | Cut-off, U;kg;0,5;Undefined;0;0;0;",
		"",
		"Emissions to air",
		"Methane;;kg",
		"",
		"End",
		"",
	}, "\n")

	tracker := issue.NewTracker(nil)
	doc, err := NewReader(testFields(t), tracker, nil).Read(strings.NewReader(input), "broken.csv")
	require.NoError(t, err)

	require.Len(t, doc.Processes, 1)
	p := doc.Processes[0]
	require.Len(t, p.Technosphere, 1)
	assert.InDelta(t, 0.5, p.Technosphere[0].Amount, 1e-9)
	assert.Empty(t, p.Biosphere)

	assert.Equal(t, 2, tracker.Count(issue.CategoryMalformedRow))
	samples := tracker.Samples()[issue.CategoryMalformedRow]
	require.NotEmpty(t, samples)
	assert.Equal(t, "broken.csv", samples[0].Source)
	assert.Equal(t, "Broken process", samples[0].Dataset)
	assert.Equal(t, 12, samples[0].Line)
}

func TestReaderMissingEnd(t *testing.T) {
	input := "Process\nProcess name\nUnfinished\n"

	tracker := issue.NewTracker(nil)
	doc, err := NewReader(testFields(t), tracker, nil).Read(strings.NewReader(input), "cut.csv")
	require.NoError(t, err)
	require.Len(t, doc.Processes, 1)
	assert.Equal(t, "Unfinished", doc.Processes[0].Field(FieldProcessName))
	assert.Equal(t, 1, tracker.Count(issue.CategoryMalformedRow))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	path, err := NewWriter(testFields(t)).WithClock(fixedClock).WriteFile(dir, "pv", sampleDocument())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "simapro_pv_05-03-2024.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{SimaPro 9.5.0.0}\n"))
}
