package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

const sampleMigration = `
name: ei-3.8-to-3.9
description: renames between ecoinvent releases
fields: [name, reference product, location]
replace:
  - from: [market for electricity, electricity, RER]
    to: [market group for electricity, electricity, RER]
disaggregate:
  - from: [heat production, heat, CH]
    to:
      - {key: [heat production, natural gas, CH], allocation: 0.6}
      - {key: [heat production, wood chips, CH], allocation: 0.4}
biosphere:
  - from: Carbon dioxide, fossil
    name: Carbon dioxide
    id: uuid-123
`

func TestParse(t *testing.T) {
	tbl, err := Parse([]byte(sampleMigration))
	require.NoError(t, err)

	assert.Equal(t, "ei-3.8-to-3.9", tbl.Name)
	assert.Equal(t, model.DefaultTechnosphereFields, tbl.Fields())
	assert.Equal(t, 3, tbl.Len())

	to, ok := tbl.ReplaceTarget(model.NewKey("market for electricity", "electricity", "RER"))
	require.True(t, ok)
	assert.Equal(t, []string{"market group for electricity", "electricity", "RER"}, to)

	allocs, ok := tbl.Disaggregation(model.NewKey("Heat production", "heat", "ch"))
	require.True(t, ok)
	assert.Len(t, allocs, 2)

	bio, ok := tbl.BiosphereTarget("Carbon dioxide, fossil")
	require.True(t, ok)
	assert.Equal(t, "uuid-123", bio.ID)
}

func TestParseDefaultsFields(t *testing.T) {
	tbl, err := Parse([]byte("name: empty\n"))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTechnosphereFields, tbl.Fields())
	assert.Zero(t, tbl.Len())
}

func TestParseRejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name: "duplicate replace key",
			yaml: `
replace:
  - {from: [a, b, CH], to: [x, b, CH]}
  - {from: [A, b, CH], to: [y, b, CH]}
`,
			wantErr: ErrAmbiguousKey,
		},
		{
			name: "replaced and disaggregated",
			yaml: `
replace:
  - {from: [a, b, CH], to: [x, b, CH]}
disaggregate:
  - from: [a, b, CH]
    to: [{key: [y, b, CH], allocation: 1}]
`,
			wantErr: ErrAmbiguousKey,
		},
		{
			name: "duplicate biosphere key",
			yaml: `
biosphere:
  - {from: Methane, id: m1}
  - {from: methane, id: m2}
`,
			wantErr: ErrAmbiguousKey,
		},
		{
			name:    "unknown field",
			yaml:    "fields: [name, colour]\n",
			wantErr: ErrInvalidTable,
		},
		{
			name:    "arity mismatch",
			yaml:    "replace:\n  - {from: [a, b], to: [x, b, CH]}\n",
			wantErr: ErrInvalidTable,
		},
		{
			name: "negative allocation",
			yaml: `
disaggregate:
  - from: [a, b, CH]
    to: [{key: [y, b, CH], allocation: -0.5}]
`,
			wantErr: ErrInvalidTable,
		},
		{
			name:    "empty disaggregation",
			yaml:    "disaggregate:\n  - {from: [a, b, CH], to: []}\n",
			wantErr: ErrInvalidTable,
		},
		{
			name:    "biosphere without id",
			yaml:    "biosphere:\n  - {from: Methane}\n",
			wantErr: ErrInvalidTable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("replace: [unclosed"))
	assert.Error(t, err)
}

func TestWriteFileAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migration.yaml")

	f := &File{
		Name:   "roundtrip",
		Fields: []string{"name", "reference product", "location"},
		Replace: []ReplaceEntry{
			{From: []string{"a", "b", "CH"}, To: []string{"x", "b", "CH"}},
		},
	}
	require.NoError(t, WriteFile(f, path))

	tbl, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", tbl.Name)
	assert.Equal(t, *f, tbl.File())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInverse(t *testing.T) {
	tbl, err := Parse([]byte(sampleMigration))
	require.NoError(t, err)

	inv, err := tbl.Inverse()
	require.NoError(t, err)
	to, ok := inv.ReplaceTarget(model.NewKey("market group for electricity", "electricity", "RER"))
	require.True(t, ok)
	assert.Equal(t, []string{"market for electricity", "electricity", "RER"}, to)

	manyToOne, err := Parse([]byte(`
replace:
  - {from: [a, b, CH], to: [x, b, CH]}
  - {from: [c, b, CH], to: [x, b, CH]}
`))
	require.NoError(t, err)
	_, err = manyToOne.Inverse()
	assert.ErrorIs(t, err, ErrNotInvertible)
}

func TestAllocationSums(t *testing.T) {
	tbl, err := Parse([]byte(`
disaggregate:
  - from: [full, p, CH]
    to: [{key: [a, p, CH], allocation: 0.6}, {key: [b, p, CH], allocation: 0.4}]
  - from: [partial, p, CH]
    to: [{key: [a, p, CH], allocation: 0.5}]
`))
	require.NoError(t, err)

	sums := tbl.AllocationSums()
	assert.InDelta(t, 1.0, sums[model.NewKey("full", "p", "CH")], 1e-12)
	assert.InDelta(t, 0.5, sums[model.NewKey("partial", "p", "CH")], 1e-12)
}
