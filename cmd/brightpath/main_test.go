package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-lca/brightpath/pkg/converter"
	"github.com/brightpath-lca/brightpath/pkg/migration"
)

const referenceTable = `activity,activity product,activity location,activity unit,type,name,reference product,location,unit,amount
market for electricity,electricity,RER,kilowatt hour,production,,,,,1
`

const inventoryTable = `activity,activity product,activity location,activity unit,type,name,reference product,location,unit,categories,amount,activity simapro category
panel assembly,photovoltaic panel,CH,unit,production,,,,,,1,Energy/Photovoltaic
panel assembly,photovoltaic panel,CH,unit,technosphere,market for electricity,electricity,RER,kilowatt hour,,12.5,
`

func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BRIGHTPATH_STORE", "sqlite")
	t.Setenv("BRIGHTPATH_SQLITE_PATH", filepath.Join(dir, "project.db"))
	t.Setenv("BRIGHTPATH_EXPORT_DIR", filepath.Join(dir, "export"))
	t.Setenv("BRIGHTPATH_ECOINVENT_VERSION", "3.9")
	t.Setenv("BRIGHTPATH_ECOINVENT_DATABASE", "ecoinvent")
	t.Setenv("BRIGHTPATH_BIOSPHERE_DATABASE", "biosphere3")
	t.Setenv("BRIGHTPATH_TABLES_DIR", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportAndExport(t *testing.T) {
	dir := testEnv(t)
	reference := writeFile(t, dir, "ecoinvent.csv", referenceTable)
	inventory := writeFile(t, dir, "pv.csv", inventoryTable)

	out, err := run(t, "import", reference)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported project:ecoinvent (1 activities, 1 exchanges)")

	metrics := filepath.Join(dir, "metrics.prom")
	out, err = run(t, "to-simapro", inventory, "--metrics-file", metrics)
	require.NoError(t, err)
	assert.Contains(t, out, "strategy ecoinvent: 1 linked")

	entries, err := os.ReadDir(filepath.Join(dir, "export"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "simapro_ecoinvent_"))

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "brightpath_inventory_datasets 1")

	export := filepath.Join(dir, "export", entries[0].Name())
	out, err = run(t, "to-brightway", export, "--database", "pv-import")
	require.NoError(t, err)
	assert.Contains(t, out, "strategy ecoinvent: 1 linked")

	out, err = run(t, "stats", "--database", "pv-import")
	require.NoError(t, err)
	assert.Contains(t, out, "Datasets:                1")
	assert.Contains(t, out, "All exchanges are linked.")
}

const flowTable = `code,name,categories,unit
co2-urban,"Carbon dioxide, fossil",air::urban air close to ground,kilogram
`

const emissionTable = `activity,activity product,activity location,activity unit,type,name,reference product,location,unit,categories,amount,activity simapro category
panel assembly,photovoltaic panel,CH,unit,production,,,,,,1,Energy/Photovoltaic
panel assembly,photovoltaic panel,CH,unit,biosphere,"Carbon dioxide, fossil",,,kilogram,air::urban air close to ground,0.3,
`

func TestImportFlowsLinksBiosphere(t *testing.T) {
	dir := testEnv(t)
	flows := writeFile(t, dir, "biosphere.csv", flowTable)
	inventory := writeFile(t, dir, "pv.csv", emissionTable)

	out, err := run(t, "import", "--flows", flows)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 flows into biosphere3")

	out, err = run(t, "to-simapro", inventory)
	require.NoError(t, err)
	assert.Contains(t, out, "strategy biosphere3: 1 linked")
}

func TestMetricsWriteFailureIsReported(t *testing.T) {
	dir := testEnv(t)
	inventory := writeFile(t, dir, "pv.csv", inventoryTable)

	_, err := run(t, "stats", inventory, "--metrics-file", filepath.Join(dir, "missing", "metrics.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write metrics")
}

func TestStatsOfTable(t *testing.T) {
	dir := testEnv(t)
	inventory := writeFile(t, dir, "pv.csv", inventoryTable)

	out, err := run(t, "stats", inventory, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"unlinked"`)
	assert.Contains(t, out, "market for electricity")
}

func TestStatsNeedsOneSource(t *testing.T) {
	_, err := run(t, "stats")
	assert.Error(t, err)
}

func TestDropNeedsConfirmation(t *testing.T) {
	dir := testEnv(t)
	inventory := writeFile(t, dir, "pv.csv", inventoryTable)

	_, err := run(t, "to-simapro", inventory, "--drop-unlinked")
	require.Error(t, err)
	assert.ErrorIs(t, err, converter.ErrDestructiveWithoutConfirmation)
}

func TestMigrationCheck(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "heat.yaml", `
name: heat-split
disaggregate:
  - from: [heat production, heat, CH]
    to:
      - {key: [heat production, natural gas, CH], allocation: 0.5}
      - {key: [heat production, wood chips, CH], allocation: 0.25}
`)

	out, err := run(t, "migration", "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "heat-split OK (0 replace, 1 disaggregate, 0 biosphere)")
	assert.Contains(t, out, "sums to 0.75")

	ambiguous := writeFile(t, dir, "ambiguous.yaml", `
name: twice
replace:
  - from: [market for electricity, electricity, RER]
    to: [market group for electricity, electricity, RER]
  - from: [market for electricity, electricity, RER]
    to: [market for electricity, electricity, CH]
`)
	_, err = run(t, "migration", "check", ambiguous)
	assert.ErrorIs(t, err, migration.ErrAmbiguousKey)
}

func TestMigrationInvert(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ei.yaml", `
name: ei-3.8-to-3.9
replace:
  - from: [market for electricity, electricity, RER]
    to: [market group for electricity, electricity, RER]
`)
	output := filepath.Join(dir, "inverse.yaml")

	out, err := run(t, "migration", "invert", path, "-o", output)
	require.NoError(t, err)
	assert.Contains(t, out, "1 replace entries")

	inv, err := migration.LoadFile(output)
	require.NoError(t, err)
	f := inv.File()
	require.Len(t, f.Replace, 1)
	assert.Equal(t, []string{"market for electricity", "electricity", "RER"}, f.Replace[0].To)
}
