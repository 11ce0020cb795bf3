package store

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

func newProjectStore(t *testing.T) *ProjectStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s, err := NewProjectStore(db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProjectStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newProjectStore(t)

	h, err := s.Write(ctx, "pv", testInventory(t))
	require.NoError(t, err)
	assert.Equal(t, BackendProject, h.Backend)
	assert.Equal(t, 2, h.Activities)
	assert.Equal(t, 4, h.Exchanges)
	require.NoError(t, s.Verify(ctx, h))

	got, err := s.LoadActivities(ctx, "pv")
	require.NoError(t, err)
	require.Len(t, got, 2)

	panel := got[0]
	assert.Equal(t, "panel assembly", panel.Name)
	assert.Equal(t, "pv", panel.Database)
	assert.Equal(t, panel.ComputeCode(), panel.Code)
	assert.Equal(t, []string{"energy", "photovoltaic"}, panel.Categories)
	assert.Equal(t, "Energy", panel.Fields["simapro category"])
	require.Len(t, panel.Exchanges, 3)

	elec := panel.Exchanges[1]
	assert.Equal(t, model.Technosphere, elec.Type)
	assert.Equal(t, model.Link{Database: "ecoinvent 3.9 cutoff", Code: "abc123"}, elec.Input)
	assert.Equal(t, model.UncertaintyLognormal, elec.Uncertainty.Type)
	assert.InDelta(t, 0.1, elec.Uncertainty.Scale, 1e-12)

	co2 := panel.Exchanges[2]
	assert.Equal(t, []string{"air", "urban air close to ground"}, co2.Categories)
	assert.Equal(t, "combustion", co2.Comment)
	assert.False(t, co2.Linked())

	assert.Nil(t, got[1].Fields)
}

func TestProjectStoreWriteReplaces(t *testing.T) {
	ctx := context.Background()
	s := newProjectStore(t)

	_, err := s.Write(ctx, "pv", testInventory(t))
	require.NoError(t, err)
	_, err = s.Write(ctx, "other", testInventory(t)[1:])
	require.NoError(t, err)

	h, err := s.Write(ctx, "pv", testInventory(t)[:1])
	require.NoError(t, err)
	require.NoError(t, s.Verify(ctx, h))

	got, err := s.LoadActivities(ctx, "pv")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Exchanges, 3)

	other, err := s.LoadActivities(ctx, "other")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Len(t, other[0].Exchanges, 1)
}

func TestProjectStoreRejectsMissingFields(t *testing.T) {
	ctx := context.Background()
	s := newProjectStore(t)

	activities := testInventory(t)
	activities[0].ReferenceProduct = ""

	_, err := s.Write(ctx, "pv", activities)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMissingField)

	_, err = s.LoadActivities(ctx, "pv")
	assert.ErrorIs(t, err, ErrUnknownDatabase)
}

func TestProjectStoreVerifyMismatch(t *testing.T) {
	ctx := context.Background()
	s := newProjectStore(t)

	h, err := s.Write(ctx, "pv", testInventory(t))
	require.NoError(t, err)

	h.Exchanges++
	err = s.Verify(ctx, h)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestProjectStoreFlows(t *testing.T) {
	ctx := context.Background()
	s := newProjectStore(t)

	flows := []model.Flow{
		{Code: "co2", Name: "Carbon dioxide, fossil", Categories: []string{"air", "urban air close to ground"}, Unit: "kilogram"},
		{Code: "ch4", Name: "Methane, fossil", Categories: []string{"air"}, Unit: "kilogram"},
	}
	require.NoError(t, s.WriteFlows(ctx, "biosphere3", flows))
	require.NoError(t, s.WriteFlows(ctx, "biosphere3", flows))

	got, err := s.LoadFlows(ctx, "biosphere3")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "biosphere3", got[0].Database)
	assert.Equal(t, []string{"air", "urban air close to ground"}, got[0].Categories)
	assert.Equal(t, model.Link{Database: "biosphere3", Code: "ch4"}, got[1].Link())

	none, err := s.LoadFlows(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProjectStoreNormalizations(t *testing.T) {
	ctx := context.Background()
	s := newProjectStore(t)

	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	ops := []model.NormalizationOperation{
		{Dataset: "panel assembly", ExchangeIndex: -1, Field: model.FieldUnit, OriginalValue: "p", NewValue: "unit", Rule: "units", NormalizedAt: now},
		{Dataset: "panel assembly", ExchangeIndex: 1, Field: model.FieldLocation, OriginalValue: "Europe", NewValue: "RER", Rule: "locations", NormalizedAt: now},
	}
	require.NoError(t, s.RecordNormalizations(ctx, "run-1", ops))
	require.NoError(t, s.RecordNormalizations(ctx, "run-2", nil))

	got, err := s.Normalizations(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.FieldLocation, got[1].Field)
	assert.Equal(t, "RER", got[1].NewValue)
	assert.Equal(t, -1, got[0].ExchangeIndex)
	assert.True(t, now.Equal(got[0].NormalizedAt))
}
