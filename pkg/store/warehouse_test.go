package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-lca/brightpath/pkg/config"
	"github.com/brightpath-lca/brightpath/pkg/connector"
	"github.com/brightpath-lca/brightpath/pkg/model"
)

func newSQLStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn := connector.NewPostgresConnectorFromDB(sqlx.NewDb(db, "pgx"),
		&config.PostgresConfig{Database: "lca", Schema: "inventory"}, nil)
	return NewSQLStore(conn, nil), mock
}

func TestSQLStoreEnsureSchema(t *testing.T) {
	s, mock := newSQLStore(t)

	for _, table := range []string{"activities", "exchanges", "flows", "normalizations"} {
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "inventory"."` + table + `"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreSnowflakeTableNames(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	conn := connector.NewSnowflakeConnectorFromDB(sqlx.NewDb(db, "snowflake"),
		&config.SnowflakeConfig{Database: "BRIGHTPATH", Schema: "inventory"}, nil)
	s := NewSQLStore(conn, nil)
	assert.Equal(t, `"INVENTORY"."ACTIVITIES"`, s.table(TableActivities))
}

func TestSQLStoreWrite(t *testing.T) {
	s, mock := newSQLStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "inventory"."exchanges" WHERE database_name = $1`)).
		WithArgs("pv").
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "inventory"."activities" WHERE database_name = $1`)).
		WithArgs("pv").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "inventory"."activities"`)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "inventory"."exchanges"`)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	h, err := s.Write(context.Background(), "pv", testInventory(t))
	require.NoError(t, err)
	assert.Equal(t, "postgres", h.Backend)
	assert.Equal(t, 2, h.Activities)
	assert.Equal(t, 4, h.Exchanges)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreWriteBatches(t *testing.T) {
	s, mock := newSQLStore(t)
	s.WithBatchSize(2)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "inventory"."activities"`)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "inventory"."exchanges"`)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "inventory"."exchanges"`)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	_, err := s.Write(context.Background(), "pv", testInventory(t))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreWriteRollsBack(t *testing.T) {
	s, mock := newSQLStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.Write(context.Background(), "pv", testInventory(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreWriteRetriesTransientErrors(t *testing.T) {
	s, mock := newSQLStore(t)
	s.backoff = time.Millisecond

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO").WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "inventory"."activities"`)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "inventory"."exchanges"`)).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	h, err := s.Write(context.Background(), "pv", testInventory(t))
	require.NoError(t, err)
	assert.Equal(t, 2, h.Activities)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreWriteWithoutRetries(t *testing.T) {
	s, mock := newSQLStore(t)
	s.WithMaxRetries(0)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO").WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	_, err := s.Write(context.Background(), "pv", testInventory(t))
	require.Error(t, err)
	var pgErr *pgconn.PgError
	assert.ErrorAs(t, err, &pgErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"bad connection", driver.ErrBadConn, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"connection failure", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "08006"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"reset", errors.New("read tcp: connection reset by peer"), true},
		{"disk full", errors.New("disk full"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestSQLStoreWriteMissingField(t *testing.T) {
	s, mock := newSQLStore(t)

	activities := testInventory(t)
	activities[1].Unit = ""

	_, err := s.Write(context.Background(), "pv", activities)
	assert.ErrorIs(t, err, model.ErrMissingField)
	require.NoError(t, mock.ExpectationsWereMet())
}

var activityColumns = []string{"database_name", "code", "seq", "name", "reference_product", "location", "unit",
	"activity_type", "categories", "comment", "fields"}

var exchangeColumns = []string{"database_name", "activity_code", "seq", "exchange_type", "name", "reference_product",
	"location", "unit", "categories", "amount", "uncertainty_type", "loc", "scale", "minimum", "maximum", "negative",
	"comment", "input_database", "input_code"}

func TestSQLStoreLoadActivities(t *testing.T) {
	s, mock := newSQLStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "inventory"."activities" WHERE database_name = $1 ORDER BY seq`)).
		WithArgs("pv").
		WillReturnRows(sqlmock.NewRows(activityColumns).
			AddRow("pv", "a1", 0, "panel assembly", "photovoltaic panel", "CH", "unit", "process", "energy::photovoltaic", "", `{"simapro category":"Energy"}`).
			AddRow("pv", "a2", 1, "inverter production", "inverter", "RER", "unit", "process", "", "", "{}"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "inventory"."exchanges" WHERE database_name = $1 ORDER BY activity_code, seq`)).
		WithArgs("pv").
		WillReturnRows(sqlmock.NewRows(exchangeColumns).
			AddRow("pv", "a1", 0, "production", "panel assembly", "photovoltaic panel", "CH", "unit", "", 1.0, 0, 0.0, 0.0, 0.0, 0.0, false, "", "", "").
			AddRow("pv", "a1", 1, "biosphere", "Carbon dioxide, fossil", "", "", "kilogram", "air::urban air close to ground", 0.3, 0, 0.0, 0.0, 0.0, 0.0, false, "", "biosphere3", "co2").
			AddRow("pv", "a2", 0, "production", "inverter production", "inverter", "RER", "unit", "", 1.0, 0, 0.0, 0.0, 0.0, 0.0, false, "", "", "").
			AddRow("pv", "zz", 0, "production", "orphan", "orphan", "GLO", "unit", "", 1.0, 0, 0.0, 0.0, 0.0, 0.0, false, "", "", ""))

	got, err := s.LoadActivities(context.Background(), "pv")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Energy", got[0].Fields["simapro category"])
	assert.Equal(t, []string{"energy", "photovoltaic"}, got[0].Categories)
	require.Len(t, got[0].Exchanges, 2)
	assert.Equal(t, model.Link{Database: "biosphere3", Code: "co2"}, got[0].Exchanges[1].Input)
	assert.Len(t, got[1].Exchanges, 1)
	assert.Nil(t, got[1].Fields)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreLoadUnknownDatabase(t *testing.T) {
	s, mock := newSQLStore(t)

	mock.ExpectQuery("FROM \"inventory\".\"activities\"").
		WillReturnRows(sqlmock.NewRows(activityColumns))

	_, err := s.LoadActivities(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownDatabase)
}

func TestSQLStoreFlows(t *testing.T) {
	s, mock := newSQLStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "inventory"."flows" WHERE database_name = $1`)).
		WithArgs("biosphere3").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "inventory"."flows"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.WriteFlows(context.Background(), "biosphere3", []model.Flow{
		{Code: "co2", Name: "Carbon dioxide, fossil", Categories: []string{"air"}, Unit: "kilogram"},
	}))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "inventory"."flows" WHERE database_name = $1`)).
		WithArgs("biosphere3").
		WillReturnRows(sqlmock.NewRows([]string{"database_name", "code", "name", "categories", "unit"}).
			AddRow("biosphere3", "co2", "Carbon dioxide, fossil", "air", "kilogram"))

	flows, err := s.LoadFlows(context.Background(), "biosphere3")
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, []string{"air"}, flows[0].Categories)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreRecordNormalizations(t *testing.T) {
	s, mock := newSQLStore(t)
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "inventory"."normalizations"`))
	prep.ExpectExec().
		WithArgs("run-1", "panel assembly", -1, "unit", "p", "unit", "units", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("run-1", "panel assembly", 2, "location", "Europe", "RER", "locations", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RecordNormalizations(context.Background(), "run-1", []model.NormalizationOperation{
		{Dataset: "panel assembly", ExchangeIndex: -1, Field: model.FieldUnit, OriginalValue: "p", NewValue: "unit", Rule: "units", NormalizedAt: now},
		{Dataset: "panel assembly", ExchangeIndex: 2, Field: model.FieldLocation, OriginalValue: "Europe", NewValue: "RER", Rule: "locations", NormalizedAt: now},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	// nothing to record, no transaction
	require.NoError(t, s.RecordNormalizations(context.Background(), "run-2", nil))
}

func TestSQLStoreVerify(t *testing.T) {
	s, mock := newSQLStore(t)
	h := Handle{Backend: "postgres", Database: "pv", Activities: 2, Exchanges: 4}

	expectCounts := func(activities, exchanges int) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "inventory"."activities" WHERE database_name = $1`)).
			WithArgs("pv").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(activities))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "inventory"."exchanges" WHERE database_name = $1`)).
			WithArgs("pv").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(exchanges))
	}

	expectCounts(2, 4)
	require.NoError(t, s.Verify(context.Background(), h))

	expectCounts(2, 3)
	err := s.Verify(context.Background(), h)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCountMismatch)
	assert.Contains(t, err.Error(), "3 exchanges, expected 4")
	require.NoError(t, mock.ExpectationsWereMet())
}
