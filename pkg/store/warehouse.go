// pkg/store/warehouse.go
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/brightpath-lca/brightpath/pkg/connector"
	"github.com/brightpath-lca/brightpath/pkg/model"
)

// Warehouse table names
const (
	TableActivities     = "activities"
	TableExchanges      = "exchanges"
	TableFlows          = "flows"
	TableNormalizations = "normalizations"
)

type activityRow struct {
	Database         string `db:"database_name"`
	Code             string `db:"code"`
	Seq              int    `db:"seq"`
	Name             string `db:"name"`
	ReferenceProduct string `db:"reference_product"`
	Location         string `db:"location"`
	Unit             string `db:"unit"`
	Type             string `db:"activity_type"`
	Categories       string `db:"categories"`
	Comment          string `db:"comment"`
	Fields           Fields `db:"fields"`
}

type exchangeRow struct {
	Database         string  `db:"database_name"`
	ActivityCode     string  `db:"activity_code"`
	Seq              int     `db:"seq"`
	Type             string  `db:"exchange_type"`
	Name             string  `db:"name"`
	ReferenceProduct string  `db:"reference_product"`
	Location         string  `db:"location"`
	Unit             string  `db:"unit"`
	Categories       string  `db:"categories"`
	Amount           float64 `db:"amount"`
	UncertaintyType  int     `db:"uncertainty_type"`
	Loc              float64 `db:"loc"`
	Scale            float64 `db:"scale"`
	Minimum          float64 `db:"minimum"`
	Maximum          float64 `db:"maximum"`
	Negative         bool    `db:"negative"`
	Comment          string  `db:"comment"`
	InputDatabase    string  `db:"input_database"`
	InputCode        string  `db:"input_code"`
}

type flowRow struct {
	Database   string `db:"database_name"`
	Code       string `db:"code"`
	Name       string `db:"name"`
	Categories string `db:"categories"`
	Unit       string `db:"unit"`
}

var schemaDefinitions = []struct {
	table   string
	columns []string
	key     string
}{
	{
		table: TableActivities,
		columns: []string{
			"database_name VARCHAR(255) NOT NULL",
			"code VARCHAR(64) NOT NULL",
			"seq INTEGER NOT NULL",
			"name TEXT NOT NULL",
			"reference_product TEXT NOT NULL",
			"location TEXT NOT NULL",
			"unit TEXT NOT NULL",
			"activity_type TEXT",
			"categories TEXT",
			"comment TEXT",
			"fields TEXT",
		},
		key: "database_name, code",
	},
	{
		table: TableExchanges,
		columns: []string{
			"database_name VARCHAR(255) NOT NULL",
			"activity_code VARCHAR(64) NOT NULL",
			"seq INTEGER NOT NULL",
			"exchange_type VARCHAR(16) NOT NULL",
			"name TEXT NOT NULL",
			"reference_product TEXT",
			"location TEXT",
			"unit TEXT",
			"categories TEXT",
			"amount DOUBLE PRECISION",
			"uncertainty_type INTEGER",
			"loc DOUBLE PRECISION",
			"scale DOUBLE PRECISION",
			"minimum DOUBLE PRECISION",
			"maximum DOUBLE PRECISION",
			"negative BOOLEAN",
			"comment TEXT",
			"input_database VARCHAR(255)",
			"input_code VARCHAR(64)",
		},
		key: "database_name, activity_code, seq",
	},
	{
		table: TableFlows,
		columns: []string{
			"database_name VARCHAR(255) NOT NULL",
			"code VARCHAR(64) NOT NULL",
			"name TEXT NOT NULL",
			"categories TEXT",
			"unit TEXT",
		},
		key: "database_name, code",
	},
	{
		table: TableNormalizations,
		columns: []string{
			"run_id VARCHAR(36) NOT NULL",
			"dataset TEXT",
			"exchange_index INTEGER",
			"field_name TEXT NOT NULL",
			"original_value TEXT",
			"new_value TEXT",
			"rule_name TEXT",
			"normalized_at TIMESTAMP",
		},
	},
}

// SQLStore keeps inventories in a Postgres or Snowflake warehouse
type SQLStore struct {
	conn       connector.DatabaseConnector
	logger     *zap.Logger
	timeout    time.Duration
	batchSize  int
	maxRetries int
	backoff    time.Duration
}

// NewSQLStore creates a store on an open warehouse connection
func NewSQLStore(conn connector.DatabaseConnector, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{
		conn:       conn,
		logger:     logger,
		timeout:    time.Minute * 5, // Default 5-minute timeout
		batchSize:  1000,
		maxRetries: 3,
		backoff:    2 * time.Second,
	}
}

// WithTimeout sets the timeout of each store operation
func (s *SQLStore) WithTimeout(timeout time.Duration) *SQLStore {
	s.timeout = timeout
	return s
}

// WithBatchSize sets how many rows each insert statement carries
func (s *SQLStore) WithBatchSize(n int) *SQLStore {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// WithMaxRetries sets how often a write failing with a transient error is retried
func (s *SQLStore) WithMaxRetries(maxRetries int) *SQLStore {
	s.maxRetries = maxRetries
	return s
}

// table returns the quoted, schema-qualified name of a table
func (s *SQLStore) table(name string) string {
	schema := s.conn.Schema()
	if s.conn.Dialect() == connector.DialectSnowflake {
		schema = strings.ToUpper(schema)
		name = strings.ToUpper(name)
	}
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(name)
}

// EnsureSchema creates the inventory tables if they don't exist
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, def := range schemaDefinitions {
		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s", s.table(def.table), strings.Join(def.columns, ",\n\t"))
		if def.key != "" {
			ddl += fmt.Sprintf(",\n\tPRIMARY KEY (%s)", def.key)
		}
		ddl += "\n)"

		if _, err := s.conn.ExecWithTimeout(ctx, ddl, s.timeout); err != nil {
			return fmt.Errorf("failed to create table %s: %w", def.table, err)
		}
		s.logger.Debug("Ensured table exists", zap.String("table", s.table(def.table)))
	}
	return nil
}

// Write replaces database with activities in a single transaction
func (s *SQLStore) Write(ctx context.Context, database string, activities []*model.Activity) (Handle, error) {
	if err := CheckIdentity(activities); err != nil {
		return Handle{}, err
	}

	var h Handle
	err := s.withRetry(ctx, "write "+database, func() (err error) {
		h, err = s.write(ctx, database, activities)
		return err
	})
	return h, err
}

func (s *SQLStore) write(ctx context.Context, database string, activities []*model.Activity) (h Handle, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		acts []activityRow
		excs []exchangeRow
	)
	for i, a := range activities {
		acts = append(acts, toActivityRow(database, i, a))
		for j, e := range a.Exchanges {
			excs = append(excs, toExchangeRow(database, a.Code, j, e))
		}
	}

	db := s.conn.DB()
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return Handle{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.NamedError("cause", err))
			}
		}
	}()

	for _, table := range []string{TableExchanges, TableActivities} {
		query := tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE database_name = ?", s.table(table)))
		if _, err = tx.ExecContext(ctx, query, database); err != nil {
			return Handle{}, fmt.Errorf("failed to clear %s of %s: %w", table, database, err)
		}
	}

	if err = insertBatches(ctx, tx, s.insertActivities(), acts, s.batchSize); err != nil {
		return Handle{}, fmt.Errorf("failed to insert activities: %w", err)
	}
	if err = insertBatches(ctx, tx, s.insertExchanges(), excs, s.batchSize); err != nil {
		return Handle{}, fmt.Errorf("failed to insert exchanges: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return Handle{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	h = Handle{
		Backend:    string(s.conn.Dialect()),
		Database:   database,
		Activities: len(acts),
		Exchanges:  len(excs),
		WrittenAt:  time.Now(),
	}
	s.logger.Info("Wrote database",
		zap.String("database", database),
		zap.String("backend", h.Backend),
		zap.Int("activities", h.Activities),
		zap.Int("exchanges", h.Exchanges))
	return h, nil
}

func (s *SQLStore) insertActivities() string {
	return fmt.Sprintf(`INSERT INTO %s
		(database_name, code, seq, name, reference_product, location, unit, activity_type, categories, comment, fields)
		VALUES (:database_name, :code, :seq, :name, :reference_product, :location, :unit, :activity_type, :categories, :comment, :fields)`,
		s.table(TableActivities))
}

func (s *SQLStore) insertExchanges() string {
	return fmt.Sprintf(`INSERT INTO %s
		(database_name, activity_code, seq, exchange_type, name, reference_product, location, unit, categories,
		 amount, uncertainty_type, loc, scale, minimum, maximum, negative, comment, input_database, input_code)
		VALUES (:database_name, :activity_code, :seq, :exchange_type, :name, :reference_product, :location, :unit, :categories,
		 :amount, :uncertainty_type, :loc, :scale, :minimum, :maximum, :negative, :comment, :input_database, :input_code)`,
		s.table(TableExchanges))
}

func (s *SQLStore) insertFlows() string {
	return fmt.Sprintf(`INSERT INTO %s (database_name, code, name, categories, unit)
		VALUES (:database_name, :code, :name, :categories, :unit)`,
		s.table(TableFlows))
}

// insertBatches runs a named multi-row insert per batch of rows
func insertBatches[T any](ctx context.Context, tx *sqlx.Tx, query string, rows []T, batchSize int) error {
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if _, err := tx.NamedExecContext(ctx, query, rows[i:end]); err != nil {
			return fmt.Errorf("batch at offset %d: %w", i, err)
		}
	}
	return nil
}

// LoadActivities returns the activities of database in written order
func (s *SQLStore) LoadActivities(ctx context.Context, database string) ([]*model.Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	db := s.conn.DB()

	var acts []activityRow
	query := db.Rebind(fmt.Sprintf(`SELECT database_name, code, seq, name, reference_product, location, unit,
		activity_type, categories, comment, fields FROM %s WHERE database_name = ? ORDER BY seq`, s.table(TableActivities)))
	if err := db.SelectContext(ctx, &acts, query, database); err != nil {
		return nil, fmt.Errorf("failed to load activities of %s: %w", database, err)
	}
	if len(acts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDatabase, database)
	}

	var excs []exchangeRow
	query = db.Rebind(fmt.Sprintf(`SELECT database_name, activity_code, seq, exchange_type, name, reference_product,
		location, unit, categories, amount, uncertainty_type, loc, scale, minimum, maximum, negative, comment,
		input_database, input_code FROM %s WHERE database_name = ? ORDER BY activity_code, seq`, s.table(TableExchanges)))
	if err := db.SelectContext(ctx, &excs, query, database); err != nil {
		return nil, fmt.Errorf("failed to load exchanges of %s: %w", database, err)
	}

	byCode := make(map[string]*model.Activity, len(acts))
	activities := make([]*model.Activity, len(acts))
	for i, r := range acts {
		a := &model.Activity{
			Database:         r.Database,
			Code:             r.Code,
			Name:             r.Name,
			ReferenceProduct: r.ReferenceProduct,
			Location:         r.Location,
			Unit:             r.Unit,
			Type:             model.ActivityType(r.Type),
			Categories:       model.SplitCategories(r.Categories),
			Comment:          r.Comment,
			Fields:           copyFields(r.Fields),
		}
		activities[i] = a
		byCode[r.Code] = a
	}
	for _, r := range excs {
		a, ok := byCode[r.ActivityCode]
		if !ok {
			s.logger.Warn("Exchange references unknown activity",
				zap.String("database", database),
				zap.String("activity_code", r.ActivityCode))
			continue
		}
		a.Exchanges = append(a.Exchanges, r.toModel())
	}
	return activities, nil
}

// WriteFlows replaces the flows of a reference biosphere database
func (s *SQLStore) WriteFlows(ctx context.Context, database string, flows []model.Flow) error {
	return s.withRetry(ctx, "write flows "+database, func() error {
		return s.writeFlows(ctx, database, flows)
	})
}

func (s *SQLStore) writeFlows(ctx context.Context, database string, flows []model.Flow) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows := make([]flowRow, len(flows))
	for i, f := range flows {
		rows[i] = flowRow{
			Database:   database,
			Code:       f.Code,
			Name:       f.Name,
			Categories: model.JoinCategories(f.Categories),
			Unit:       f.Unit,
		}
	}

	tx, err := s.conn.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	query := tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE database_name = ?", s.table(TableFlows)))
	if _, err = tx.ExecContext(ctx, query, database); err != nil {
		return fmt.Errorf("failed to clear flows of %s: %w", database, err)
	}
	if err = insertBatches(ctx, tx, s.insertFlows(), rows, s.batchSize); err != nil {
		return fmt.Errorf("failed to insert flows: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadFlows returns the flows of a reference biosphere database
func (s *SQLStore) LoadFlows(ctx context.Context, database string) ([]model.Flow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	db := s.conn.DB()
	var rows []flowRow
	query := db.Rebind(fmt.Sprintf("SELECT database_name, code, name, categories, unit FROM %s WHERE database_name = ? ORDER BY code",
		s.table(TableFlows)))
	if err := db.SelectContext(ctx, &rows, query, database); err != nil {
		return nil, fmt.Errorf("failed to load flows of %s: %w", database, err)
	}

	flows := make([]model.Flow, len(rows))
	for i, r := range rows {
		flows[i] = model.Flow{
			Database:   r.Database,
			Code:       r.Code,
			Name:       r.Name,
			Categories: model.SplitCategories(r.Categories),
			Unit:       r.Unit,
		}
	}
	return flows, nil
}

// RecordNormalizations batch inserts normalization operations into the tracking table
func (s *SQLStore) RecordNormalizations(ctx context.Context, runID string, ops []model.NormalizationOperation) (err error) {
	if len(ops) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.conn.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.NamedError("cause", err))
			}
		}
	}()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(fmt.Sprintf(`INSERT INTO %s
		(run_id, dataset, exchange_index, field_name, original_value, new_value, rule_name, normalized_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table(TableNormalizations))))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, op := range ops {
		_, err = stmt.ExecContext(ctx,
			runID,
			op.Dataset,
			op.ExchangeIndex,
			string(op.Field),
			op.OriginalValue,
			op.NewValue,
			op.Rule,
			op.NormalizedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert normalization operation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Recorded normalization operations", zap.Int("count", len(ops)))
	return nil
}

// Verify compares stored row counts with a handle
func (s *SQLStore) Verify(ctx context.Context, h Handle) error {
	s.logger.Info("Verifying row counts", zap.String("database", h.Database))

	activities, err := s.count(ctx, TableActivities, h.Database)
	if err != nil {
		return err
	}
	exchanges, err := s.count(ctx, TableExchanges, h.Database)
	if err != nil {
		return err
	}
	return checkCounts(s.logger, h, activities, exchanges)
}

func (s *SQLStore) count(ctx context.Context, table, database string) (int64, error) {
	query := s.conn.DB().Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE database_name = ?", s.table(table)))
	rows, err := s.conn.QueryWithTimeout(ctx, query, s.timeout, database)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	defer rows.Close()

	var n int64
	if !rows.Next() {
		return 0, fmt.Errorf("no results returned from %s count query", table)
	}
	if err := rows.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to scan %s count: %w", table, err)
	}
	return n, rows.Err()
}

// Close closes the warehouse connection
func (s *SQLStore) Close() error {
	return s.conn.Close()
}

func toActivityRow(database string, seq int, a *model.Activity) activityRow {
	return activityRow{
		Database:         database,
		Code:             a.Code,
		Seq:              seq,
		Name:             a.Name,
		ReferenceProduct: a.ReferenceProduct,
		Location:         a.Location,
		Unit:             a.Unit,
		Type:             string(a.Type),
		Categories:       model.JoinCategories(a.Categories),
		Comment:          a.Comment,
		Fields:           Fields(copyFields(a.Fields)),
	}
}

func toExchangeRow(database, activityCode string, seq int, e *model.Exchange) exchangeRow {
	return exchangeRow{
		Database:         database,
		ActivityCode:     activityCode,
		Seq:              seq,
		Type:             string(e.Type),
		Name:             e.Name,
		ReferenceProduct: e.ReferenceProduct,
		Location:         e.Location,
		Unit:             e.Unit,
		Categories:       model.JoinCategories(e.Categories),
		Amount:           e.Amount,
		UncertaintyType:  int(e.Uncertainty.Type),
		Loc:              e.Uncertainty.Loc,
		Scale:            e.Uncertainty.Scale,
		Minimum:          e.Uncertainty.Minimum,
		Maximum:          e.Uncertainty.Maximum,
		Negative:         e.Uncertainty.Negative,
		Comment:          e.Comment,
		InputDatabase:    e.Input.Database,
		InputCode:        e.Input.Code,
	}
}

func (r exchangeRow) toModel() *model.Exchange {
	return &model.Exchange{
		Type:             model.ExchangeType(r.Type),
		Name:             r.Name,
		ReferenceProduct: r.ReferenceProduct,
		Location:         r.Location,
		Unit:             r.Unit,
		Categories:       model.SplitCategories(r.Categories),
		Amount:           r.Amount,
		Uncertainty: model.Uncertainty{
			Type:     model.UncertaintyType(r.UncertaintyType),
			Loc:      r.Loc,
			Scale:    r.Scale,
			Minimum:  r.Minimum,
			Maximum:  r.Maximum,
			Negative: r.Negative,
		},
		Comment: r.Comment,
		Input:   model.Link{Database: r.InputDatabase, Code: r.InputCode},
	}
}
