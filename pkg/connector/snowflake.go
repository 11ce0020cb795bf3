// pkg/connector/snowflake.go
package connector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/brightpath-lca/brightpath/pkg/config"
)

func init() {
	sqlx.BindDriver("snowflake", sqlx.QUESTION)
}

// SnowflakeConnector implements the DatabaseConnector interface for Snowflake
type SnowflakeConnector struct {
	base
	cfg *config.SnowflakeConfig
}

// NewSnowflakeConnector creates a new Snowflake connection
func NewSnowflakeConnector(ctx context.Context, cfg *config.SnowflakeConfig, logger *zap.Logger) (*SnowflakeConnector, error) {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("snowflake-connector")

	// Log connection attempt (without credentials)
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("role", cfg.Role))

	dsn, err := cfg.ConnectionString()
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Snowflake connection: %w", err)
	}

	// Configure connection pool
	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	// Verify connection
	if err := PingWithTimeout(ctx, db, 10*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Snowflake: %w", err)
	}

	// Set query timeout if configured
	if cfg.QueryTimeout > 0 {
		_, err = db.ExecContext(
			ctx,
			fmt.Sprintf("ALTER SESSION SET STATEMENT_TIMEOUT_IN_SECONDS = %d",
				int(cfg.QueryTimeout.Seconds())),
		)
		if err != nil {
			logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	connector := NewSnowflakeConnectorFromDB(db, cfg, logger)
	LogConnectionStats(logger, cfg.Database, db)
	return connector, nil
}

// NewSnowflakeConnectorFromDB wraps an open connection
func NewSnowflakeConnectorFromDB(db *sqlx.DB, cfg *config.SnowflakeConfig, logger *zap.Logger) *SnowflakeConnector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnowflakeConnector{
		base: base{
			db:      db,
			logger:  logger,
			name:    cfg.Database,
			schema:  cfg.Schema,
			dialect: DialectSnowflake,
		},
		cfg: cfg,
	}
}

// Validate verifies the Snowflake connection and that the inventory schema exists
func (c *SnowflakeConnector) Validate(ctx context.Context) error {
	var role, database, warehouse string
	err := c.db.QueryRowContext(ctx, "SELECT CURRENT_ROLE(), CURRENT_DATABASE(), CURRENT_WAREHOUSE()").Scan(
		&role, &database, &warehouse)
	if err != nil {
		return fmt.Errorf("failed to verify Snowflake access: %w", err)
	}

	c.logger.Info("Connected to Snowflake",
		zap.String("role", role),
		zap.String("database", database),
		zap.String("warehouse", warehouse))

	// Verify we're connected to the correct database
	if !strings.EqualFold(database, c.cfg.Database) {
		return fmt.Errorf("connected to wrong database: %s (expected: %s)",
			database, c.cfg.Database)
	}

	exists, err := c.schemaExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify schema: %w", err)
	}
	if !exists {
		if _, err := c.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(strings.ToUpper(c.schema))); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", c.schema, err)
		}
		c.logger.Info("Created schema", zap.String("schema", c.schema))
	}

	return nil
}

// schemaExists checks the information schema for the inventory schema
func (c *SnowflakeConnector) schemaExists(ctx context.Context) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?",
		strings.ToUpper(c.schema)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
