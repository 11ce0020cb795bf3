// pkg/connector/connector.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Dialect names the SQL flavour behind a connector
type Dialect string

const (
	DialectPostgres  Dialect = "postgres"
	DialectSnowflake Dialect = "snowflake"
)

// DatabaseConnector defines the interface for warehouse connectors
type DatabaseConnector interface {
	// DB returns the underlying database connection
	DB() *sqlx.DB

	// Dialect returns the SQL flavour of the connection
	Dialect() Dialect

	// Schema returns the schema inventories are stored in
	Schema() string

	// Validate verifies the connection and permissions
	Validate(ctx context.Context) error

	// Close closes the connection and releases resources
	Close() error

	// QueryWithTimeout executes a query with a timeout
	QueryWithTimeout(ctx context.Context, query string, timeout time.Duration, args ...interface{}) (*sqlx.Rows, error)

	// ExecWithTimeout executes a statement with a timeout
	ExecWithTimeout(ctx context.Context, query string, timeout time.Duration, args ...interface{}) (sql.Result, error)
}

// ConnStats contains standardized connection statistics
type ConnStats struct {
	OpenConnections int
	InUse           int
	Idle            int
	MaxOpenConns    int
	WaitCount       int64
	WaitDuration    time.Duration
}

// GetConnectionStats returns connection pool statistics for logging
func GetConnectionStats(db *sqlx.DB) ConnStats {
	stats := db.Stats()
	return ConnStats{
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		MaxOpenConns:    stats.MaxOpenConnections,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
	}
}

// LogConnectionStats logs connection pool statistics
func LogConnectionStats(logger *zap.Logger, name string, db *sqlx.DB) {
	stats := GetConnectionStats(db)
	logger.Debug("Connection pool stats",
		zap.String("database", name),
		zap.Int("open_connections", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int("max_open", stats.MaxOpenConns),
		zap.Int64("wait_count", stats.WaitCount),
		zap.Duration("wait_duration", stats.WaitDuration),
	)
}

// PingWithTimeout attempts to ping a database with a timeout
func PingWithTimeout(ctx context.Context, db *sqlx.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- db.PingContext(pingCtx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-pingCtx.Done():
		return fmt.Errorf("ping timed out after %v: %w", timeout, pingCtx.Err())
	}
}

// ApplyConnectionSettings configures database connection pool settings
func ApplyConnectionSettings(db *sqlx.DB, maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) {
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}
	if maxIdleTime > 0 {
		db.SetConnMaxIdleTime(maxIdleTime)
	}
}

// base carries what every connector shares
type base struct {
	db      *sqlx.DB
	logger  *zap.Logger
	name    string
	schema  string
	dialect Dialect
}

// DB returns the underlying database connection
func (c *base) DB() *sqlx.DB {
	return c.db
}

// Dialect returns the SQL flavour of the connection
func (c *base) Dialect() Dialect {
	return c.dialect
}

// Schema returns the schema inventories are stored in
func (c *base) Schema() string {
	return c.schema
}

// Close closes the database connection
func (c *base) Close() error {
	c.logger.Info("Closing connection", zap.String("database", c.name))
	LogConnectionStats(c.logger, c.name, c.db)
	return c.db.Close()
}

// ExecWithTimeout executes a statement with a timeout
func (c *base) ExecWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (sql.Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.ExecContext(queryCtx, query, args...)
}

// QueryWithTimeout executes a query with a timeout. The timeout keeps
// running while rows are read, so callers should drain them promptly.
func (c *base) QueryWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (*sqlx.Rows, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	rows, err := c.db.QueryxContext(queryCtx, query, args...)
	if err != nil {
		cancel()
		return nil, err
	}
	context.AfterFunc(ctx, cancel)
	return rows, nil
}
