// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/brightpath-lca/brightpath/pkg/config"
)

// ConnectorFactory creates database connectors
type ConnectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger) *ConnectorFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSnowflakeConnector creates a new Snowflake connector
func (f *ConnectorFactory) CreateSnowflakeConnector(ctx context.Context) (*SnowflakeConnector, error) {
	f.logger.Info("Creating Snowflake connector")

	if f.cfg.Snowflake == nil {
		return nil, fmt.Errorf("failed to create Snowflake connector: no configuration")
	}
	connector, err := NewSnowflakeConnector(ctx, f.cfg.Snowflake, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Snowflake connector: %w", err)
	}

	return connector, nil
}

// CreatePostgresConnector creates a new PostgreSQL connector
func (f *ConnectorFactory) CreatePostgresConnector(ctx context.Context) (*PostgresConnector, error) {
	f.logger.Info("Creating PostgreSQL connector")

	if f.cfg.Postgres == nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connector: no configuration")
	}
	connector, err := NewPostgresConnector(ctx, f.cfg.Postgres, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connector: %w", err)
	}

	return connector, nil
}

// Create opens and validates the connector of the configured warehouse store
func (f *ConnectorFactory) Create(ctx context.Context) (DatabaseConnector, error) {
	var (
		conn DatabaseConnector
		err  error
	)
	switch f.cfg.Store {
	case config.StorePostgres:
		conn, err = f.CreatePostgresConnector(ctx)
	case config.StoreSnowflake:
		conn, err = f.CreateSnowflakeConnector(ctx)
	default:
		return nil, fmt.Errorf("store %q is not a warehouse store", f.cfg.Store)
	}
	if err != nil {
		return nil, err
	}

	if err := conn.Validate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to validate %s connection: %w", conn.Dialect(), err)
	}
	return conn, nil
}
