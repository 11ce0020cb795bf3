// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

// StoreKind selects where Brightway-side inventories are read and written
type StoreKind string

const (
	StoreSQLite    StoreKind = "sqlite"
	StorePostgres  StoreKind = "postgres"
	StoreSnowflake StoreKind = "snowflake"
)

// Config represents the application configuration
type Config struct {
	// Reference data
	EcoinventVersion  string
	EcoinventDatabase string
	BiosphereDatabase string
	TablesDir         string // Overrides for the embedded mapping tables

	// Stores
	Store      StoreKind
	SQLitePath string
	Snowflake  *SnowflakeConfig
	Postgres   *PostgresConfig
	BatchSize  int // Rows per warehouse insert statement
	MaxRetries int // Retries of warehouse writes failing with transient errors

	// Conversion settings
	ExportDir      string
	OverrideLinked bool
	Defaults       map[string]string

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from the environment, after reading an
// optional .env file. Database settings are only required for the selected store.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	version := getEnv("BRIGHTPATH_ECOINVENT_VERSION", "3.9")
	cfg := &Config{
		EcoinventVersion:  version,
		EcoinventDatabase: getEnv("BRIGHTPATH_ECOINVENT_DATABASE", fmt.Sprintf("ecoinvent %s cutoff", version)),
		BiosphereDatabase: getEnv("BRIGHTPATH_BIOSPHERE_DATABASE", "biosphere3"),
		TablesDir:         getEnv("BRIGHTPATH_TABLES_DIR", ""),
		Store:             StoreKind(strings.ToLower(getEnv("BRIGHTPATH_STORE", string(StoreSQLite)))),
		SQLitePath:        getEnv("BRIGHTPATH_SQLITE_PATH", "brightpath.db"),
		BatchSize:         getEnvAsInt("BRIGHTPATH_BATCH_SIZE", 1000),
		MaxRetries:        getEnvAsInt("BRIGHTPATH_MAX_RETRIES", 3),
		ExportDir:         getEnv("BRIGHTPATH_EXPORT_DIR", "export"),
		OverrideLinked:    getEnvAsBool("BRIGHTPATH_OVERRIDE_LINKED", false),
		Defaults:          model.DatasetDefaults(),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
	}

	switch cfg.Store {
	case StorePostgres:
		pgConfig, err := LoadPostgresConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load PostgreSQL configuration: %w", err)
		}
		cfg.Postgres = pgConfig
	case StoreSnowflake:
		snowConfig, err := LoadSnowflakeConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load Snowflake configuration: %w", err)
		}
		cfg.Snowflake = snowConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("sqlite path is required")
		}
	case StorePostgres:
		if c.Postgres == nil {
			return errors.New("postgreSQL configuration is required")
		}
	case StoreSnowflake:
		if c.Snowflake == nil {
			return errors.New("snowflake configuration is required")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}

	if c.EcoinventVersion == "" {
		return errors.New("ecoinvent version is required")
	}

	if c.BiosphereDatabase == "" {
		return errors.New("biosphere database name is required")
	}

	if c.ExportDir == "" {
		return errors.New("export directory is required")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
