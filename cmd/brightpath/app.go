// cmd/brightpath/app.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/brightpath-lca/brightpath/pkg/config"
	"github.com/brightpath-lca/brightpath/pkg/connector"
	"github.com/brightpath-lca/brightpath/pkg/converter"
	"github.com/brightpath-lca/brightpath/pkg/migration"
	"github.com/brightpath-lca/brightpath/pkg/stats"
	"github.com/brightpath-lca/brightpath/pkg/store"
	"github.com/brightpath-lca/brightpath/pkg/tables"
)

// app holds what every command shares: configuration, logger, tables,
// the inventory store and the metrics registry
type app struct {
	cfg       *config.Config
	flags     *globalFlags
	logger    *zap.Logger
	tables    *tables.Tables
	store     store.Store
	registry  *prometheus.Registry
	collector *stats.Collector
}

func newApp(ctx context.Context, flags *globalFlags) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}

	var tbl *tables.Tables
	if cfg.TablesDir != "" {
		tbl, err = tables.Load(cfg.TablesDir)
	} else {
		tbl, err = tables.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping tables: %w", err)
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	collector, err := stats.NewCollector(registry)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return &app{
		cfg:       cfg,
		flags:     flags,
		logger:    logger,
		tables:    tbl,
		store:     st,
		registry:  registry,
		collector: collector,
	}, nil
}

// openStore opens the project database or connects to the configured warehouse
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.Store == config.StoreSQLite {
		st, err := store.OpenProjectStore(cfg.SQLitePath, logger.Named("project-store"))
		if err != nil {
			return nil, err
		}
		return st, nil
	}

	conn, err := connector.NewConnectorFactory(cfg, logger).Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Store, err)
	}
	st := store.NewSQLStore(conn, logger.Named("sql-store")).
		WithBatchSize(cfg.BatchSize).
		WithMaxRetries(cfg.MaxRetries)
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// sessionOptions select the per-command inputs of a session
type sessionOptions struct {
	metadata   string
	exportName string
	migrations []string
}

// session builds a conversion session linked against the reference
// databases of the store
func (a *app) session(ctx context.Context, opts sessionOptions) (*converter.Session, error) {
	scfg := converter.DefaultConfig()
	scfg.EcoinventVersion = a.cfg.EcoinventVersion
	scfg.ExportDir = a.cfg.ExportDir
	scfg.Defaults = a.cfg.Defaults
	if opts.exportName != "" {
		scfg.ExportName = opts.exportName
	}

	if opts.metadata != "" {
		m, err := config.LoadMetadata(opts.metadata)
		if err != nil {
			return nil, err
		}
		scfg.Metadata = m
	}

	s, err := converter.NewSessionWithConfig(a.tables, a.logger.Named("converter"), scfg)
	if err != nil {
		return nil, err
	}
	s.WithCollector(a.collector).WithRecorder(a.store)

	activities, err := a.store.LoadActivities(ctx, a.cfg.EcoinventDatabase)
	switch {
	case errors.Is(err, store.ErrUnknownDatabase):
		a.logger.Warn("Reference database not found in store, technosphere exchanges link internally only",
			zap.String("database", a.cfg.EcoinventDatabase))
	case err != nil:
		return nil, err
	default:
		s.AddReferenceDatabase(a.cfg.EcoinventDatabase, activities)
	}

	flows, err := a.store.LoadFlows(ctx, a.cfg.BiosphereDatabase)
	if err != nil {
		return nil, err
	}
	if len(flows) == 0 {
		a.logger.Warn("Biosphere database not found in store",
			zap.String("database", a.cfg.BiosphereDatabase))
	} else {
		s.AddBiosphereDatabase(a.cfg.BiosphereDatabase, flows)
	}

	for _, path := range opts.migrations {
		t, err := migration.LoadFile(path)
		if err != nil {
			return nil, err
		}
		s.AddMigration(t)
	}

	return s, nil
}

// options returns the run options of a conversion command
func (a *app) options(drop, confirm bool) converter.Options {
	return converter.Options{
		DropUnlinked:   drop,
		ConfirmDrop:    confirm,
		OverrideLinked: a.cfg.OverrideLinked,
	}
}

// report prints a run result and the session issues
func (a *app) report(out io.Writer, res *converter.Result, s *converter.Session) error {
	if a.flags.jsonOutput {
		return printJSON(out, res)
	}
	fmt.Fprint(out, res.Summary())
	fmt.Fprint(out, s.Tracker().Report())
	return nil
}

// close writes the metrics textfile when requested and releases the store
func (a *app) close() error {
	var errs []error
	if a.flags.metricsFile != "" {
		if err := prometheus.WriteToTextfile(a.flags.metricsFile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
