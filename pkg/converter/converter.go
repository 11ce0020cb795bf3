// pkg/converter/converter.go
package converter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath-lca/brightpath/pkg/issue"
	"github.com/brightpath-lca/brightpath/pkg/match"
	"github.com/brightpath-lca/brightpath/pkg/migration"
	"github.com/brightpath-lca/brightpath/pkg/model"
	"github.com/brightpath-lca/brightpath/pkg/normalizer"
	"github.com/brightpath-lca/brightpath/pkg/stats"
	"github.com/brightpath-lca/brightpath/pkg/tables"
)

// ErrDestructiveWithoutConfirmation is returned when unlinked exchanges would
// be dropped without the caller confirming it
var ErrDestructiveWithoutConfirmation = errors.New("dropping unlinked exchanges requires confirmation")

// Config provides configuration options for conversions
type Config struct {
	// Ecoinvent release the inventories link to. From 3.9 on, resources
	// extracted from the ground sit in the "in ground" subcompartment.
	EcoinventVersion string
	// Directory SimaPro exports are written to
	ExportDir string
	// Linked database named in export file names
	ExportName string
	// Dataset defaults keyed by lower-case field name. Absent keys fall back
	// to the built-in defaults; the metadata document's defaults win over both.
	Defaults map[string]string
	// System descriptions and literature references added to exports
	Metadata *model.InventoryMetadata
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		EcoinventVersion: "3.9",
		ExportDir:        "export",
		ExportName:       "ecoinvent",
		Defaults:         model.DatasetDefaults(),
	}
}

// Options controls a single conversion run
type Options struct {
	// DropUnlinked removes exchanges still unlinked after the second match
	// pass. It only takes effect together with ConfirmDrop.
	DropUnlinked bool
	ConfirmDrop  bool
	// OverrideLinked lets migrations rewrite exchanges that already have a link
	OverrideLinked bool
}

func (o Options) validate() error {
	if o.DropUnlinked && !o.ConfirmDrop {
		return ErrDestructiveWithoutConfirmation
	}
	return nil
}

// NormalizationRecorder persists the field rewrites of a run
type NormalizationRecorder interface {
	RecordNormalizations(ctx context.Context, runID string, ops []model.NormalizationOperation) error
}

// Session holds everything a conversion needs: tables, normalizers, match
// strategies against reference databases and migration tables. A session
// can run any number of conversions; issues accumulate on its tracker.
type Session struct {
	tables     *tables.Tables
	config     Config
	inbound    *normalizer.Normalizer
	outbound   *normalizer.Normalizer
	strategies []match.Strategy
	migrations []*migration.Table
	flows      map[model.Key]bool
	tracker    *issue.Tracker
	collector  *stats.Collector
	recorder   NormalizationRecorder
	logger     *zap.Logger
	now        func() time.Time
}

// NewSession creates a session with default configuration
func NewSession(t *tables.Tables, logger *zap.Logger) (*Session, error) {
	return NewSessionWithConfig(t, logger, DefaultConfig())
}

// NewSessionWithConfig creates a session with custom configuration
func NewSessionWithConfig(t *tables.Tables, logger *zap.Logger, config Config) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	inbound, err := normalizer.NewNormalizer(t, normalizer.ToBrightway, logger.Named("normalizer"))
	if err != nil {
		return nil, fmt.Errorf("failed to create normalizer: %w", err)
	}
	outbound, err := normalizer.NewNormalizer(t, normalizer.ToSimapro, logger.Named("normalizer"))
	if err != nil {
		return nil, fmt.Errorf("failed to create normalizer: %w", err)
	}

	defaults := DefaultConfig()
	if config.EcoinventVersion == "" {
		config.EcoinventVersion = defaults.EcoinventVersion
	}
	if config.ExportDir == "" {
		config.ExportDir = defaults.ExportDir
	}
	if config.ExportName == "" {
		config.ExportName = defaults.ExportName
	}
	config.Defaults = mergeDefaults(config)

	return &Session{
		tables:   t,
		config:   config,
		inbound:  inbound,
		outbound: outbound,
		flows:    make(map[model.Key]bool),
		tracker:  issue.NewTracker(logger),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// mergeDefaults layers the built-in dataset defaults, the configured ones and
// those of the metadata document
func mergeDefaults(config Config) map[string]string {
	out := model.DatasetDefaults()
	for k, v := range config.Defaults {
		out[strings.ToLower(k)] = v
	}
	return config.Metadata.OverlayDefaults(out)
}

// WithTracker replaces the issue tracker, typically to share it with readers
func (s *Session) WithTracker(tracker *issue.Tracker) *Session {
	if tracker != nil {
		s.tracker = tracker
	}
	return s
}

// WithCollector publishes the statistics of every run to c
func (s *Session) WithCollector(c *stats.Collector) *Session {
	s.collector = c
	return s
}

// WithRecorder persists normalization operations of every run
func (s *Session) WithRecorder(r NormalizationRecorder) *Session {
	s.recorder = r
	return s
}

// WithClock sets the clock used for run timestamps and export dates
func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

// AddReferenceDatabase adds a technosphere match strategy over the
// activities of a reference database, keyed by the given fields
func (s *Session) AddReferenceDatabase(database string, activities []*model.Activity, fields ...model.Field) {
	ix := match.NewTechnosphereIndex(database, activities, fields...)
	s.strategies = append(s.strategies, match.Strategy{Name: database, Index: ix})

	s.logger.Info("Added reference database",
		zap.String("database", database),
		zap.Int("activities", len(activities)),
		zap.Int("keys", ix.Len()),
		zap.Int("ambiguousKeys", ix.Ambiguous()))
	s.recordAmbiguous(database, ix)
}

// AddBiosphereDatabase adds a biosphere match strategy over the flows of a
// reference database. The flows also drive the subcompartment fallback
// search of SimaPro imports.
func (s *Session) AddBiosphereDatabase(database string, flows []model.Flow, fields ...model.Field) {
	ix := match.NewBiosphereIndex(database, flows, fields...)
	s.strategies = append(s.strategies, match.Strategy{Name: database, Index: ix})

	for _, f := range flows {
		s.flows[flowKey(f.Name, f.Categories)] = true
	}

	s.logger.Info("Added biosphere database",
		zap.String("database", database),
		zap.Int("flows", len(flows)),
		zap.Int("keys", ix.Len()),
		zap.Int("ambiguousKeys", ix.Ambiguous()))
	s.recordAmbiguous(database, ix)
}

// AddMigration appends a migration table applied between the match passes
func (s *Session) AddMigration(t *migration.Table) {
	s.migrations = append(s.migrations, t)
}

// Strategies returns the reference strategies in application order
func (s *Session) Strategies() []match.Strategy {
	return append([]match.Strategy(nil), s.strategies...)
}

// Tracker returns the issue tracker of the session
func (s *Session) Tracker() *issue.Tracker {
	return s.tracker
}

// Config returns the session configuration
func (s *Session) Config() Config {
	return s.config
}

// Ambiguous reference keys are left out of the index; they are reported once
// so the reference data can be fixed.
func (s *Session) recordAmbiguous(database string, ix *match.Index) {
	for _, key := range ix.AmbiguousKeys() {
		s.tracker.Record(issue.Newf(issue.CategoryWarning, "ambiguous reference key %q", key.String()).
			WithSource(database))
	}
}

func (s *Session) defaultValue(field string) string {
	return s.config.Defaults[field]
}
