// pkg/store/project.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

// BackendProject names the SQLite project store in handles
const BackendProject = "project"

// ActivityRecord is the project database row of an activity
type ActivityRecord struct {
	ID               uint   `gorm:"primaryKey"`
	Database         string `gorm:"column:database_name;size:255;not null;uniqueIndex:idx_activity_code"`
	Code             string `gorm:"size:64;not null;uniqueIndex:idx_activity_code"`
	Position         int    `gorm:"not null"`
	Name             string `gorm:"not null"`
	ReferenceProduct string `gorm:"not null"`
	Location         string `gorm:"not null"`
	Unit             string `gorm:"not null"`
	Type             string `gorm:"column:activity_type"`
	Categories       string
	Comment          string
	Fields           Fields           `gorm:"type:text"`
	Exchanges        []ExchangeRecord `gorm:"foreignKey:ActivityID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time
}

// TableName overrides the default table name.
func (ActivityRecord) TableName() string { return "activities" }

// ExchangeRecord is the project database row of an exchange
type ExchangeRecord struct {
	ID               uint   `gorm:"primaryKey"`
	ActivityID       uint   `gorm:"index;not null"`
	Position         int    `gorm:"not null"`
	Type             string `gorm:"column:exchange_type;not null"`
	Name             string `gorm:"not null"`
	ReferenceProduct string
	Location         string
	Unit             string
	Categories       string
	Amount           float64
	UncertaintyType  int
	Loc              float64
	Scale            float64
	Minimum          float64
	Maximum          float64
	Negative         bool
	Comment          string
	InputDatabase    string `gorm:"index:idx_exchange_input"`
	InputCode        string `gorm:"index:idx_exchange_input"`
}

// TableName overrides the default table name.
func (ExchangeRecord) TableName() string { return "exchanges" }

// FlowRecord is a biosphere flow of a reference database
type FlowRecord struct {
	ID         uint   `gorm:"primaryKey"`
	Database   string `gorm:"column:database_name;size:255;not null;uniqueIndex:idx_flow_code"`
	Code       string `gorm:"size:64;not null;uniqueIndex:idx_flow_code"`
	Name       string `gorm:"not null"`
	Categories string
	Unit       string
}

// TableName overrides the default table name.
func (FlowRecord) TableName() string { return "flows" }

// NormalizationRecord tracks one field rewritten by the normalizer
type NormalizationRecord struct {
	ID            uint   `gorm:"primaryKey"`
	RunID         string `gorm:"size:36;index;not null"`
	Dataset       string
	ExchangeIndex int
	Field         string `gorm:"column:field_name"`
	OriginalValue string
	NewValue      string
	Rule          string
	NormalizedAt  time.Time
}

// TableName overrides the default table name.
func (NormalizationRecord) TableName() string { return "normalizations" }

// ProjectStore keeps inventories in a Brightway-like SQLite project database
type ProjectStore struct {
	db        *gorm.DB
	logger    *zap.Logger
	batchSize int
}

// OpenProjectStore opens (creating if needed) the project database at path
func OpenProjectStore(path string, log *zap.Logger) (*ProjectStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open project database %s: %w", path, err)
	}
	return NewProjectStore(db, log)
}

// NewProjectStore wraps an open gorm connection and migrates its tables
func NewProjectStore(db *gorm.DB, log *zap.Logger) (*ProjectStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &ProjectStore{db: db, logger: log, batchSize: 500}
	if err := s.AutoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// AutoMigrate creates or updates the project tables
func (s *ProjectStore) AutoMigrate() error {
	for _, m := range []interface{}{&ActivityRecord{}, &ExchangeRecord{}, &FlowRecord{}, &NormalizationRecord{}} {
		if err := s.db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto-migrate %T: %w", m, err)
		}
	}
	return nil
}

// Write replaces database with activities in a single transaction
func (s *ProjectStore) Write(ctx context.Context, database string, activities []*model.Activity) (Handle, error) {
	if err := CheckIdentity(activities); err != nil {
		return Handle{}, err
	}

	records := make([]ActivityRecord, len(activities))
	for i, a := range activities {
		records[i] = toActivityRecord(database, i, a)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteDatabase(tx, database); err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&records, s.batchSize).Error; err != nil {
			return fmt.Errorf("insert activities: %w", err)
		}
		return nil
	})
	if err != nil {
		return Handle{}, fmt.Errorf("failed to write database %s: %w", database, err)
	}

	h := Handle{
		Backend:    BackendProject,
		Database:   database,
		Activities: len(activities),
		Exchanges:  countExchanges(activities),
		WrittenAt:  time.Now(),
	}
	s.logger.Info("Wrote database",
		zap.String("database", database),
		zap.Int("activities", h.Activities),
		zap.Int("exchanges", h.Exchanges))
	return h, nil
}

func deleteDatabase(tx *gorm.DB, database string) error {
	ids := tx.Model(&ActivityRecord{}).Select("id").Where("database_name = ?", database)
	if err := tx.Where("activity_id IN (?)", ids).Delete(&ExchangeRecord{}).Error; err != nil {
		return fmt.Errorf("delete exchanges: %w", err)
	}
	if err := tx.Where("database_name = ?", database).Delete(&ActivityRecord{}).Error; err != nil {
		return fmt.Errorf("delete activities: %w", err)
	}
	return nil
}

// LoadActivities returns the activities of database in written order
func (s *ProjectStore) LoadActivities(ctx context.Context, database string) ([]*model.Activity, error) {
	var records []ActivityRecord
	err := s.db.WithContext(ctx).
		Preload("Exchanges", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("database_name = ?", database).
		Order("position ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load database %s: %w", database, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDatabase, database)
	}

	activities := make([]*model.Activity, len(records))
	for i := range records {
		activities[i] = records[i].toModel()
	}
	return activities, nil
}

// WriteFlows replaces the flows of a reference biosphere database
func (s *ProjectStore) WriteFlows(ctx context.Context, database string, flows []model.Flow) error {
	records := make([]FlowRecord, len(flows))
	for i, f := range flows {
		records[i] = FlowRecord{
			Database:   database,
			Code:       f.Code,
			Name:       f.Name,
			Categories: model.JoinCategories(f.Categories),
			Unit:       f.Unit,
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("database_name = ?", database).Delete(&FlowRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(&records, s.batchSize).Error
	})
	if err != nil {
		return fmt.Errorf("failed to write flows of %s: %w", database, err)
	}
	return nil
}

// LoadFlows returns the flows of a reference biosphere database
func (s *ProjectStore) LoadFlows(ctx context.Context, database string) ([]model.Flow, error) {
	var records []FlowRecord
	if err := s.db.WithContext(ctx).Where("database_name = ?", database).Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load flows of %s: %w", database, err)
	}
	flows := make([]model.Flow, len(records))
	for i, r := range records {
		flows[i] = model.Flow{
			Database:   database,
			Code:       r.Code,
			Name:       r.Name,
			Categories: model.SplitCategories(r.Categories),
			Unit:       r.Unit,
		}
	}
	return flows, nil
}

// RecordNormalizations stores the field rewrites of a conversion run
func (s *ProjectStore) RecordNormalizations(ctx context.Context, runID string, ops []model.NormalizationOperation) error {
	if len(ops) == 0 {
		return nil
	}
	records := make([]NormalizationRecord, len(ops))
	for i, op := range ops {
		records[i] = NormalizationRecord{
			RunID:         runID,
			Dataset:       op.Dataset,
			ExchangeIndex: op.ExchangeIndex,
			Field:         string(op.Field),
			OriginalValue: op.OriginalValue,
			NewValue:      op.NewValue,
			Rule:          op.Rule,
			NormalizedAt:  op.NormalizedAt,
		}
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&records, s.batchSize).Error; err != nil {
		return fmt.Errorf("failed to record normalizations: %w", err)
	}
	s.logger.Info("Recorded normalization operations", zap.Int("count", len(ops)))
	return nil
}

// Normalizations returns the recorded rewrites of a run
func (s *ProjectStore) Normalizations(ctx context.Context, runID string) ([]model.NormalizationOperation, error) {
	var records []NormalizationRecord
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load normalizations: %w", err)
	}
	ops := make([]model.NormalizationOperation, len(records))
	for i, r := range records {
		ops[i] = model.NormalizationOperation{
			Dataset:       r.Dataset,
			ExchangeIndex: r.ExchangeIndex,
			Field:         model.Field(r.Field),
			OriginalValue: r.OriginalValue,
			NewValue:      r.NewValue,
			Rule:          r.Rule,
			NormalizedAt:  r.NormalizedAt,
		}
	}
	return ops, nil
}

// Verify compares stored row counts with a handle
func (s *ProjectStore) Verify(ctx context.Context, h Handle) error {
	db := s.db.WithContext(ctx)

	var activities, exchanges int64
	if err := db.Model(&ActivityRecord{}).Where("database_name = ?", h.Database).Count(&activities).Error; err != nil {
		return fmt.Errorf("failed to count activities: %w", err)
	}
	ids := db.Model(&ActivityRecord{}).Select("id").Where("database_name = ?", h.Database)
	if err := db.Model(&ExchangeRecord{}).Where("activity_id IN (?)", ids).Count(&exchanges).Error; err != nil {
		return fmt.Errorf("failed to count exchanges: %w", err)
	}

	return checkCounts(s.logger, h, activities, exchanges)
}

// Close releases the underlying connection
func (s *ProjectStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toActivityRecord(database string, position int, a *model.Activity) ActivityRecord {
	r := ActivityRecord{
		Database:         database,
		Code:             a.Code,
		Position:         position,
		Name:             a.Name,
		ReferenceProduct: a.ReferenceProduct,
		Location:         a.Location,
		Unit:             a.Unit,
		Type:             string(a.Type),
		Categories:       model.JoinCategories(a.Categories),
		Comment:          a.Comment,
		Fields:           Fields(copyFields(a.Fields)),
		Exchanges:        make([]ExchangeRecord, len(a.Exchanges)),
	}
	for i, e := range a.Exchanges {
		r.Exchanges[i] = ExchangeRecord{
			Position:         i,
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
	return r
}

func (r *ActivityRecord) toModel() *model.Activity {
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
		Exchanges:        make([]*model.Exchange, len(r.Exchanges)),
	}
	for i, e := range r.Exchanges {
		a.Exchanges[i] = &model.Exchange{
			Type:             model.ExchangeType(e.Type),
			Name:             e.Name,
			ReferenceProduct: e.ReferenceProduct,
			Location:         e.Location,
			Unit:             e.Unit,
			Categories:       model.SplitCategories(e.Categories),
			Amount:           e.Amount,
			Uncertainty: model.Uncertainty{
				Type:     model.UncertaintyType(e.UncertaintyType),
				Loc:      e.Loc,
				Scale:    e.Scale,
				Minimum:  e.Minimum,
				Maximum:  e.Maximum,
				Negative: e.Negative,
			},
			Comment: e.Comment,
			Input:   model.Link{Database: e.InputDatabase, Code: e.InputCode},
		}
	}
	return a
}

// checkCounts logs and compares stored counts with a handle
func checkCounts(log *zap.Logger, h Handle, activities, exchanges int64) error {
	if activities == int64(h.Activities) && exchanges == int64(h.Exchanges) {
		log.Info("Row count verification successful",
			zap.String("database", h.Database),
			zap.Int64("activities", activities),
			zap.Int64("exchanges", exchanges))
		return nil
	}

	log.Warn("Row count mismatch",
		zap.String("database", h.Database),
		zap.Int("expectedActivities", h.Activities),
		zap.Int64("activities", activities),
		zap.Int("expectedExchanges", h.Exchanges),
		zap.Int64("exchanges", exchanges))

	var errs []error
	if activities != int64(h.Activities) {
		errs = append(errs, fmt.Errorf("%w: %s has %d activities, expected %d", ErrCountMismatch, h.Database, activities, h.Activities))
	}
	if exchanges != int64(h.Exchanges) {
		errs = append(errs, fmt.Errorf("%w: %s has %d exchanges, expected %d", ErrCountMismatch, h.Database, exchanges, h.Exchanges))
	}
	return errors.Join(errs...)
}
