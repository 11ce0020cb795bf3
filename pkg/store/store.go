// pkg/store/store.go
package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

var (
	// ErrUnknownDatabase is returned when loading a database that was never written
	ErrUnknownDatabase = errors.New("unknown database")
	// ErrCountMismatch is returned when verification finds fewer or more rows than written
	ErrCountMismatch = errors.New("row count mismatch")
	// ErrDuplicateActivity is returned when two activities share a code
	ErrDuplicateActivity = errors.New("duplicate activity")
)

// Handle identifies a written inventory
type Handle struct {
	Backend    string    `json:"backend"`
	Database   string    `json:"database"`
	Activities int       `json:"activities"`
	Exchanges  int       `json:"exchanges"`
	WrittenAt  time.Time `json:"written_at"`
}

func (h Handle) String() string {
	return fmt.Sprintf("%s:%s (%d activities, %d exchanges)", h.Backend, h.Database, h.Activities, h.Exchanges)
}

// Writer persists converted inventories. Writing a database replaces any
// previous content of the same name.
type Writer interface {
	Write(ctx context.Context, database string, activities []*model.Activity) (Handle, error)
}

// Reader loads inventories and reference flows for matching
type Reader interface {
	LoadActivities(ctx context.Context, database string) ([]*model.Activity, error)
	LoadFlows(ctx context.Context, database string) ([]model.Flow, error)
}

// Store is a full inventory backend
type Store interface {
	Writer
	Reader
	WriteFlows(ctx context.Context, database string, flows []model.Flow) error
	RecordNormalizations(ctx context.Context, runID string, ops []model.NormalizationOperation) error
	Verify(ctx context.Context, h Handle) error
	Close() error
}

// CheckIdentity verifies that every activity and exchange carries its
// identifying fields, assigns missing activity codes and rejects duplicates
func CheckIdentity(activities []*model.Activity) error {
	seen := make(map[string]string, len(activities))
	for _, a := range activities {
		for _, f := range []model.Field{model.FieldName, model.FieldReferenceProduct, model.FieldLocation, model.FieldUnit} {
			if strings.TrimSpace(a.Value(f)) == "" {
				return &model.MissingFieldError{Kind: "activity", Name: a.Name, Field: f}
			}
		}
		for _, e := range a.Exchanges {
			if err := e.Validate(); err != nil {
				return fmt.Errorf("activity %q: %w", a.Name, err)
			}
		}
		code := a.EnsureCode()
		if other, dup := seen[code]; dup {
			return fmt.Errorf("%w: %q and %q share code %s", ErrDuplicateActivity, other, a.Name, code)
		}
		seen[code] = a.Name
	}
	return nil
}

// countExchanges sums the exchanges of activities
func countExchanges(activities []*model.Activity) int {
	n := 0
	for _, a := range activities {
		n += len(a.Exchanges)
	}
	return n
}

// Fields stores activity metadata as a JSON object
type Fields map[string]string

// Scan implements the sql.Scanner interface for Fields.
func (f *Fields) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for Fields: %T", value)
	}
	return json.Unmarshal(bytes, f)
}

// Value implements the driver.Valuer interface for Fields.
func (f Fields) Value() (driver.Value, error) {
	if len(f) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(f))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func copyFields(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
