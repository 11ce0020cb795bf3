// pkg/normalizer/normalizer.go
package normalizer

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath-lca/brightpath/pkg/tables"
)

// Direction selects which vocabulary field values are normalized into
type Direction int

const (
	// ToSimapro rewrites Brightway vocabulary into SimaPro vocabulary
	ToSimapro Direction = iota
	// ToBrightway rewrites SimaPro vocabulary into Brightway vocabulary
	ToBrightway
)

// String returns a string representation of the direction
func (d Direction) String() string {
	switch d {
	case ToSimapro:
		return "to-simapro"
	case ToBrightway:
		return "to-brightway"
	default:
		return fmt.Sprintf("Unknown(%d)", d)
	}
}

// Role tells the normalizer which table a value is looked up in
type Role int

const (
	RoleUnit Role = iota
	RoleCategory
	RoleBiosphereName
	RoleLocation
)

// String returns the rule name recorded on normalization operations
func (r Role) String() string {
	switch r {
	case RoleUnit:
		return "units"
	case RoleCategory:
		return "subcompartments"
	case RoleBiosphereName:
		return "biosphere"
	case RoleLocation:
		return "locations"
	default:
		return fmt.Sprintf("Unknown(%d)", r)
	}
}

// Normalizer maps raw field values onto their canonical form
type Normalizer struct {
	tables    *tables.Tables
	direction Direction
	logger    *zap.Logger
	now       func() time.Time
}

// NewNormalizer creates a normalizer over the given tables
func NewNormalizer(t *tables.Tables, direction Direction, logger *zap.Logger) (*Normalizer, error) {
	if t == nil {
		return nil, errors.New("tables cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Normalizer{
		tables:    t,
		direction: direction,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Direction returns the vocabulary this normalizer targets
func (n *Normalizer) Direction() Direction {
	return n.direction
}

// Field returns the canonical form of value for the given role, or value
// itself when no table entry exists.
func (n *Normalizer) Field(role Role, value string) string {
	switch role {
	case RoleUnit:
		return n.unit(value)
	case RoleCategory:
		return n.subcompartment(value)
	case RoleBiosphereName:
		return n.biosphereName(value, "", "")
	case RoleLocation:
		return n.location(value)
	default:
		return value
	}
}

func (n *Normalizer) unit(value string) string {
	var out string
	if n.direction == ToSimapro {
		out, _ = n.tables.SimaproUnit(value)
	} else {
		out, _ = n.tables.BrightwayUnit(value)
	}
	return out
}

func (n *Normalizer) subcompartment(value string) string {
	var out string
	if n.direction == ToSimapro {
		out, _ = n.tables.SimaproSubcompartment(value)
	} else {
		out, _ = n.tables.BrightwaySubcompartment(value)
	}
	return out
}

func (n *Normalizer) biosphereName(value, exchangeLocation, activityLocation string) string {
	var out string
	if n.direction == ToSimapro {
		out, _ = n.tables.SimaproBiosphereName(value, exchangeLocation, activityLocation)
	} else {
		out, _ = n.tables.BrightwayBiosphereName(value)
	}
	return out
}

// Location corrections only exist for SimaPro spellings
func (n *Normalizer) location(value string) string {
	if n.direction == ToSimapro {
		return value
	}
	out, _ := n.tables.CorrectLocation(value)
	return out
}

// BiosphereName resolves a flow name taking the exchange and activity
// locations into account
func (n *Normalizer) BiosphereName(name, exchangeLocation, activityLocation string) string {
	return n.biosphereName(name, exchangeLocation, activityLocation)
}
