// pkg/model/activity.go
package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CodeNamespace seeds the stable identifiers generated for activities
var CodeNamespace = uuid.MustParse("6f1c2f5e-7d1b-4bd3-9a0e-6c1f0b2e8a11")

// ActivityType distinguishes ordinary processes from waste treatments
type ActivityType string

const (
	ProcessActivity        ActivityType = "process"
	WasteTreatmentActivity ActivityType = "waste treatment"
)

// Activity is one dataset (unit process) of an inventory
type Activity struct {
	Database         string
	Code             string
	Name             string
	ReferenceProduct string
	Location         string
	Unit             string
	Type             ActivityType
	Categories       []string
	Comment          string
	Fields           map[string]string // free-form metadata kept for export
	Exchanges        []*Exchange
}

// Value returns the string value of an identifying field
func (a *Activity) Value(f Field) string {
	switch f {
	case FieldName:
		return a.Name
	case FieldReferenceProduct:
		return a.ReferenceProduct
	case FieldLocation:
		return a.Location
	case FieldUnit:
		return a.Unit
	case FieldCategories:
		return JoinCategories(a.Categories)
	default:
		return ""
	}
}

// Key builds the lookup key of the activity over the given fields
func (a *Activity) Key(fields []Field) Key {
	values := make([]string, len(fields))
	for i, f := range fields {
		values[i] = a.Value(f)
	}
	return NewKey(values...)
}

// ComputeCode derives a stable identifier from the identifying fields.
// The same (database, name, reference product, location, unit) always yields the same code.
func (a *Activity) ComputeCode() string {
	parts := []string{
		a.Database,
		strings.ToLower(strings.TrimSpace(a.Name)),
		strings.ToLower(strings.TrimSpace(a.ReferenceProduct)),
		strings.ToLower(strings.TrimSpace(a.Location)),
		strings.ToLower(strings.TrimSpace(a.Unit)),
	}
	return uuid.NewSHA1(CodeNamespace, []byte(strings.Join(parts, "|"))).String()
}

// EnsureCode fills Code from the identifying fields when empty
func (a *Activity) EnsureCode() string {
	if a.Code == "" {
		a.Code = a.ComputeCode()
	}
	return a.Code
}

// Link returns the link other exchanges use to reference this activity
func (a *Activity) Link() Link {
	return Link{Database: a.Database, Code: a.EnsureCode()}
}

// Production returns the single production exchange
func (a *Activity) Production() (*Exchange, error) {
	var found *Exchange
	for _, e := range a.Exchanges {
		if e.Type != Production {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("activity %q: %w", a.Name, ErrMultipleProduction)
		}
		found = e
	}
	if found == nil {
		return nil, fmt.Errorf("activity %q: %w", a.Name, ErrNoProduction)
	}
	return found, nil
}

// ExchangesOf returns the exchanges of the given type, in order
func (a *Activity) ExchangesOf(t ExchangeType) []*Exchange {
	var out []*Exchange
	for _, e := range a.Exchanges {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks identifying fields, the production invariant and every exchange
func (a *Activity) Validate() error {
	for _, f := range []Field{FieldName, FieldReferenceProduct, FieldLocation, FieldUnit} {
		if strings.TrimSpace(a.Value(f)) == "" {
			return &MissingFieldError{Kind: "activity", Name: a.Name, Field: f}
		}
	}
	if _, err := a.Production(); err != nil {
		return err
	}
	for _, e := range a.Exchanges {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("activity %q: %w", a.Name, err)
		}
	}
	return nil
}

// AllExchanges flattens the exchanges of every activity, in order
func AllExchanges(activities []*Activity) []*Exchange {
	var out []*Exchange
	for _, a := range activities {
		out = append(out, a.Exchanges...)
	}
	return out
}

// Flow is an elementary flow of a biosphere reference database
type Flow struct {
	Database   string
	Code       string
	Name       string
	Categories []string
	Unit       string
}

// Value returns the string value of an identifying field
func (f Flow) Value(field Field) string {
	switch field {
	case FieldName:
		return f.Name
	case FieldUnit:
		return f.Unit
	case FieldCategories:
		return JoinCategories(f.Categories)
	default:
		return ""
	}
}

// Key builds the lookup key of the flow over the given fields
func (f Flow) Key(fields []Field) Key {
	values := make([]string, len(fields))
	for i, field := range fields {
		values[i] = f.Value(field)
	}
	return NewKey(values...)
}

// Link returns the link biosphere exchanges use to reference this flow
func (f Flow) Link() Link {
	return Link{Database: f.Database, Code: f.Code}
}
