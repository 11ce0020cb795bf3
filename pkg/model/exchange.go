// pkg/model/exchange.go
package model

import (
	"fmt"
	"strings"
)

// ExchangeType is the closed set of exchange variants in an inventory
type ExchangeType string

const (
	// Technosphere exchanges link to another activity
	Technosphere ExchangeType = "technosphere"
	// Biosphere exchanges link to an elementary flow
	Biosphere ExchangeType = "biosphere"
	// Production marks the reference output of the owning activity
	Production ExchangeType = "production"
)

// ExchangeTypes lists every exchange variant in reporting order
var ExchangeTypes = []ExchangeType{Production, Technosphere, Biosphere}

// ParseExchangeType converts a raw type label to an ExchangeType
func ParseExchangeType(s string) (ExchangeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "technosphere":
		return Technosphere, nil
	case "biosphere":
		return Biosphere, nil
	case "production":
		return Production, nil
	default:
		return "", fmt.Errorf("unknown exchange type %q", s)
	}
}

// Link points at the dataset or flow an exchange resolves to
type Link struct {
	Database string
	Code     string
}

// IsZero reports whether the link is unset
func (l Link) IsZero() bool {
	return l.Code == ""
}

// String renders the link as database/code
func (l Link) String() string {
	if l.Database == "" {
		return l.Code
	}
	return l.Database + "/" + l.Code
}

// Exchange is one input or output of an activity
type Exchange struct {
	Type             ExchangeType
	Name             string
	ReferenceProduct string
	Location         string
	Unit             string
	Categories       []string
	Amount           float64
	Uncertainty      Uncertainty
	Comment          string
	Input            Link
}

// NewTechnosphere builds a technosphere exchange, requiring the identifying tuple
func NewTechnosphere(name, product, location, unit string, amount float64) (*Exchange, error) {
	e := &Exchange{
		Type:             Technosphere,
		Name:             name,
		ReferenceProduct: product,
		Location:         location,
		Unit:             unit,
		Amount:           amount,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// NewProduction builds a production exchange for the given reference product
func NewProduction(name, product, location, unit string, amount float64) (*Exchange, error) {
	e := &Exchange{
		Type:             Production,
		Name:             name,
		ReferenceProduct: product,
		Location:         location,
		Unit:             unit,
		Amount:           amount,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// NewBiosphere builds a biosphere exchange, requiring name, categories and unit
func NewBiosphere(name string, categories []string, unit string, amount float64) (*Exchange, error) {
	e := &Exchange{
		Type:       Biosphere,
		Name:       name,
		Categories: append([]string(nil), categories...),
		Unit:       unit,
		Amount:     amount,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// RequiredFields returns the fields an exchange of type t must carry
func RequiredFields(t ExchangeType) []Field {
	switch t {
	case Biosphere:
		return []Field{FieldName, FieldCategories, FieldUnit}
	default:
		return []Field{FieldName, FieldReferenceProduct, FieldLocation, FieldUnit}
	}
}

// Validate checks that the exchange carries the fields its type requires
func (e *Exchange) Validate() error {
	switch e.Type {
	case Technosphere, Biosphere, Production:
	default:
		return fmt.Errorf("exchange %q: unknown exchange type %q", e.Name, e.Type)
	}
	for _, f := range RequiredFields(e.Type) {
		if strings.TrimSpace(e.Value(f)) == "" {
			return &MissingFieldError{Kind: string(e.Type), Name: e.Name, Field: f}
		}
	}
	return nil
}

// Linked reports whether the exchange has been resolved
func (e *Exchange) Linked() bool {
	return !e.Input.IsZero()
}

// Compartment returns the top-level category of a biosphere exchange
func (e *Exchange) Compartment() string {
	if len(e.Categories) == 0 {
		return ""
	}
	return e.Categories[0]
}

// Subcompartment returns the second-level category, if any
func (e *Exchange) Subcompartment() string {
	if len(e.Categories) < 2 {
		return ""
	}
	return e.Categories[1]
}

// Value returns the string value of a field
func (e *Exchange) Value(f Field) string {
	switch f {
	case FieldName:
		return e.Name
	case FieldReferenceProduct:
		return e.ReferenceProduct
	case FieldLocation:
		return e.Location
	case FieldUnit:
		return e.Unit
	case FieldCategories:
		return JoinCategories(e.Categories)
	default:
		return ""
	}
}

// SetValue assigns a field from its string form
func (e *Exchange) SetValue(f Field, v string) {
	switch f {
	case FieldName:
		e.Name = v
	case FieldReferenceProduct:
		e.ReferenceProduct = v
	case FieldLocation:
		e.Location = v
	case FieldUnit:
		e.Unit = v
	case FieldCategories:
		e.Categories = SplitCategories(v)
	}
}

// Key builds the lookup key of the exchange over the given fields
func (e *Exchange) Key(fields []Field) Key {
	values := make([]string, len(fields))
	for i, f := range fields {
		values[i] = e.Value(f)
	}
	return NewKey(values...)
}

// Clone returns a deep copy of the exchange
func (e *Exchange) Clone() *Exchange {
	c := *e
	c.Categories = append([]string(nil), e.Categories...)
	return &c
}
