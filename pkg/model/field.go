// pkg/model/field.go
package model

import (
	"fmt"
	"strings"
)

// Field names an identifying attribute of an exchange or activity
type Field string

const (
	FieldName             Field = "name"
	FieldReferenceProduct Field = "reference product"
	FieldLocation         Field = "location"
	FieldUnit             Field = "unit"
	FieldCategories       Field = "categories"
)

// CategorySeparator joins category levels in flat representations
const CategorySeparator = "::"

// DefaultTechnosphereFields is the tuple used to match technosphere exchanges
var DefaultTechnosphereFields = []Field{FieldName, FieldReferenceProduct, FieldLocation}

// DefaultBiosphereFields is the tuple used to match biosphere exchanges
var DefaultBiosphereFields = []Field{FieldName, FieldCategories}

// ParseField converts a field label to a Field
func ParseField(s string) (Field, error) {
	switch Field(strings.ToLower(strings.TrimSpace(s))) {
	case FieldName:
		return FieldName, nil
	case FieldReferenceProduct, "reference_product", "product":
		return FieldReferenceProduct, nil
	case FieldLocation:
		return FieldLocation, nil
	case FieldUnit:
		return FieldUnit, nil
	case FieldCategories:
		return FieldCategories, nil
	default:
		return "", fmt.Errorf("unknown field %q", s)
	}
}

// ParseFields converts a list of labels, failing on the first unknown one
func ParseFields(labels []string) ([]Field, error) {
	fields := make([]Field, 0, len(labels))
	for _, l := range labels {
		f, err := ParseField(l)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// Key is a normalized tuple of field values used for exact lookups
type Key string

const keySeparator = "\x1f"

// NewKey builds a key from values, case-folded and trimmed
func NewKey(values ...string) Key {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return Key(strings.Join(parts, keySeparator))
}

// Parts splits the key back into its normalized values
func (k Key) Parts() []string {
	return strings.Split(string(k), keySeparator)
}

// String renders the key for logs and reports
func (k Key) String() string {
	return "(" + strings.Join(k.Parts(), ", ") + ")"
}

// JoinCategories flattens a category path
func JoinCategories(categories []string) string {
	return strings.Join(categories, CategorySeparator)
}

// SplitCategories parses a flattened category path, dropping empty levels
func SplitCategories(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, CategorySeparator) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
