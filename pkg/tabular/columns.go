// pkg/tabular/columns.go
package tabular

import (
	"errors"
	"fmt"
	"strings"
)

// Column names of the Brightway-style inventory table
const (
	ColActivity         = "activity"
	ColActivityProduct  = "activity product"
	ColActivityLocation = "activity location"
	ColActivityUnit     = "activity unit"
	ColType             = "type"
	ColName             = "name"
	ColReferenceProduct = "reference product"
	ColLocation         = "location"
	ColUnit             = "unit"
	ColCategories       = "categories"
	ColAmount           = "amount"
	ColUncertaintyType  = "uncertainty type"
	ColLoc              = "loc"
	ColScale            = "scale"
	ColMinimum          = "minimum"
	ColMaximum          = "maximum"
	ColComment          = "comment"
	ColCode             = "code"
)

// Columns lists every column in output order
var Columns = []string{
	ColActivity, ColActivityProduct, ColActivityLocation, ColActivityUnit,
	ColType, ColName, ColReferenceProduct, ColLocation, ColUnit, ColCategories,
	ColAmount, ColUncertaintyType, ColLoc, ColScale, ColMinimum, ColMaximum, ColComment,
}

// activityFieldPrefix marks extra columns copied into Activity.Fields
const activityFieldPrefix = "activity "

var requiredColumns = []string{ColActivity, ColActivityProduct, ColActivityLocation, ColActivityUnit, ColType, ColName, ColAmount}

// FlowColumns lists the columns of a biosphere flow table
var FlowColumns = []string{ColCode, ColName, ColCategories, ColUnit}

// ErrMissingColumn is returned when the header lacks a required column
var ErrMissingColumn = errors.New("missing required column")

// header maps column names to their position in a row
type header map[string]int

func parseHeader(row []string, required []string) (header, error) {
	h := make(header, len(row))
	for i, name := range row {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if name == "" {
			continue
		}
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}

	var missing []string
	for _, c := range required {
		if _, ok := h[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return h, nil
}

// get returns the trimmed cell of the column, empty when absent
func (h header) get(row []string, column string) string {
	i, ok := h[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// extraActivityFields returns the "activity ..." columns that are not part
// of the activity identity
func (h header) extraActivityFields() []string {
	var extra []string
	for name := range h {
		if !strings.HasPrefix(name, activityFieldPrefix) {
			continue
		}
		switch name {
		case ColActivityProduct, ColActivityLocation, ColActivityUnit:
			continue
		}
		extra = append(extra, name)
	}
	return extra
}
