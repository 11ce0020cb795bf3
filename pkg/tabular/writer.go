// pkg/tabular/writer.go
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

// Write renders activities as a Brightway-style table, one row per exchange.
// Activity fields are appended as "activity <field>" columns.
func Write(out io.Writer, activities []*model.Activity) error {
	extra := fieldNames(activities)
	header := append([]string(nil), Columns...)
	for _, f := range extra {
		header = append(header, activityFieldPrefix+f)
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}

	for _, a := range activities {
		for _, e := range a.Exchanges {
			row := []string{
				a.Name, a.ReferenceProduct, a.Location, a.Unit,
				string(e.Type), e.Name, e.ReferenceProduct, e.Location, e.Unit,
				model.JoinCategories(e.Categories),
				formatFloat(e.Amount),
				strconv.Itoa(int(e.Uncertainty.Type)),
				formatFloat(e.Uncertainty.Loc),
				formatFloat(e.Uncertainty.Scale),
				formatFloat(e.Uncertainty.Minimum),
				formatFloat(e.Uncertainty.Maximum),
				e.Comment,
			}
			for _, f := range extra {
				row = append(row, a.Fields[f])
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write exchange of %q: %w", a.Name, err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile renders activities to path
func WriteFile(path string, activities []*model.Activity) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create inventory table: %w", err)
	}
	if err := Write(f, activities); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fieldNames(activities []*model.Activity) []string {
	seen := make(map[string]bool)
	var names []string
	for _, a := range activities {
		for f := range a.Fields {
			if !seen[f] {
				seen[f] = true
				names = append(names, f)
			}
		}
	}
	sort.Strings(names)
	return names
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
