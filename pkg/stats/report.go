// pkg/stats/report.go
package stats

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

// Report renders a human-readable summary
func (s Statistics) Report() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`
Inventory Statistics
====================
Datasets:                %d
Exchanges:               %d
Linked:                  %d (%.1f%%)
Unlinked:                %d
`,
		s.Datasets,
		s.Exchanges,
		s.Linked(), s.LinkedShare()*100,
		s.Unlinked,
	))

	sb.WriteString("\nBy Type\n-------\n")
	for _, t := range model.ExchangeTypes {
		tc := s.ByType[t]
		sb.WriteString(fmt.Sprintf("- %-13s %d total, %d unlinked\n", string(t)+":", tc.Total, tc.Unlinked))
	}

	return sb.String()
}

// ToJSON serializes the statistics
func (s Statistics) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// UnlinkedReport renders the unlinked exchanges as a table, limited to limit rows
// when limit is positive.
func UnlinkedReport(rows []UnlinkedExchange, limit int) string {
	if len(rows) == 0 {
		return "All exchanges are linked.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-12s | %-40s | %-25s | %-10s | %-12s | %s\n",
		"type", "name", "product / categories", "location", "unit", "count"))
	sb.WriteString(strings.Repeat("-", 120) + "\n")

	for i, r := range rows {
		if limit > 0 && i == limit {
			sb.WriteString(fmt.Sprintf("... and %d more\n", len(rows)-limit))
			break
		}
		product := r.ReferenceProduct
		if r.Type == model.Biosphere {
			product = r.Categories
		}
		sb.WriteString(fmt.Sprintf("%-12s | %-40s | %-25s | %-10s | %-12s | %d\n",
			r.Type, truncate(r.Name, 40), truncate(product, 25), r.Location, r.Unit, r.Count))
	}

	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
