// pkg/stats/stats.go
package stats

import (
	"sort"
	"strings"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

// TypeCount counts exchanges of one type
type TypeCount struct {
	Total    int `json:"total"`
	Unlinked int `json:"unlinked"`
}

// Statistics summarizes an inventory's linking state
type Statistics struct {
	Datasets  int                              `json:"datasets"`
	Exchanges int                              `json:"exchanges"`
	Unlinked  int                              `json:"unlinked"`
	ByType    map[model.ExchangeType]TypeCount `json:"byType"`
}

// Compute counts datasets, exchanges and unlinked exchanges. It never
// modifies the inventory.
func Compute(activities []*model.Activity) Statistics {
	s := Statistics{
		Datasets: len(activities),
		ByType:   make(map[model.ExchangeType]TypeCount, len(model.ExchangeTypes)),
	}

	for _, a := range activities {
		for _, e := range a.Exchanges {
			s.Exchanges++
			tc := s.ByType[e.Type]
			tc.Total++
			if !e.Linked() {
				tc.Unlinked++
				s.Unlinked++
			}
			s.ByType[e.Type] = tc
		}
	}

	return s
}

// Linked returns the number of resolved exchanges
func (s Statistics) Linked() int {
	return s.Exchanges - s.Unlinked
}

// LinkedShare returns the fraction of exchanges resolved, 1 for an empty inventory
func (s Statistics) LinkedShare() float64 {
	if s.Exchanges == 0 {
		return 1
	}
	return float64(s.Linked()) / float64(s.Exchanges)
}

// UnlinkedExchange is one distinct unresolved exchange and how often it occurs
type UnlinkedExchange struct {
	Type             model.ExchangeType `json:"type"`
	Name             string             `json:"name"`
	ReferenceProduct string             `json:"referenceProduct,omitempty"`
	Location         string             `json:"location,omitempty"`
	Categories       string             `json:"categories,omitempty"`
	Unit             string             `json:"unit"`
	Count            int                `json:"count"`
}

// UnlinkedExchanges lists distinct unresolved exchanges, most frequent first
func UnlinkedExchanges(activities []*model.Activity) []UnlinkedExchange {
	index := make(map[string]int)
	var out []UnlinkedExchange

	for _, a := range activities {
		for _, e := range a.Exchanges {
			if e.Linked() {
				continue
			}
			row := UnlinkedExchange{
				Type:             e.Type,
				Name:             e.Name,
				ReferenceProduct: e.ReferenceProduct,
				Location:         e.Location,
				Categories:       model.JoinCategories(e.Categories),
				Unit:             e.Unit,
			}
			key := strings.Join([]string{string(row.Type), row.Name, row.ReferenceProduct, row.Location, row.Categories, row.Unit}, "\x1f")
			if i, ok := index[key]; ok {
				out[i].Count++
				continue
			}
			row.Count = 1
			index[key] = len(out)
			out = append(out, row)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}
