// pkg/converter/result.go
package converter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightpath-lca/brightpath/pkg/issue"
	"github.com/brightpath-lca/brightpath/pkg/match"
	"github.com/brightpath-lca/brightpath/pkg/migration"
	"github.com/brightpath-lca/brightpath/pkg/model"
	"github.com/brightpath-lca/brightpath/pkg/stats"
	"github.com/brightpath-lca/brightpath/pkg/store"
)

// Result represents the outcome of a conversion run
type Result struct {
	RunID          string
	Direction      string
	Database       string
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	Normalizations int
	Before         stats.Statistics
	After          stats.Statistics
	FirstPass      []match.Result
	SecondPass     []match.Result
	Migrations     []migration.Counts
	Dropped        int
	Issues         map[issue.Category]int
	Handle         store.Handle // Zero unless the run wrote to a store
	Path           string       // Export file, SimaPro runs only

	Activities []*model.Activity `json:"-"`
}

// newResult initializes a result for a run
func newResult(direction, database string, now time.Time) *Result {
	return &Result{
		RunID:     uuid.New().String(),
		Direction: direction,
		Database:  database,
		StartTime: now,
		Issues:    make(map[issue.Category]int),
	}
}

// complete marks the run as complete and calculates duration
func (r *Result) complete(now time.Time, issues map[issue.Category]int) {
	r.EndTime = now
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Issues = issues
}

// Linked returns the number of exchanges a strategy linked over both passes
func (r *Result) Linked(strategy string) int {
	n := 0
	for _, passes := range [][]match.Result{r.FirstPass, r.SecondPass} {
		for _, m := range passes {
			if m.Strategy == strategy {
				n += m.Linked
			}
		}
	}
	return n
}

// Migrated returns the number of exchanges changed by migrations
func (r *Result) Migrated() int {
	n := 0
	for _, c := range r.Migrations {
		n += c.Total()
	}
	return n
}

// Summary renders a short human-readable account of the run
func (r *Result) Summary() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Run %s (%s, %s) finished in %s\n", r.RunID, r.Direction, r.Database, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&sb, "  normalized fields: %d\n", r.Normalizations)
	fmt.Fprintf(&sb, "  linked before: %d/%d, after: %d/%d\n",
		r.Before.Linked(), r.Before.Exchanges, r.After.Linked(), r.After.Exchanges)

	strategies := make(map[string]bool)
	var names []string
	for _, m := range append(append([]match.Result(nil), r.FirstPass...), r.SecondPass...) {
		if !strategies[m.Strategy] {
			strategies[m.Strategy] = true
			names = append(names, m.Strategy)
		}
	}
	for _, name := range names {
		fmt.Fprintf(&sb, "  strategy %s: %d linked\n", name, r.Linked(name))
	}

	for _, c := range r.Migrations {
		fmt.Fprintf(&sb, "  migration %s: %d replaced, %d disaggregated (+%d), %d biosphere\n",
			c.Table, c.Replaced, c.Disaggregated, c.Created, c.Biosphere)
	}
	if r.Dropped > 0 {
		fmt.Fprintf(&sb, "  dropped unlinked exchanges: %d\n", r.Dropped)
	}

	categories := make([]issue.Category, 0, len(r.Issues))
	for c := range r.Issues {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] > categories[j] })
	for _, c := range categories {
		fmt.Fprintf(&sb, "  issues %s: %d\n", c, r.Issues[c])
	}

	if r.Handle.Database != "" {
		fmt.Fprintf(&sb, "  written: %s\n", r.Handle)
	}
	if r.Path != "" {
		fmt.Fprintf(&sb, "  exported: %s\n", r.Path)
	}
	return sb.String()
}
