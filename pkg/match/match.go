// pkg/match/match.go
package match

import (
	"go.uber.org/zap"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

// Match links every unlinked exchange of the index's domain whose key is in
// the index. It returns the number of exchanges newly linked. Exchanges that
// are already linked are left alone, so repeated calls are no-ops.
func Match(exchanges []*model.Exchange, ix *Index) int {
	linked := 0
	for _, e := range exchanges {
		if e.Type != ix.domain || e.Linked() {
			continue
		}
		if link, ok := ix.Lookup(e.Key(ix.fields)); ok {
			e.Input = link
			linked++
		}
	}
	return linked
}

// LinkProduction links every production exchange to its own activity
func LinkProduction(activities []*model.Activity) int {
	linked := 0
	for _, a := range activities {
		for _, e := range a.Exchanges {
			if e.Type == model.Production && !e.Linked() {
				e.Input = a.Link()
				linked++
			}
		}
	}
	return linked
}

// Strategy is a named index applied by the matcher
type Strategy struct {
	Name  string
	Index *Index
}

// Result reports how many exchanges a strategy linked
type Result struct {
	Strategy string
	Domain   model.ExchangeType
	Linked   int
}

// Matcher applies an ordered list of strategies
type Matcher struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewMatcher creates a matcher applying strategies in the given order
func NewMatcher(logger *zap.Logger, strategies ...Strategy) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		strategies: append([]Strategy(nil), strategies...),
		logger:     logger,
	}
}

// AddStrategy appends a strategy after the existing ones
func (m *Matcher) AddStrategy(s Strategy) {
	m.strategies = append(m.strategies, s)
}

// Strategies returns the strategies in application order
func (m *Matcher) Strategies() []Strategy {
	return append([]Strategy(nil), m.strategies...)
}

// Run applies every strategy to the exchanges of the given activities
func (m *Matcher) Run(activities []*model.Activity) []Result {
	exchanges := model.AllExchanges(activities)
	results := make([]Result, 0, len(m.strategies))

	for _, s := range m.strategies {
		if s.Index == nil {
			continue
		}
		n := Match(exchanges, s.Index)
		results = append(results, Result{Strategy: s.Name, Domain: s.Index.Domain(), Linked: n})

		m.logger.Debug("Applied match strategy",
			zap.String("strategy", s.Name),
			zap.String("database", s.Index.Database()),
			zap.String("domain", string(s.Index.Domain())),
			zap.Int("linked", n),
			zap.Int("ambiguousKeys", s.Index.Ambiguous()))
	}
	return results
}

// InternalStrategy links technosphere exchanges to datasets of the same inventory
func InternalStrategy(database string, activities []*model.Activity, fields ...model.Field) Strategy {
	return Strategy{
		Name:  "internal",
		Index: NewTechnosphereIndex(database, activities, fields...),
	}
}
