// pkg/migration/apply.go
package migration

import (
	"go.uber.org/zap"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

// Options controls which exchanges a migration may touch
type Options struct {
	// OverrideLinked lets replace and disaggregate rewrite exchanges that are
	// already linked. Their link is cleared so a later match pass resolves them.
	OverrideLinked bool
}

// Counts reports how many exchanges each section changed
type Counts struct {
	Table         string
	Replaced      int
	Disaggregated int
	Created       int
	Biosphere     int
}

// Total returns the number of source exchanges changed
func (c Counts) Total() int {
	return c.Replaced + c.Disaggregated + c.Biosphere
}

// Applier applies migration tables to an inventory in place
type Applier struct {
	opts   Options
	logger *zap.Logger
}

// NewApplier creates an applier with the given options
func NewApplier(logger *zap.Logger, opts Options) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{opts: opts, logger: logger}
}

func (a *Applier) eligible(e *model.Exchange, t model.ExchangeType) bool {
	if e.Type != t {
		return false
	}
	return !e.Linked() || a.opts.OverrideLinked
}

// ApplyReplace rewrites the key fields of every eligible technosphere
// exchange found in the replace section. Amount and unit are kept.
func (a *Applier) ApplyReplace(exchanges []*model.Exchange, t *Table) int {
	changed := 0
	for _, e := range exchanges {
		if !a.eligible(e, model.Technosphere) {
			continue
		}
		target, ok := t.ReplaceTarget(e.Key(t.fields))
		if !ok {
			continue
		}
		for i, f := range t.fields {
			if f == model.FieldUnit {
				continue
			}
			e.SetValue(f, target[i])
		}
		e.Input = model.Link{}
		changed++
	}

	if changed > 0 {
		a.logger.Info("Applied replace migration",
			zap.String("table", t.Name),
			zap.Int("exchanges", changed))
	}
	return changed
}

// ApplyDisaggregate splits every eligible technosphere exchange found in the
// disaggregate section into one exchange per target, in place of the
// original. Each copy keeps unit, uncertainty and comment and carries
// amount * allocation. Allocations are used as given.
func (a *Applier) ApplyDisaggregate(activities []*model.Activity, t *Table) (changed, created int) {
	for _, act := range activities {
		out := make([]*model.Exchange, 0, len(act.Exchanges))
		for _, e := range act.Exchanges {
			if !a.eligible(e, model.Technosphere) {
				out = append(out, e)
				continue
			}
			targets, ok := t.Disaggregation(e.Key(t.fields))
			if !ok {
				out = append(out, e)
				continue
			}
			for _, target := range targets {
				c := e.Clone()
				for i, f := range t.fields {
					if f == model.FieldUnit {
						continue
					}
					c.SetValue(f, target.Key[i])
				}
				c.Amount = e.Amount * target.Allocation
				c.Input = model.Link{}
				out = append(out, c)
				created++
			}
			changed++
		}
		act.Exchanges = out
	}

	if changed > 0 {
		a.logger.Info("Applied disaggregate migration",
			zap.String("table", t.Name),
			zap.Int("exchanges", changed),
			zap.Int("created", created))
	}
	return changed, created
}

// ApplyBiosphereReplace renames biosphere exchanges found in the biosphere
// section and links them directly to the entry's catalogue identifier.
func (a *Applier) ApplyBiosphereReplace(exchanges []*model.Exchange, t *Table) int {
	changed := 0
	for _, e := range exchanges {
		if !a.eligible(e, model.Biosphere) {
			continue
		}
		entry, ok := t.BiosphereTarget(e.Name)
		if !ok {
			continue
		}
		if entry.Name != "" {
			e.Name = entry.Name
		}
		e.Input = model.Link{Database: entry.Database, Code: entry.ID}
		changed++
	}

	if changed > 0 {
		a.logger.Info("Applied biosphere migration",
			zap.String("table", t.Name),
			zap.Int("exchanges", changed))
	}
	return changed
}

// Apply runs the replace, disaggregate and biosphere sections in that order
func (a *Applier) Apply(activities []*model.Activity, t *Table) Counts {
	counts := Counts{Table: t.Name}
	counts.Replaced = a.ApplyReplace(model.AllExchanges(activities), t)
	counts.Disaggregated, counts.Created = a.ApplyDisaggregate(activities, t)
	counts.Biosphere = a.ApplyBiosphereReplace(model.AllExchanges(activities), t)
	return counts
}

// ApplyReplace applies the replace section with default options
func ApplyReplace(exchanges []*model.Exchange, t *Table) int {
	return NewApplier(nil, Options{}).ApplyReplace(exchanges, t)
}

// ApplyDisaggregate applies the disaggregate section with default options
// and returns the number of exchanges split
func ApplyDisaggregate(activities []*model.Activity, t *Table) int {
	changed, _ := NewApplier(nil, Options{}).ApplyDisaggregate(activities, t)
	return changed
}

// ApplyBiosphereReplace applies the biosphere section with default options
func ApplyBiosphereReplace(exchanges []*model.Exchange, t *Table) int {
	return NewApplier(nil, Options{}).ApplyBiosphereReplace(exchanges, t)
}
