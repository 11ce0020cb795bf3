// pkg/converter/pipeline.go
package converter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/brightpath-lca/brightpath/pkg/issue"
	"github.com/brightpath-lca/brightpath/pkg/match"
	"github.com/brightpath-lca/brightpath/pkg/migration"
	"github.com/brightpath-lca/brightpath/pkg/model"
	"github.com/brightpath-lca/brightpath/pkg/stats"
)

// prepareFunc runs between normalization and matching and may replace the
// activity list. It returns the extra field rewrites it performed.
type prepareFunc func(activities []*model.Activity) ([]*model.Activity, []model.NormalizationOperation)

// Process normalizes an inventory, links it against the reference databases
// and applies the migration tables, all in place. Nothing is written.
func (s *Session) Process(ctx context.Context, database string, activities []*model.Activity, opts Options) (*Result, error) {
	res, err := s.begin("process", database, opts)
	if err != nil {
		return nil, err
	}

	activities, err = s.process(ctx, res, database, activities, opts, nil)
	if err != nil {
		return nil, err
	}
	res.Activities = activities

	s.finish(res)
	return res, nil
}

func (s *Session) begin(direction, database string, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		s.tracker.Record(issue.NewRecord(err, issue.CategoryDestructiveWrite).WithSource(database))
		return nil, err
	}
	return newResult(direction, database, s.now()), nil
}

func (s *Session) finish(res *Result) {
	res.complete(s.now(), s.tracker.Summary())

	s.logger.Info("Conversion completed",
		zap.String("runID", res.RunID),
		zap.String("direction", res.Direction),
		zap.String("database", res.Database),
		zap.Int("datasets", res.After.Datasets),
		zap.Int("exchanges", res.After.Exchanges),
		zap.Int("unlinkedBefore", res.Before.Unlinked),
		zap.Int("unlinkedAfter", res.After.Unlinked),
		zap.Int("migrated", res.Migrated()),
		zap.Int("dropped", res.Dropped),
		zap.Duration("duration", res.Duration))
}

// process runs normalization, the first match pass, the migrations and the
// second match pass
func (s *Session) process(ctx context.Context, res *Result, database string, activities []*model.Activity,
	opts Options, prepare prepareFunc) ([]*model.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ops := s.inbound.NormalizeActivities(activities)
	if prepare != nil {
		var more []model.NormalizationOperation
		activities, more = prepare(activities)
		ops = append(ops, more...)
	}
	res.Normalizations = len(ops)

	if s.recorder != nil && len(ops) > 0 {
		if err := s.recorder.RecordNormalizations(ctx, res.RunID, ops); err != nil {
			return nil, fmt.Errorf("failed to record normalizations: %w", err)
		}
	}

	res.Before = stats.Compute(activities)

	match.LinkProduction(activities)
	matcher := match.NewMatcher(s.logger.Named("matcher"), match.InternalStrategy(database, activities))
	for _, st := range s.strategies {
		matcher.AddStrategy(st)
	}
	res.FirstPass = matcher.Run(activities)

	applier := migration.NewApplier(s.logger.Named("migration"), migration.Options{OverrideLinked: opts.OverrideLinked})
	for _, t := range s.migrations {
		res.Migrations = append(res.Migrations, applier.Apply(activities, t))
	}
	res.SecondPass = matcher.Run(activities)

	if opts.DropUnlinked {
		res.Dropped = s.dropUnlinked(database, activities)
	}
	s.recordUnlinked(database, activities)

	res.After = stats.Compute(activities)
	if s.collector != nil {
		s.collector.Observe(res.After)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return activities, nil
}

// dropUnlinked removes unlinked technosphere and biosphere exchanges
func (s *Session) dropUnlinked(database string, activities []*model.Activity) int {
	dropped := 0
	for _, a := range activities {
		kept := a.Exchanges[:0]
		for _, e := range a.Exchanges {
			if e.Type == model.Production || e.Linked() {
				kept = append(kept, e)
				continue
			}
			dropped++
			s.tracker.Record(issue.Newf(issue.CategoryWarning, "dropped unlinked %s exchange %q", e.Type, e.Name).
				WithSource(database).WithDataset(a.Name))
		}
		a.Exchanges = kept
	}
	return dropped
}

// recordUnlinked records each distinct unresolved exchange once
func (s *Session) recordUnlinked(database string, activities []*model.Activity) {
	for _, u := range stats.UnlinkedExchanges(activities) {
		if u.Type == model.Production {
			continue
		}
		s.tracker.Record(issue.Newf(issue.CategoryUnresolvedReference, "unlinked %s exchange %q", u.Type, u.Name).
			WithSource(database).
			WithField("count", u.Count))
	}
}
