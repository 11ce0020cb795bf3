// pkg/normalizer/operations.go
package normalizer

import (
	"go.uber.org/zap"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

// NormalizeActivities rewrites every activity and exchange in place and
// returns the operations performed. Unchanged fields are not recorded.
func (n *Normalizer) NormalizeActivities(activities []*model.Activity) []model.NormalizationOperation {
	var ops []model.NormalizationOperation
	for _, a := range activities {
		ops = append(ops, n.NormalizeActivity(a)...)
	}

	if len(ops) > 0 {
		n.logger.Info("Normalized inventory fields",
			zap.String("direction", n.direction.String()),
			zap.Int("activities", len(activities)),
			zap.Int("operations", len(ops)))
	}
	return ops
}

// NormalizeActivity rewrites a single activity and its exchanges
func (n *Normalizer) NormalizeActivity(a *model.Activity) []model.NormalizationOperation {
	var ops []model.NormalizationOperation

	record := func(index int, field model.Field, role Role, before, after string) {
		if before == after {
			return
		}
		ops = append(ops, model.NormalizationOperation{
			Dataset:       a.Name,
			ExchangeIndex: index,
			Field:         field,
			OriginalValue: before,
			NewValue:      after,
			Rule:          role.String(),
			NormalizedAt:  n.now(),
		})
	}

	before := a.Unit
	a.Unit = n.unit(a.Unit)
	record(-1, model.FieldUnit, RoleUnit, before, a.Unit)

	before = a.Location
	a.Location = n.location(a.Location)
	record(-1, model.FieldLocation, RoleLocation, before, a.Location)

	for i, e := range a.Exchanges {
		before = e.Unit
		e.Unit = n.unit(e.Unit)
		record(i, model.FieldUnit, RoleUnit, before, e.Unit)

		if e.Type != model.Biosphere {
			before = e.Location
			e.Location = n.location(e.Location)
			record(i, model.FieldLocation, RoleLocation, before, e.Location)
			continue
		}

		before = e.Name
		e.Name = n.biosphereName(e.Name, e.Location, a.Location)
		record(i, model.FieldName, RoleBiosphereName, before, e.Name)

		if len(e.Categories) > 1 {
			before = model.JoinCategories(e.Categories)
			e.Categories[1] = n.subcompartment(e.Categories[1])
			record(i, model.FieldCategories, RoleCategory, before, model.JoinCategories(e.Categories))
		}
	}

	return ops
}
